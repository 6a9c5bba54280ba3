package dto

import (
	"time"

	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/service"
	"github.com/feedback-portal/feedback-service/internal/workflow"
)

// ActionsResponse is what the dashboard may offer the caller on a row.
type ActionsResponse struct {
	Workflow *workflow.Transition `json:"workflow"`
	Review   bool                 `json:"review"`
}

// FeedbackResponse is the JSON shape of a feedback ticket.
type FeedbackResponse struct {
	ID                        string                `json:"id"`
	ROCode                    string                `json:"roCode"`
	PhoneNumber               string                `json:"phoneNumber"`
	ExperienceComments        string                `json:"experienceComments"`
	FreeAirFacilityRating     *int                  `json:"freeAirFacilityRating"`
	DrinkingWaterRating       *int                  `json:"drinkingWaterRating"`
	WashroomCleanlinessRating *int                  `json:"washroomCleanlinessRating"`
	WorkflowStatus            domain.WorkflowStatus `json:"workflowStatus"`
	AssignedTo                *string               `json:"assignedTo"`
	Status                    domain.ReviewStatus   `json:"status"`
	Reviewed                  bool                  `json:"reviewed"`
	ReviewedBy                *string               `json:"reviewedBy"`
	ReviewedAt                *time.Time            `json:"reviewedAt"`
	CreatedAt                 time.Time             `json:"createdAt"`
	UpdatedAt                 time.Time             `json:"updatedAt"`
	Actions                   *ActionsResponse      `json:"actions,omitempty"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actorId"`
	ActorRole  domain.Role    `json:"actorRole"`
	ChangeType string         `json:"changeType"`
	OldValue   map[string]any `json:"oldValue"`
	NewValue   map[string]any `json:"newValue"`
	Comment    *string        `json:"comment,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// FeedbackDetailResponse adds history to a ticket.
type FeedbackDetailResponse struct {
	FeedbackResponse
	History []HistoryResponse `json:"history"`
}

// WorkflowUpdateResponse reports a committed transition.
type WorkflowUpdateResponse struct {
	ID             string                `json:"id"`
	Action         workflow.Action       `json:"action"`
	PreviousStatus domain.WorkflowStatus `json:"previousStatus"`
	WorkflowStatus domain.WorkflowStatus `json:"workflowStatus"`
	AssignedTo     *string               `json:"assignedTo"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// NewFeedbackResponse converts a ticket.
func NewFeedbackResponse(f domain.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:                        f.ID,
		ROCode:                    f.BranchCode,
		PhoneNumber:               f.PhoneNumber,
		ExperienceComments:        f.ExperienceComments,
		FreeAirFacilityRating:     f.FreeAirRating,
		DrinkingWaterRating:       f.DrinkingWaterRating,
		WashroomCleanlinessRating: f.WashroomRating,
		WorkflowStatus:            f.WorkflowStatus,
		AssignedTo:                f.AssignedTo,
		Status:                    f.ReviewStatus,
		Reviewed:                  f.Reviewed,
		ReviewedBy:                f.ReviewedBy,
		ReviewedAt:                f.ReviewedAt,
		CreatedAt:                 f.CreatedAt,
		UpdatedAt:                 f.UpdatedAt,
	}
}

// NewFeedbackViewResponse converts a ticket with its affordances.
func NewFeedbackViewResponse(v service.FeedbackView) FeedbackResponse {
	resp := NewFeedbackResponse(v.Feedback)
	resp.Actions = &ActionsResponse{Workflow: v.Actions.Workflow, Review: v.Actions.Review}
	return resp
}

// NewFeedbackListResponse converts a page of views.
func NewFeedbackListResponse(views []service.FeedbackView) []FeedbackResponse {
	items := make([]FeedbackResponse, 0, len(views))
	for _, v := range views {
		items = append(items, NewFeedbackViewResponse(v))
	}
	return items
}

// NewFeedbackDetailResponse converts a ticket with history.
func NewFeedbackDetailResponse(d *service.FeedbackDetail) FeedbackDetailResponse {
	history := make([]HistoryResponse, 0, len(d.History))
	for _, h := range d.History {
		history = append(history, HistoryResponse{
			ID:         h.ID,
			ActorID:    h.ActorID,
			ActorRole:  h.ActorRole,
			ChangeType: string(h.ChangeType),
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			Comment:    h.Comment,
			CreatedAt:  h.CreatedAt,
		})
	}
	return FeedbackDetailResponse{FeedbackResponse: NewFeedbackViewResponse(d.FeedbackView), History: history}
}

// NewWorkflowUpdateResponse converts a committed transition.
func NewWorkflowUpdateResponse(u *service.WorkflowUpdate) WorkflowUpdateResponse {
	return WorkflowUpdateResponse{
		ID:             u.FeedbackID,
		Action:         u.Action,
		PreviousStatus: u.From,
		WorkflowStatus: u.Status,
		AssignedTo:     u.AssignedTo,
		UpdatedAt:      u.UpdatedAt,
	}
}

package events

import (
	"time"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventFeedbackWorkflowChanged EventType = "feedback_workflow_changed"
	EventFeedbackReviewed        EventType = "feedback_reviewed"
	EventDirectoryChanged        EventType = "directory_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	FeedbackID string      `json:"feedback_id,omitempty"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// WorkflowChangedPayload payload.
type WorkflowChangedPayload struct {
	Action     string                `json:"action"`
	OldStatus  domain.WorkflowStatus `json:"old_status"`
	NewStatus  domain.WorkflowStatus `json:"new_status"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
	Comment    string                `json:"comment,omitempty"`
}

// FeedbackReviewedPayload payload.
type FeedbackReviewedPayload struct {
	OldStatus domain.ReviewStatus `json:"old_status"`
	NewStatus domain.ReviewStatus `json:"new_status"`
}

// DirectoryChangedPayload names the branches whose officer lists went stale.
// An empty list means every branch.
type DirectoryChangedPayload struct {
	BranchCodes []string `json:"branch_codes,omitempty"`
}

package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/cache"
	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/events"
	"github.com/feedback-portal/feedback-service/internal/observability"
	"github.com/feedback-portal/feedback-service/internal/repository"
	"github.com/feedback-portal/feedback-service/internal/workflow"
	apperrors "github.com/feedback-portal/feedback-service/pkg/util/errorutil"
)

type feedbackStore interface {
	workflow.Store
	List(ctx context.Context, filter repository.FeedbackFilter) ([]domain.Feedback, int, error)
	UpdateReviewStatus(ctx context.Context, update repository.ReviewUpdate) (*domain.Feedback, error)
	ListHistory(ctx context.Context, feedbackID string) ([]domain.FeedbackHistory, error)
	DistinctBranchCodes(ctx context.Context) ([]string, error)
}

type officerSource interface {
	ListFieldOfficers(ctx context.Context, branchCode string) ([]domain.User, error)
}

type directoryCache interface {
	Officers(ctx context.Context, branchCode string) ([]domain.Officer, error)
	SetOfficers(ctx context.Context, branchCode string, officers []domain.Officer) error
	FilterOptions(ctx context.Context) (*domain.FilterOptions, error)
	SetFilterOptions(ctx context.Context, options *domain.FilterOptions) error
}

// FeedbackDependencies bundles collaborators for the feedback service.
type FeedbackDependencies struct {
	Store      feedbackStore
	Officers   officerSource
	Cache      directoryCache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
}

// FeedbackService exposes feedback listing, workflow and review operations.
type FeedbackService struct {
	store     feedbackStore
	engine    *workflow.Engine
	officers  officerSource
	cache     directoryCache
	metrics   *observability.Metrics
	events    publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies, validate *validator.Validate, logger *zap.Logger) *FeedbackService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		store:     deps.Store,
		engine:    workflow.NewEngine(deps.Store),
		officers:  deps.Officers,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		events:    publisher{dispatcher: deps.Dispatcher, logger: logger},
		validator: validate,
		logger:    logger,
	}
}

// FeedbackView pairs a ticket with the affordances of the viewing role.
type FeedbackView struct {
	Feedback domain.Feedback
	Actions  workflow.Affordances
}

// FeedbackDetail adds the audit trail to a view.
type FeedbackDetail struct {
	FeedbackView
	History []domain.FeedbackHistory
}

// ListFeedbackRequest describes dashboard filters.
type ListFeedbackRequest struct {
	DateFrom       *time.Time
	DateTo         *time.Time
	BranchCode     string
	Search         string
	WorkflowStatus string
	ReviewStatus   string
	AssignedTo     string
	Page           int
	Limit          int
}

// UpdateWorkflowRequest is the body of a workflow transition request.
type UpdateWorkflowRequest struct {
	Status     string `json:"status" validate:"required,workflow_status"`
	AssignedTo string `json:"assignedTo"`
	Comments   string `json:"comments" validate:"max=2000"`
}

// ReviewRequest is the body of a review update.
type ReviewRequest struct {
	Status   string `json:"status" validate:"required,review_status"`
	Comments string `json:"comments" validate:"max=2000"`
}

// WorkflowUpdate is the outcome of a committed transition.
type WorkflowUpdate struct {
	FeedbackID string
	Action     workflow.Action
	From       domain.WorkflowStatus
	Status     domain.WorkflowStatus
	AssignedTo *string
	UpdatedAt  time.Time
}

// List returns a page of tickets with per-item affordances for role.
func (s *FeedbackService) List(ctx context.Context, role domain.Role, req ListFeedbackRequest) ([]FeedbackView, Pagination, error) {
	filter := repository.FeedbackFilter{
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		BranchCode: req.BranchCode,
		Search:     req.Search,
		Page:       req.Page,
		Limit:      req.Limit,
	}
	if status := strings.TrimSpace(req.WorkflowStatus); status != "" {
		ws := workflow.Normalize(domain.WorkflowStatus(status))
		filter.WorkflowStatus = &ws
	}
	if status := strings.TrimSpace(req.ReviewStatus); status != "" {
		rs := domain.ReviewStatus(status)
		if !rs.IsValid() {
			return nil, Pagination{}, apperrors.NewValidationError("invalid review status filter", map[string]any{"status": status})
		}
		filter.ReviewStatus = &rs
	}
	if assignee := strings.TrimSpace(req.AssignedTo); assignee != "" {
		filter.AssignedTo = &assignee
	}
	filter = filter.Normalized()

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, apperrors.NewUnavailable("failed to list feedback", err)
	}

	views := make([]FeedbackView, 0, len(items))
	for _, item := range items {
		views = append(views, FeedbackView{Feedback: item, Actions: workflow.AffordancesFor(item.WorkflowStatus, role)})
	}
	return views, newPagination(filter.Page, filter.Limit, total), nil
}

// Get returns one ticket with its history.
func (s *FeedbackService) Get(ctx context.Context, role domain.Role, id string) (*FeedbackDetail, error) {
	feedback, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapWorkflowError(err)
	}
	history, err := s.store.ListHistory(ctx, id)
	if err != nil {
		return nil, apperrors.NewUnavailable("failed to load feedback history", err)
	}
	return &FeedbackDetail{
		FeedbackView: FeedbackView{Feedback: *feedback, Actions: workflow.AffordancesFor(feedback.WorkflowStatus, role)},
		History:      history,
	}, nil
}

// UpdateWorkflowStatus asks the engine to move a ticket to req.Status.
func (s *FeedbackService) UpdateWorkflowStatus(ctx context.Context, actor Actor, id string, req UpdateWorkflowRequest) (*WorkflowUpdate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid workflow payload", validationDetails(err))
	}
	target := domain.WorkflowStatus(req.Status)

	if target == domain.WorkflowAssigned && actor.Role == domain.RoleDO && strings.TrimSpace(req.AssignedTo) != "" {
		if err := s.ensureEligibleAssignee(ctx, actor.Role, id, strings.TrimSpace(req.AssignedTo)); err != nil {
			s.metrics.RecordTransition(string(target), "ineligible_assignee")
			return nil, err
		}
	}

	res, err := s.engine.RequestTransition(ctx, workflow.TransitionRequest{
		FeedbackID: id,
		ActorID:    actor.ID,
		Role:       actor.Role,
		Target:     target,
		AssigneeID: req.AssignedTo,
		Comment:    req.Comments,
	})
	if err != nil {
		s.metrics.RecordTransition(string(target), transitionOutcome(err))
		if errors.Is(err, workflow.ErrStoreUnavailable) {
			s.logger.Error("workflow store unavailable", zap.String("feedback_id", id), zap.Error(err))
		}
		return nil, mapWorkflowError(err)
	}
	s.metrics.RecordTransition(string(target), "committed")

	s.events.publish(ctx, events.Event{
		Type:       events.EventFeedbackWorkflowChanged,
		FeedbackID: id,
		Actor:      actor.event(),
		Payload: events.WorkflowChangedPayload{
			Action:     string(res.Transition.Action),
			OldStatus:  res.Transition.From,
			NewStatus:  res.Status,
			AssignedTo: res.AssignedTo,
			Comment:    strings.TrimSpace(req.Comments),
		},
	})

	return &WorkflowUpdate{
		FeedbackID: id,
		Action:     res.Transition.Action,
		From:       res.Transition.From,
		Status:     res.Status,
		AssignedTo: res.AssignedTo,
		UpdatedAt:  res.UpdatedAt,
	}, nil
}

// ensureEligibleAssignee only applies when the ticket can currently be
// assigned by role. Otherwise the engine reports the illegal move.
func (s *FeedbackService) ensureEligibleAssignee(ctx context.Context, role domain.Role, feedbackID, assignee string) error {
	feedback, err := s.store.GetByID(ctx, feedbackID)
	if err != nil {
		return mapWorkflowError(err)
	}
	if next, ok := workflow.AvailableAction(feedback.WorkflowStatus, role); !ok || next.To != domain.WorkflowAssigned {
		return nil
	}
	officers, err := s.ListFieldOfficers(ctx, feedback.BranchCode)
	if err != nil {
		return err
	}
	for _, officer := range officers {
		if officer.ID == assignee {
			return nil
		}
	}
	return apperrors.NewDomainError("ASSIGNEE_NOT_ELIGIBLE", "assignee is not a field officer of this branch",
		http.StatusBadRequest, map[string]any{"assignedTo": assignee, "branchCode": feedback.BranchCode})
}

// Review sets the review status. It never touches the workflow status.
func (s *FeedbackService) Review(ctx context.Context, actor Actor, id string, req ReviewRequest) (*domain.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid review payload", validationDetails(err))
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapWorkflowError(err)
	}
	if !workflow.CanReview(current.WorkflowStatus, actor.Role) {
		if workflow.IsTerminal(current.WorkflowStatus) {
			return nil, apperrors.Wrap(workflow.ErrInvalidTransition, "INVALID_TRANSITION",
				"closed feedback cannot be reviewed", http.StatusConflict, nil)
		}
		return nil, apperrors.NewForbidden("role cannot review feedback")
	}

	var comment *string
	if c := strings.TrimSpace(req.Comments); c != "" {
		comment = &c
	}
	updated, err := s.store.UpdateReviewStatus(ctx, repository.ReviewUpdate{
		FeedbackID:   id,
		Status:       domain.ReviewStatus(req.Status),
		ReviewerID:   actor.ID,
		ReviewerRole: actor.Role,
		Comment:      comment,
	})
	if err != nil {
		return nil, mapWorkflowError(err)
	}

	s.events.publish(ctx, events.Event{
		Type:       events.EventFeedbackReviewed,
		FeedbackID: id,
		Actor:      actor.event(),
		Payload: events.FeedbackReviewedPayload{
			OldStatus: current.ReviewStatus,
			NewStatus: updated.ReviewStatus,
		},
	})
	return updated, nil
}

// ListFieldOfficers returns the officers eligible for assignment in a
// branch. Cache failures degrade to a direct read.
func (s *FeedbackService) ListFieldOfficers(ctx context.Context, branchCode string) ([]domain.Officer, error) {
	branchCode = strings.TrimSpace(branchCode)
	if branchCode == "" {
		return nil, apperrors.NewValidationError("branchCode is required", map[string]any{"branchCode": "required"})
	}

	if s.cache != nil {
		officers, err := s.cache.Officers(ctx, branchCode)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup("officers", "hit")
			return officers, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCacheLookup("officers", "miss")
		default:
			s.metrics.RecordCacheLookup("officers", "error")
			s.logger.Warn("officer cache read failed", zap.String("branch_code", branchCode), zap.Error(err))
		}
	}

	users, err := s.officers.ListFieldOfficers(ctx, branchCode)
	if err != nil {
		return nil, apperrors.NewUnavailable("failed to list field officers", err)
	}
	officers := make([]domain.Officer, 0, len(users))
	for i := range users {
		officers = append(officers, domain.Officer{
			ID:          users[i].ID,
			Username:    users[i].Username,
			DisplayName: users[i].DisplayName(),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetOfficers(ctx, branchCode, officers); err != nil {
			s.logger.Warn("officer cache write failed", zap.String("branch_code", branchCode), zap.Error(err))
		}
	}
	return officers, nil
}

// FilterOptions returns the branch codes and status values for the
// dashboard filters.
func (s *FeedbackService) FilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	if s.cache != nil {
		options, err := s.cache.FilterOptions(ctx)
		switch {
		case err == nil:
			s.metrics.RecordCacheLookup("filter_options", "hit")
			return options, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.RecordCacheLookup("filter_options", "miss")
		default:
			s.metrics.RecordCacheLookup("filter_options", "error")
			s.logger.Warn("filter options cache read failed", zap.Error(err))
		}
	}

	codes, err := s.store.DistinctBranchCodes(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("failed to load filter options", err)
	}
	options := &domain.FilterOptions{
		ROCodes:          codes,
		Statuses:         make([]string, 0, len(domain.ReviewStatuses)),
		WorkflowStatuses: make([]string, 0, len(domain.WorkflowStatuses)),
	}
	for _, status := range domain.ReviewStatuses {
		options.Statuses = append(options.Statuses, string(status))
	}
	for _, status := range domain.WorkflowStatuses {
		options.WorkflowStatuses = append(options.WorkflowStatuses, string(status))
	}

	if s.cache != nil {
		if err := s.cache.SetFilterOptions(ctx, options); err != nil {
			s.logger.Warn("filter options cache write failed", zap.Error(err))
		}
	}
	return options, nil
}

func mapWorkflowError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return apperrors.Wrap(err, "NOT_FOUND", "feedback not found", http.StatusNotFound, map[string]any{})
	case errors.Is(err, workflow.ErrMissingAssignee):
		return apperrors.Wrap(err, "MISSING_ASSIGNEE", "an assignee is required for this transition", http.StatusBadRequest, nil)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return apperrors.Wrap(err, "INVALID_TRANSITION", "transition not permitted", http.StatusConflict, nil)
	case errors.Is(err, workflow.ErrStaleState):
		return apperrors.Wrap(err, "STALE_STATE", "feedback changed, refresh and retry", http.StatusConflict, nil)
	case errors.Is(err, workflow.ErrStoreUnavailable):
		return apperrors.Wrap(err, "STORE_UNAVAILABLE", "feedback store unavailable", http.StatusServiceUnavailable, nil)
	default:
		return apperrors.MapError(err)
	}
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return "not_found"
	case errors.Is(err, workflow.ErrMissingAssignee):
		return "missing_assignee"
	case errors.Is(err, workflow.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, workflow.ErrStaleState):
		return "stale_state"
	default:
		return "store_unavailable"
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedback-portal/feedback-service/internal/domain"
)

// StatusUpdate is the single persisted write of a validated transition. The
// store must apply it only while the ticket is still in From.
type StatusUpdate struct {
	FeedbackID string
	From       domain.WorkflowStatus
	To         domain.WorkflowStatus
	AssigneeID *string
	ActorID    string
	ActorRole  domain.Role
	Comment    *string
}

// StatusResult reports the committed state.
type StatusResult struct {
	FeedbackID     string
	WorkflowStatus domain.WorkflowStatus
	AssignedTo     *string
	UpdatedAt      time.Time
}

// Store is the persistence the engine delegates to. GetByID returns
// ErrNotFound for unknown tickets; UpdateWorkflowStatus returns ErrStaleState
// when the ticket no longer matches the expected source state.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Feedback, error)
	UpdateWorkflowStatus(ctx context.Context, update StatusUpdate) (*StatusResult, error)
}

// TransitionRequest is a caller's request to move one ticket.
type TransitionRequest struct {
	FeedbackID string
	ActorID    string
	Role       domain.Role
	Target     domain.WorkflowStatus
	AssigneeID string
	Comment    string
}

// TransitionResult describes a committed transition.
type TransitionResult struct {
	Transition Transition
	Status     domain.WorkflowStatus
	AssignedTo *string
	UpdatedAt  time.Time
}

// Engine validates transition requests and relays them to the store.
type Engine struct {
	store Store
}

// NewEngine constructs an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// RequestTransition re-reads the ticket, validates the move against its
// current state and persists it with one conditional write.
func (e *Engine) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	id := strings.TrimSpace(req.FeedbackID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty ticket id", ErrNotFound)
	}

	ticket, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	t, err := Validate(ticket.WorkflowStatus, req.Role, req.Target, req.AssigneeID)
	if err != nil {
		return nil, err
	}

	update := StatusUpdate{
		FeedbackID: id,
		From:       t.From,
		To:         t.To,
		ActorID:    req.ActorID,
		ActorRole:  req.Role,
	}
	if t.RequiresAssignee {
		assignee := strings.TrimSpace(req.AssigneeID)
		update.AssigneeID = &assignee
	}
	if comment := strings.TrimSpace(req.Comment); comment != "" {
		update.Comment = &comment
	}

	res, err := e.store.UpdateWorkflowStatus(ctx, update)
	if err != nil {
		return nil, storeError(err)
	}
	return &TransitionResult{
		Transition: t,
		Status:     res.WorkflowStatus,
		AssignedTo: res.AssignedTo,
		UpdatedAt:  res.UpdatedAt,
	}, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStaleState) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

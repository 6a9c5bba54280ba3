package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/events"
	"github.com/feedback-portal/feedback-service/internal/repository"
	apperrors "github.com/feedback-portal/feedback-service/pkg/util/errorutil"
)

type branchStore interface {
	Create(ctx context.Context, branch *domain.Branch) error
	Delete(ctx context.Context, roCode string) error
	List(ctx context.Context) ([]domain.Branch, error)
}

// BranchService manages the branch directory.
type BranchService struct {
	branches  branchStore
	events    publisher
	validator *validator.Validate
}

// NewBranchService constructs the service.
func NewBranchService(branches branchStore, dispatcher events.Dispatcher, validate *validator.Validate, logger *zap.Logger) *BranchService {
	if validate == nil {
		validate = NewValidator()
	}
	return &BranchService{
		branches:  branches,
		events:    publisher{dispatcher: dispatcher, logger: logger},
		validator: validate,
	}
}

// CreateBranchRequest describes a new branch.
type CreateBranchRequest struct {
	ROCode string `json:"roCode" validate:"required,max=32"`
	Name   string `json:"name" validate:"required,max=128"`
	City   string `json:"city" validate:"max=128"`
}

// List returns all branches ordered by RO code.
func (s *BranchService) List(ctx context.Context) ([]domain.Branch, error) {
	branches, err := s.branches.List(ctx)
	if err != nil {
		return nil, apperrors.NewUnavailable("failed to list branches", err)
	}
	return branches, nil
}

// Create adds a branch.
func (s *BranchService) Create(ctx context.Context, req CreateBranchRequest) (*domain.Branch, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid branch payload", validationDetails(err))
	}
	branch := &domain.Branch{
		ROCode: strings.TrimSpace(req.ROCode),
		Name:   strings.TrimSpace(req.Name),
		City:   strings.TrimSpace(req.City),
	}
	if err := s.branches.Create(ctx, branch); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("branch already exists", map[string]any{"roCode": branch.ROCode})
		}
		return nil, apperrors.MapError(err)
	}
	s.changed(ctx, branch.ROCode)
	return branch, nil
}

// Delete removes a branch.
func (s *BranchService) Delete(ctx context.Context, roCode string) error {
	if err := s.branches.Delete(ctx, roCode); err != nil {
		return apperrors.MapError(err)
	}
	s.changed(ctx, roCode)
	return nil
}

func (s *BranchService) changed(ctx context.Context, roCode string) {
	s.events.publish(ctx, events.Event{
		Type:    events.EventDirectoryChanged,
		Payload: events.DirectoryChangedPayload{BranchCodes: []string{roCode}},
	})
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/auth"
	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/events"
	"github.com/feedback-portal/feedback-service/internal/repository"
	apperrors "github.com/feedback-portal/feedback-service/pkg/util/errorutil"
)

type userStore interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error)
}

type branchLookup interface {
	Get(ctx context.Context, roCode string) (*domain.Branch, error)
}

// UserService administers staff accounts.
type UserService struct {
	users      userStore
	branches   branchLookup
	events     publisher
	bcryptCost int
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users userStore, branches branchLookup, dispatcher events.Dispatcher, bcryptCost int, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      users,
		branches:   branches,
		events:     publisher{dispatcher: dispatcher, logger: logger},
		bcryptCost: bcryptCost,
		validator:  validate,
		logger:     logger,
	}
}

// ListUsersRequest filters the account listing.
type ListUsersRequest struct {
	Role       string
	BranchCode string
	Search     string
}

// CreateUserRequest describes a new account.
type CreateUserRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required,min=8"`
	FullName   string `json:"fullName" validate:"max=128"`
	Role       string `json:"role" validate:"required,role"`
	BranchCode string `json:"branchCode" validate:"required_unless=Role superuser"`
	BranchName string `json:"branchName"`
	City       string `json:"city"`
}

// UpdateUserRequest carries the fields to change. Nil fields are kept.
type UpdateUserRequest struct {
	Username   *string `json:"username" validate:"omitempty,min=3,max=64"`
	Email      *string `json:"email" validate:"omitempty,email"`
	FullName   *string `json:"fullName" validate:"omitempty,max=128"`
	Role       *string `json:"role" validate:"omitempty,role"`
	BranchCode *string `json:"branchCode"`
	BranchName *string `json:"branchName"`
	City       *string `json:"city"`
	Active     *bool   `json:"active"`
}

// ResetPasswordRequest sets a new password for another account.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, req ListUsersRequest) ([]domain.User, error) {
	filter := repository.UserFilter{BranchCode: req.BranchCode, Search: req.Search}
	if role := strings.TrimSpace(req.Role); role != "" {
		r := domain.Role(role)
		if !r.IsValid() {
			return nil, apperrors.NewValidationError("invalid role filter", map[string]any{"role": role})
		}
		filter.Role = &r
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewUnavailable("failed to list users", err)
	}
	return users, nil
}

// Create adds an account.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid user payload", validationDetails(err))
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         domain.Role(req.Role),
		BranchCode:   strings.TrimSpace(req.BranchCode),
		BranchName:   strings.TrimSpace(req.BranchName),
		City:         strings.TrimSpace(req.City),
		Active:       true,
	}
	if err := s.fillBranch(ctx, user); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, userWriteError(err)
	}
	s.directoryChanged(ctx, user.BranchCode)
	return user, nil
}

// Update changes an account.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*domain.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("invalid user payload", validationDetails(err))
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	previousBranch := user.BranchCode

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		user.Role = domain.Role(*req.Role)
	}
	if req.BranchCode != nil {
		user.BranchCode = strings.TrimSpace(*req.BranchCode)
	}
	if req.BranchName != nil {
		user.BranchName = strings.TrimSpace(*req.BranchName)
	}
	if req.City != nil {
		user.City = strings.TrimSpace(*req.City)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if user.Role != domain.RoleSuperuser && user.BranchCode == "" {
		return nil, apperrors.NewValidationError("branchCode is required for this role", map[string]any{"branchCode": "required"})
	}
	if err := s.fillBranch(ctx, user); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, userWriteError(err)
	}
	s.directoryChanged(ctx, previousBranch, user.BranchCode)
	return user, nil
}

// Delete removes an account. Callers cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.ID == id {
		return apperrors.NewValidationError("cannot delete your own account", nil)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return apperrors.MapError(err)
	}
	s.directoryChanged(ctx, user.BranchCode)
	return nil
}

// ResetPassword sets a new password without the current one.
func (s *UserService) ResetPassword(ctx context.Context, id string, req ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.NewValidationError("invalid password", validationDetails(err))
	}
	hash, err := auth.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// fillBranch copies name and city from the branch directory when the
// request left them blank.
func (s *UserService) fillBranch(ctx context.Context, user *domain.User) error {
	if s.branches == nil || user.BranchCode == "" || (user.BranchName != "" && user.City != "") {
		return nil
	}
	branch, err := s.branches.Get(ctx, user.BranchCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperrors.NewUnavailable("failed to load branch", err)
	}
	if user.BranchName == "" {
		user.BranchName = branch.Name
	}
	if user.City == "" {
		user.City = branch.City
	}
	return nil
}

func (s *UserService) directoryChanged(ctx context.Context, branchCodes ...string) {
	codes := make([]string, 0, len(branchCodes))
	for _, code := range branchCodes {
		if code != "" {
			codes = append(codes, code)
		}
	}
	s.events.publish(ctx, events.Event{
		Type:    events.EventDirectoryChanged,
		Payload: events.DirectoryChangedPayload{BranchCodes: codes},
	})
}

func userWriteError(err error) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict("username already exists", nil)
	}
	return apperrors.MapError(err)
}

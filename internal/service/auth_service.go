package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/auth"
	"github.com/feedback-portal/feedback-service/internal/config"
	"github.com/feedback-portal/feedback-service/internal/domain"
	apperrors "github.com/feedback-portal/feedback-service/pkg/util/errorutil"
)

type credentialStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type tokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, remaining time.Duration) error
}

// AuthService coordinates login, session and password flows.
type AuthService struct {
	users      credentialStore
	tokenMgr   *auth.TokenManager
	revoker    tokenRevoker
	bcryptCost int
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users credentialStore, tokens *auth.TokenManager, revoker tokenRevoker, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		tokenMgr:   tokens,
		revoker:    revoker,
		bcryptCost: cfg.BcryptCost,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest changes the caller's own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

// Session is an issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.NewValidationError("username and password are required", validationDetails(err))
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewUnavailable("failed to load account", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	return s.issue(user)
}

// Profile returns the caller's account.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return apperrors.NewValidationError("invalid password change", validationDetails(err))
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"currentPassword": "mismatch"})
	}
	hash, err := auth.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Refresh issues a new token and revokes the presented one.
func (s *AuthService) Refresh(ctx context.Context, principal *auth.Principal) (*Session, error) {
	session, err := s.issue(principal.User)
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, principal)
	return session, nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) {
	s.revoke(ctx, principal)
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, meta, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: meta.ExpiresAt, User: user}, nil
}

func (s *AuthService) revoke(ctx context.Context, principal *auth.Principal) {
	if s.revoker == nil || principal == nil || principal.TokenID == "" {
		return
	}
	remaining := principal.ExpiresAt.Sub(s.now())
	if err := s.revoker.RevokeToken(ctx, principal.TokenID, remaining); err != nil {
		s.logger.Warn("token revocation failed", zap.String("user_id", principal.User.ID), zap.Error(err))
	}
}

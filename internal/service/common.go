package service

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/events"
)

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role domain.Role
}

func (a Actor) event() events.Actor {
	return events.Actor{UserID: a.ID, Role: a.Role}
}

// Pagination describes a page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// NewValidator returns a validator with the domain tags registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.Role(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation("review_status", func(fl validator.FieldLevel) bool {
		return domain.ReviewStatus(fl.Field().String()).IsValid()
	})
	_ = validate.RegisterValidation("workflow_status", func(fl validator.FieldLevel) bool {
		target := domain.WorkflowStatus(fl.Field().String())
		for _, status := range domain.WorkflowStatuses {
			if status == target {
				return true
			}
		}
		return false
	})
	return validate
}

func validationDetails(err error) map[string]any {
	details := map[string]any{}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}

// publisher stamps and publishes events. Handler failures are logged and
// never fail the originating request.
type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil && p.logger != nil {
		p.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

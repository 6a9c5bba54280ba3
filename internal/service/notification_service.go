package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/config"
	"github.com/feedback-portal/feedback-service/internal/domain"
	"github.com/feedback-portal/feedback-service/internal/events"
)

// NotificationService emits notifications for feedback events.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
	}
}

// WorkflowChanged notifies about a committed workflow transition. The
// assignee is emailed only when the ticket was assigned.
func (n *NotificationService) WorkflowChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.WorkflowChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("FeedbackWorkflowChanged",
		zap.String("feedback_id", event.FeedbackID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)))
	if payload.NewStatus == domain.WorkflowAssigned && payload.AssignedTo != nil {
		n.sendEmailNotificationStub(ctx, event)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// Reviewed notifies about a review status change.
func (n *NotificationService) Reviewed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.FeedbackReviewedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("FeedbackReviewed",
		zap.String("feedback_id", event.FeedbackID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("review_status", string(payload.NewStatus)))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("feedback_id", event.FeedbackID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("feedback_id", event.FeedbackID),
		zap.String("event_type", string(event.Type)))
}

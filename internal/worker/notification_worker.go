package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/events"
)

// FeedbackNotifier reacts to committed feedback changes.
type FeedbackNotifier interface {
	WorkflowChanged(ctx context.Context, event events.Event) error
	Reviewed(ctx context.Context, event events.Event) error
}

// StartNotificationWorker subscribes the notifier to feedback events.
// Notifier failures are logged and never reach the publisher.
func StartNotificationWorker(dispatcher events.Dispatcher, notifier FeedbackNotifier, logger *zap.Logger) {
	if dispatcher == nil || notifier == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher.Subscribe(events.EventFeedbackWorkflowChanged, logFailures(notifier.WorkflowChanged, logger))
	dispatcher.Subscribe(events.EventFeedbackReviewed, logFailures(notifier.Reviewed, logger))
}

func logFailures(handler events.EventHandler, logger *zap.Logger) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		if err := handler(ctx, event); err != nil {
			logger.Warn("notification failed",
				zap.String("event_type", string(event.Type)),
				zap.String("feedback_id", event.FeedbackID),
				zap.Error(err))
		}
		return nil
	}
}

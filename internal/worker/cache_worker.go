package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/feedback-portal/feedback-service/internal/events"
)

// DirectoryInvalidator drops cached officer lists and filter options.
type DirectoryInvalidator interface {
	InvalidateDirectory(ctx context.Context, branchCodes ...string) error
}

// StartCacheInvalidation clears directory caches whenever users or branches
// change. Redis failures are logged; the entries then expire on their TTL.
func StartCacheInvalidation(dispatcher events.Dispatcher, invalidator DirectoryInvalidator, logger *zap.Logger) {
	if dispatcher == nil || invalidator == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher.Subscribe(events.EventDirectoryChanged, func(ctx context.Context, event events.Event) error {
		var codes []string
		if payload, ok := event.Payload.(events.DirectoryChangedPayload); ok {
			codes = payload.BranchCodes
		}
		if err := invalidator.InvalidateDirectory(ctx, codes...); err != nil {
			logger.Warn("directory cache invalidation failed", zap.Strings("branch_codes", codes), zap.Error(err))
		}
		return nil
	})
}

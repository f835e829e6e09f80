package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
)

// publishEvent emits a security event without letting publish failures or
// caller cancellation affect the authentication decision.
func publishEvent(ctx context.Context, log *zap.Logger, events port.EventPublisher, event domain.SecurityEvent) {
	if events == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Warn("publish security event", zap.String("type", event.Type), zap.Error(err))
	}
}

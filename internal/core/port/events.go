package port

import (
	"context"

	"github.com/dreznev/authcore/internal/core/domain"
)

// EventPublisher emits security events for downstream consumers. Publishing is
// best effort: implementations must not block authentication decisions, and
// callers ignore publish failures beyond logging them.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SecurityEvent) error
}

package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

// Publish logs the event with masked identifiers.
func (p *StubPublisher) Publish(_ context.Context, event domain.SecurityEvent) error {
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.String("event_type", event.Type),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("ip", logger.MaskIP(event.IP)),
		zap.Time("timestamp", at.UTC()),
	}
	if event.UserID != nil {
		fields = append(fields, zap.Int64("user_id", *event.UserID))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String(k, v))
	}

	p.logger.Info("stub event published", fields...)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)

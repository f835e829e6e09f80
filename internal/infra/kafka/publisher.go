package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/config"
	"github.com/dreznev/authcore/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka. Email addresses
// and IPs are masked before serialization; the raw values never leave the
// process.
type EventPublisher struct {
	producer *Producer
	appCfg   config.AppSettings
	logger   *zap.Logger
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    *int64            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Publish serializes the event and hands it to the async producer. Blocks
// only when the producer's input buffer is full.
func (p *EventPublisher) Publish(ctx context.Context, event domain.SecurityEvent) error {
	id := event.EventID
	if id == "" {
		id = uuid.NewString()
	}

	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	metadata := make(map[string]string, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	metadata["service"] = p.appCfg.Name
	metadata["environment"] = p.appCfg.Env

	envelope := eventEnvelope{
		EventID:   id,
		EventType: event.Type,
		UserID:    event.UserID,
		Email:     logger.MaskEmail(event.Email),
		IP:        logger.MaskIP(event.IP),
		Timestamp: at.UTC(),
		Version:   schemaVersion,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(event.Type),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// Package events publishes marketplace domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/phishers-marketplace/marketplace-api/pkg/logger"
)

const Producer = "marketplace-api"

// Envelope is the wire format of every event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload with a fresh event id.
func NewEnvelope(eventType string, payload interface{}) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     Producer,
		Payload:      b,
	}, nil
}

// Publisher sends an event keyed by key (events with the same key keep
// their order).
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, key string, env Envelope) error { return nil }
func (NopPublisher) Close() error                                                { return nil }

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher writes synchronously to topic on brokers, hashing on the
// message key.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		logger.Errorf("events: publish %s %s: %v", env.EventType, env.EventID, err)
		return err
	}
	logger.Debugf("events: published %s key=%s", env.EventType, key)
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

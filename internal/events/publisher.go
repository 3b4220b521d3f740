// Package events publishes parse lifecycle events to Kafka so downstream
// services can react to freshly parsed papers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	// EventTypeParsed is emitted after a parse pipeline persists its results.
	EventTypeParsed = "paper.parsed"

	// EventTypeParseFailed is emitted when a parse pipeline fails terminally.
	EventTypeParseFailed = "paper.parse_failed"
)

// PaperEvent is the payload published for parse lifecycle events.
type PaperEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	PaperID    string    `json:"paper_id"`
	OwnerEmail string    `json:"owner_email"`
	PDFHash    string    `json:"pdf_hash"`
	ParseType  string    `json:"parse_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits parse lifecycle events.
type Publisher interface {
	// Publish sends the event. The event ID and timestamp are filled in if
	// absent.
	Publish(ctx context.Context, event PaperEvent) error

	// Close releases any underlying connections.
	Close() error
}

// messageWriter is the subset of kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Compile-time interface verifications.
var (
	_ Publisher     = (*KafkaPublisher)(nil)
	_ Publisher     = (*NoopPublisher)(nil)
	_ messageWriter = (*kafka.Writer)(nil)
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic for parse events.
	Topic string
	// BatchTimeout is the maximum time to wait before flushing a batch.
	BatchTimeout time.Duration
}

// KafkaPublisher publishes parse events to a Kafka topic, keyed by paper ID
// so events for the same paper stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish sends the event to Kafka.
func (p *KafkaPublisher) Publish(ctx context.Context, event PaperEvent) error {
	if event.PaperID == "" {
		return fmt.Errorf("events: paper_id is required")
	}
	if event.EventType == "" {
		return fmt.Errorf("events: event_type is required")
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PaperID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write message: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("paper_id", event.PaperID).
		Msg("published parse event")

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards all events. Used when event publishing is disabled.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards all events.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish discards the event.
func (p *NoopPublisher) Publish(context.Context, PaperEvent) error {
	return nil
}

// Close is a no-op.
func (p *NoopPublisher) Close() error {
	return nil
}

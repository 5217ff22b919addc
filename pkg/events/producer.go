package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types emitted by the verification workflow
const (
	TypeVerificationSubmitted = "verification.submitted"
	TypePhotosReviewed        = "verification.photos_reviewed"
	TypeVerificationFinalized = "verification.finalized"
	TypeLocationCorrected     = "verification.location_corrected"
)

// Event is the envelope written to the topic
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, data map[string]interface{}) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the producer needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
	topic  string
	source string
	logger *zap.Logger
}

// NewKafkaProducer creates a synchronous producer acknowledged by all replicas
func NewKafkaProducer(brokers []string, topic, source string, logger *zap.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaProducer(writer, topic, source, logger)
}

func newKafkaProducer(writer messageWriter, topic, source string, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{writer: writer, topic: topic, source: source, logger: logger}
}

// Publish writes an event keyed by the record id so a record's events stay
// on one partition.
func (p *KafkaProducer) Publish(ctx context.Context, eventType, key string, data map[string]interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    p.source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(p.source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", eventType),
		zap.String("topic", p.topic))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

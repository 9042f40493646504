package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes connection lifecycle events.
type EventPublisher struct {
	writer messageWriter
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewEventPublisher constructs an event publisher for the given topic.
func NewEventPublisher(k *Kafka, topic string) *EventPublisher {
	return &EventPublisher{writer: k.NewWriter(topic)}
}

// PublishEvent emits a lifecycle event keyed by connection, so events of one
// connection stay ordered within a partition.
func (p *EventPublisher) PublishEvent(ctx context.Context, msg ConnectionEventMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("event publisher: marshal message: %w", err)
	}
	record := kafka.Message{
		Key:   msg.ConnectionID[:],
		Value: value,
		Time:  msg.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("event publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

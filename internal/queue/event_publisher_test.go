package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/acme/call-connection/internal/domain"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEventKeysByConnection(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &EventPublisher{writer: writer}

	connectionID := uuid.New()
	msg := NewConnectionEventMessage(connectionID, "acct", domain.ConnectionEventStateChanged, domain.ConnectionState{
		Status: domain.ConnectionStatusDisconnected,
		Cause:  domain.DisconnectCauseBusy,
	})
	if err := publisher.PublishEvent(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	record := writer.messages[0]
	if string(record.Key) != string(connectionID[:]) {
		t.Fatalf("expected message keyed by connection id")
	}
	if len(record.Headers) != 1 || string(record.Headers[0].Value) != string(domain.ConnectionEventStateChanged) {
		t.Fatalf("expected event type header, got %+v", record.Headers)
	}

	var decoded ConnectionEventMessage
	if err := json.Unmarshal(record.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Cause != domain.DisconnectCauseBusy || decoded.AccountID != "acct" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestPublishEventWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	publisher := &EventPublisher{writer: &fakeWriter{err: boom}}

	err := publisher.PublishEvent(context.Background(), ConnectionEventMessage{ConnectionID: uuid.New()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

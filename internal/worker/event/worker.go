package event

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/queue"
	"github.com/acme/call-connection/internal/repository"
)

// MessageReader is the subset of *kafka.Reader the worker consumes.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker consumes connection lifecycle events, stores the history and keeps
// disconnect statistics.
type Worker struct {
	reader MessageReader
	store  repository.ConnectionEventStore
	stats  repository.DisconnectStatisticsRepository
	logger *zap.Logger
	tracer trace.Tracer
}

// New creates a new event worker.
func New(reader MessageReader, store repository.ConnectionEventStore, stats repository.DisconnectStatisticsRepository, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		reader: reader,
		store:  store,
		stats:  stats,
		logger: logger.Named("event-worker"),
		tracer: otel.Tracer("connection.eventworker"),
	}
}

// Run processes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("fetch", zap.Error(err))
			continue
		}

		w.handle(ctx, msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg kafka.Message) {
	var event queue.ConnectionEventMessage
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Error("unmarshal", zap.Error(err), zap.Int64("offset", msg.Offset))
		_ = w.reader.CommitMessages(ctx, msg)
		return
	}

	sctx, span := w.tracer.Start(ctx, "connection.event", trace.WithAttributes(
		attribute.String("connection.id", event.ConnectionID.String()),
		attribute.String("account.id", event.AccountID),
		attribute.String("event.type", string(event.Type)),
	))
	defer span.End()

	if err := w.store.AppendEvent(sctx, event.ToDomain()); err != nil {
		span.RecordError(err)
		w.logger.Error("append event", zap.Error(err), zap.String("connection_id", event.ConnectionID.String()))
	}

	if isDisconnect(event) {
		if err := w.stats.Record(sctx, event.EventID, event.AccountID, event.Cause); err != nil {
			span.RecordError(err)
			w.logger.Error("record disconnect", zap.Error(err), zap.String("connection_id", event.ConnectionID.String()))
		}
	}

	if err := w.reader.CommitMessages(sctx, msg); err != nil {
		span.RecordError(err)
		w.logger.Error("commit", zap.Error(err))
	}
}

func isDisconnect(event queue.ConnectionEventMessage) bool {
	return event.Type == domain.ConnectionEventStateChanged && event.Status == domain.ConnectionStatusDisconnected
}

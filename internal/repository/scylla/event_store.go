package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/call-connection/internal/domain"
)

const connectionEventsTable = `CREATE TABLE IF NOT EXISTS connection_events (
	connection_id text,
	occurred_at   timestamp,
	event_id      text,
	account_id    text,
	type          text,
	status        text,
	cause         text,
	address       text,
	PRIMARY KEY ((connection_id), occurred_at, event_id)
) WITH CLUSTERING ORDER BY (occurred_at ASC, event_id ASC)`

// EventStore persists connection lifecycle events in Scylla.
type EventStore struct {
	session *gocql.Session
}

// NewEventStore creates a new event store.
func NewEventStore(session *gocql.Session) *EventStore {
	return &EventStore{session: session}
}

// EnsureSchema creates the events table when missing.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if err := s.session.Query(connectionEventsTable).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("event store: ensure schema: %w", err)
	}
	return nil
}

// AppendEvent inserts an event. Re-inserting the same event overwrites it.
func (s *EventStore) AppendEvent(ctx context.Context, event domain.ConnectionEvent) error {
	if err := s.session.Query(`INSERT INTO connection_events (connection_id, occurred_at, event_id, account_id, type, status, cause, address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ConnectionID.String(), event.OccurredAt, event.ID.String(), event.AccountID,
		string(event.Type), string(event.Status), string(event.Cause), event.Address,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("event store: append event: %w", err)
	}
	return nil
}

// ListEvents returns up to limit events of a connection, oldest first.
func (s *EventStore) ListEvents(ctx context.Context, connectionID uuid.UUID, limit int) ([]domain.ConnectionEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	iter := s.session.Query(`SELECT occurred_at, event_id, account_id, type, status, cause, address
		FROM connection_events WHERE connection_id = ? LIMIT ?`, connectionID.String(), limit).WithContext(ctx).Iter()

	var (
		occurredAt time.Time
		eventIDStr string
		accountID  string
		eventType  string
		status     string
		cause      string
		address    string
	)

	events := make([]domain.ConnectionEvent, 0, limit)
	for iter.Scan(&occurredAt, &eventIDStr, &accountID, &eventType, &status, &cause, &address) {
		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			continue
		}
		events = append(events, domain.ConnectionEvent{
			ID:           eventID,
			ConnectionID: connectionID,
			AccountID:    accountID,
			Type:         domain.ConnectionEventType(eventType),
			Status:       domain.ConnectionStatus(status),
			Cause:        domain.DisconnectCause(cause),
			Address:      address,
			OccurredAt:   occurredAt,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("event store: iter close: %w", err)
	}
	return events, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/call-connection/internal/domain"
	apperrors "github.com/acme/call-connection/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// ConnectionEventStore persists the lifecycle history of connections.
type ConnectionEventStore interface {
	AppendEvent(ctx context.Context, event domain.ConnectionEvent) error
	ListEvents(ctx context.Context, connectionID uuid.UUID, limit int) ([]domain.ConnectionEvent, error)
}

// DisconnectStatisticsRepository keeps per-account disconnect cause counters.
type DisconnectStatisticsRepository interface {
	// Record counts one disconnect. Replaying the same event id has no effect.
	Record(ctx context.Context, eventID uuid.UUID, accountID string, cause domain.DisconnectCause) error
	Get(ctx context.Context, accountID string) (*domain.DisconnectStats, error)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/call-connection/internal/domain"
	"github.com/acme/call-connection/internal/repository"
)

const disconnectStatisticsSchema = `
CREATE TABLE IF NOT EXISTS disconnect_statistics (
	account_id TEXT NOT NULL,
	cause      TEXT NOT NULL,
	count      BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (account_id, cause)
);
CREATE TABLE IF NOT EXISTS processed_disconnect_events (
	event_id     UUID PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// DisconnectStatisticsRepository implements repository.DisconnectStatisticsRepository.
type DisconnectStatisticsRepository struct {
	db *sqlx.DB
}

// NewDisconnectStatisticsRepository builds the repository.
func NewDisconnectStatisticsRepository(db *sqlx.DB) *DisconnectStatisticsRepository {
	return &DisconnectStatisticsRepository{db: db}
}

// EnsureSchema creates the tables when missing.
func (r *DisconnectStatisticsRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, disconnectStatisticsSchema); err != nil {
		return fmt.Errorf("disconnect stats: ensure schema: %w", err)
	}
	return nil
}

// Record increments the counter for cause once per event id.
func (r *DisconnectStatisticsRepository) Record(ctx context.Context, eventID uuid.UUID, accountID string, cause domain.DisconnectCause) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO processed_disconnect_events (event_id)
			VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID)
		if err != nil {
			return fmt.Errorf("disconnect stats: mark processed: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO disconnect_statistics (account_id, cause, count, updated_at)
			VALUES ($1, $2, 1, NOW())
			ON CONFLICT (account_id, cause) DO UPDATE SET
				count = disconnect_statistics.count + 1,
				updated_at = NOW()`, accountID, string(cause)); err != nil {
			return fmt.Errorf("disconnect stats: increment: %w", err)
		}
		return nil
	})
}

type causeCountRow struct {
	Cause     string    `db:"cause"`
	Count     int64     `db:"count"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Get returns the counters for an account.
func (r *DisconnectStatisticsRepository) Get(ctx context.Context, accountID string) (*domain.DisconnectStats, error) {
	var rows []causeCountRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT cause, count, updated_at
		FROM disconnect_statistics WHERE account_id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("disconnect stats: get: %w", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}

	stats := &domain.DisconnectStats{
		AccountID: accountID,
		Counts:    make(map[domain.DisconnectCause]int64, len(rows)),
	}
	for _, row := range rows {
		stats.Counts[domain.DisconnectCause(row.Cause)] = row.Count
		stats.Total += row.Count
		if row.UpdatedAt.After(stats.UpdatedAt) {
			stats.UpdatedAt = row.UpdatedAt
		}
	}
	return stats, nil
}

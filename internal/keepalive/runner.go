package keepalive

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AccountSource lists the accounts that currently hold live connections.
type AccountSource interface {
	AccountIDs() []string
}

// Refresher extends the slot reservation of an account.
type Refresher interface {
	Refresh(ctx context.Context, accountID string) error
}

// Runner periodically refreshes the concurrency slots of live accounts so
// they outlive the limiter TTL while connections are still up.
type Runner struct {
	accounts  AccountSource
	refresher Refresher
	interval  time.Duration
	logger    *zap.Logger
}

// New constructs a keepalive runner.
func New(accounts AccountSource, refresher Refresher, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		accounts:  accounts,
		refresher: refresher,
		interval:  interval,
		logger:    logger.Named("keepalive"),
	}
}

// Run executes the refresh loop until cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if failed := r.tick(ctx); failed > 0 && ctx.Err() == nil {
			r.logger.Warn("keepalive tick had failures", zap.Int("failed", failed))
		}
	}
}

func (r *Runner) tick(ctx context.Context) int {
	accounts := r.accounts.AccountIDs()
	if len(accounts) == 0 {
		return 0
	}

	tctx, span := otel.Tracer("connection.keepalive").Start(ctx, "keepalive.tick")
	defer span.End()
	span.SetAttributes(attribute.Int("account.count", len(accounts)))

	failed := 0
	for _, accountID := range accounts {
		if err := r.refresher.Refresh(tctx, accountID); err != nil {
			failed++
			span.RecordError(err)
			r.logger.Error("refresh slot", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	r.logger.Debug("keepalive tick", zap.Int("accounts", len(accounts)), zap.Int("failed", failed))
	return failed
}

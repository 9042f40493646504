package concurrency

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', key) or '0')
if current < limit then
  current = redis.call('INCR', key)
  if ttl > 0 then
    redis.call('PEXPIRE', key, ttl)
  end
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
local key = KEYS[1]
local current = tonumber(redis.call('GET', key) or '0')
if current <= 1 then
  redis.call('DEL', key)
  return 0
end
return redis.call('DECR', key)
`)

// Limiter caps live connections per phone account using Redis counters.
// Counters expire after ttl unless refreshed, so slots held by a crashed
// process are eventually reclaimed.
type Limiter struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
}

// NewLimiter constructs a concurrency limiter. A non-positive limit disables it.
func NewLimiter(client *redis.Client, limit int, ttl time.Duration) *Limiter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Limiter{client: client, limit: limit, ttl: ttl}
}

// Acquire attempts to reserve a slot for the account.
func (l *Limiter) Acquire(ctx context.Context, accountID string) (bool, error) {
	if l.limit <= 0 || accountID == "" {
		return true, nil
	}
	res, err := acquireScript.Run(ctx, l.client, []string{l.key(accountID)}, l.limit, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("concurrency acquire: %w", err)
	}
	return res == 1, nil
}

// Release frees a previously acquired slot.
func (l *Limiter) Release(ctx context.Context, accountID string) error {
	if l.limit <= 0 || accountID == "" {
		return nil
	}
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key(accountID)}).Int(); err != nil {
		return fmt.Errorf("concurrency release: %w", err)
	}
	return nil
}

// Refresh extends the counter expiry of an account with live connections.
func (l *Limiter) Refresh(ctx context.Context, accountID string) error {
	if l.limit <= 0 || accountID == "" {
		return nil
	}
	if err := l.client.PExpire(ctx, l.key(accountID), l.ttl).Err(); err != nil {
		return fmt.Errorf("concurrency refresh: %w", err)
	}
	return nil
}

func (l *Limiter) key(accountID string) string {
	return fmt.Sprintf("connection:account:%s:active", accountID)
}

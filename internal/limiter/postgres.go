package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed limiter implementation with a sliding window
// per device.
type PG struct {
	pool    pgxQuerier
	window  time.Duration
	maxSync int
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool *pgxpool.Pool, window time.Duration, maxSync int) *PG {
	return &PG{pool: pool, window: window, maxSync: maxSync}
}

// NewPGWithQuerier constructs a PostgreSQL-backed limiter over any querier.
func NewPGWithQuerier(q pgxQuerier, window time.Duration, maxSync int) *PG {
	return &PG{pool: q, window: window, maxSync: maxSync}
}

// Allow counts the attempt inside the current window and reports whether the
// device stays within budget. The count-or-reset happens in one statement so
// concurrent syncs from the same device cannot undercount.
func (l *PG) Allow(ctx context.Context, deviceID string) (bool, time.Duration, error) {
	const q = `
INSERT INTO sync_limiter (device_id, window_start, sync_count, updated_at)
VALUES ($1, now(), 1, now())
ON CONFLICT (device_id) DO UPDATE
SET
  sync_count   = CASE WHEN now() - sync_limiter.window_start > $2::interval THEN 1 ELSE sync_limiter.sync_count + 1 END,
  window_start = CASE WHEN now() - sync_limiter.window_start > $2::interval THEN now() ELSE sync_limiter.window_start END,
  updated_at   = now()
RETURNING sync_count, window_start`
	var (
		count       int
		windowStart time.Time
	)
	if err := l.pool.QueryRow(ctx, q, deviceID, l.window).Scan(&count, &windowStart); err != nil {
		return false, 0, err
	}
	if count > l.maxSync {
		retryAfter := time.Until(windowStart.Add(l.window))
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

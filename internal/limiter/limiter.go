// Package limiter defines interfaces and implementations for device sync throttling.
package limiter

import (
	"context"
	"time"
)

// Limiter bounds how often a single device may sync within a window.
// It is an abuse guard next to the payload size ceiling, not a correctness
// mechanism: a rejected sync simply retries later.
type Limiter interface {
	// Allow records one sync attempt for the device and reports whether it is
	// within budget, with an optional retry-after duration.
	Allow(ctx context.Context, deviceID string) (bool, time.Duration, error)
}

// Noop allows everything. Used when throttling is disabled.
type Noop struct{}

// Allow always permits the sync.
func (Noop) Allow(context.Context, string) (bool, time.Duration, error) { return true, 0, nil }

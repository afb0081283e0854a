package repository

import (
	"context"
	"time"

	"github.com/and161185/healthsync/internal/model"
)

// RecordRepository provides read-only access to stored documents.
// No reconciliation logic applies on read.
type RecordRepository interface {
	// GetLatest returns the newest daily record overall (by date, then collected_at).
	GetLatest(ctx context.Context) (*model.LatestRecord, error)
	// GetByDate returns the daily record for a specific calendar day.
	GetByDate(ctx context.Context, date time.Time) (*model.LatestRecord, error)
	// ListRange returns daily records within [start, end], date ascending.
	ListRange(ctx context.Context, start, end time.Time) ([]model.LatestRecord, error)
	// ListAudit returns audit entries matching the filter, newest first.
	ListAudit(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/healthsync/internal/errs"
	"github.com/and161185/healthsync/internal/model"
	"github.com/and161185/healthsync/internal/repository"
)

const (
	defaultAuditLimit = 10
	maxAuditLimit     = 100
)

// RecordService exposes read-only lookups over stored documents.
// Pure pass-through: no reconciliation logic applies on read.
type RecordService interface {
	Latest(ctx context.Context) (*model.LatestRecord, error)
	ByDate(ctx context.Context, date time.Time) (*model.LatestRecord, error)
	Range(ctx context.Context, start, end time.Time) ([]model.LatestRecord, error)
	AuditLog(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error)
}

type RecordServiceImpl struct {
	repo repository.RecordRepository
}

// NewRecordService constructs RecordService.
func NewRecordService(repo repository.RecordRepository) *RecordServiceImpl {
	return &RecordServiceImpl{repo: repo}
}

// Latest returns the newest daily record.
func (s *RecordServiceImpl) Latest(ctx context.Context) (*model.LatestRecord, error) {
	return s.repo.GetLatest(ctx)
}

// ByDate returns the daily record for one calendar day.
func (s *RecordServiceImpl) ByDate(ctx context.Context, date time.Time) (*model.LatestRecord, error) {
	return s.repo.GetByDate(ctx, model.DateOf(date))
}

// Range returns daily records within [start, end].
func (s *RecordServiceImpl) Range(ctx context.Context, start, end time.Time) ([]model.LatestRecord, error) {
	start, end = model.DateOf(start), model.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date before start_date", errs.ErrInvalidField)
	}
	return s.repo.ListRange(ctx, start, end)
}

// AuditLog returns audit entries newest first with the limit clamped to [1, 100].
func (s *RecordServiceImpl) AuditLog(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultAuditLimit
	}
	if f.Limit > maxAuditLimit {
		f.Limit = maxAuditLimit
	}
	return s.repo.ListAudit(ctx, f)
}

// Package service contains application services between transport and storage.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/healthsync/internal/errs"
	"github.com/and161185/healthsync/internal/limiter"
	"github.com/and161185/healthsync/internal/model"
	"github.com/and161185/healthsync/internal/normalize"
	"github.com/and161185/healthsync/internal/notify"
	"github.com/and161185/healthsync/internal/reconcile"
	"github.com/and161185/healthsync/internal/repository"
)

// SyncService ingests health payloads.
type SyncService interface {
	// Ingest validates a request, reconciles it against stored state and
	// triggers the best-effort notification.
	Ingest(ctx context.Context, req normalize.Request, kind model.Kind) (model.Result, error)
}

type SyncServiceImpl struct {
	norm  *normalize.Normalizer
	repo  repository.SyncRepository
	lim   limiter.Limiter
	notif notify.Notifier
	log   *zap.Logger
	now   func() time.Time
}

// NewSyncService constructs SyncService. Nil limiter/notifier select no-ops.
func NewSyncService(
	norm *normalize.Normalizer,
	repo repository.SyncRepository,
	lim limiter.Limiter,
	notif notify.Notifier,
	log *zap.Logger,
) *SyncServiceImpl {
	if lim == nil {
		lim = limiter.Noop{}
	}
	if notif == nil {
		notif = notify.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncServiceImpl{norm: norm, repo: repo, lim: lim, notif: notif, log: log, now: time.Now}
}

// Ingest runs one sync call. Validation failures abort before any storage
// mutation; a storage failure surfaces as-is with no internal retry. The
// notification runs in the background and cannot fail the call.
func (s *SyncServiceImpl) Ingest(ctx context.Context, req normalize.Request, kind model.Kind) (model.Result, error) {
	now := s.now().UTC()

	rec, err := s.norm.Normalize(req, kind, now)
	if err != nil {
		return model.Result{}, err
	}

	ok, retryAfter, err := s.lim.Allow(ctx, rec.DeviceID)
	if err != nil {
		return model.Result{}, fmt.Errorf("sync limiter: %w", err)
	}
	if !ok {
		return model.Result{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retryAfter.Round(time.Second))
	}

	plan := reconcile.Plan(rec, now)
	applied, err := s.repo.Apply(ctx, plan)
	if err != nil {
		return model.Result{}, fmt.Errorf("apply sync: %w", err)
	}

	res := model.Result{ID: rec.ID}
	switch {
	case plan.Latest == nil:
		// intraday: the audit append is the whole effect
		res.Inserted = true
	case applied:
		res.Inserted = true
	default:
		res.Skipped = true
		res.SkipReason = model.SkipReasonStale
	}

	go s.notif.Notify(context.WithoutCancel(ctx), rec)

	s.log.Info("ingest",
		zap.String("kind", string(kind)),
		zap.String("device_id", rec.DeviceID),
		zap.String("date", rec.Date.Format(time.DateOnly)),
		zap.Bool("inserted", res.Inserted),
		zap.Bool("skipped", res.Skipped),
	)
	return res, nil
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/healthsync/internal/fingerprint"
	"github.com/and161185/healthsync/internal/model"
)

// SyncRepo implements SyncRepository using PostgreSQL.
type SyncRepo struct{ db *DB }

// NewSyncRepo constructs a sync repository.
func NewSyncRepo(db *DB) *SyncRepo { return &SyncRepo{db: db} }

const insertAudit = `
INSERT INTO health_audit_log
  (id, device_id, date, collected_at, received_at, record_kind, schema_version, source_app, payload, payload_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING`

// upsertLatest is the compare-and-swap for the latest view: the stored row
// wins the conflict unless the incoming collected_at is strictly newer. The
// whole replace-or-skip decision executes as this one statement, so two
// concurrent ingests for the same key cannot interleave a lost update.
const upsertLatest = `
INSERT INTO health_daily
  (id, device_id, date, collected_at, received_at, schema_version, source_app, payload, payload_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (device_id, date) DO UPDATE SET
  id = EXCLUDED.id,
  collected_at = EXCLUDED.collected_at,
  received_at = EXCLUDED.received_at,
  schema_version = EXCLUDED.schema_version,
  source_app = EXCLUDED.source_app,
  payload = EXCLUDED.payload,
  payload_hash = EXCLUDED.payload_hash
WHERE health_daily.collected_at < EXCLUDED.collected_at`

// Apply runs the audit append and, for daily plans, the conditional latest
// upsert in one transaction. applied reports whether the latest view changed.
func (r *SyncRepo) Apply(ctx context.Context, plan model.Plan) (applied bool, err error) {
	payload, err := fingerprint.Canonical(plan.Audit.Payload)
	if err != nil {
		return false, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	a := plan.Audit
	if _, err = tx.Exec(ctx, insertAudit,
		a.ID, a.DeviceID, a.Date, a.CollectedAt, a.ReceivedAt,
		string(a.Kind), a.SchemaVersion, a.SourceApp, payload, a.Fingerprint,
	); err != nil {
		return false, err
	}

	if plan.Latest == nil {
		return false, nil
	}

	l := plan.Latest
	tag, err := tx.Exec(ctx, upsertLatest,
		l.ID, l.DeviceID, l.Date, l.CollectedAt, l.ReceivedAt,
		l.SchemaVersion, l.SourceApp, payload, l.Fingerprint,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/healthsync/internal/errs"
	"github.com/and161185/healthsync/internal/model"
)

// RecordRepo implements RecordRepository using PostgreSQL.
type RecordRepo struct{ db *DB }

// NewRecordRepo constructs a record repository.
func NewRecordRepo(db *DB) *RecordRepo { return &RecordRepo{db: db} }

const dailyColumns = `id, device_id, date, collected_at, received_at, schema_version, source_app, payload, payload_hash`

// GetLatest returns the newest daily record. Intraday entries are an audit
// log, not a source of truth, so there is deliberately no fallback to them.
func (r *RecordRepo) GetLatest(ctx context.Context) (*model.LatestRecord, error) {
	q := `SELECT ` + dailyColumns + ` FROM health_daily ORDER BY date DESC, collected_at DESC LIMIT 1`
	return r.scanDaily(r.db.Pool.QueryRow(ctx, q))
}

// GetByDate returns the daily record for one calendar day.
func (r *RecordRepo) GetByDate(ctx context.Context, date time.Time) (*model.LatestRecord, error) {
	q := `SELECT ` + dailyColumns + ` FROM health_daily WHERE date=$1 ORDER BY collected_at DESC LIMIT 1`
	return r.scanDaily(r.db.Pool.QueryRow(ctx, q, date))
}

// ListRange returns daily records within [start, end], date ascending.
func (r *RecordRepo) ListRange(ctx context.Context, start, end time.Time) ([]model.LatestRecord, error) {
	q := `SELECT ` + dailyColumns + ` FROM health_daily WHERE date >= $1 AND date <= $2 ORDER BY date ASC`
	rows, err := r.db.Pool.Query(ctx, q, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LatestRecord{}
	for rows.Next() {
		var (
			rec     model.LatestRecord
			payload []byte
		)
		if err = rows.Scan(&rec.ID, &rec.DeviceID, &rec.Date, &rec.CollectedAt, &rec.ReceivedAt,
			&rec.SchemaVersion, &rec.SourceApp, &payload, &rec.Fingerprint); err != nil {
			return nil, err
		}
		if err = json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAudit returns audit entries newest first, optionally filtered by
// calendar day and device.
func (r *RecordRepo) ListAudit(ctx context.Context, f model.AuditFilter) ([]model.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	var (
		conds []string
		args  []any
	)
	if f.Date != nil {
		args = append(args, *f.Date)
		conds = append(conds, fmt.Sprintf("date=$%d", len(args)))
	}
	if f.DeviceID != "" {
		args = append(args, f.DeviceID)
		conds = append(conds, fmt.Sprintf("device_id=$%d", len(args)))
	}

	q := `SELECT id, device_id, date, collected_at, received_at, record_kind, schema_version, source_app, payload, payload_hash FROM health_audit_log`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY collected_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AuditEntry{}
	for rows.Next() {
		var (
			e       model.AuditEntry
			kind    string
			payload []byte
		)
		if err = rows.Scan(&e.ID, &e.DeviceID, &e.Date, &e.CollectedAt, &e.ReceivedAt,
			&kind, &e.SchemaVersion, &e.SourceApp, &payload, &e.Fingerprint); err != nil {
			return nil, err
		}
		e.Kind = model.Kind(kind)
		if err = json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *RecordRepo) scanDaily(row pgx.Row) (*model.LatestRecord, error) {
	var (
		rec     model.LatestRecord
		payload []byte
	)
	err := row.Scan(&rec.ID, &rec.DeviceID, &rec.Date, &rec.CollectedAt, &rec.ReceivedAt,
		&rec.SchemaVersion, &rec.SourceApp, &payload, &rec.Fingerprint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", rec.ID, err)
	}
	return &rec, nil
}

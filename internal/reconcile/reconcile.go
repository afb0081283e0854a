// Package reconcile encodes the last-writer-wins policy for daily snapshots.
//
// The ordering authority is collected_at as reported by the device, not a
// server-assigned sequence: the device knows when its data was actually
// captured. A clock-skewed device can therefore hold the latest view back;
// that is an accepted limitation of the policy.
package reconcile

import (
	"time"

	"github.com/and161185/healthsync/internal/model"
)

// Plan maps a canonical record to its storage actions: exactly one audit
// append for every accepted ingest, plus a latest-view candidate for daily
// records only. Intraday records never touch the latest view.
func Plan(rec *model.CanonicalRecord, receivedAt time.Time) model.Plan {
	p := model.Plan{
		Audit: model.AuditEntry{
			ID:            rec.ID,
			DeviceID:      rec.DeviceID,
			Date:          rec.Date,
			CollectedAt:   rec.CollectedAt,
			ReceivedAt:    receivedAt,
			Kind:          rec.Kind,
			SchemaVersion: rec.SchemaVersion,
			SourceApp:     rec.SourceApp,
			Payload:       rec.Payload,
			Fingerprint:   rec.Fingerprint,
		},
	}
	if rec.Kind == model.KindDaily {
		p.Latest = &model.LatestRecord{
			ID:            rec.ID,
			DeviceID:      rec.DeviceID,
			Date:          rec.Date,
			CollectedAt:   rec.CollectedAt,
			ReceivedAt:    receivedAt,
			SchemaVersion: rec.SchemaVersion,
			SourceApp:     rec.SourceApp,
			Payload:       rec.Payload,
			Fingerprint:   rec.Fingerprint,
		}
	}
	return p
}

// ShouldReplace is the replacement predicate: strictly newer collected_at
// wins, ties lose. Equal-timestamp retries are therefore no-ops, and the
// stored collected_at is a monotonic watermark. The conditional upsert in
// the postgres repository encodes exactly this predicate; application code
// must never re-implement it as a read followed by an unconditional write.
func ShouldReplace(incoming, existing time.Time) bool {
	return incoming.After(existing)
}

// Decide reports the outcome the plan's latest write would have against the
// given stored record (nil means no record exists for the key). Used to
// reason about and test the policy; execution happens atomically in storage.
func Decide(plan model.Plan, existing *model.LatestRecord) model.Result {
	res := model.Result{ID: plan.Audit.ID}
	if plan.Latest == nil {
		return res
	}
	if existing == nil || ShouldReplace(plan.Latest.CollectedAt, existing.CollectedAt) {
		res.Inserted = true
		return res
	}
	res.Skipped = true
	res.SkipReason = model.SkipReasonStale
	return res
}

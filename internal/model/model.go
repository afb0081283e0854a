// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Kind identifies the ingestion channel that produced a record.
type Kind string

const (
	// KindDaily marks canonical daily snapshots that may replace the latest view.
	KindDaily Kind = "daily"
	// KindIntraday marks append-only intraday snapshots that never touch the latest view.
	KindIntraday Kind = "intraday"
)

// Valid reports whether the kind is one of the known channels.
func (k Kind) Valid() bool { return k == KindDaily || k == KindIntraday }

// Document is an opaque parsed health payload. The shape is not schema-locked:
// upstream exporters add fields freely and they are stored verbatim.
type Document map[string]any

// CanonicalRecord is a normalized inbound payload.
type CanonicalRecord struct {
	ID            uuid.UUID // server-generated unless the caller supplied one
	DeviceID      string
	Date          time.Time // calendar day, UTC midnight
	CollectedAt   time.Time // device-reported capture time; the ordering authority
	Kind          Kind
	SchemaVersion int
	SourceApp     string
	Payload       Document
	Fingerprint   string // sha256 hex of the canonical payload serialization
}

// LatestRecord is the current best-known snapshot for a (device_id, date) key.
// Its collected_at never regresses: replacement requires a strictly newer one.
type LatestRecord struct {
	ID            uuid.UUID
	DeviceID      string
	Date          time.Time
	CollectedAt   time.Time
	ReceivedAt    time.Time
	SchemaVersion int
	SourceApp     string
	Payload       Document
	Fingerprint   string
}

// AuditEntry is one immutable row per accepted ingest call.
type AuditEntry struct {
	ID            uuid.UUID
	DeviceID      string
	Date          time.Time
	CollectedAt   time.Time
	ReceivedAt    time.Time
	Kind          Kind
	SchemaVersion int
	SourceApp     string
	Payload       Document
	Fingerprint   string
}

// SkipReasonStale reports that the incoming collected_at did not beat the stored one.
const SkipReasonStale = "stale_collected_at"

// Plan is the outcome of reconciling one canonical record: the audit append
// is unconditional, the latest candidate is present only for daily records.
type Plan struct {
	Audit  AuditEntry
	Latest *LatestRecord // nil: the latest view is left untouched
}

// Result reports what an ingest call did.
type Result struct {
	ID         uuid.UUID
	Inserted   bool // latest record created or replaced
	Skipped    bool
	SkipReason string
}

// AuditFilter narrows audit log queries. Zero values mean "no filter".
type AuditFilter struct {
	Date     *time.Time
	DeviceID string
	Limit    int
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

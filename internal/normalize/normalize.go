// Package normalize validates inbound sync payloads and produces canonical records.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/healthsync/internal/errs"
	"github.com/and161185/healthsync/internal/fingerprint"
	"github.com/and161185/healthsync/internal/model"
)

// DefaultMaxPayloadBytes caps raw_json size (guards against abuse).
const DefaultMaxPayloadBytes = 50 * 1000 * 1000

// Source carries device-reported provenance for a sync.
type Source struct {
	DeviceID    string    `json:"device_id"`
	CollectedAt time.Time `json:"collected_at"`
	SourceApp   string    `json:"source_app"`
}

// Request is the pre-normalization wire shape of an ingest call.
type Request struct {
	ID            string `json:"id,omitempty"`
	SchemaVersion int    `json:"schema_version"`
	Date          string `json:"date"`
	RawJSON       string `json:"raw_json"`
	RecordType    string `json:"record_type,omitempty"`
	PayloadHash   string `json:"payload_hash,omitempty"`
	Source        Source `json:"source"`
}

// fieldRange bounds a known metric. Values outside the bounds are nulled,
// never rejected: the rest of the payload is still worth keeping.
type fieldRange struct {
	section string
	field   string
	min     float64
	max     float64
}

var plausibleRanges = []fieldRange{
	{"body_metrics", "weight_kg", 30, 300},
	{"body_metrics", "body_fat_percentage", 3, 70},
	{"heart_rate_summary", "avg_bpm", 30, 250},
	{"heart_rate_summary", "min_bpm", 30, 250},
	{"heart_rate_summary", "max_bpm", 30, 250},
	{"heart_rate_summary", "resting_bpm", 30, 250},
	{"nutrition_summary", "calories_total", 0, 10000},
	{"nutrition_summary", "protein_grams", 0, math.Inf(1)},
	{"nutrition_summary", "carbs_grams", 0, math.Inf(1)},
	{"nutrition_summary", "fat_grams", 0, math.Inf(1)},
}

// Normalizer validates requests against size and plausibility limits.
type Normalizer struct {
	maxBytes int
	log      *zap.Logger
}

// New constructs a Normalizer. maxBytes <= 0 selects the default ceiling.
func New(maxBytes int, log *zap.Logger) *Normalizer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{maxBytes: maxBytes, log: log}
}

// Normalize validates a request for the given endpoint kind and produces a
// canonical record. now anchors the future-date check.
func (n *Normalizer) Normalize(req Request, kind model.Kind, now time.Time) (*model.CanonicalRecord, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", errs.ErrKindMismatch, kind)
	}
	if req.Source.DeviceID == "" {
		return nil, fmt.Errorf("%w: empty source.device_id", errs.ErrInvalidField)
	}
	if req.Source.CollectedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing source.collected_at", errs.ErrInvalidField)
	}

	day, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", errs.ErrInvalidField, req.Date)
	}
	day = model.DateOf(day)
	if day.After(model.DateOf(now)) {
		return nil, fmt.Errorf("%w: %s", errs.ErrFutureDate, req.Date)
	}

	if len(req.RawJSON) > n.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", errs.ErrPayloadTooLarge, len(req.RawJSON), n.maxBytes)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(req.RawJSON), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}

	if req.RecordType != "" && req.RecordType != string(kind) {
		return nil, fmt.Errorf("%w: record_type must be %q for this endpoint", errs.ErrKindMismatch, kind)
	}

	n.clampImplausible(doc, req.Source.DeviceID)

	hash := req.PayloadHash
	if hash == "" {
		if hash, err = fingerprint.Hash(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
		}
	}

	id := uuid.Nil
	if req.ID != "" {
		if id, err = uuid.FromString(req.ID); err != nil {
			return nil, fmt.Errorf("%w: bad id %q", errs.ErrInvalidField, req.ID)
		}
	} else if id, err = uuid.NewV4(); err != nil {
		return nil, err
	}

	ver := req.SchemaVersion
	if ver == 0 {
		ver = 3
	}

	return &model.CanonicalRecord{
		ID:            id,
		DeviceID:      req.Source.DeviceID,
		Date:          day,
		CollectedAt:   req.Source.CollectedAt,
		Kind:          kind,
		SchemaVersion: ver,
		SourceApp:     req.Source.SourceApp,
		Payload:       doc,
		Fingerprint:   hash,
	}, nil
}

// clampImplausible nulls out known metric fields outside physiological
// ranges. Unknown fields pass through untouched.
func (n *Normalizer) clampImplausible(doc model.Document, deviceID string) {
	for _, fr := range plausibleRanges {
		section, ok := doc[fr.section].(map[string]any)
		if !ok {
			continue
		}
		raw, ok := section[fr.field]
		if !ok || raw == nil {
			continue
		}
		v, ok := raw.(float64)
		if !ok {
			continue
		}
		if v < fr.min || v > fr.max {
			section[fr.field] = nil
			n.log.Warn("nulled implausible metric",
				zap.String("device_id", deviceID),
				zap.String("field", fr.section+"."+fr.field),
				zap.Float64("value", v),
			)
		}
	}
}

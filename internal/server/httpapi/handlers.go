package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/healthsync/internal/model"
	"github.com/and161185/healthsync/internal/normalize"
)

type ingestResponse struct {
	Status   string    `json:"status"`
	Inserted bool      `json:"inserted"`
	ID       uuid.UUID `json:"id"`
	Skipped  bool      `json:"skipped,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

type recordView struct {
	DeviceID      string         `json:"device_id"`
	Date          string         `json:"date"`
	CollectedAt   time.Time      `json:"collected_at"`
	ReceivedAt    time.Time      `json:"received_at"`
	SchemaVersion int            `json:"schema_version"`
	SourceApp     string         `json:"source_app"`
	Data          model.Document `json:"data"`
}

type logView struct {
	ID         string `json:"id"`
	RecordKind string `json:"record_kind"`
	recordView
}

func toRecordView(rec *model.LatestRecord) recordView {
	return recordView{
		DeviceID:      rec.DeviceID,
		Date:          rec.Date.Format(time.DateOnly),
		CollectedAt:   rec.CollectedAt,
		ReceivedAt:    rec.ReceivedAt,
		SchemaVersion: rec.SchemaVersion,
		SourceApp:     rec.SourceApp,
		Data:          rec.Payload,
	}
}

func (s *Server) handleIngest(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

		var req normalize.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body exceeds limit")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := s.sync.Ingest(r.Context(), req, kind)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ingestResponse{
			Status:   "ok",
			Inserted: res.Inserted,
			ID:       res.ID,
			Skipped:  res.Skipped,
			Reason:   res.SkipReason,
		})
	}
}

// handleIngestDebug captures a raw payload for schema discovery: logs it,
// optionally drops it to a file, and echoes it back. Nothing is stored.
func (s *Server) handleIngestDebug(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body exceeds limit")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	s.log.Info("raw payload captured",
		zap.Int("size_bytes", len(raw)),
		zap.Strings("top_level_keys", keys),
	)

	if s.cfg.DebugDir != "" {
		date, _ := payload["date"].(string)
		if date == "" {
			date = "unknown"
		}
		name := fmt.Sprintf("health_connect_debug_%s_%s.json", date, time.Now().UTC().Format("20060102T150405"))
		if err := os.WriteFile(filepath.Join(s.cfg.DebugDir, name), raw, 0o600); err != nil {
			s.log.Warn("could not write debug file", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "debug_logged",
		"payload":        payload,
		"size_bytes":     len(raw),
		"top_level_keys": keys,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Latest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (s *Server) handleRecordByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	rec, err := s.records.ByDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordView(rec))
}

func (s *Server) handleRecordRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.DateOnly, r.URL.Query().Get("start_date"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(time.DateOnly, r.URL.Query().Get("end_date"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	recs, err := s.records.Range(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]recordView, 0, len(recs))
	for i := range recs {
		views = append(views, toRecordView(&recs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "records": views})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	var f model.AuditFilter

	if v := r.URL.Query().Get("date"); v != "" {
		date, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		f.Date = &date
	}
	f.DeviceID = r.URL.Query().Get("device_id")
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = limit
	}

	entries, err := s.records.AuditLog(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]logView, 0, len(entries))
	for _, e := range entries {
		views = append(views, logView{
			ID:         e.ID.String(),
			RecordKind: string(e.Kind),
			recordView: recordView{
				DeviceID:      e.DeviceID,
				Date:          e.Date.Format(time.DateOnly),
				CollectedAt:   e.CollectedAt,
				ReceivedAt:    e.ReceivedAt,
				SchemaVersion: e.SchemaVersion,
				SourceApp:     e.SourceApp,
				Data:          e.Payload,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "logs": views})
}

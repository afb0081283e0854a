// Package httpapi exposes the ingestion and query endpoints over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/healthsync/internal/model"
	"github.com/and161185/healthsync/internal/service"
)

// Config carries the HTTP-surface knobs.
type Config struct {
	APIKey       string // static shared secret checked on every /v1 route
	MaxBodyBytes int64  // request body cap, payload ceiling plus envelope slack
	DebugDir     string // where /v1/ingest/debug drops captured payloads; empty disables files
}

// Server wires services into HTTP handlers.
type Server struct {
	sync    service.SyncService
	records service.RecordService
	ping    func(ctx context.Context) error
	cfg     Config
	log     *zap.Logger
}

// New constructs a Server with injected services. ping reports storage
// connectivity for the health endpoint.
func New(sync service.SyncService, records service.RecordService, ping func(ctx context.Context) error, cfg Config, log *zap.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 * 1000 * 1000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{sync: sync, records: records, ping: ping, cfg: cfg, log: log}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Post("/ingest/daily", s.handleIngest(model.KindDaily))
		r.Post("/ingest/intraday", s.handleIngest(model.KindIntraday))
		r.Post("/ingest/debug", s.handleIngestDebug)

		r.Get("/records/latest", s.handleLatest)
		r.Get("/records/{date}", s.handleRecordByDate)
		r.Get("/records", s.handleRecordRange)
		r.Get("/logs", s.handleAuditLog)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ping(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

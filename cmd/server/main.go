// Command healthsync-server starts the health data ingestion HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/and161185/healthsync/internal/config"
	"github.com/and161185/healthsync/internal/limiter"
	"github.com/and161185/healthsync/internal/migrate"
	"github.com/and161185/healthsync/internal/normalize"
	"github.com/and161185/healthsync/internal/notify"
	"github.com/and161185/healthsync/internal/repository/postgres"
	"github.com/and161185/healthsync/internal/server/httpapi"
	"github.com/and161185/healthsync/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	// Flags override the environment
	addr := flag.String("addr", "", "listen address")
	dsn := flag.String("dsn", "", "PostgreSQL DSN")
	flag.Parse()

	_ = godotenv.Load()
	if *addr != "" {
		_ = os.Setenv("LISTEN_ADDR", *addr)
	}
	if *dsn != "" {
		_ = os.Setenv("DATABASE_URL", *dsn)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ListenAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.Database.URL); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	syncRepo := postgres.NewSyncRepo(db)
	recordRepo := postgres.NewRecordRepo(db)

	var lim limiter.Limiter = limiter.Noop{}
	if cfg.Limiter.MaxPerWindow > 0 {
		lim = limiter.NewPG(pool, cfg.Limiter.Window, cfg.Limiter.MaxPerWindow)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	}

	// Services
	norm := normalize.New(int(cfg.HTTP.MaxPayloadBytes), logger)
	syncSvc := service.NewSyncService(norm, syncRepo, lim, notifier, logger)
	recordSvc := service.NewRecordService(recordRepo)

	srv := httpapi.New(syncSvc, recordSvc, db.Ping, httpapi.Config{
		APIKey:       cfg.HTTP.APIKey,
		MaxBodyBytes: cfg.HTTP.MaxPayloadBytes + 1000*1000,
		DebugDir:     cfg.HTTP.DebugDir,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- httpSrv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

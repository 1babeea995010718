package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rissahq/rissa/internal/config"
	"github.com/rissahq/rissa/internal/core"
	"github.com/rissahq/rissa/internal/logging"
	"github.com/rissahq/rissa/internal/profile"
	"github.com/rissahq/rissa/internal/store"
	"github.com/rissahq/rissa/internal/web"
)

func main() {
	// Load .env if present; real environment variables win otherwise.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		slog.Error("failed to prepare database schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready")

	profiler, err := profile.NewGenerator(cfg.Reports.Dir, cfg.Reports.BaseURL)
	if err != nil {
		slog.Error("failed to prepare reports directory", "error", err)
		os.Exit(1)
	}

	limiter := core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	service := core.NewService(store.NewPostgres(pool), profiler, limiter, slog.Default())

	requestsPerMinute := 0
	if cfg.Rate.Enabled {
		requestsPerMinute = cfg.Rate.RequestsPerMinute
	}
	server := web.NewServer(service, web.Options{
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		ReportsDir:        cfg.Reports.Dir,
		ReportsBaseURL:    cfg.Reports.BaseURL,
		MaxUploadBytes:    cfg.Upload.MaxFileSize,
		RequestsPerMinute: requestsPerMinute,
		Ping:              pool.Ping,
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sldstore/internal/config"
	"github.com/JonMunkholm/sldstore/internal/core"
	"github.com/JonMunkholm/sldstore/internal/database"
	"github.com/JonMunkholm/sldstore/internal/logging"
	"github.com/JonMunkholm/sldstore/internal/store"
	"github.com/JonMunkholm/sldstore/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"catalog_locking", cfg.Catalog.Locking,
	)

	if cfg.Database.AutoMigrate {
		migrator := database.NewMigrator(logger, database.MigrationConfig{
			Version: cfg.Database.MigrationVersion,
			Force:   cfg.Database.MigrationForce,
		})
		if err := migrator.Migrate(cfg.Database.URL); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	} else if latest, err := database.LatestVersion(); err == nil {
		slog.Info("auto-migration disabled", "embedded_schema_version", latest)
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err, "detail", core.FormatUserError(err))
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	// Validate already checked the value.
	locking, _ := store.ParseCatalogLocking(cfg.Catalog.Locking)
	st := store.New(pool, store.Options{CatalogLocking: locking})

	service := core.NewService(st, core.ServiceConfig{
		MaxConcurrentIngests: cfg.Ingest.MaxConcurrent,
		MaxWaitTime:          cfg.Ingest.MaxWaitTime,
		IngestTimeout:        cfg.Ingest.Timeout,
		MaxLines:             cfg.Ingest.MaxLines,
	})

	server := web.NewServer(service, pool, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active ingests so none is cut off mid-transaction
		if status := service.IngestStatus(); status.Active > 0 {
			slog.Info("waiting for ingests to complete", "active", status.Active)
			if err := service.WaitForIngests(shutdownCtx); err != nil {
				slog.Warn("ingests did not complete in time", "error", err)
			} else {
				slog.Info("all ingests completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grantorhq/grantor/pkg/audit"
	"github.com/grantorhq/grantor/pkg/authz"
	"github.com/grantorhq/grantor/pkg/config"
	"github.com/grantorhq/grantor/pkg/httputil"
	"github.com/grantorhq/grantor/pkg/observability"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting grantord authorization server")

	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := authz.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}
	logger.Info("Database migrations applied")

	auditLogger, err := buildAuditLogger(cfg.Audit, db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit logging")
		os.Exit(1)
	}

	catalog := authz.NewSQLCatalog(db)
	store := authz.NewStore(db)
	groups := authz.NewGroupDirectory(db, store)
	resolver := authz.NewResolver(catalog, groups)
	handlers := authz.NewHandlers(store, catalog, groups, resolver, auditLogger)

	router := mux.NewRouter()
	router.Use(httputil.RequestIDMiddleware)
	router.Use(httputil.LoggingMiddleware)
	router.Use(httputil.RecoveryMiddleware)

	if cfg.Server.RateLimit > 0 {
		limiter := httputil.NewRateLimiter(&httputil.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimit,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.RateLimit / 10,
		})
		limiter.StartCleanup(ctx)
		router.Use(httputil.RateLimitMiddleware(limiter))
		logger.Infof("Rate limiting enabled at %d requests/minute per client", cfg.Server.RateLimit)
	}

	healthRouter := mux.NewRouter()
	observability.RegisterHealthRoutes(healthRouter, observability.NewHealthChecker(db))

	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		resolver.WithObserver(func(_ string, allowed bool, duration time.Duration) {
			metrics.ObserveCheck(allowed, duration)
		})
		router.Use(observability.HTTPMetricsMiddleware(metrics))
		observability.RegisterMetricsEndpoint(healthRouter, registry)
		go func() {
			defer observability.RecoverPanic(logger, "db-stats-poller")
			pollDBStats(metrics, db)
		}()
		logger.Infof("Prometheus metrics enabled on :%s/metrics", cfg.Server.HealthPort)
	}

	handlers.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter,
	}

	go func() {
		logger.Infof("Health endpoints listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return auditLogger.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

func pollDBStats(metrics *observability.Metrics, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.UpdateDBStats(db)
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildAuditLogger(cfg config.AuditConfig, db *sql.DB) (audit.Logger, error) {
	if !cfg.Enabled {
		return audit.NopLogger{}, nil
	}

	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, err
	}
	if cfg.FilePath == "" {
		return dbLogger, nil
	}

	fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
		BasePath: cfg.FilePath,
		Rotate:   true,
	})
	if err != nil {
		return nil, err
	}
	return audit.NewMultiLogger(dbLogger, fileLogger), nil
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

// Template handler functions that can access the template functions
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	store := services.NewLedgerStore(logger)

	if cfg.Data.FilePath != "" {
		start := time.Now()
		data, err := os.ReadFile(cfg.Data.FilePath)
		if err != nil {
			logger.Error("failed to read ledger file", "path", cfg.Data.FilePath, "error", err)
			os.Exit(1)
		}
		source := filepath.Base(cfg.Data.FilePath)
		ledger, fingerprint, err := store.Load(source, data)
		if err != nil {
			logger.Error("failed to parse ledger file", "path", cfg.Data.FilePath, "error", err)
			os.Exit(1)
		}
		store.SetCurrent(source, fingerprint, ledger)
		logger.Info("ledger preloaded",
			"path", cfg.Data.FilePath,
			"records", len(ledger),
			"duration", time.Since(start),
		)
	}

	sessions := handlers.NewSessionStore(cfg.Dashboard.Password, cfg.Dashboard.SessionTimeout)
	if sessions.Enabled() {
		logger.Info("access gate enabled", "session_timeout", cfg.Dashboard.SessionTimeout)
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(store, sessions, logger, templateHandlers, server.Options{
		MaxUploadBytes: cfg.Data.MaxUploadBytes,
		DefaultHorizon: cfg.Dashboard.DefaultHorizonDays,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.SessionAuth(sessions, logger, "/api/session"),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down ledger store")
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}

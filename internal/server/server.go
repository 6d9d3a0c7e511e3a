package server

import (
	"log/slog"
	"net/http"

	"sales-dashboard/internal/handlers"
	"sales-dashboard/internal/services"
)

type Server struct {
	store           *services.LedgerStore
	mux             *http.ServeMux
	logger          *slog.Logger
	apiHandlers     *handlers.APIHandlers
	sseHandlers     *handlers.SSEHandlers
	sessionHandlers *handlers.SessionHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

type Options struct {
	MaxUploadBytes int64
	DefaultHorizon int
}

func NewServer(store *services.LedgerStore, sessions *handlers.SessionStore,
	logger *slog.Logger, templateHandlers *TemplateHandlers, opts Options) *Server {
	exporter := services.NewExporter(logger)

	s := &Server{
		store:           store,
		mux:             http.NewServeMux(),
		logger:          logger,
		apiHandlers:     handlers.NewAPIHandlers(store, exporter, logger, opts.MaxUploadBytes, opts.DefaultHorizon),
		sseHandlers:     handlers.NewSSEHandlers(store, logger, opts.DefaultHorizon),
		sessionHandlers: handlers.NewSessionHandlers(sessions, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes. The {$} anchor keeps the page from swallowing
	// wrong-method API requests, which must 405.
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Access gate
	s.mux.HandleFunc("POST /api/session", s.sessionHandlers.HandleLogin)
	s.mux.HandleFunc("DELETE /api/session", s.sessionHandlers.HandleLogout)

	// REST API endpoints
	s.mux.HandleFunc("POST /api/upload", s.apiHandlers.HandleUpload)
	s.mux.HandleFunc("GET /api/metrics", s.apiHandlers.HandleMetrics)
	s.mux.HandleFunc("GET /api/export/csv", s.apiHandlers.HandleExportCSV)
	s.mux.HandleFunc("GET /api/export/xlsx", s.apiHandlers.HandleExportWorkbook)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/kpis", s.sseHandlers.HandleKPIs)
	s.mux.HandleFunc("GET /sse/abc-curve", s.sseHandlers.HandleABCCurve)
	s.mux.HandleFunc("GET /sse/rfm", s.sseHandlers.HandleRFM)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

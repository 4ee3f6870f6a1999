// Package api provides the HTTP server for Insight: the research endpoint
// consumed by the web UI plus session, history and health views.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightai/insight/internal/domain"
	"github.com/insightai/insight/internal/health"
	"github.com/insightai/insight/internal/research"
)

// DefaultRequestTimeout bounds a single request, web3 waits included.
const DefaultRequestTimeout = 120 * time.Second

// Researcher answers research requests. Implemented by research.Dispatcher.
type Researcher interface {
	Dispatch(ctx context.Context, req research.Request) (domain.ResearchResult, error)
	Status(ctx context.Context) research.Status
}

// SessionInspector reads session state from the ledger. Implemented by
// ledger.Client.
type SessionInspector interface {
	VerifySession(ctx context.Context, sessionID uint64) domain.SessionCheck
	EphemeralNodes(ctx context.Context, sessionID uint64) ([]string, error)
	TasksBySession(ctx context.Context, sessionID uint64) ([]domain.Task, error)
	SessionsByOwner(ctx context.Context, owner common.Address) ([]domain.Session, error)
}

// HistoryReader lists past results. Implemented by sqlite.DB.
type HistoryReader interface {
	RecentResults(ctx context.Context, limit int) ([]domain.ResearchResult, error)
	GetResult(ctx context.Context, dispatchID string) (domain.ResearchResult, error)
}

// Server is the Insight HTTP API server.
type Server struct {
	research       Researcher
	sessions       SessionInspector // nil when the ledger is unavailable
	history        HistoryReader    // nil when history is disabled
	health         *health.Checker
	metricsEnabled bool
	corsOrigins    []string
	timeout        time.Duration
	log            *slog.Logger
}

// NewServer creates a new API server.
func NewServer(r Researcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		research:    r,
		corsOrigins: []string{"*"},
		timeout:     DefaultRequestTimeout,
		log:         logger.With("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetSessions enables the /sessions endpoints.
func (s *Server) SetSessions(si SessionInspector) { s.sessions = si }

// SetHistory enables GET /research/history.
func (s *Server) SetHistory(h HistoryReader) { s.history = h }

// SetHealth sets the checker reported by GET /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetCORSOrigins sets the allowed origins. "*" allows any.
func (s *Server) SetCORSOrigins(origins []string) {
	if len(origins) > 0 {
		s.corsOrigins = origins
	}
}

// SetRequestTimeout sets the per-request deadline.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/research", func(r chi.Router) {
		r.Get("/", s.handleResearchStatus)
		r.Post("/", s.handleResearch)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleHistoryItem)
	})

	r.Get("/sessions", s.handleSessionsByOwner)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Get("/tasks", s.handleSessionTasks)
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Health ─────────────────────────────────────────────────────────────────

type healthResponse struct {
	Status string          `json:"status"`
	Checks []health.Status `json:"checks"`
}

// handleHealth always answers 200; the demo path keeps the service usable
// even when every dependency is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: []health.Status{}}
	if s.health != nil {
		resp.Checks = s.health.Statuses()
		if !s.health.IsHealthy() {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response: {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// corsMiddleware adds CORS headers for the browser UI.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.corsOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.corsOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one structured record per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

// Package server exposes the dashboard analyses over HTTP: login, per-view
// uploads and report export.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/sbnpy/clubsight/internal/domain/auth"
	"github.com/sbnpy/clubsight/internal/domain/catalog"
	"github.com/sbnpy/clubsight/internal/domain/clients"
	"github.com/sbnpy/clubsight/internal/domain/expenses"
	"github.com/sbnpy/clubsight/internal/domain/margin"
	"github.com/sbnpy/clubsight/internal/domain/recovery"
	"github.com/sbnpy/clubsight/internal/domain/subscriptions"
	"github.com/sbnpy/clubsight/internal/domain/tbo"
	"github.com/sbnpy/clubsight/internal/domain/vad"
	"github.com/sbnpy/clubsight/internal/session"
	"github.com/sbnpy/clubsight/pkg/config"
)

// Services groups the per-view analyzers the server dispatches to.
type Services struct {
	Subscriptions *subscriptions.Service
	Recovery      *recovery.Service
	Expenses      *expenses.Service
	TBO           *tbo.Service
	VAD           *vad.Service
	Margin        *margin.Service
	Catalog       *catalog.Service
	Clients       *clients.Service
}

// Server is the HTTP front of the dashboard.
type Server struct {
	cfg      *config.Config
	creds    *auth.Store
	sessions *session.Store
	cookies  *sessions.CookieStore
	services Services
	metrics  *Metrics
	tracer   trace.Tracer
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New wires the server. The prometheus registry receives the server metrics;
// pass prometheus.DefaultRegisterer outside tests.
func New(cfg *config.Config, creds *auth.Store, store *session.Store, svcs Services,
	reg prometheus.Registerer, logger *slog.Logger) *Server {

	cookies := sessions.NewCookieStore([]byte(cfg.Auth.CookieSecret))
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode
	// NewCookieStore defaults Secure to true; over plain HTTP the browser
	// would never send the cookie back.
	cookies.Options.Secure = strings.HasPrefix(cfg.Server.BaseURL, "https://")

	return &Server{
		cfg:      cfg,
		creds:    creds,
		sessions: store,
		cookies:  cookies,
		services: svcs,
		metrics:  NewMetrics(reg),
		tracer:   otel.Tracer("clubsight/server"),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSecond), cfg.Server.RateLimitBurst),
		logger:   logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.withSession(s.handleLogout))
	mux.HandleFunc("POST /api/views/{view}/upload", s.withSession(s.handleUpload))
	mux.HandleFunc("GET /api/views/{view}/report", s.withSession(s.handleReport))
	mux.HandleFunc("GET /api/views/{view}/export", s.withSession(s.handleExport))
	mux.HandleFunc("POST /api/views/marge/analyze", s.withSession(s.handleMargin))
	mux.HandleFunc("GET /api/export", s.withSession(s.handleExportAll))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.withRateLimit(s.withLogging(mux))
}

// Addr is the listen address from configuration.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/radiusdt/space-analytics/internal/analytics"
	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/dashboard"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/middleware"
	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/radiusdt/space-analytics/internal/storage"
	"go.uber.org/zap"
)

const (
	spacesPrefix  = "/spaces/"
	healthTimeout = 2 * time.Second
)

// HealthCheck probes one backend.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Dashboard *dashboard.Service
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// Gatherer backs the metrics endpoint; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// HealthChecks are run by /health, keyed by backend name.
	HealthChecks map[string]HealthCheck
}

// Server wraps HTTP handlers around the dashboard service.
type Server struct {
	dashboard *dashboard.Service
	logger    *zap.Logger
	config    *config.Config
	checks    map[string]HealthCheck
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		dashboard: deps.Dashboard,
		logger:    deps.Logger,
		config:    deps.Config,
		checks:    deps.HealthChecks,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler(deps.Gatherer))
	}

	// Space analytics
	mux.HandleFunc(spacesPrefix, s.handleSpace)

	return mux
}

// Wrap applies the middleware chain: recovery, logging, rate limit, auth.
func Wrap(h http.Handler, deps *Dependencies) http.Handler {
	logging := middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics)
	logging.SetRouteLabel(RouteLabel)

	return middleware.Chain(h,
		middleware.NewRecoveryMiddleware(deps.Logger).Handler,
		logging.Handler,
		middleware.NewRateLimitMiddleware(deps.Config.RateLimit, deps.Logger, deps.Metrics).Handler,
		middleware.NewAuthMiddleware(deps.Config.Auth, deps.Logger).Handler,
	)
}

// RouteLabel collapses space ids so request metrics stay bounded,
// e.g. /spaces/abc/dashboard -> /spaces/:id/dashboard.
func RouteLabel(path string) string {
	if _, resource, ok := splitSpacePath(path); ok {
		return spacesPrefix + ":id/" + resource
	}
	if strings.HasPrefix(path, spacesPrefix) {
		return spacesPrefix + "*"
	}
	return path
}

// splitSpacePath parses /spaces/{id}/{resource}.
func splitSpacePath(path string) (id, resource string, ok bool) {
	rest := strings.TrimPrefix(path, spacesPrefix)
	if rest == path {
		return "", "", false
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if len(s.checks) == 0 {
		s.jsonResponse(w, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("backend", name), zap.Error(err))
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "checks": results})
}

// ---- Spaces ----

func (s *Server) handleSpace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, resource, ok := splitSpacePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch resource {
	case "dashboard":
		s.handleDashboard(w, r, id)
	case "users":
		s.handleUsers(w, r, id)
	case "item-types":
		s.handleItemTypes(w, r, id)
	case "children":
		s.handleChildren(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, spaceID string) {
	q := r.URL.Query()
	view, err := models.ParseViewMode(q.Get("view"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := s.dashboard.Dashboard(r.Context(), dashboard.Query{
		SpaceID:   spaceID,
		View:      view,
		Users:     splitList(q.Get("users")),
		ItemTypes: splitList(q.Get("item_types")),
	})
	if err != nil {
		s.serviceError(w, r, "failed to build dashboard", err)
		return
	}
	s.jsonResponse(w, d)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, spaceID string) {
	users, err := s.dashboard.Users(r.Context(), spaceID)
	if err != nil {
		s.serviceError(w, r, "failed to list users", err)
		return
	}
	s.jsonResponse(w, users)
}

func (s *Server) handleItemTypes(w http.ResponseWriter, r *http.Request, spaceID string) {
	types, err := s.dashboard.ItemTypes(r.Context(), spaceID)
	if err != nil {
		s.serviceError(w, r, "failed to list item types", err)
		return
	}
	s.jsonResponse(w, types)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request, spaceID string) {
	children, err := s.dashboard.Children(r.Context(), spaceID)
	if err != nil {
		s.serviceError(w, r, "failed to list children", err)
		return
	}
	s.jsonResponse(w, children)
}

// ---- Helper Methods ----

// serviceError maps service errors to status codes. Only unexpected
// failures are logged at error level.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrSpaceNotFound), errors.Is(err, analytics.ErrNoRootSpace):
		s.errorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidViewMode):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error(msg,
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		s.errorResponse(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// splitList parses a comma-separated query value, dropping blanks.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

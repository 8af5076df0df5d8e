package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/radiusdt/space-analytics/internal/analytics"
	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/dashboard"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/radiusdt/space-analytics/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	store := storage.NewInMemoryStore()
	store.SaveSpaces(
		models.Space{ID: "root"},
		models.Space{ID: "ch1", ParentID: strPtr("root")},
		models.Space{ID: "orphan", ParentID: strPtr("orphan-parent")},
	)
	store.SaveUsers("root", models.User{ID: "u1", Name: "ann"}, models.User{ID: "u2", Name: "bob"})
	store.SaveActions("root",
		models.Action{ID: "1", Verb: "accessed", CreatedAt: "2021-03-01T09:00:00Z", User: "u1",
			Target: &models.Target{DisplayName: "Intro", ObjectType: "Space"}},
		models.Action{ID: "2", Verb: "accessed", CreatedAt: "2021-03-01T10:00:00Z", User: "u2",
			Target: &models.Target{DisplayName: "Slides", ObjectType: "Resource"}},
	)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	engine := analytics.NewEngine(cfg.Analytics, zap.NewNop(), m)
	svc := dashboard.NewService(storage.Sources{Actions: store, Users: store, Spaces: store, Name: "memory"},
		engine, dashboard.Options{}, zap.NewNop(), m)

	deps := &Dependencies{Dashboard: svc, Config: cfg, Logger: zap.NewNop(), Metrics: m, Gatherer: reg}
	return Wrap(NewServer(deps), deps)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(t, nil), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDashboardEndpoint(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, "/spaces/root/dashboard?view=perform&users=Bob&item_types=Resource,Space")
	require.Equal(t, http.StatusOK, rec.Code)

	var d analytics.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.True(t, d.Selection.Applied)
	require.Equal(t, []models.RankedItem{{DisplayName: "Slides", Count: 1, Category: "Resource"}}, d.TopItems)
	require.Equal(t, []models.DayCount{{Date: "1-3-2021", Count: 1}}, d.ByDay.Data)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestDashboardEndpointErrors(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"bad view", "/spaces/root/dashboard?view=sideways", http.StatusBadRequest},
		{"unknown space", "/spaces/nope/dashboard", http.StatusNotFound},
		{"unknown resource", "/spaces/root/everything", http.StatusNotFound},
		{"missing resource", "/spaces/root", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, get(t, h, tt.path).Code)
		})
	}
}

func TestRosterItemTypesAndChildren(t *testing.T) {
	h := newTestServer(t, nil)

	rec := get(t, h, "/spaces/root/users")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[
		{"ids":["u1"],"name":"Ann","type":"","value":"Ann"},
		{"ids":["u2"],"name":"Bob","type":"","value":"Bob"}
	]`, rec.Body.String())

	rec = get(t, h, "/spaces/root/item-types")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"name":"Space","value":"Space"},{"name":"Resource","value":"Resource"}]`, rec.Body.String())

	rec = get(t, h, "/spaces/ch1/children")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"id":"ch1","parentId":"root"}]`, rec.Body.String())

	require.Equal(t, http.StatusNotFound, get(t, h, "/spaces/orphan/children").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/spaces/root/dashboard", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuthGuardsSpaces(t *testing.T) {
	h := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.MasterKey = "secret"
	})

	require.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	require.Equal(t, http.StatusUnauthorized, get(t, h, "/spaces/root/users").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/spaces/root/users?api_key=secret").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	get(t, h, "/spaces/root/users")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `test_http_requests_total{path="/spaces/:id/users",status="200"} 1`)
}

func TestRouteLabel(t *testing.T) {
	require.Equal(t, "/spaces/:id/dashboard", RouteLabel("/spaces/abc/dashboard"))
	require.Equal(t, "/spaces/*", RouteLabel("/spaces/abc"))
	require.Equal(t, "/health", RouteLabel("/health"))
}

func TestHealthChecks(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	healthy := func(context.Context) error { return nil }
	deps := &Dependencies{Config: cfg, Logger: zap.NewNop(), Gatherer: prometheus.NewRegistry()}

	deps.HealthChecks = map[string]HealthCheck{"postgres": healthy}
	rec := get(t, NewServer(deps), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, rec.Body.String())

	deps.HealthChecks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	rec = get(t, NewServer(deps), "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"connection refused"}}`, rec.Body.String())
}

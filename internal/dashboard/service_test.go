package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/space-analytics/internal/analytics"
	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/geo"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/radiusdt/space-analytics/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func strPtr(s string) *string { return &s }

func seededStore() *storage.InMemoryStore {
	s := storage.NewInMemoryStore()
	s.SaveSpaces(
		models.Space{ID: "root", Name: "Course"},
		models.Space{ID: "ch1", Name: "Chapter 1", ParentID: strPtr("root")},
		models.Space{ID: "ch2", Name: "Chapter 2", ParentID: strPtr("root")},
	)
	s.SaveUsers("root",
		models.User{ID: "u1", Name: "ann", Type: "light"},
		models.User{ID: "u2", Name: "Bob", Type: "light"},
		models.User{ID: "u3", Name: "ANN ", Type: "full"},
	)
	s.SaveActions("root",
		models.Action{ID: "1", Verb: "accessed", CreatedAt: "2021-03-01T09:00:00Z", User: "u1", IP: "1.2.3.4",
			Target: &models.Target{DisplayName: "Intro", ObjectType: "Space"}},
		models.Action{ID: "2", Verb: "create", CreatedAt: "2021-03-02T14:00:00Z", User: "u2"},
	)
	return s
}

func sourcesOf(s *storage.InMemoryStore) storage.Sources {
	return storage.Sources{Actions: s, Users: s, Spaces: s, Name: "memory"}
}

type failingCache struct{}

func (failingCache) Get(context.Context, string, any) error {
	return errors.New("connection refused")
}

func (failingCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("connection refused")
}

func TestDashboardComputesAndCaches(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	engine := analytics.NewEngine(config.DefaultAnalytics(), nil, m)
	svc := NewService(sourcesOf(seededStore()), engine, Options{
		Cache:    storage.NewMemoryDashboardCache(),
		CacheTTL: time.Minute,
	}, nil, m)

	q := Query{SpaceID: "root", View: models.ViewPerform}
	first, err := svc.Dashboard(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, first.Users, 2)
	require.Equal(t, []models.DayCount{{Date: "1-3-2021", Count: 1}, {Date: "2-3-2021", Count: 1}}, first.ByDay.Data)

	second, err := svc.Dashboard(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, first.ByDay, second.ByDay)
	require.Equal(t, first.TopItems, second.TopItems)

	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DashboardsBuilt.WithLabelValues("perform", "false")))
}

func TestDashboardSelectionIsCanonicalAcrossCachedSpellings(t *testing.T) {
	svc := NewService(sourcesOf(seededStore()), analytics.NewEngine(config.DefaultAnalytics(), nil, nil), Options{
		Cache:    storage.NewMemoryDashboardCache(),
		CacheTTL: time.Minute,
	}, nil, nil)

	first, err := svc.Dashboard(context.Background(), Query{SpaceID: "root", View: models.ViewPerform, Users: []string{"ANN"}})
	require.NoError(t, err)
	second, err := svc.Dashboard(context.Background(), Query{SpaceID: "root", View: models.ViewPerform, Users: []string{" ann", "Ann"}})
	require.NoError(t, err)

	require.Equal(t, []string{"ann"}, first.Selection.Requested)
	require.Equal(t, first.Selection, second.Selection)
	require.True(t, second.Selection.Applied)
	require.Equal(t, 1, second.Selection.Actions)
}

func TestDashboardSurvivesCacheFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	engine := analytics.NewEngine(config.DefaultAnalytics(), nil, nil)
	svc := NewService(sourcesOf(seededStore()), engine, Options{Cache: failingCache{}}, zap.New(core), nil)

	d, err := svc.Dashboard(context.Background(), Query{SpaceID: "root", View: models.ViewPerform, Users: []string{"bob"}})
	require.NoError(t, err)
	require.True(t, d.Selection.Applied)
	require.Equal(t, 1, d.Selection.Actions)
	require.Equal(t, 1, logs.FilterMessage("dashboard cache read failed").Len())
	require.Equal(t, 1, logs.FilterMessage("failed to cache dashboard").Len())
}

func TestDashboardUnknownSpace(t *testing.T) {
	engine := analytics.NewEngine(config.DefaultAnalytics(), nil, nil)
	svc := NewService(sourcesOf(seededStore()), engine, Options{}, nil, nil)

	_, err := svc.Dashboard(context.Background(), Query{SpaceID: "nope", View: models.ViewPerform})
	require.ErrorIs(t, err, storage.ErrSpaceNotFound)
}

func TestDashboardEnrichesPerformView(t *testing.T) {
	p := geo.NewStaticProvider()
	p.Add("1.2.3.4", &geo.Info{Latitude: 46.2, Longitude: 6.1})
	engine := analytics.NewEngine(config.DefaultAnalytics(), nil, nil)
	store := seededStore()
	svc := NewService(sourcesOf(store), engine, Options{Enricher: geo.NewEnricher(p, 10, time.Hour, nil, nil)}, nil, nil)

	d, err := svc.Dashboard(context.Background(), Query{SpaceID: "root", View: models.ViewPerform})
	require.NoError(t, err)
	require.Equal(t, []models.PointFeature{{ID: "1", Lon: 6.1, Lat: 46.2}}, d.Points)

	d, err = svc.Dashboard(context.Background(), Query{SpaceID: "root", View: models.ViewCompose})
	require.NoError(t, err)
	require.Empty(t, d.Points)

	stored, err := store.ListActions(context.Background(), "root")
	require.NoError(t, err)
	require.Nil(t, stored[0].Geolocation)
}

func TestUsersItemTypesAndChildren(t *testing.T) {
	engine := analytics.NewEngine(config.DefaultAnalytics(), nil, nil)
	svc := NewService(sourcesOf(seededStore()), engine, Options{}, nil, nil)
	ctx := context.Background()

	users, err := svc.Users(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, []models.ConsolidatedUser{
		{IDs: []string{"u1", "u3"}, Name: "Ann", Type: "light", Value: "Ann"},
		{IDs: []string{"u2"}, Name: "Bob", Type: "light", Value: "Bob"},
	}, users)

	types, err := svc.ItemTypes(ctx, "root")
	require.NoError(t, err)
	require.Equal(t, []models.SelectOption{{Name: "Space", Value: "Space"}}, types)

	children, err := svc.Children(ctx, "ch2")
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.Equal(t, "ch1", children[0].ID)

	_, err = svc.Children(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrSpaceNotFound)
}

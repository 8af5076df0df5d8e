package analytics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func engineFixture() ([]models.Action, []models.User) {
	users := []models.User{
		{ID: "la", Name: "Learning Analytics", Type: "light"},
		{ID: "u1", Name: "ann lee", Type: "light"},
		{ID: "u2", Name: "Bob", Type: "light"},
		{ID: "u3", Name: "Ann Lee", Type: "full"},
	}
	actions := []models.Action{
		{ID: "1", Verb: "accessed", CreatedAt: "2021-03-01T09:00:00Z", User: "u1",
			Target:      &models.Target{DisplayName: "Intro", ObjectType: "Space"},
			Geolocation: &models.Geolocation{LL: [2]float64{46.2, 6.1}}},
		{ID: "2", Verb: "accessed", CreatedAt: "2021-03-01T13:00:00Z", User: "u2",
			Target: &models.Target{DisplayName: "Slides", ObjectType: "Resource"}},
		{ID: "3", Verb: "create", CreatedAt: "2021-03-02T22:00:00Z", User: "u3"},
		{ID: "4", Verb: "accessed", CreatedAt: "bogus", User: "u2",
			Target: &models.Target{DisplayName: "Intro", ObjectType: "Space"}},
	}
	return actions, users
}

func TestEngineBuildWholeBatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	cfg := config.DefaultAnalytics()
	cfg.ReservedUserID = "la"
	e := NewEngine(cfg, zaptest.NewLogger(t), m)
	actions, users := engineFixture()

	d, err := e.Build(context.Background(), Input{Actions: actions, Users: users, View: models.ViewPerform})
	require.NoError(t, err)

	require.Equal(t, []string{"Ann Lee", "Bob"}, []string{d.Users[0].Value, d.Users[1].Value})
	require.Equal(t, []string{"u1", "u3"}, d.Users[0].IDs)
	require.False(t, d.Selection.Applied)
	require.Equal(t, 4, d.Selection.Actions)

	require.Equal(t, []models.DayCount{{Date: "1-3-2021", Count: 2}, {Date: "2-3-2021", Count: 1}}, d.ByDay.Data)
	require.Equal(t, 1, d.ByDay.Skipped)
	require.NotNil(t, d.ByDay.YAxisMax)
	require.Equal(t, 10, *d.ByDay.YAxisMax)
	require.False(t, d.ByDay.Empty)

	require.Len(t, d.ByTimeOfDay.Data, 6)
	require.Equal(t, models.TimeOfDayCount{TimeOfDay: "morning", Count: 1}, d.ByTimeOfDay.Data[2])
	require.Equal(t, 1, d.ByTimeOfDay.Skipped)

	require.Equal(t, "Accessed", d.ByVerb[0].Verb)
	require.Equal(t, 75.0, d.ByVerb[0].Percentage)
	require.Equal(t, models.VerbShare{Verb: "Other", Percentage: 0}, d.ByVerb[len(d.ByVerb)-1])

	require.Equal(t, []models.RankedItem{
		{DisplayName: "Slides", Count: 1, Category: "Resource"},
		{DisplayName: "Intro", Count: 2, Category: "Space"},
	}, d.TopItems)
	require.Len(t, d.ItemTypes, 2)
	require.Equal(t, []models.PointFeature{{ID: "1", Lon: 6.1, Lat: 46.2}}, d.Points)

	require.Equal(t, 1.0, testutil.ToFloat64(m.DashboardsBuilt.WithLabelValues("perform", "false")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ActionsSkipped.WithLabelValues(ComponentDay, skipBadDate)))
}

func TestEngineBuildWithSelection(t *testing.T) {
	e := NewEngine(config.DefaultAnalytics(), nil, nil)
	actions, users := engineFixture()

	d, err := e.Build(context.Background(), Input{
		Actions:       actions,
		Users:         users,
		View:          models.ViewPerform,
		SelectedUsers: []string{"Bob"},
		ItemTypes:     []string{"Space"},
	})
	require.NoError(t, err)

	require.True(t, d.Selection.Applied)
	require.Equal(t, 1, d.Selection.Resolved)
	require.Equal(t, 2, d.Selection.Actions)
	require.Equal(t, []models.DayCount{{Date: "1-3-2021", Count: 1}}, d.ByDay.Data)
	require.Equal(t, []models.RankedItem{{DisplayName: "Intro", Count: 1, Category: "Space"}}, d.TopItems)
	require.Empty(t, d.Points)
}

func TestEngineBuildEmptyBatch(t *testing.T) {
	e := NewEngine(config.DefaultAnalytics(), nil, nil)

	d, err := e.Build(context.Background(), Input{View: models.ViewCompose})
	require.NoError(t, err)

	require.True(t, d.ByDay.Empty)
	require.Nil(t, d.ByDay.YAxisMax)
	require.True(t, d.ByTimeOfDay.Empty)
	require.Len(t, d.ByTimeOfDay.Data, 6)
	require.Empty(t, d.ByVerb)
	require.Empty(t, d.TopItems)
	require.Empty(t, d.Points)
}

func TestEngineBuildCanceled(t *testing.T) {
	e := NewEngine(config.DefaultAnalytics(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := e.Build(ctx, Input{View: models.ViewPerform})
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, d)
}

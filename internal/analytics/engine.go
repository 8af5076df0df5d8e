package analytics

import (
	"context"
	"time"

	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Component names used for metrics and logs.
const (
	ComponentDay       = "by_day"
	ComponentTimeOfDay = "by_time_of_day"
	ComponentVerb      = "by_verb"
	ComponentRanking   = "top_items"
	ComponentGeo       = "points"
)

// Input is one fully materialized batch plus the viewer's choices.
type Input struct {
	Actions []models.Action
	Users   []models.User
	View    models.ViewMode
	// SelectedUsers are roster names (the identities' Value).
	SelectedUsers []string
	// ItemTypes restricts the most-accessed ranking.
	ItemTypes []string
}

// Selection describes how the user filter was applied.
type Selection struct {
	Requested []string `json:"requested"`
	Resolved  int      `json:"resolved"`
	Applied   bool     `json:"applied"`
	// Actions is the size of the batch after filtering.
	Actions int `json:"actions"`
}

// DaySeries is the actions-by-day chart.
type DaySeries struct {
	Data     []models.DayCount `json:"data"`
	YAxisMax *int              `json:"yAxisMax"`
	Skipped  int               `json:"skipped"`
	Empty    bool              `json:"empty"`
}

// TimeOfDaySeries is the actions-by-time-of-day chart.
type TimeOfDaySeries struct {
	Data     []models.TimeOfDayCount `json:"data"`
	YAxisMax *int                    `json:"yAxisMax"`
	Skipped  int                     `json:"skipped"`
	Empty    bool                    `json:"empty"`
}

// Dashboard gathers every chart-ready dataset for one batch.
type Dashboard struct {
	View        models.ViewMode           `json:"view"`
	Users       []models.ConsolidatedUser `json:"users"`
	Selection   Selection                 `json:"selection"`
	ByDay       DaySeries                 `json:"byDay"`
	ByTimeOfDay TimeOfDaySeries           `json:"byTimeOfDay"`
	ByVerb      []models.VerbShare        `json:"byVerb"`
	TopItems    []models.RankedItem       `json:"topItems"`
	ItemTypes   []models.SelectOption     `json:"itemTypes"`
	Points      []models.PointFeature     `json:"points"`
}

// Engine composes the aggregation components.
type Engine struct {
	cfg      config.AnalyticsConfig
	bucketer *Bucketer
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewEngine creates an engine. logger and m may be nil.
func NewEngine(cfg config.AnalyticsConfig, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		bucketer: NewBucketer(cfg.TimeBands, logger),
		logger:   logger,
		metrics:  m,
	}
}

// Roster returns the consolidated, display-ready user list.
func (e *Engine) Roster(users []models.User) []models.ConsolidatedUser {
	return BuildRoster(users, e.cfg.ReservedUserID)
}

// ItemTypes lists the item types available to the ranking selector.
func (e *Engine) ItemTypes(actions []models.Action) []models.SelectOption {
	return DistinctItemTypes(actions, e.cfg.AccessedVerb)
}

// Build filters the batch by the selected users and computes every dataset.
// The aggregations are independent and run concurrently; Build only fails
// when ctx is done.
func (e *Engine) Build(ctx context.Context, in Input) (*Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	roster := e.Roster(in.Users)
	selected := ResolveSelection(roster, in.SelectedUsers)
	actions, applied := FilterByUsers(in.Actions, selected, len(roster), in.View)

	d := &Dashboard{
		View:  in.View,
		Users: roster,
		Selection: Selection{
			Requested: in.SelectedUsers,
			Resolved:  len(selected),
			Applied:   applied,
			Actions:   len(actions),
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.run(gctx, ComponentDay, len(actions), func() {
			b := e.bucketer.ByDay(actions, in.View)
			d.ByDay = DaySeries{
				Data:     FormatByDay(b.Counts),
				YAxisMax: yAxis(b.Counts),
				Skipped:  b.Skipped,
			}
			d.ByDay.Empty = len(d.ByDay.Data) == 0
			e.recordSkips(ComponentDay, b)
		})
	})

	g.Go(func() error {
		return e.run(gctx, ComponentTimeOfDay, len(actions), func() {
			b := e.bucketer.ByTimeOfDay(actions, in.View)
			d.ByTimeOfDay = TimeOfDaySeries{
				Data:     FormatByTimeOfDay(b.Counts),
				YAxisMax: yAxis(b.Counts),
				Skipped:  b.Skipped,
				Empty:    allZero(b.Counts),
			}
			e.recordSkips(ComponentTimeOfDay, b)
		})
	})

	g.Go(func() error {
		return e.run(gctx, ComponentVerb, len(actions), func() {
			d.ByVerb = FormatByVerb(AggregateByVerb(actions), e.cfg.MinVerbPercentage, e.cfg.OtherLabel)
		})
	})

	g.Go(func() error {
		return e.run(gctx, ComponentRanking, len(actions), func() {
			counted := CountAccessed(actions, e.cfg.AccessedVerb, in.ItemTypes...)
			d.TopItems = TopN(counted, e.cfg.TopItems)
			d.ItemTypes = DistinctItemTypes(actions, e.cfg.AccessedVerb)
		})
	})

	g.Go(func() error {
		return e.run(gctx, ComponentGeo, len(actions), func() {
			d.Points = ToPointFeatures(actions, in.View)
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.metrics.RecordDashboard(string(in.View), applied)
	e.logger.Debug("dashboard built",
		zap.String("view", string(in.View)),
		zap.Int("actions", len(in.Actions)),
		zap.Int("filtered_actions", len(actions)),
		zap.Bool("selection_applied", applied),
	)
	return d, nil
}

func (e *Engine) run(ctx context.Context, component string, n int, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	fn()
	e.metrics.RecordAggregation(component, n, time.Since(start))
	return nil
}

func (e *Engine) recordSkips(component string, b *Buckets) {
	for reason, n := range b.SkipReasons {
		e.metrics.RecordSkipped(component, reason, n)
	}
	if b.Skipped > 0 {
		e.logger.Info("actions skipped while bucketing",
			zap.String("component", component),
			zap.Int("skipped", b.Skipped),
		)
	}
}

func yAxis(counts *OrderedMap[int]) *int {
	v, ok := YAxisMax(counts)
	if !ok {
		return nil
	}
	return &v
}

func allZero(counts *OrderedMap[int]) bool {
	zero := true
	counts.Each(func(_ string, n int) {
		if n != 0 {
			zero = false
		}
	})
	return zero
}

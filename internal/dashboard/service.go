package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radiusdt/space-analytics/internal/analytics"
	"github.com/radiusdt/space-analytics/internal/geo"
	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/radiusdt/space-analytics/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Query selects one dashboard.
type Query struct {
	SpaceID   string
	View      models.ViewMode
	Users     []string
	ItemTypes []string
}

// Options holds the optional collaborators of a Service.
type Options struct {
	Cache    storage.DashboardCache
	CacheTTL time.Duration
	// Enricher fills missing perform-mode geolocations from action IPs.
	Enricher *geo.Enricher
}

// Service loads a space's batch from the stores and turns it into dashboards.
type Service struct {
	sources  storage.Sources
	engine   *analytics.Engine
	cache    storage.DashboardCache
	cacheTTL time.Duration
	enricher *geo.Enricher
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewService constructs a Service. logger and m may be nil.
func NewService(sources storage.Sources, engine *analytics.Engine, opts Options, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sources.Name == "" {
		sources.Name = "unknown"
	}
	return &Service{
		sources:  sources,
		engine:   engine,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		enricher: opts.Enricher,
		logger:   logger,
		metrics:  m,
	}
}

// Dashboard returns every chart dataset for a space. Cache failures are
// logged and the dashboard is computed from the stores.
func (s *Service) Dashboard(ctx context.Context, q Query) (*analytics.Dashboard, error) {
	// Requests differing only in name casing or order share one cache entry.
	selected := storage.CanonicalUsers(q.Users)
	key := storage.DashboardKey(q.SpaceID, q.View, selected, q.ItemTypes)
	if d, ok := s.cached(ctx, key); ok {
		return d, nil
	}

	if _, err := s.spaces(ctx, q.SpaceID); err != nil {
		return nil, err
	}

	var (
		actions []models.Action
		users   []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		actions, err = s.actions(gctx, q.SpaceID)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.users(gctx, q.SpaceID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.enricher != nil && q.View == models.ViewPerform {
		var filled int
		actions, filled = s.enricher.Enrich(actions)
		if filled > 0 {
			s.logger.Debug("geolocations filled from IP",
				zap.String("space_id", q.SpaceID),
				zap.Int("filled", filled),
			)
		}
	}

	d, err := s.engine.Build(ctx, analytics.Input{
		Actions:       actions,
		Users:         users,
		View:          q.View,
		SelectedUsers: selected,
		ItemTypes:     q.ItemTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, d, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.String("key", key), zap.Error(err))
		}
	}
	return d, nil
}

func (s *Service) cached(ctx context.Context, key string) (*analytics.Dashboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	var d analytics.Dashboard
	err := s.cache.Get(ctx, key, &d)
	switch {
	case err == nil:
		s.metrics.RecordCache("hit")
		return &d, true
	case errors.Is(err, storage.ErrCacheMiss):
		s.metrics.RecordCache("miss")
	default:
		s.metrics.RecordCache("error")
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

// Users returns the consolidated roster of a space.
func (s *Service) Users(ctx context.Context, spaceID string) ([]models.ConsolidatedUser, error) {
	if _, err := s.spaces(ctx, spaceID); err != nil {
		return nil, err
	}
	users, err := s.users(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return s.engine.Roster(users), nil
}

// ItemTypes lists the item types of a space's accessed items.
func (s *Service) ItemTypes(ctx context.Context, spaceID string) ([]models.SelectOption, error) {
	if _, err := s.spaces(ctx, spaceID); err != nil {
		return nil, err
	}
	actions, err := s.actions(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return s.engine.ItemTypes(actions), nil
}

// Children returns the immediate children of the main space of the tree
// spaceID belongs to.
func (s *Service) Children(ctx context.Context, spaceID string) ([]models.Space, error) {
	spaces, err := s.spaces(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	return analytics.MainSpaceChildren(spaces)
}

func (s *Service) spaces(ctx context.Context, spaceID string) ([]models.Space, error) {
	start := time.Now()
	spaces, err := s.sources.Spaces.ListSpaces(ctx, spaceID)
	s.metrics.RecordStoreRead(s.sources.Name, "list_spaces", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to load space %s: %w", spaceID, err)
	}
	return spaces, nil
}

func (s *Service) actions(ctx context.Context, spaceID string) ([]models.Action, error) {
	start := time.Now()
	actions, err := s.sources.Actions.ListActions(ctx, spaceID)
	s.metrics.RecordStoreRead(s.sources.Name, "list_actions", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to load actions of space %s: %w", spaceID, err)
	}
	return actions, nil
}

func (s *Service) users(ctx context.Context, spaceID string) ([]models.User, error) {
	start := time.Now()
	users, err := s.sources.Users.ListUsers(ctx, spaceID)
	s.metrics.RecordStoreRead(s.sources.Name, "list_users", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to load users of space %s: %w", spaceID, err)
	}
	return users, nil
}

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/radiusdt/space-analytics/internal/models"
)

var (
	// ErrSpaceNotFound is returned when a space id is unknown to the store.
	ErrSpaceNotFound = errors.New("space not found")
	// ErrCacheMiss is returned by DashboardCache.Get when nothing is cached under a key.
	ErrCacheMiss = errors.New("cache miss")
)

// =============================================
// BATCH SOURCES
// =============================================

// ActionStore returns the actions recorded against a space.
type ActionStore interface {
	ListActions(ctx context.Context, spaceID string) ([]models.Action, error)
}

// UserStore returns the raw user records of a space.
type UserStore interface {
	ListUsers(ctx context.Context, spaceID string) ([]models.User, error)
}

// SpaceStore returns the whole tree a space belongs to.
type SpaceStore interface {
	ListSpaces(ctx context.Context, spaceID string) ([]models.Space, error)
}

// Sources bundles one implementation of each store. Actions may live in a
// different backend than users and spaces.
type Sources struct {
	Actions ActionStore
	Users   UserStore
	Spaces  SpaceStore
	// Name labels store latency metrics, e.g. "postgres" or "clickhouse+postgres".
	Name string
}

// =============================================
// DASHBOARD CACHE
// =============================================

// DashboardCache stores computed dashboards.
type DashboardCache interface {
	// Get decodes the value under key into dst, or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

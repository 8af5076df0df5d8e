package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/radiusdt/space-analytics/internal/models"
	"github.com/redis/go-redis/v9"
)

// DashboardKeyPrefix namespaces dashboard entries in Redis.
const DashboardKeyPrefix = "space-analytics:dashboard:"

// DashboardKey derives a cache key from the request parameters. Selected
// users and item types are order-insensitive, so they are normalized and sorted.
func DashboardKey(spaceID string, view models.ViewMode, users, itemTypes []string) string {
	return fmt.Sprintf("%s:%s:u=%s:t=%s",
		spaceID, view,
		strings.Join(CanonicalUsers(users), ","),
		strings.Join(sortedSet(itemTypes, false), ","),
	)
}

// CanonicalUsers lower-cases, trims, dedupes and sorts selected user names,
// the form DashboardKey keys them by.
func CanonicalUsers(users []string) []string {
	return sortedSet(users, true)
}

func sortedSet(values []string, normalize bool) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if normalize {
			v = strings.ToLower(strings.TrimSpace(v))
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RedisDashboardCache implements DashboardCache with JSON values in Redis.
type RedisDashboardCache struct {
	client redis.Cmdable
}

func NewRedisDashboardCache(client redis.Cmdable) *RedisDashboardCache {
	return &RedisDashboardCache{client: client}
}

func (c *RedisDashboardCache) Get(ctx context.Context, key string, dst any) error {
	raw, err := c.client.Get(ctx, DashboardKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to read cached dashboard: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode cached dashboard: %w", err)
	}
	return nil
}

func (c *RedisDashboardCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}
	if err := c.client.Set(ctx, DashboardKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache dashboard: %w", err)
	}
	return nil
}

// MemoryDashboardCache implements DashboardCache in process memory. Entries
// are JSON-encoded so cached values never alias the caller's data.
type MemoryDashboardCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

func NewMemoryDashboardCache() *MemoryDashboardCache {
	return &MemoryDashboardCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryDashboardCache) Get(_ context.Context, key string, dst any) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && c.now().After(e.expires)) {
		return ErrCacheMiss
	}
	return json.Unmarshal(e.raw, dst)
}

func (c *MemoryDashboardCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}
	e := memoryEntry{raw: raw}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	return nil
}

package geo

import (
	"errors"
	"sync"
	"time"

	"github.com/radiusdt/space-analytics/internal/metrics"
	"github.com/radiusdt/space-analytics/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrInvalidIP is returned for strings that do not parse as an IP address.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrNoLocation is returned when the database has no coordinates for an IP.
	ErrNoLocation = errors.New("no location for IP")
)

// Info holds geographic information for an IP.
type Info struct {
	Country     string
	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
	Timezone    string
}

// Provider resolves IP addresses to locations.
type Provider interface {
	Lookup(ip string) (*Info, error)
	Close() error
}

// Enricher fills the perform-mode geolocation of actions from their IP.
type Enricher struct {
	provider Provider
	cache    *cache
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewEnricher creates an enricher with a TTL-bounded lookup cache.
func NewEnricher(provider Provider, cacheSize int, cacheTTL time.Duration, logger *zap.Logger, m *metrics.Metrics) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize < 1 {
		cacheSize = 1
	}
	return &Enricher{
		provider: provider,
		cache: &cache{
			data:    make(map[string]*cacheEntry),
			maxSize: cacheSize,
			ttl:     cacheTTL,
			now:     time.Now,
		},
		logger:  logger,
		metrics: m,
	}
}

// Enrich returns a copy of actions where every action with an IP but no
// geolocation gets one. Existing geolocations are never overwritten and the
// input slice is left untouched. It reports how many actions were filled.
func (e *Enricher) Enrich(actions []models.Action) ([]models.Action, int) {
	out := make([]models.Action, len(actions))
	copy(out, actions)

	filled := 0
	for i := range out {
		a := &out[i]
		if a.Geolocation != nil || a.IP == "" {
			continue
		}
		info := e.lookup(a.IP)
		if info == nil {
			continue
		}
		a.Geolocation = &models.Geolocation{LL: [2]float64{info.Latitude, info.Longitude}}
		filled++
	}
	return out, filled
}

// lookup performs a cached lookup. Misses are cached too, as nil.
func (e *Enricher) lookup(ip string) *Info {
	start := time.Now()
	if info, ok := e.cache.get(ip); ok {
		e.metrics.RecordGeoLookup(true, time.Since(start))
		return info
	}

	info, err := e.provider.Lookup(ip)
	if err != nil {
		if !errors.Is(err, ErrNoLocation) {
			e.logger.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		}
		info = nil
	}

	e.cache.set(ip, info)
	e.metrics.RecordGeoLookup(false, time.Since(start))
	return info
}

// cache caches geo lookups.
type cache struct {
	mu      sync.RWMutex
	data    map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	info      *Info
	expiresAt time.Time
}

func (c *cache) get(ip string) (*Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[ip]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.info, true
}

func (c *cache) set(ip string, info *Info) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict an arbitrary entry at capacity.
	if _, exists := c.data[ip]; !exists && len(c.data) >= c.maxSize {
		for k := range c.data {
			delete(c.data, k)
			break
		}
	}

	c.data[ip] = &cacheEntry{
		info:      info,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// StaticProvider answers lookups from a fixed table. It backs tests and
// deployments without a GeoIP database file.
type StaticProvider struct {
	mu      sync.RWMutex
	data    map[string]*Info
	lookups int
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{data: make(map[string]*Info)}
}

// Add registers the location of an IP.
func (p *StaticProvider) Add(ip string, info *Info) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[ip] = info
}

func (p *StaticProvider) Lookup(ip string) (*Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups++
	if info, ok := p.data[ip]; ok {
		return info, nil
	}
	return nil, ErrNoLocation
}

// Lookups returns how many lookups reached the provider.
func (p *StaticProvider) Lookups() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lookups
}

func (p *StaticProvider) Close() error {
	return nil
}

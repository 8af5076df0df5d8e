package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the space-analytics service.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Mongo      MongoConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Geo        GeoConfig
	Analytics  AnalyticsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendMongo      = "mongo"
	BackendClickHouse = "clickhouse"
)

// StorageConfig selects where action, user and space batches are read from.
// ActionsBackend falls back to Backend when empty.
type StorageConfig struct {
	Backend        string
	ActionsBackend string
	// SeedFile is a JSON dataset loaded into the memory backend at startup.
	SeedFile string
}

// ActionSource returns the backend used for actions.
func (s StorageConfig) ActionSource() string {
	if s.ActionsBackend != "" {
		return s.ActionsBackend
	}
	return s.Backend
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxConns     int
	MinConns     int
	// QueryTimeout becomes the session statement_timeout; zero disables it.
	QueryTimeout time.Duration
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type MongoConfig struct {
	URI      string
	Database string
}

type ClickHouseConfig struct {
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Addr returns host:port of the native protocol endpoint.
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	// OpTimeout bounds every cache read and write.
	OpTimeout time.Duration
	PoolSize  int
}

// CacheConfig configures the dashboard cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// GeoConfig configures GeoIP enrichment of actions.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
	CacheSize    int
	CacheTTL     time.Duration
}

// TimeBand is a named, inclusive range of hours of the day.
type TimeBand struct {
	Label string
	From  int
	To    int
}

// Contains reports whether hour falls inside the band.
func (b TimeBand) Contains(hour int) bool {
	return hour >= b.From && hour <= b.To
}

// AnalyticsConfig holds the tunables of the aggregation core.
type AnalyticsConfig struct {
	// TimeBands in presentation order.
	TimeBands []TimeBand
	// MinVerbPercentage drops verbs below this share into the "Other" slice.
	MinVerbPercentage float64
	OtherLabel        string
	// AccessedVerb is the verb that denotes a view of an item.
	AccessedVerb string
	TopItems     int
	// ReservedUserID is the auto-generated analytics user hidden from rosters.
	ReservedUserID string
}

// DefaultTimeBands are the six four-hour bands of a day.
func DefaultTimeBands() []TimeBand {
	return []TimeBand{
		{Label: "late night", From: 0, To: 3},
		{Label: "early morning", From: 4, To: 7},
		{Label: "morning", From: 8, To: 11},
		{Label: "afternoon", From: 12, To: 15},
		{Label: "evening", From: 16, To: 19},
		{Label: "night", From: 20, To: 23},
	}
}

// DefaultAnalytics returns the analytics settings used when nothing is configured.
func DefaultAnalytics() AnalyticsConfig {
	return AnalyticsConfig{
		TimeBands:         DefaultTimeBands(),
		MinVerbPercentage: 3,
		OtherLabel:        "Other",
		AccessedVerb:      "accessed",
		TopItems:          10,
	}
}

// LoadFile loads variables from a .env file (if present) and then calls Load.
// Variables already set in the environment win over the file.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return Load()
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	bands, err := getBandsEnv("SPACE_ANALYTICS_TIME_BANDS", DefaultTimeBands())
	if err != nil {
		return nil, err
	}

	defaults := DefaultAnalytics()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("SPACE_ANALYTICS_HTTP_ADDR", ":8080"),
			Env:             getEnv("SPACE_ANALYTICS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("SPACE_ANALYTICS_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend:        getEnv("SPACE_ANALYTICS_STORAGE", BackendMemory),
			ActionsBackend: getEnv("SPACE_ANALYTICS_ACTIONS_STORAGE", ""),
			SeedFile:       getEnv("SPACE_ANALYTICS_SEED_FILE", ""),
		},
		Database: DatabaseConfig{
			Host:         getEnv("SPACE_ANALYTICS_DB_HOST", "localhost"),
			Port:         getIntEnv("SPACE_ANALYTICS_DB_PORT", 5432),
			User:         getEnv("SPACE_ANALYTICS_DB_USER", "analytics"),
			Password:     getEnv("SPACE_ANALYTICS_DB_PASSWORD", "analytics_secret"),
			DBName:       getEnv("SPACE_ANALYTICS_DB_NAME", "analytics"),
			SSLMode:      getEnv("SPACE_ANALYTICS_DB_SSLMODE", "disable"),
			MaxConns:     getIntEnv("SPACE_ANALYTICS_DB_MAX_CONNS", 10),
			MinConns:     getIntEnv("SPACE_ANALYTICS_DB_MIN_CONNS", 2),
			QueryTimeout: getDurationEnv("SPACE_ANALYTICS_DB_QUERY_TIMEOUT", 10*time.Second),
		},
		Mongo: MongoConfig{
			URI:      getEnv("SPACE_ANALYTICS_MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("SPACE_ANALYTICS_MONGO_DB", "analytics"),
		},
		ClickHouse: ClickHouseConfig{
			Host:        getEnv("SPACE_ANALYTICS_CLICKHOUSE_HOST", "localhost"),
			Port:        getIntEnv("SPACE_ANALYTICS_CLICKHOUSE_PORT", 9000),
			Database:    getEnv("SPACE_ANALYTICS_CLICKHOUSE_DB", "analytics"),
			Username:    getEnv("SPACE_ANALYTICS_CLICKHOUSE_USER", "default"),
			Password:    getEnv("SPACE_ANALYTICS_CLICKHOUSE_PASSWORD", ""),
			DialTimeout: getDurationEnv("SPACE_ANALYTICS_CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:      getEnv("SPACE_ANALYTICS_REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("SPACE_ANALYTICS_REDIS_PASSWORD", ""),
			DB:        getIntEnv("SPACE_ANALYTICS_REDIS_DB", 0),
			OpTimeout: getDurationEnv("SPACE_ANALYTICS_REDIS_TIMEOUT", 500*time.Millisecond),
			PoolSize:  getIntEnv("SPACE_ANALYTICS_REDIS_POOL_SIZE", 10),

		},
		Cache: CacheConfig{
			Enabled: getBoolEnv("SPACE_ANALYTICS_CACHE_ENABLED", false),
			TTL:     getDurationEnv("SPACE_ANALYTICS_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("SPACE_ANALYTICS_AUTH_ENABLED", false),
			MasterKey: getEnv("SPACE_ANALYTICS_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("SPACE_ANALYTICS_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("SPACE_ANALYTICS_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("SPACE_ANALYTICS_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("SPACE_ANALYTICS_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("SPACE_ANALYTICS_LOG_LEVEL", "info"),
			Format: getEnv("SPACE_ANALYTICS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("SPACE_ANALYTICS_METRICS_ENABLED", true),
			Path:      getEnv("SPACE_ANALYTICS_METRICS_PATH", "/metrics"),
			Namespace: getEnv("SPACE_ANALYTICS_METRICS_NAMESPACE", "space_analytics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("SPACE_ANALYTICS_GEO_ENABLED", false),
			DatabasePath: getEnv("SPACE_ANALYTICS_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
			CacheSize:    getIntEnv("SPACE_ANALYTICS_GEO_CACHE_SIZE", 10000),
			CacheTTL:     getDurationEnv("SPACE_ANALYTICS_GEO_CACHE_TTL", 1*time.Hour),
		},
		Analytics: AnalyticsConfig{
			TimeBands:         bands,
			MinVerbPercentage: getFloatEnv("SPACE_ANALYTICS_MIN_VERB_PERCENTAGE", defaults.MinVerbPercentage),
			OtherLabel:        getEnv("SPACE_ANALYTICS_OTHER_LABEL", defaults.OtherLabel),
			AccessedVerb:      getEnv("SPACE_ANALYTICS_ACCESSED_VERB", defaults.AccessedVerb),
			TopItems:          getIntEnv("SPACE_ANALYTICS_TOP_ITEMS", defaults.TopItems),
			ReservedUserID:    getEnv("SPACE_ANALYTICS_RESERVED_USER_ID", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("SPACE_ANALYTICS_API_KEY_MASTER is required when auth is enabled")
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Storage.ActionSource() {
	case BackendMemory, BackendPostgres, BackendMongo, BackendClickHouse:
	default:
		return fmt.Errorf("unknown actions storage backend %q", c.Storage.ActionSource())
	}
	return c.Analytics.Validate()
}

// Validate checks the analytics tunables.
func (a AnalyticsConfig) Validate() error {
	if len(a.TimeBands) == 0 {
		return fmt.Errorf("at least one time band is required")
	}
	for _, b := range a.TimeBands {
		if b.Label == "" {
			return fmt.Errorf("time band %d-%d has no label", b.From, b.To)
		}
		if b.From < 0 || b.To > 23 || b.From > b.To {
			return fmt.Errorf("time band %q has invalid range %d-%d", b.Label, b.From, b.To)
		}
	}

	sorted := make([]TimeBand, len(a.TimeBands))
	copy(sorted, a.TimeBands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].From <= sorted[i-1].To {
			return fmt.Errorf("time bands %q and %q overlap", sorted[i-1].Label, sorted[i].Label)
		}
	}

	if a.MinVerbPercentage < 0 || a.MinVerbPercentage > 100 {
		return fmt.Errorf("min verb percentage must be within 0-100, got %v", a.MinVerbPercentage)
	}
	if a.TopItems < 0 {
		return fmt.Errorf("top items must not be negative, got %d", a.TopItems)
	}
	if a.AccessedVerb == "" {
		return fmt.Errorf("accessed verb is required")
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

// getBandsEnv parses "label:from-to" entries, e.g. "morning:8-11,afternoon:12-15".
func getBandsEnv(key string, def []TimeBand) ([]TimeBand, error) {
	entries := getSliceEnv(key, nil)
	if entries == nil {
		return def, nil
	}
	bands := make([]TimeBand, 0, len(entries))
	for _, e := range entries {
		band, err := ParseTimeBand(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		bands = append(bands, band)
	}
	return bands, nil
}

// ParseTimeBand parses a single "label:from-to" entry.
func ParseTimeBand(s string) (TimeBand, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 {
		return TimeBand{}, fmt.Errorf("invalid time band %q", s)
	}
	label := strings.TrimSpace(s[:idx])
	from, to, ok := strings.Cut(s[idx+1:], "-")
	if !ok {
		return TimeBand{}, fmt.Errorf("invalid time band range %q", s)
	}
	f, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return TimeBand{}, fmt.Errorf("invalid time band start %q: %w", s, err)
	}
	t, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return TimeBand{}, fmt.Errorf("invalid time band end %q: %w", s, err)
	}
	return TimeBand{Label: label, From: f, To: t}, nil
}

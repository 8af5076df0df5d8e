package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analytics service.
// Every Record method is safe to call on a nil *Metrics.
type Metrics struct {
	// Aggregation metrics
	ActionsProcessed    *prometheus.CounterVec
	ActionsSkipped      *prometheus.CounterVec
	AggregationDuration *prometheus.HistogramVec
	DashboardsBuilt     *prometheus.CounterVec

	// Cache metrics
	CacheRequests *prometheus.CounterVec

	// Storage metrics
	StoreLatency *prometheus.HistogramVec

	// Geo metrics
	GeoLookupLatency *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates all collectors and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActionsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_processed_total",
				Help:      "Actions fed into each aggregation component",
			},
			[]string{"component"},
		),
		ActionsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_skipped_total",
				Help:      "Actions left out of an aggregation because of malformed fields",
			},
			[]string{"component", "reason"},
		),
		AggregationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregation_duration_seconds",
				Help:      "Time spent in each aggregation component",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"component"},
		),
		DashboardsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboards_built_total",
				Help:      "Dashboards computed, by view mode and whether a user selection applied",
			},
			[]string{"view", "filtered"},
		),
		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_cache_total",
				Help:      "Dashboard cache lookups by result",
			},
			[]string{"result"}, // hit, miss, error
		),
		StoreLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Batch store read latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"store", "operation"},
		),
		GeoLookupLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geo_lookup_latency_seconds",
				Help:      "GeoIP lookup latency",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01},
			},
			[]string{"cache_hit"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"path", "status"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler for gatherer g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordAggregation records one run of an aggregation component.
func (m *Metrics) RecordAggregation(component string, actions int, d time.Duration) {
	if m == nil {
		return
	}
	m.ActionsProcessed.WithLabelValues(component).Add(float64(actions))
	m.AggregationDuration.WithLabelValues(component).Observe(d.Seconds())
}

// RecordSkipped records actions skipped by a component.
func (m *Metrics) RecordSkipped(component, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ActionsSkipped.WithLabelValues(component, reason).Add(float64(n))
}

// RecordDashboard records a computed dashboard.
func (m *Metrics) RecordDashboard(view string, filtered bool) {
	if m == nil {
		return
	}
	m.DashboardsBuilt.WithLabelValues(view, strconv.FormatBool(filtered)).Inc()
}

// RecordCache records a cache lookup result.
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// RecordStoreRead records the latency of a store read.
func (m *Metrics) RecordStoreRead(store, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreLatency.WithLabelValues(store, operation).Observe(d.Seconds())
}

// RecordGeoLookup records a geo lookup.
func (m *Metrics) RecordGeoLookup(cacheHit bool, latency time.Duration) {
	if m == nil {
		return
	}
	m.GeoLookupLatency.WithLabelValues(strconv.FormatBool(cacheHit)).Observe(latency.Seconds())
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}

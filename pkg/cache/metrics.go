package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup statuses.
const (
	lookupHit   = "hit"
	lookupMiss  = "miss"
	lookupStale = "stale"
)

// Eviction reasons.
const (
	evictCapacity    = "capacity"
	evictExpired     = "expired"
	evictDeleted     = "deleted"
	evictInvalidated = "invalidated"
	evictCleared     = "cleared"
)

// Producer call kinds.
const (
	produceCold    = "cold"    // The key was never produced by this store.
	produceRefetch = "refetch" // The key was produced before (most likely) and expired or got evicted since.
)

// Persistence operations.
const (
	persistLoad   = "load"
	persistSave   = "save"
	persistRemove = "remove"
)

var (
	lookupsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fig_cache_lookups_total",
		Help: "The total number of cache lookups by result.",
	}, []string{"cache", "status"})
	evictionsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fig_cache_evictions_total",
		Help: "The total number of entries removed from caches by reason.",
	}, []string{"cache", "reason"})
	entriesMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fig_cache_entries",
		Help: "The current number of entries held by a cache, fresh or stale.",
	}, []string{"cache"})
	producerCallsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fig_producer_calls_total",
		Help: "The total number of producer invocations on cache misses. Kind is approximate: a bloom filter sized for 10x the max size tells cold keys from refetched ones, it saturates past that many distinct keys and resets on clear.",
	}, []string{"cache", "kind"})
	producerErrorsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fig_producer_errors_total",
		Help: "The total number of failed producer invocations.",
	}, []string{"cache"})
	persistFailuresMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fig_persist_failures_total",
		Help: "The total number of failed durable slot operations.",
	}, []string{"cache", "op"})
)

// storeMetrics binds the metric vectors to a single store name.
type storeMetrics struct {
	name    string
	entries prometheus.Gauge
}

func newStoreMetrics(name string) *storeMetrics {
	return &storeMetrics{name: name, entries: entriesMetric.WithLabelValues(name)}
}

func (m *storeMetrics) lookup(status string) {
	lookupsMetric.WithLabelValues(m.name, status).Inc()
}

func (m *storeMetrics) evicted(reason string, count int) {
	if count > 0 {
		evictionsMetric.WithLabelValues(m.name, reason).Add(float64(count))
	}
}

func (m *storeMetrics) produced(kind string) {
	producerCallsMetric.WithLabelValues(m.name, kind).Inc()
}

func (m *storeMetrics) producerFailed() {
	producerErrorsMetric.WithLabelValues(m.name).Inc()
}

func (m *storeMetrics) persistFailed(op string) {
	persistFailuresMetric.WithLabelValues(m.name, op).Inc()
}

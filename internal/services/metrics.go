package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the custom Prometheus metrics for the context service.
// All record methods are nil-safe so services can run without metrics
// (tests, embedded use).
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSweeps    prometheus.Counter

	MessagesIngested  *prometheus.CounterVec
	PersistenceErrors prometheus.Counter

	EnrichmentRequests        prometheus.Counter
	EnrichmentLatency         prometheus.Histogram
	EnrichmentSectionFailures *prometheus.CounterVec
}

// InitMetrics initializes the Prometheus metrics. Call once at startup.
func InitMetrics() *Metrics {
	metrics := &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "atendai_context_cache_hits_total",
			Help: "Total number of context cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "atendai_context_cache_misses_total",
			Help: "Total number of context cache misses (hydrations)",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "atendai_context_cache_evictions_total",
			Help: "Total number of LRU evictions",
		}),
		CacheSweeps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "atendai_context_cache_swept_total",
			Help: "Total number of contexts removed by the TTL sweep",
		}),

		MessagesIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "atendai_messages_ingested_total",
			Help: "Total number of messages ingested by role",
		}, []string{"role"}),
		PersistenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "atendai_persistence_errors_total",
			Help: "Total number of failed durable write-throughs",
		}),

		EnrichmentRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "atendai_enrichment_requests_total",
			Help: "Total number of context enrichment requests",
		}),
		EnrichmentLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "atendai_enrichment_duration_seconds",
			Help:    "Context enrichment latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		EnrichmentSectionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "atendai_enrichment_section_failures_total",
			Help: "Total number of degraded enrichment sections by section",
		}, []string{"section"}),
	}

	return metrics
}

// ObserveCache registers a live gauge reporting the cache size
func (m *Metrics) ObserveCache(cache *ContextCacheService) {
	if m == nil || cache == nil {
		return
	}
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "atendai_context_cache_size",
			Help: "Current number of cached conversation contexts",
		},
		func() float64 {
			return float64(cache.Size())
		},
	))
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// RecordCacheEviction records an LRU eviction
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

// RecordCacheSweep records contexts removed by a TTL sweep pass
func (m *Metrics) RecordCacheSweep(count int) {
	if m == nil {
		return
	}
	m.CacheSweeps.Add(float64(count))
}

// RecordMessageIngested records a message ingestion by role
func (m *Metrics) RecordMessageIngested(role string) {
	if m == nil {
		return
	}
	m.MessagesIngested.WithLabelValues(role).Inc()
}

// RecordPersistenceError records a failed durable write-through
func (m *Metrics) RecordPersistenceError() {
	if m == nil {
		return
	}
	m.PersistenceErrors.Inc()
}

// RecordEnrichment records an enrichment request and its latency
func (m *Metrics) RecordEnrichment(seconds float64) {
	if m == nil {
		return
	}
	m.EnrichmentRequests.Inc()
	m.EnrichmentLatency.Observe(seconds)
}

// RecordEnrichmentSectionFailure records a degraded enrichment section
func (m *Metrics) RecordEnrichmentSectionFailure(section string) {
	if m == nil {
		return
	}
	m.EnrichmentSectionFailures.WithLabelValues(section).Inc()
}

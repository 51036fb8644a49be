package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "tourops"

// MetricsService owns the Prometheus registry and the collectors fed by the
// HTTP middleware and the cache layer.
type MetricsService struct {
	handler http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheLookup  prometheus.Histogram
	cacheWrite   prometheus.Histogram
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter

	hitCount  atomic.Uint64
	missCount atomic.Uint64
}

// NewMetricsService builds a private registry so tests can run several
// instances without collector name collisions.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &MetricsService{
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "path", "status"}),
		cacheLookup: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_lookup_seconds",
			Help:      "Redis lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrite: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cache_write_seconds",
			Help:      "Redis write latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups answered from Redis.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that fell through to Postgres.",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Live goroutine count.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Cache hits over total lookups since start.",
	}, m.hitRatio)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, path, code).Inc()
}

// RecordCacheOperation records one cache lookup and whether it hit.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLookup.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		m.hitCount.Add(1)
	} else {
		m.cacheMisses.Inc()
		m.missCount.Add(1)
	}
}

// ObserveCacheWrite records the latency of one cache set.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

func (m *MetricsService) hitRatio() float64 {
	hits := m.hitCount.Load()
	total := hits + m.missCount.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

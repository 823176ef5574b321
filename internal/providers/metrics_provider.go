package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"threadmark/internal/structures"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(operation string, duration time.Duration)
	IncCheckpointActions(outcome string)
	IncFlushes(reason string)
	SetOpenSessions(count int)
	SetThreads(count int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration *prometheus.HistogramVec
	checkpointActions   *prometheus.CounterVec
	flushes             *prometheus.CounterVec
	openSessions        prometheus.Gauge
	threads             prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(operation string, duration time.Duration) {
	m.persistenceDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCheckpointActions(outcome string) {
	m.checkpointActions.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) IncFlushes(reason string) {
	m.flushes.WithLabelValues(reason).Inc()
}

func (m *MetricsProvider) SetOpenSessions(count int) {
	m.openSessions.Set(float64(count))
}

func (m *MetricsProvider) SetThreads(count int) {
	m.threads.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "threadmark_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadmark_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threadmark_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "threadmark_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadmark_persistence_duration_seconds",
			Help:    "Duration of key-value store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		checkpointActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "threadmark_checkpoint_actions_total",
			Help: "Checkpoint advancer invocations by outcome",
		}, []string{"outcome"}),

		flushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "threadmark_flushes_total",
			Help: "Read-marker flushes by reason",
		}, []string{"reason"}),

		openSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "threadmark_open_sessions",
			Help: "Number of open read-tracking sessions",
		}),

		threads: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "threadmark_threads_total",
			Help: "Number of saved threads",
		}),
	}

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                     {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration)     {}
func (n *noopMetrics) IncCacheHits()                                        {}
func (n *noopMetrics) IncCacheMisses()                                      {}
func (n *noopMetrics) ObservePersistenceDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCheckpointActions(_ string)                        {}
func (n *noopMetrics) IncFlushes(_ string)                                  {}
func (n *noopMetrics) SetOpenSessions(_ int)                                {}
func (n *noopMetrics) SetThreads(_ int)                                     {}

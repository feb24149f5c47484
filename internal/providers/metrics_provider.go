package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"tgmed/internal/structures"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint, method string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObserveStoreDuration(op string, duration time.Duration)
	IncWebhookDeliveries(kind, status string)
	IncAuthFailures(reason string)
}

type MetricsProvider struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	storeDuration     *prometheus.HistogramVec
	webhookDeliveries *prometheus.CounterVec
	authFailures      *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint, method string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, method, httpStatusBucket(status)).Inc()
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

func (m *MetricsProvider) ObserveStoreDuration(op string, duration time.Duration) {
	m.storeDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncWebhookDeliveries(kind, status string) {
	m.webhookDeliveries.WithLabelValues(kind, status).Inc()
}

func (m *MetricsProvider) IncAuthFailures(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
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

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgmed_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "method", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgmed_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgmed_cache_hits_total",
			Help: "Total number of record cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgmed_cache_misses_total",
			Help: "Total number of record cache misses",
		}),

		storeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgmed_store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		webhookDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgmed_webhook_deliveries_total",
			Help: "Outbound webhook deliveries by kind and outcome",
		}, []string{"kind", "status"}),

		authFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgmed_auth_failures_total",
			Help: "Rejected requests by authentication failure reason",
		}, []string{"reason"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_, _ string, _ int)              {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObserveStoreDuration(_ string, _ time.Duration)   {}
func (n *noopMetrics) IncWebhookDeliveries(_, _ string)                 {}
func (n *noopMetrics) IncAuthFailures(_ string)                         {}

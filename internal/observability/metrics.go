// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Conversion metrics
	ConversionsTotal  *prometheus.CounterVec
	ConversionErrors  *prometheus.CounterVec
	ConversionLatency prometheus.Histogram

	// Rate cache metrics
	RateRefreshesTotal *prometheus.CounterVec
	RateCacheAge       prometheus.Gauge

	// Token price store metrics
	PriceRefreshesTotal *prometheus.CounterVec
	PricesUpdated       prometheus.Counter
	TokensDiscovered    prometheus.Counter
	CatalogSize         prometheus.Gauge
	PersistenceErrors   prometheus.Counter

	// Upstream metrics
	UpstreamLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Stream metrics
	StreamClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_converter"
	}

	return &Metrics{
		ConversionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "conversions_total",
			Help:      "Total number of conversions by pair category",
		}, []string{"category"}),
		ConversionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "conversion_errors_total",
			Help:      "Total number of failed conversions by reason",
		}, []string{"reason"}),
		ConversionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "convert",
			Name:      "conversion_latency_seconds",
			Help:      "Conversion request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		RateRefreshesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "refreshes_total",
			Help:      "Total number of fiat rate refresh attempts by status",
		}, []string{"status"}),
		RateCacheAge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rates",
			Name:      "cache_age_seconds",
			Help:      "Seconds since the last successful fiat rate refresh",
		}),

		PriceRefreshesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "price_refreshes_total",
			Help:      "Total number of token price refresh runs by status",
		}, []string{"status"}),
		PricesUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "prices_updated_total",
			Help:      "Total number of per-symbol price updates applied",
		}),
		TokensDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "tokens_discovered_total",
			Help:      "Total number of tokens accumulated during discovery",
		}),
		CatalogSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "size",
			Help:      "Current number of tokens in the catalog",
		}),
		PersistenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "persistence_errors_total",
			Help:      "Total number of failed catalog/price file writes",
		}),

		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Upstream API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Number of connected websocket price stream clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordConversion increments the conversion counter for a pair category.
func RecordConversion(category string) {
	DefaultMetrics.ConversionsTotal.WithLabelValues(category).Inc()
}

// RecordConversionError increments the conversion error counter.
func RecordConversionError(reason string) {
	DefaultMetrics.ConversionErrors.WithLabelValues(reason).Inc()
}

// RecordRateRefresh records a fiat rate refresh attempt.
func RecordRateRefresh(status string) {
	DefaultMetrics.RateRefreshesTotal.WithLabelValues(status).Inc()
}

// UpdateRateCacheAge sets the seconds since the last successful rate refresh.
func UpdateRateCacheAge(seconds float64) {
	DefaultMetrics.RateCacheAge.Set(seconds)
}

// RecordPriceRefresh records a token price refresh run.
func RecordPriceRefresh(status string) {
	DefaultMetrics.PriceRefreshesTotal.WithLabelValues(status).Inc()
}

// RecordPricesUpdated adds n applied per-symbol price updates.
func RecordPricesUpdated(n int) {
	DefaultMetrics.PricesUpdated.Add(float64(n))
}

// RecordTokensDiscovered adds n discovered tokens.
func RecordTokensDiscovered(n int) {
	DefaultMetrics.TokensDiscovered.Add(float64(n))
}

// UpdateCatalogSize updates the catalog size gauge.
func UpdateCatalogSize(n int) {
	DefaultMetrics.CatalogSize.Set(float64(n))
}

// RecordPersistenceError increments the persistence error counter.
func RecordPersistenceError() {
	DefaultMetrics.PersistenceErrors.Inc()
}

// RecordUpstreamLatency records upstream API call latency.
func RecordUpstreamLatency(endpoint string, seconds float64) {
	DefaultMetrics.UpstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateStreamClients updates the websocket client gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

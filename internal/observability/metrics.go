// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into the canvas service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each collector
// has its own registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Canvas metrics
	Mappings        *prometheus.CounterVec
	PositionsSaved  *prometheus.CounterVec
	BatchSkipped    prometheus.Counter
	EventsPublished *prometheus.CounterVec
	Pruned          prometheus.Counter
	Connections     *prometheus.GaugeVec

	// Store metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Mappings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mappings_total",
			Help:      "Mapping requests by transition and outcome",
		}, []string{"transition", "result"}),
		PositionsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "positions_saved_total",
			Help:      "Positions written, by mode and kind",
		}, []string{"mode", "kind"}),
		BatchSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_entries_skipped_total",
			Help:      "Batch position entries that were skipped",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Change events fanned out, by type",
		}, []string{"type"}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_pruned_total",
			Help:      "Push connections dropped after a failed send",
		}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_connections",
			Help:      "Open push connections by transport",
		}, []string{"transport"}),
		DBOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Total number of store operations",
		}, []string{"operation", "status"}),
		DBDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mappings,
		c.PositionsSaved,
		c.BatchSkipped,
		c.EventsPublished,
		c.Pruned,
		c.Connections,
		c.DBOperations,
		c.DBDuration,
		c.CacheHits,
		c.CacheMisses,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// The methods below are nil-safe so callers can run without metrics.

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) ObserveMapping(transition, result string) {
	if c == nil {
		return
	}
	c.Mappings.WithLabelValues(transition, result).Inc()
}

func (c *Collector) ObservePosition(mode, kind string) {
	if c == nil {
		return
	}
	c.PositionsSaved.WithLabelValues(mode, kind).Inc()
}

func (c *Collector) ObserveBatchSkipped(n int) {
	if c == nil || n == 0 {
		return
	}
	c.BatchSkipped.Add(float64(n))
}

func (c *Collector) ObserveEvent(eventType string) {
	if c == nil {
		return
	}
	c.EventsPublished.WithLabelValues(eventType).Inc()
}

func (c *Collector) ObservePruned(n int) {
	if c == nil || n == 0 {
		return
	}
	c.Pruned.Add(float64(n))
}

func (c *Collector) ConnectionOpened(transport string) {
	if c == nil {
		return
	}
	c.Connections.WithLabelValues(transport).Inc()
}

func (c *Collector) ConnectionClosed(transport string) {
	if c == nil {
		return
	}
	c.Connections.WithLabelValues(transport).Dec()
}

func (c *Collector) ObserveDB(operation string, err error, d time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.DBOperations.WithLabelValues(operation, status).Inc()
	c.DBDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) ObserveCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

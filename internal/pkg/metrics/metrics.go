package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "groupmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "groupmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Map metrics
	GeolocateLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "geo",
		Name:      "lookups_total",
		Help:      "Location lookups by source and result",
	}, []string{"source", "result"})

	NearbyQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "geo",
		Name:      "nearby_queries_total",
		Help:      "Nearby queries by listing kind",
	}, []string{"kind"})

	FilterApplications = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "map",
		Name:      "filter_applications_total",
		Help:      "Total filter set applications across map sessions",
	})

	ZoomSteps = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "map",
		Name:      "zoom_steps_total",
		Help:      "Total smooth zoom levels stepped",
	})

	MarkersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "map",
		Name:      "markers_placed_total",
		Help:      "Total markers created by involvement type",
	}, []string{"inv_type"})

	ActiveMapSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groupmap",
		Subsystem: "ws",
		Name:      "active_map_sessions",
		Help:      "Current number of connected map sessions",
	})

	ItemsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "sync",
		Name:      "items_total",
		Help:      "Total item records loaded by involvement type",
	}, []string{"inv_type"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupmap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groupmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groupmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groupmap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat reported as gauges.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool stats into the gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}

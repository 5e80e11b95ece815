package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// CacheLookups counts content cache decisions; result is hit, miss, shared or bypass.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_lookups_total",
			Help: "Content cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_evictions_total",
			Help: "Entries removed by the idle eviction job",
		},
		[]string{"cache"},
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_generation_duration_seconds",
			Help:    "Latency of generation collaborator calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind", "status"},
	)

	TranscriptionJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_jobs_total",
			Help: "Transcription jobs by terminal status",
		},
		[]string{"status"},
	)

	TranscriptionQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcription_queue_depth",
			Help: "Jobs waiting for a free worker slot",
		},
	)

	TranscriptionBusyWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcription_busy_workers",
			Help: "Worker slots currently running a recognizer process",
		},
	)

	GatewayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections",
			Help: "Open realtime tutoring connections",
		},
	)

	// GatewayEvents counts realtime frames; direction is in or out.
	GatewayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_total",
			Help: "Realtime events by name and direction",
		},
		[]string{"event", "direction"},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Repeated calls are no-ops.
func Init() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		CacheLookups,
		CacheEvictions,
		GenerationDuration,
		TranscriptionJobs,
		TranscriptionQueueDepth,
		TranscriptionBusyWorkers,
		GatewayConnections,
		GatewayEvents,
	)
}

// MetricsMiddleware records count and latency per matched route. Unmatched
// paths share one label so scanners cannot blow up cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

package monitor

import (
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

const namespace = "video_parser"

// Metrics represents all the application metrics
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration *prometheus.HistogramVec
	APIFallbacks       *prometheus.CounterVec

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Credential state
	CredentialUpdates prometheus.Counter

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Total number of finished resolutions by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		ResolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Time spent resolving share links",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"mode"},
		),

		APIFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_fallbacks_total",
				Help:      "Signed API attempts that fell back to the share page",
			},
			[]string{"reason"},
		),

		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total requests to the platform",
			},
			[]string{"endpoint"},
		),

		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total network errors talking to the platform",
			},
			[]string{"endpoint"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),

		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time spent serving HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		CredentialUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_updates_total",
			Help:      "Accepted credential updates",
		}),

		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of goroutines",
		}),

		MemoryUsage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_usage_bytes",
			Help:      "Memory usage in bytes",
		}),
	}
}

// Monitor represents the monitoring system. It implements models.ResolutionObserver.
type Monitor struct {
	registry *prometheus.Registry
	metrics  *Metrics
	logger   zerolog.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a new monitor with its own registry
func NewMonitor() *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Monitor{
		registry: reg,
		metrics:  NewMetrics(reg),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Str("component", "monitor").Logger(),
		interval: 10 * time.Second,
		stopChan: make(chan struct{}),
	}
}

// Start starts the monitoring system
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the monitoring system
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()

	m.logger.Info().Msg("Monitoring system stopped")
}

// collectSystemMetrics collects system metrics periodically
func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.metrics.MemoryUsage.Set(float64(memStats.Alloc))

		case <-m.stopChan:
			return
		}
	}
}

// ObserveUpstream records one platform request
func (m *Monitor) ObserveUpstream(endpoint string, err error) {
	m.metrics.UpstreamRequests.WithLabelValues(endpoint).Inc()
	if err != nil {
		m.metrics.UpstreamErrors.WithLabelValues(endpoint).Inc()
	}
}

// ObserveFallback records a signed API attempt that fell back
func (m *Monitor) ObserveFallback(reason string) {
	m.metrics.APIFallbacks.WithLabelValues(reason).Inc()
}

// ObserveResolution records a finished resolution. Failures before a mode was
// chosen are reported under mode "none".
func (m *Monitor) ObserveResolution(mode string, err error, duration time.Duration) {
	if mode == "" {
		mode = "none"
	}
	outcome := "success"
	if err != nil {
		outcome = models.ErrorKind(err)
	}

	m.metrics.ResolutionsTotal.WithLabelValues(mode, outcome).Inc()
	if duration > 0 {
		m.metrics.ResolutionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	}
}

// RecordCredentialUpdate records an accepted credential update
func (m *Monitor) RecordCredentialUpdate() {
	m.metrics.CredentialUpdates.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Monitor) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.metrics.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// Registry returns the registry the metrics are registered with
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetLogger sets the logger
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// HealthCheck reports runtime statistics
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}

// Middleware records HTTP metrics for gin routes
func (m *Monitor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

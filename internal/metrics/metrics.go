// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedhub",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "feedhub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	postMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Subsystem: "feed",
			Name:      "post_mutations_total",
			Help:      "Post mutations by action and outcome.",
		},
		[]string{"action", "result"},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Subsystem: "realtime",
			Name:      "broadcasts_total",
			Help:      "Post events handed to the websocket hub.",
		},
		[]string{"action", "result"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedhub",
			Subsystem: "realtime",
			Name:      "connected_clients",
			Help:      "Currently connected websocket clients.",
		},
	)

	imagesSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Subsystem: "images",
			Name:      "orphans_removed_total",
			Help:      "Unreferenced image files removed by the janitor.",
		},
	)

	hostCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedhub",
			Subsystem: "host",
			Name:      "cpu_percent",
			Help:      "Host CPU utilisation sampled by the stat updater.",
		},
	)

	hostMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedhub",
			Subsystem: "host",
			Name:      "memory_used_percent",
			Help:      "Host memory utilisation sampled by the stat updater.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight, httpRequests, httpDuration,
		postMutations, broadcasts, wsClients, imagesSwept,
		hostCPU, hostMemory,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordMutation counts a post mutation outcome.
func RecordMutation(action string, err error) {
	postMutations.WithLabelValues(action, result(err)).Inc()
}

// RecordBroadcast counts a publish attempt.
func RecordBroadcast(action string, err error) {
	broadcasts.WithLabelValues(action, result(err)).Inc()
}

// SetConnectedClients updates the websocket client gauge.
func SetConnectedClients(n int) {
	wsClients.Set(float64(n))
}

// AddImagesSwept counts removed orphan images.
func AddImagesSwept(n int) {
	imagesSwept.Add(float64(n))
}

// SetHostStats records sampled host utilisation.
func SetHostStats(cpuPercent, memPercent float64) {
	hostCPU.Set(cpuPercent)
	hostMemory.Set(memPercent)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

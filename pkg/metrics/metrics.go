package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vantutran2k1/rsql/pkg/logger"
)

var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rsql_http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "code"},
)

var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rsql_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latencies",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"service", "method", "code"},
)

var CacheRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rsql_cache_requests_total",
		Help: "Total number of cache requests",
	},
	[]string{"service", "outcome"},
)

var CompileTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rsql_compile_total",
		Help: "Total number of filter compilations by target and outcome",
	},
	[]string{"target", "outcome"},
)

var CompileDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rsql_compile_duration_seconds",
		Help:    "Histogram of filter compilation latencies",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	},
	[]string{"target"},
)

var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rsql_audit_events_total",
		Help: "Total number of audit events by stage and outcome",
	},
	[]string{"stage", "outcome"},
)

var SavedFiltersBroken = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "rsql_saved_filters_broken",
		Help: "Number of saved filters that failed to compile on the last warm cycle",
	},
)

// Middleware records request count and latency for service.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				code := strconv.Itoa(ww.Status())
				HTTPRequestDuration.WithLabelValues(service, r.Method, code).Observe(time.Since(start).Seconds())
				HTTPRequestsTotal.WithLabelValues(service, r.Method, code).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func StartMetricsServer(addr string) {
	logger.Info("starting metrics server", "addr", addr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}

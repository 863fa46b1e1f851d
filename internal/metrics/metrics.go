package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MetricsCollector holds all Prometheus metrics for the token server
type MetricsCollector struct {
	registry *prometheus.Registry
	logger   *logrus.Logger

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// OAuth2 operation metrics
	authRequestsTotal   *prometheus.CounterVec
	tokenRequestsTotal  *prometheus.CounterVec
	revokeRequestsTotal *prometheus.CounterVec

	// Token metrics
	tokensIssuedTotal *prometheus.CounterVec

	// Error metrics
	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector backed by its own registry
func NewMetricsCollector(logger *logrus.Logger) *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &MetricsCollector{
		registry: registry,
		logger:   logger,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth2_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_auth_requests_total",
				Help: "Total number of authorization requests",
			},
			[]string{"response_type", "status"},
		),

		tokenRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_token_requests_total",
				Help: "Total number of token requests",
			},
			[]string{"grant_type", "status"},
		),

		revokeRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_revoke_requests_total",
				Help: "Total number of token revocation requests",
			},
			[]string{"status"},
		),

		tokensIssuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"token_type", "grant_type"},
		),

		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth2_errors_total",
				Help: "Total number of OAuth2 error responses",
			},
			[]string{"error", "endpoint"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the collected metrics in the Prometheus exposition format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (mc *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	mc.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	mc.httpRequestDuration.With(prometheus.Labels{
		"method":   method,
		"endpoint": endpoint,
	}).Observe(duration.Seconds())
}

// RecordAuthRequest records an authorization request
func (mc *MetricsCollector) RecordAuthRequest(responseType, status string) {
	mc.authRequestsTotal.WithLabelValues(responseType, status).Inc()
}

// RecordTokenRequest records a token request
func (mc *MetricsCollector) RecordTokenRequest(grantType, status string) {
	mc.tokenRequestsTotal.WithLabelValues(grantType, status).Inc()
}

// RecordRevokeRequest records a revocation request
func (mc *MetricsCollector) RecordRevokeRequest(status string) {
	mc.revokeRequestsTotal.WithLabelValues(status).Inc()
}

// RecordTokenIssued records when a token is issued
func (mc *MetricsCollector) RecordTokenIssued(tokenType, grantType string) {
	mc.tokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
}

// RecordError records an OAuth2 error response
func (mc *MetricsCollector) RecordError(errorCode, endpoint string) {
	mc.errorsTotal.WithLabelValues(errorCode, endpoint).Inc()
}

// Middleware creates an HTTP middleware for recording metrics. The endpoint label
// is the matched chi route pattern, so it stays bounded.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		mc.RecordHTTPRequest(r.Method, endpointFor(r), rw.statusCode, duration)

		// Log slow requests
		if duration > time.Second {
			mc.logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": duration,
				"status":   rw.statusCode,
			}).Warn("⚠️  Slow request detected")
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func endpointFor(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "other"
}

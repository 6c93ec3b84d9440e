package telemetry

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forms",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forms",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	permissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forms",
		Name:      "permission_decisions_total",
		Help:      "Authorization decisions by action, outcome and reason.",
	}, []string{"action", "outcome", "reason"})
)

func observeHTTP(method, route string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordPermissionDecision counts one evaluator outcome. metrics may be nil.
func RecordPermissionDecision(ctx context.Context, metrics *Metrics, action string, allowed bool, reason string) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	permissionDecisions.WithLabelValues(action, outcome, reason).Inc()

	if metrics != nil && metrics.PermissionDecisions != nil {
		metrics.PermissionDecisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("outcome", outcome),
			attribute.String("reason", reason),
		))
	}
}

// MetricsHandler serves the prometheus registry. With a non-empty token the
// caller must send it as X-Metrics-Token or as a bearer token.
func MetricsHandler(token string) http.Handler {
	next := promhttp.Handler()
	if token == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Metrics-Token")
		if got == "" {
			got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error":{"code":"UNAUTHORIZED","message":"unauthorized"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

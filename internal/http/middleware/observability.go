package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"forms-api/internal/domain"
	"forms-api/internal/http/httperr"
	"forms-api/internal/observability/logger"
	"forms-api/internal/observability/requestid"
	"forms-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RequestIDMiddleware reads or generates request ID and propagates it
// - Reads X-Request-Id header, replacing unusable values
// - Injects into context
// - Writes X-Request-Id header to response
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestid.FromInbound(r.Header.Get(requestid.Header))

		ctx := requestid.SetRequestID(r.Context(), reqID)
		w.Header().Set(requestid.Header, reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestMetaMiddleware attaches client address and user agent for audit entries.
func RequestMetaMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithRequestMeta(r.Context(), service.RequestMeta{
			IPAddress: sanitizeRemoteAddr(r.RemoteAddr),
			UserAgent: sanitizeUserAgent(r.UserAgent()),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLoggingMiddleware logs HTTP requests with mandatory fields
// Logs at request END to include status code and latency
// MUST include: request_id, route, method, status, latency_ms
// MUST NOT include: sensitive headers, request/response bodies
func RequestLoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := logger.SetLoggerInContext(r.Context(), log)
			ctx = logger.InitRootErrorContext(ctx)

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// the inner request carries actor/group ids set further down the chain
			req := r.WithContext(ctx)
			next.ServeHTTP(wrapped, req)

			latencyMs := float64(time.Since(start).Microseconds()) / 1000

			log.Info(
				ctx,
				"http request completed",
				logger.Module("http"),
				logger.Action("request"),
				zap.String("method", r.Method),
				zap.String("route", getRoutePattern(req)),
				zap.String("path", r.URL.Path),
				zap.String("query", sanitizeQuery(r.URL.RawQuery)),
				zap.Int("status", wrapped.statusCode),
				zap.Float64("latency_ms", latencyMs),
				zap.String("remote_addr", sanitizeRemoteAddr(r.RemoteAddr)),
				zap.String("user_agent", sanitizeUserAgent(r.UserAgent())),
			)

			if wrapped.statusCode >= 500 {
				rootErr := logger.GetRootError(ctx)

				fields := []zap.Field{
					logger.Module("http"),
					logger.Action("http_error"),
					zap.Int("status", wrapped.statusCode),
					zap.String("method", r.Method),
					zap.String("route", getRoutePattern(req)),
					zap.String("path", r.URL.Path),
					zap.String("kind", classifyError(rootErr)),
				}

				if rootErr != nil {
					fields = append(fields, zap.String("err", rootErr.Error()))

					var pgErr *pgconn.PgError
					if errors.As(rootErr, &pgErr) {
						fields = append(fields, zap.String("pgcode", pgErr.Code))
					}
				} else {
					fields = append(fields, zap.String("err", "internal server error (unspecified cause)"))
				}

				log.Error(ctx, "http_error", fields...)
			}
		})
	}
}

// RecoveryMiddleware recovers from panics and logs with stack trace
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					ctx := r.Context()

					recoveredErr := fmt.Errorf("panic: %v", rec)
					logger.SetRootError(ctx, recoveredErr)

					log.Error(
						ctx,
						"panic_recovered",
						logger.Module("http"),
						logger.Action("panic_recovery"),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("route", getRoutePattern(r)),
					)

					httperr.InternalError(w, ctx)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// sanitizeQuery truncates long queries to prevent log bloat
func sanitizeQuery(query string) string {
	const maxLen = 200
	if len(query) > maxLen {
		return query[:maxLen] + "..."
	}
	return query
}

// sanitizeRemoteAddr removes port from remote address
// Example: 192.168.1.100:54321 -> 192.168.1.100
func sanitizeRemoteAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// sanitizeUserAgent truncates user agent to prevent log bloat
func sanitizeUserAgent(ua string) string {
	const maxLen = 100
	if len(ua) > maxLen {
		return ua[:maxLen] + "..."
	}
	return ua
}

// getRoutePattern extracts the chi route pattern from request context
func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// classifyError names the category of a 5xx root cause.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		return "db"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "panic") {
		return "panic"
	}
	if strings.Contains(msg, "scan") {
		return "scan"
	}
	return "unknown"
}

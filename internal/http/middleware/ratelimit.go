package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"forms-api/internal/auth"
	"forms-api/internal/http/httperr"
	"forms-api/internal/observability/logger"
	"forms-api/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const rateLimitWindow = time.Minute

// RateLimiter is implemented by ratelimit.RedisRateLimiter.
type RateLimiter interface {
	AllowRequest(ctx context.Context, scope ratelimit.Scope, id string, limit int, window time.Duration) (ratelimit.Result, error)
}

// KeyFunc extracts the bucket id of a request. ok=false skips limiting.
type KeyFunc func(r *http.Request) (string, bool)

// ActorKey buckets by authenticated actor id.
func ActorKey(r *http.Request) (string, bool) {
	authCtx, ok := auth.GetAuthContext(r.Context())
	if !ok || authCtx.ActorID == "" {
		return "", false
	}
	return authCtx.ActorID, true
}

// PublicSlugKey buckets anonymous traffic by form slug and client address.
func PublicSlugKey(r *http.Request) (string, bool) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		return "", false
	}
	return slug + ":" + sanitizeRemoteAddr(r.RemoteAddr), true
}

// RateLimitMiddleware allows limitPerMin requests per bucket per minute.
// A limiter failure lets the request through.
func RateLimitMiddleware(limiter RateLimiter, scope ratelimit.Scope, limitPerMin int, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limitPerMin <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			id, ok := key(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.AllowRequest(ctx, scope, id, limitPerMin, rateLimitWindow)
			if err != nil {
				log.Error(ctx, "rate limit check failed",
					logger.Module("ratelimit"),
					logger.Action("check"),
					zap.String("scope", string(scope)),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				trace.SpanFromContext(ctx).AddEvent("rate_limit_exceeded")

				log.Warn(ctx, "rate limit exceeded",
					logger.Module("ratelimit"),
					logger.Action("check"),
					zap.String("scope", string(scope)),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				httperr.TooManyRequests429(w, ctx, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

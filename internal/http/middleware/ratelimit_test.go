package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"forms-api/internal/http/middleware"
	"forms-api/internal/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*ratelimit.RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisRateLimiter(client, nil), mr
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_PerActor(t *testing.T) {
	limiter, _ := newLimiter(t)
	handler := middleware.RateLimitMiddleware(limiter, ratelimit.ScopeActor, 2, middleware.ActorKey)(okHandler())

	send := func(actor string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/v1/forms", nil), actor))
		return rec
	}

	assert.Equal(t, http.StatusOK, send("u-1").Code)
	rec := send("u-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = send("u-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	// other actors have their own bucket
	assert.Equal(t, http.StatusOK, send("u-2").Code)
}

func TestRateLimitMiddleware_PublicSlug(t *testing.T) {
	limiter, mr := newLimiter(t)

	r := chi.NewRouter()
	r.With(middleware.RateLimitMiddleware(limiter, ratelimit.ScopePublic, 1, middleware.PublicSlugKey)).
		Post("/v1/public/forms/{slug}/submissions", okHandler().ServeHTTP)

	send := func(slug string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/public/forms/"+slug+"/submissions", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("abc"))
	assert.Equal(t, http.StatusTooManyRequests, send("abc"))
	assert.Equal(t, http.StatusOK, send("other"))
	require.True(t, mr.Exists("ratelimit:public:abc:203.0.113.9"))
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	limiter, mr := newLimiter(t)
	mr.Close()

	handler := middleware.RateLimitMiddleware(limiter, ratelimit.ScopeActor, 1, middleware.ActorKey)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/", nil), "u-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := middleware.RateLimitMiddleware(nil, ratelimit.ScopeActor, 10, middleware.ActorKey)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

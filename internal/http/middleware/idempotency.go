package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"forms-api/internal/http/httperr"
	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"

	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
	maxReplayBodyBytes   = 1 << 20
)

// IdempotencyStore is implemented by repo.IdempotencyRepo.
type IdempotencyStore interface {
	CheckKey(ctx context.Context, scope, keyHash string) (*repo.CachedResponse, error)
	StoreResult(ctx context.Context, req repo.StoredRequest) error
}

// PublicSlugScope scopes keys of anonymous submissions to their form and the
// client address. Two respondents picking the same key never share a slot.
func PublicSlugScope(r *http.Request) (string, bool) {
	key, ok := PublicSlugKey(r)
	if !ok {
		return "", false
	}
	return "public:" + key, true
}

// IdempotencyMiddleware replays the stored 2xx response for a repeated
// Idempotency-Key within the same scope. scope is ActorKey for authenticated
// routes and PublicSlugScope for public intake. A key reused with a different
// method, path or body is rejected with 422 and nothing is replayed.
func IdempotencyMiddleware(store IdempotencyStore, scope KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(key) > maxIdempotencyKeyLen {
				httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "idempotency key must be 255 characters or less")
				return
			}

			scopeID, ok := scope(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			var requestBody []byte
			if r.Body != nil {
				var err error
				requestBody, err = io.ReadAll(io.LimitReader(r.Body, maxReplayBodyBytes))
				if err != nil {
					httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "failed to read request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(requestBody))
			}

			keyHash := repo.HashKey(key)
			requestHash := repo.HashRequest(r.Method, r.URL.Path, requestBody)

			cached, err := store.CheckKey(ctx, scopeID, keyHash)
			if err != nil {
				logger.SetRootError(ctx, err)
				log.Error(ctx, "failed to check idempotency key",
					logger.Module("idempotency"),
					logger.Action("check"),
					zap.Error(err),
				)
				httperr.InternalError500(w, ctx, "an internal error occurred")
				return
			}

			if cached != nil {
				if cached.RequestHash != requestHash {
					log.Warn(ctx, "idempotency key reused with a different request",
						logger.Module("idempotency"),
						logger.Action("mismatch"),
						zap.String("key_hash", keyHash),
					)
					httperr.WriteError(w, ctx, http.StatusUnprocessableEntity, httperr.ErrCodeIdempotencyReuse,
						"idempotency key was already used with a different request")
					return
				}

				log.Info(ctx, "returning cached response for idempotent request",
					logger.Module("idempotency"),
					logger.Action("replay"),
					zap.String("key_hash", keyHash),
					zap.Int("status", cached.Status),
				)

				for k, v := range cached.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("X-Idempotency-Replay", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(recorder, r)

			if recorder.statusCode < 200 || recorder.statusCode >= 300 {
				return
			}

			headers := make(map[string]string)
			for _, h := range []string{"Content-Type", "Location"} {
				if v := w.Header().Get(h); v != "" {
					headers[h] = v
				}
			}

			err = store.StoreResult(ctx, repo.StoredRequest{
				Scope:       scopeID,
				KeyHash:     keyHash,
				OriginalKey: key,
				RequestHash: requestHash,
				Method:      r.Method,
				Path:        r.URL.Path,
				Payload:     requestBody,
				Status:      recorder.statusCode,
				Body:        recorder.body.Bytes(),
				Headers:     headers,
			})
			if err != nil {
				// the client already has its response
				log.Error(ctx, "failed to store idempotency result",
					logger.Module("idempotency"),
					logger.Action("store"),
					zap.Error(err),
				)
			}
		})
	}
}

// responseRecorder captures response for storage
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.written {
		return
	}
	rr.statusCode = code
	rr.written = true
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.WriteHeader(http.StatusOK)
	}
	rr.body.Write(b)
	return rr.ResponseWriter.Write(b)
}

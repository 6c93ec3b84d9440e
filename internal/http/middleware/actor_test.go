package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"forms-api/internal/auth"
	"forms-api/internal/domain"
	"forms-api/internal/http/middleware"
	"forms-api/internal/observability/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	actor *domain.Actor
	err   error
	calls int
}

func (s *stubLoader) Load(_ context.Context, userID string) (*domain.Actor, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.actor != nil {
		return s.actor, nil
	}
	return domain.NewActor(userID, "", nil), nil
}

func authed(r *http.Request, actorID string) *http.Request {
	ctx := auth.WithAuthContext(r.Context(), &auth.AuthContext{ActorID: actorID, ActorType: auth.ActorTypeUser})
	return r.WithContext(ctx)
}

func TestActorMiddleware_LoadsActor(t *testing.T) {
	loader := &stubLoader{actor: domain.NewActor("u-1", "g-team", []domain.PermissionCode{domain.CodeFormsView})}

	var got *domain.Actor
	var groupID string
	handler := middleware.ActorMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = middleware.GetActor(r.Context())
		groupID = logger.GetGroupIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/v1/forms", nil), "u-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.True(t, got.HasCode(domain.CodeFormsView))
	assert.Equal(t, "g-team", groupID)
}

func TestActorMiddleware_UnknownUserStillProceeds(t *testing.T) {
	called := false
	handler := middleware.ActorMiddleware(&stubLoader{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.GetActor(r.Context())
		called = ok && actor.GroupID == ""
	}))

	handler.ServeHTTP(httptest.NewRecorder(), authed(httptest.NewRequest(http.MethodGet, "/", nil), "ghost"))
	assert.True(t, called)
}

func TestActorMiddleware_Errors(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run")
	})

	t.Run("no auth context", func(t *testing.T) {
		loader := &stubLoader{}
		rec := httptest.NewRecorder()
		middleware.ActorMiddleware(loader)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNKNOWN_ACTOR")
		assert.Zero(t, loader.calls)
	})

	t.Run("store failure", func(t *testing.T) {
		loader := &stubLoader{err: errors.New("db down")}
		rec := httptest.NewRecorder()
		middleware.ActorMiddleware(loader)(next).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/", nil), "u-1"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"forms-api/internal/auth"
	"forms-api/internal/domain"
	"forms-api/internal/http/middleware"
	"forms-api/internal/observability/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value int
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int)) = r.value
	return nil
}

type fakePool struct {
	row fakeRow
}

func (p *fakePool) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return p.row
}

func debugRequest(authCtx *auth.AuthContext, actor *domain.Actor) *http.Request {
	ctx := logger.SetLoggerInContext(context.Background(), logger.Nop())
	if authCtx != nil {
		ctx = auth.WithAuthContext(ctx, authCtx)
	}
	if actor != nil {
		ctx = middleware.WithActor(ctx, actor)
	}
	return httptest.NewRequest(http.MethodGet, "/debug/auth", nil).WithContext(ctx)
}

func TestDebugHandler_GetAuthDebug_DisabledReturns404(t *testing.T) {
	h := NewDebugHandler(false, nil)

	rec := httptest.NewRecorder()
	h.GetAuthDebug(rec, debugRequest(&auth.AuthContext{ActorID: "u1", AuthMethod: "jwt"}, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugHandler_GetAuthDebug_NoAuth(t *testing.T) {
	h := NewDebugHandler(true, nil)

	rec := httptest.NewRecorder()
	h.GetAuthDebug(rec, debugRequest(nil, nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var errResponse map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResponse))
	assert.False(t, errResponse["ok"].(bool))
	assert.NotNil(t, errResponse["error"])
}

func TestDebugHandler_GetAuthDebug_JWTWithActor(t *testing.T) {
	h := NewDebugHandler(true, nil)
	authCtx := &auth.AuthContext{
		AuthMethod: "jwt",
		ActorID:    "user-abc-123",
		ActorType:  auth.ActorTypeUser,
		Issuer:     "forms-web",
	}
	actor := domain.NewActor("user-abc-123", "group-1", []domain.PermissionCode{domain.CodeFormsView, domain.CodeFormsCreate})

	rec := httptest.NewRecorder()
	h.GetAuthDebug(rec, debugRequest(authCtx, actor))

	require.Equal(t, http.StatusOK, rec.Code)
	var response DebugAuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	data := response.Data
	assert.True(t, response.OK)
	assert.Equal(t, "jwt", data.AuthMethod)
	assert.Equal(t, "user-abc-123", data.ActorID)
	require.NotNil(t, data.TokenIssuer)
	assert.Equal(t, "forms-web", *data.TokenIssuer)
	assert.Nil(t, data.Client)
	require.NotNil(t, data.GroupID)
	assert.Equal(t, "group-1", *data.GroupID)
	assert.Equal(t, []domain.PermissionCode{domain.CodeFormsCreate, domain.CodeFormsView}, data.Codes)
}

func TestDebugHandler_GetAuthDebug_S2S(t *testing.T) {
	h := NewDebugHandler(true, nil)
	authCtx := &auth.AuthContext{
		AuthMethod: "s2s",
		ActorID:    "user-9",
		ActorType:  auth.ActorTypeService,
		Client:     "backoffice",
	}

	rec := httptest.NewRecorder()
	h.GetAuthDebug(rec, debugRequest(authCtx, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response DebugAuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	require.NotNil(t, response.Data.Client)
	assert.Equal(t, "backoffice", *response.Data.Client)
	assert.Nil(t, response.Data.TokenIssuer)
	assert.Nil(t, response.Data.GroupID)
	assert.Empty(t, response.Data.Codes)
}

func TestDebugHandler_PingDB(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := NewDebugHandler(true, &fakePool{row: fakeRow{value: 1}})
		rec := httptest.NewRecorder()
		h.PingDB(rec, debugRequest(nil, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	})

	t.Run("pg error", func(t *testing.T) {
		h := NewDebugHandler(true, &fakePool{row: fakeRow{err: &pgconn.PgError{Code: "57P01"}}})
		rec := httptest.NewRecorder()
		h.PingDB(rec, debugRequest(nil, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("plain error", func(t *testing.T) {
		h := NewDebugHandler(true, &fakePool{row: fakeRow{err: errors.New("boom")}})
		rec := httptest.NewRecorder()
		h.PingDB(rec, debugRequest(nil, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		h := NewDebugHandler(false, &fakePool{row: fakeRow{value: 1}})
		rec := httptest.NewRecorder()
		h.PingDB(rec, debugRequest(nil, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

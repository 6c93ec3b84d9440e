package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"forms-api/internal/observability/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	ctx := logger.SetLoggerInContext(context.Background(), logger.Nop())
	return logger.SetRequestIDInContext(ctx, "req-test-1")
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	require.NotNil(t, response.Error)
	assert.False(t, response.OK)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	return response
}

func TestHelpers_StatusAndCode(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"401", func(w http.ResponseWriter) { Unauthorized401(w, ctx, ErrCodeInvalidToken, "token is invalid") }, http.StatusUnauthorized, ErrCodeInvalidToken},
		{"403", func(w http.ResponseWriter) { Forbidden403(w, ctx, ErrCodeForbidden, "permission denied") }, http.StatusForbidden, ErrCodeForbidden},
		{"404", func(w http.ResponseWriter) { NotFound404(w, ctx, "form not found") }, http.StatusNotFound, ErrCodeNotFound},
		{"409", func(w http.ResponseWriter) { Conflict409(w, ctx, "duplicate email") }, http.StatusConflict, ErrCodeConflict},
		{"400", func(w http.ResponseWriter) { BadRequest400(w, ctx, ErrCodeInvalidFormat, "bad json") }, http.StatusBadRequest, ErrCodeInvalidFormat},
		{"422", func(w http.ResponseWriter) { Unprocessable422(w, ctx, "invalid answer", nil) }, http.StatusUnprocessableEntity, ErrCodeValidationError},
		{"429", func(w http.ResponseWriter) { TooManyRequests429(w, ctx, "slow down") }, http.StatusTooManyRequests, ErrCodeRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.write(rr)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decode(t, rr).Error.Code)
		})
	}
}

func TestUnprocessable422_WithFields(t *testing.T) {
	rr := httptest.NewRecorder()
	Unprocessable422(rr, testContext(), "validation failed", map[string]string{
		"items[0]": "value is not a valid email",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, "value is not a valid email", response.Error.Fields["items[0]"])
}

func TestInternalError500_HidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	InternalError500(rr, testContext(), "database connection failed")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, ErrCodeInternalError, response.Error.Code)
	assert.Equal(t, "Internal Server Error", response.Error.Message)
	assert.Empty(t, response.Error.ErrorID)
}

func TestInternalError500_ExposesRequestIDWhenEnabled(t *testing.T) {
	ExposeErrorIDs(true)
	t.Cleanup(func() { ExposeErrorIDs(false) })

	rr := httptest.NewRecorder()
	InternalError(rr, testContext())

	assert.Equal(t, "req-test-1", decode(t, rr).Error.ErrorID)
}

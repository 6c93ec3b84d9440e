package httperr

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"forms-api/internal/observability/logger"

	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	OK    bool         `json:"ok"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	ErrorID string            `json:"error_id,omitempty"`
}

// Error codes for 401 Unauthorized (authentication failures)
const (
	ErrCodeMissingAuthorization = "MISSING_AUTHORIZATION"
	ErrCodeInvalidScheme        = "INVALID_SCHEME"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeInvalidIssuer        = "INVALID_ISSUER"
	ErrCodeInvalidAudience      = "INVALID_AUDIENCE"
	ErrCodeUnknownActor         = "UNKNOWN_ACTOR"
)

// Error codes for 403/404/409
const (
	ErrCodeForbidden = "FORBIDDEN"
	ErrCodeNotFound  = "NOT_FOUND"
	ErrCodeConflict  = "CONFLICT"
)

// Error codes for 400/422 (validation errors)
const (
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeInvalidLimit     = "INVALID_LIMIT"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeIdempotencyReuse = "IDEMPOTENCY_KEY_REUSED"
)

// Error codes for 429/500
const (
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

var exposeErrorID atomic.Bool

// ExposeErrorIDs makes 500 responses carry the request id. Enabled in development.
func ExposeErrorIDs(on bool) {
	exposeErrorID.Store(on)
}

func write(w http.ResponseWriter, status int, detail *ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{OK: false, Error: detail})
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	logger.GetLogger(ctx).Warn(ctx, "request failed",
		logger.Module("http"),
		logger.Action("write_error"),
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)

	write(w, status, &ErrorDetail{Code: code, Message: message})
}

// WriteErrorWithFields writes a standardized error response with field-level details
func WriteErrorWithFields(w http.ResponseWriter, ctx context.Context, status int, code, message string, fields map[string]string) {
	fieldPairs := make([]zap.Field, 0, len(fields)+5)
	fieldPairs = append(fieldPairs,
		logger.Module("http"),
		logger.Action("write_error"),
		zap.Int("status_code", status),
		zap.String("error_code", code),
		zap.String("message", message),
	)
	for k := range fields {
		// values may echo respondent input; log only which fields failed
		fieldPairs = append(fieldPairs, zap.Bool("field_"+k, true))
	}
	logger.GetLogger(ctx).Warn(ctx, "request failed with field errors", fieldPairs...)

	write(w, status, &ErrorDetail{Code: code, Message: message, Fields: fields})
}

// Unauthorized401 writes a 401 Unauthorized response
func Unauthorized401(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusUnauthorized, code, message)
}

// Forbidden403 writes a 403 Forbidden response
func Forbidden403(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusForbidden, code, message)
}

// NotFound404 writes a 404 Not Found response
func NotFound404(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict409 writes a 409 Conflict response
func Conflict409(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, message)
}

// BadRequest400 writes a 400 Bad Request response
func BadRequest400(w http.ResponseWriter, ctx context.Context, code, message string) {
	WriteError(w, ctx, http.StatusBadRequest, code, message)
}

// BadRequest400WithFields writes a 400 Bad Request response with field-level errors
func BadRequest400WithFields(w http.ResponseWriter, ctx context.Context, code, message string, fields map[string]string) {
	WriteErrorWithFields(w, ctx, http.StatusBadRequest, code, message, fields)
}

// Unprocessable422 writes a 422 response for semantically invalid input.
// fields may be nil.
func Unprocessable422(w http.ResponseWriter, ctx context.Context, message string, fields map[string]string) {
	if len(fields) == 0 {
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeValidationError, message)
		return
	}
	WriteErrorWithFields(w, ctx, http.StatusUnprocessableEntity, ErrCodeValidationError, message, fields)
}

// TooManyRequests429 writes a 429 response.
func TooManyRequests429(w http.ResponseWriter, ctx context.Context, message string) {
	WriteError(w, ctx, http.StatusTooManyRequests, ErrCodeRateLimited, message)
}

// InternalError500 writes a 500 Internal Server Error response
func InternalError500(w http.ResponseWriter, ctx context.Context, message string) {
	reqID := logger.GetRequestIDFromContext(ctx)

	logger.GetLogger(ctx).Error(ctx, "internal server error",
		logger.Module("http"),
		logger.Action("write_error"),
		zap.String("message", message),
	)

	// clients only ever see the generic message
	detail := &ErrorDetail{
		Code:    ErrCodeInternalError,
		Message: "Internal Server Error",
	}
	if exposeErrorID.Load() {
		detail.ErrorID = reqID
	}
	write(w, http.StatusInternalServerError, detail)
}

// InternalError writes a 500 with the default message.
func InternalError(w http.ResponseWriter, ctx context.Context) {
	InternalError500(w, ctx, "internal server error")
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"forms-api/internal/domain"
	"forms-api/internal/http/httperr"
	"forms-api/internal/http/middleware"
	"forms-api/internal/observability/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	maxBodyBytes     = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeJSON reads a single JSON document into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	ctx := r.Context()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logger.GetLogger(ctx).Warn(ctx, "invalid request body",
			logger.Module("http"),
			logger.Action("decode"),
			zap.Error(err),
		)
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "request body must be valid JSON")
		return false
	}
	return true
}

// requireActor returns the actor loaded by middleware.ActorMiddleware.
func requireActor(w http.ResponseWriter, ctx context.Context) (*domain.Actor, bool) {
	actor, ok := middleware.GetActor(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeUnknownActor, "authentication required")
		return nil, false
	}
	return actor, true
}

// parsePage reads limit and cursor query parameters.
func parsePage(w http.ResponseWriter, r *http.Request) (int, *string, bool) {
	ctx := r.Context()
	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidLimit, "limit must be between 1 and 100")
			return 0, nil, false
		}
		limit = n
	}
	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = &raw
	}
	return limit, cursor, true
}

// writeRequestValidationError turns a DTO Validate error into a 422.
func writeRequestValidationError(w http.ResponseWriter, ctx context.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		httperr.Unprocessable422(w, ctx, "request validation failed", fields)
		return
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		httperr.Unprocessable422(w, ctx, ve.Message, fieldMap(ve))
		return
	}
	httperr.Unprocessable422(w, ctx, err.Error(), nil)
}

func fieldMap(ve *domain.ValidationError) map[string]string {
	if ve.Field == "" {
		return nil
	}
	return map[string]string{ve.Field: ve.Message}
}

// handleServiceError is the single place that maps domain errors to HTTP statuses.
func handleServiceError(w http.ResponseWriter, ctx context.Context, log *logger.Logger, err error) {
	var (
		ve   *domain.ValidationError
		ce   *domain.ConflictError
		de   *domain.DuplicateError
		gue  *domain.GroupInUseError
		nfe  *domain.NotFoundError
		cfge *domain.ConfigurationError
	)

	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		httperr.Forbidden403(w, ctx, httperr.ErrCodeForbidden, "insufficient permissions for this action")
	case errors.As(err, &nfe):
		log.Debug(ctx, "entity not found",
			logger.Module("http"),
			logger.Action("map_error"),
			zap.String("entity", nfe.Entity),
		)
		httperr.NotFound404(w, ctx, nfe.Entity+" not found")
	case errors.Is(err, domain.ErrNotFound):
		httperr.NotFound404(w, ctx, "resource not found")
	case errors.As(err, &ce):
		httperr.Conflict409(w, ctx, "a submission with this "+string(ce.Kind)+" already exists for this form")
	case errors.As(err, &de):
		httperr.Conflict409(w, ctx, de.Error())
	case errors.As(err, &gue):
		httperr.Conflict409(w, ctx, "group still has users assigned")
	case errors.Is(err, domain.ErrConflict):
		httperr.Conflict409(w, ctx, "resource conflict")
	case errors.As(err, &ve):
		httperr.Unprocessable422(w, ctx, ve.Message, fieldMap(ve))
	case errors.As(err, &cfge):
		logger.SetRootError(ctx, err)
		log.Error(ctx, "configuration error",
			logger.Module("http"),
			logger.Action("map_error"),
			zap.String("subject", cfge.Subject),
			zap.Error(err),
		)
		httperr.InternalError500(w, ctx, "form configuration is invalid")
	default:
		logger.SetRootError(ctx, err)
		log.Error(ctx, "unhandled internal server error",
			logger.Module("http"),
			logger.Action("map_error"),
			zap.Error(err),
		)
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"forms-api/internal/auth"
	"forms-api/internal/domain"
	"forms-api/internal/http/httperr"
	"forms-api/internal/http/middleware"
	"forms-api/internal/observability/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is the subset of pgxpool.Pool the debug endpoints need.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DebugHandler serves dev-only introspection endpoints.
type DebugHandler struct {
	enabled bool
	pool    DBPool
}

// NewDebugHandler creates a debug handler. With enabled=false every endpoint answers 404.
func NewDebugHandler(enabled bool, pool DBPool) *DebugHandler {
	return &DebugHandler{enabled: enabled, pool: pool}
}

type DebugAuthResponse struct {
	OK   bool           `json:"ok"`
	Data *DebugAuthData `json:"data"`
}

// DebugAuthData shows how the request authenticated and what the actor may do.
type DebugAuthData struct {
	AuthMethod  string                  `json:"authMethod"`
	Client      *string                 `json:"client,omitempty"`
	ActorID     string                  `json:"actorId"`
	ActorType   string                  `json:"actorType"`
	TokenIssuer *string                 `json:"tokenIssuer,omitempty"`
	GroupID     *string                 `json:"groupId,omitempty"`
	Codes       []domain.PermissionCode `json:"codes"`
}

func (h *DebugHandler) blocked(w http.ResponseWriter, r *http.Request) bool {
	if h.enabled {
		return false
	}
	ctx := r.Context()
	logger.GetLogger(ctx).Warn(ctx, "debug endpoint accessed while disabled",
		logger.Module("debug"),
		logger.Action("access"),
		zap.String("remote_addr", r.RemoteAddr),
	)
	http.NotFound(w, r)
	return true
}

// GetAuthDebug handles GET /debug/auth. Needs auth and actor middleware.
func (h *DebugHandler) GetAuthDebug(w http.ResponseWriter, r *http.Request) {
	if h.blocked(w, r) {
		return
	}
	ctx := r.Context()

	authCtx, ok := auth.GetAuthContext(ctx)
	if !ok {
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "authentication required")
		return
	}

	data := &DebugAuthData{
		AuthMethod: authCtx.AuthMethod,
		ActorID:    authCtx.ActorID,
		ActorType:  authCtx.ActorType,
		Codes:      []domain.PermissionCode{},
	}
	if authCtx.Issuer != "" {
		data.TokenIssuer = &authCtx.Issuer
	}
	if authCtx.Client != "" {
		data.Client = &authCtx.Client
	}
	if actor, ok := middleware.GetActor(ctx); ok {
		if actor.GroupID != "" {
			g := actor.GroupID
			data.GroupID = &g
		}
		data.Codes = actor.Codes()
		slices.Sort(data.Codes)
	}

	writeJSON(w, http.StatusOK, DebugAuthResponse{OK: true, Data: data})
}

// PingDB handles GET /debug/db/ping with a SELECT 1.
func (h *DebugHandler) PingDB(w http.ResponseWriter, r *http.Request) {
	if h.blocked(w, r) {
		return
	}
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	if h.pool == nil {
		httperr.InternalError(w, ctx)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := h.pool.QueryRow(pingCtx, "SELECT 1").Scan(&result); err != nil {
		fields := []zap.Field{
			logger.Module("debug"),
			logger.Action("db_ping"),
			zap.Error(err),
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			fields = append(fields, zap.String("pgcode", pgErr.Code))
		}
		log.Error(ctx, "db ping failed", fields...)
		httperr.InternalError(w, ctx)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

package middleware

import (
	"context"
	"net/http"

	"forms-api/internal/auth"
	"forms-api/internal/domain"
	"forms-api/internal/http/httperr"
	"forms-api/internal/observability/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorLoader is implemented by service.ActorLoader.
type ActorLoader interface {
	Load(ctx context.Context, userID string) (*domain.Actor, error)
}

// ActorMiddleware loads the authenticated caller's group and permission codes
// once per request. Must run after auth.AuthMiddleware.
func ActorMiddleware(loader ActorLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			authCtx, ok := auth.GetAuthContext(ctx)
			if !ok || authCtx.ActorID == "" {
				log.Error(ctx, "auth context missing for actor load",
					logger.Module("actor"),
					logger.Action("load"),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeUnknownActor, "authenticated actor required")
				return
			}

			actor, err := loader.Load(ctx, authCtx.ActorID)
			if err != nil {
				logger.SetRootError(ctx, err)
				log.Error(ctx, "failed to load actor",
					logger.Module("actor"),
					logger.Action("load"),
					zap.Error(err),
				)
				httperr.InternalError500(w, ctx, "failed to load actor permissions")
				return
			}

			span := trace.SpanFromContext(ctx)
			span.SetAttributes(attribute.String("actor.id", actor.ID))
			if actor.GroupID != "" {
				span.SetAttributes(attribute.String("actor.group_id", actor.GroupID))
				ctx = logger.SetGroupIDInContext(ctx, actor.GroupID)
			}

			ctx = WithActor(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor stores actor in ctx. Exposed for handler tests.
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the actor loaded by ActorMiddleware.
func GetActor(ctx context.Context) (*domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*domain.Actor)
	return actor, ok && actor != nil
}

package main

import (
	"context"
	"net/http"
	"time"

	"forms-api/internal/auth"
	"forms-api/internal/config"
	"forms-api/internal/http/docs"
	"forms-api/internal/http/handler"
	"forms-api/internal/http/middleware"
	"forms-api/internal/observability/logger"
	"forms-api/internal/ratelimit"
	"forms-api/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool; Redis is adapted with PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps contém as dependências necessárias para construir o router.
type RouterDeps struct {
	Cfg             *config.Config
	Log             *logger.Logger
	Resolver        *auth.KeyResolver
	S2SStore        *auth.S2STokenStore
	ActorLoader     middleware.ActorLoader
	IdempotencyRepo middleware.IdempotencyStore
	RateLimiter     middleware.RateLimiter
	Metrics         *telemetry.Metrics
	DB              Pinger
	Redis           Pinger

	// Handlers
	FormHandler       *handler.FormHandler
	SubmissionHandler *handler.SubmissionHandler
	AclHandler        *handler.AclHandler
	DirectoryHandler  *handler.DirectoryHandler
	GroupHandler      *handler.GroupHandler
	DebugHandler      *handler.DebugHandler
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// buildRouter constrói o chi.Router com todos os middlewares e rotas.
func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(middleware.RequestMetaMiddleware)
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	if deps.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(deps.Metrics))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, `{"status":"ok"}`)
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				deps.Log.Error(ctx, "readiness check failed: database unavailable",
					logger.Module("health"), logger.Action("ready"), zap.Error(err))
				writeStatus(w, http.StatusServiceUnavailable, `{"status":"error","message":"database unavailable"}`)
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx); err != nil {
				deps.Log.Error(ctx, "readiness check failed: redis unavailable",
					logger.Module("health"), logger.Action("ready"), zap.Error(err))
				writeStatus(w, http.StatusServiceUnavailable, `{"status":"error","message":"redis unavailable"}`)
				return
			}
		}
		writeStatus(w, http.StatusOK, `{"status":"ready"}`)
	})

	r.Handle("/metrics", telemetry.MetricsHandler(deps.Cfg.MetricsToken))
	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	authenticated := []func(http.Handler) http.Handler{
		auth.AuthMiddleware(deps.Resolver, deps.S2SStore),
		middleware.ActorMiddleware(deps.ActorLoader),
	}

	// Debug routes (dev-only)
	if deps.Cfg.IsDevelopment() && deps.DebugHandler != nil {
		r.Route("/debug", func(r chi.Router) {
			r.With(authenticated...).Get("/auth", deps.DebugHandler.GetAuthDebug)
			r.Get("/db/ping", deps.DebugHandler.PingDB)
		})
	}

	// Public intake: no authentication, limited per slug and client address
	r.Route("/v1/public/forms/{slug}", func(r chi.Router) {
		r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, ratelimit.ScopePublic, deps.Cfg.RateLimitPublicSubmissionsPerMin, middleware.PublicSlugKey))

		if deps.FormHandler != nil {
			r.Get("/", deps.FormHandler.GetPublicForm)
		}
		if deps.SubmissionHandler != nil {
			r.With(middleware.IdempotencyMiddleware(deps.IdempotencyRepo, middleware.PublicSlugScope)).Post("/submissions", deps.SubmissionHandler.Submit)
		}
	})

	// Authenticated API
	r.Route("/v1", func(r chi.Router) {
		r.Use(authenticated...)
		r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, ratelimit.ScopeActor, deps.Cfg.RateLimitPerActorPerMin, middleware.ActorKey))
		idempotent := middleware.IdempotencyMiddleware(deps.IdempotencyRepo, middleware.ActorKey)

		if deps.DirectoryHandler != nil {
			r.Get("/me/permissions", deps.DirectoryHandler.GetMyPermissions)
			r.Get("/permissions", deps.DirectoryHandler.ListPermissions)
		}

		r.Route("/groups", func(r chi.Router) {
			if deps.DirectoryHandler != nil {
				r.Get("/", deps.DirectoryHandler.ListGroups)
			}
			if deps.GroupHandler != nil {
				r.With(idempotent).Post("/", deps.GroupHandler.CreateGroup)
				r.Route("/{groupId}", func(r chi.Router) {
					r.Delete("/", deps.GroupHandler.DeleteGroup)
					r.With(idempotent).Put("/permissions", deps.GroupHandler.SetGroupPermissions)
				})
			}
		})

		r.Route("/forms", func(r chi.Router) {
			if deps.FormHandler != nil {
				r.Get("/", deps.FormHandler.ListForms)
				r.With(idempotent).Post("/", deps.FormHandler.CreateForm)
			}

			r.Route("/{formId}", func(r chi.Router) {
				if deps.FormHandler != nil {
					r.Get("/", deps.FormHandler.GetForm)
					r.Delete("/", deps.FormHandler.ArchiveForm)
					r.Post("/restore", deps.FormHandler.RestoreForm)
					r.Post("/publish", deps.FormHandler.PublishForm)
					r.Post("/unpublish", deps.FormHandler.UnpublishForm)
				}

				if deps.AclHandler != nil {
					r.Route("/acl", func(r chi.Router) {
						r.Get("/", deps.AclHandler.ListAcl)
						r.With(idempotent).Put("/", deps.AclHandler.UpsertAcl)
						r.Delete("/{groupId}", deps.AclHandler.RemoveAcl)
					})
				}

				if deps.SubmissionHandler != nil {
					r.Route("/submissions", func(r chi.Router) {
						r.Get("/", deps.SubmissionHandler.ListSubmissions)
						r.Delete("/", deps.SubmissionHandler.DeleteAllSubmissions)
						r.Route("/{submissionId}", func(r chi.Router) {
							r.Get("/", deps.SubmissionHandler.GetSubmission)
							r.Delete("/", deps.SubmissionHandler.DeleteSubmission)
						})
					})
				}
			})
		})
	})

	return r
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

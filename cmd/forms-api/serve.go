package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forms-api/internal/auth"
	"forms-api/internal/cache"
	"forms-api/internal/config"
	"forms-api/internal/database"
	"forms-api/internal/http/handler"
	"forms-api/internal/http/httperr"
	"forms-api/internal/observability/logger"
	"forms-api/internal/permission"
	"forms-api/internal/ratelimit"
	"forms-api/internal/repo"
	"forms-api/internal/service"
	"forms-api/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the Forms API HTTP server with all middlewares and observability`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildKeyResolver registers one HS256 validator per allowed issuer and, when
// a public key is configured, an RS256 validator for the SSO issuer.
func buildKeyResolver(cfg *config.Config) (*auth.KeyResolver, []string, error) {
	secretBytes, err := base64.StdEncoding.DecodeString(cfg.JWTHS256Secret)
	if err != nil {
		return nil, nil, fmt.Errorf("JWT_HS256_SECRET must be valid Base64-encoded: %w", err)
	}
	if len(secretBytes) < 32 {
		return nil, nil, fmt.Errorf("JWT_HS256_SECRET decoded bytes must be at least 32 bytes (256 bits), got %d bytes", len(secretBytes))
	}

	allowedIssuers := cfg.GetAllowedIssuers()
	if len(allowedIssuers) == 0 {
		return nil, nil, fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	keyStore := auth.NewKeyStore()
	for _, issuer := range allowedIssuers {
		keyStore.LoadHS256Key(issuer, "v1", secretBytes)
	}

	if cfg.JWTPublicKeyRS256 != "" {
		if err := keyStore.LoadRS256Key(cfg.JWTRS256Issuer, "v1", cfg.JWTPublicKeyRS256); err != nil {
			return nil, nil, fmt.Errorf("failed to load RS256 public key: %w", err)
		}
		found := false
		for _, issuer := range allowedIssuers {
			if issuer == cfg.JWTRS256Issuer {
				found = true
				break
			}
		}
		if !found {
			allowedIssuers = append(allowedIssuers, cfg.JWTRS256Issuer)
		}
	}

	clockSkew := time.Duration(cfg.JWTClockSkewSeconds) * time.Second
	resolver := auth.NewKeyResolver(allowedIssuers, []string{cfg.JWTAudience})
	for _, issuer := range cfg.GetAllowedIssuers() {
		resolver.RegisterValidator(issuer, auth.NewHS256Validator(keyStore, issuer, clockSkew))
	}
	if cfg.JWTPublicKeyRS256 != "" {
		resolver.RegisterValidator(cfg.JWTRS256Issuer, auth.NewRS256Validator(keyStore, cfg.JWTRS256Issuer, clockSkew))
	}
	return resolver, allowedIssuers, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	httperr.ExposeErrorIDs(cfg.IsDevelopment())

	log.Info(ctx, "starting forms api",
		logger.Module("serve"),
		logger.Action("start"),
		zap.String("service", cfg.OTELServiceName),
		zap.String("app_env", cfg.AppEnv),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(ctx, "migrations completed successfully", logger.Module("serve"), logger.Action("migrate"))

	// Telemetry is strictly opt-in
	var tracerProvider *sdktrace.TracerProvider
	var meterProvider *sdkmetric.MeterProvider
	metrics := telemetry.NoopMetrics()

	if cfg.TelemetryEnabled() {
		tp, err := telemetry.InitTracer(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint, cfg.OTELSamplingRatio)
		if err != nil {
			log.Warn(ctx, "failed to initialize tracer, continuing without tracing", logger.Module("serve"), logger.Action("telemetry"), zap.Error(err))
		} else {
			tracerProvider = tp
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown tracer provider", logger.Module("serve"), logger.Action("shutdown"), zap.Error(err))
				}
			}()
		}

		mp, m, err := telemetry.InitMetrics(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint)
		if err != nil {
			log.Warn(ctx, "failed to initialize metrics, continuing without metrics", logger.Module("serve"), logger.Action("telemetry"), zap.Error(err))
		} else {
			meterProvider = mp
			metrics = m
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := meterProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown meter provider", logger.Module("serve"), logger.Action("shutdown"), zap.Error(err))
				}
			}()
		}
	}

	pool, err := database.NewPoolWithOptions(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns:       cfg.DatabaseMaxConns,
		SimpleProtocol: cfg.DatabaseSimpleProtocol,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	resolver, allowedIssuers, err := buildKeyResolver(cfg)
	if err != nil {
		return err
	}
	log.Info(ctx, "JWT authentication initialized",
		logger.Module("serve"),
		logger.Action("auth"),
		zap.Strings("allowed_issuers", allowedIssuers),
		zap.Int("clock_skew_seconds", cfg.JWTClockSkewSeconds),
	)

	s2sStore := auth.NewS2STokenStore()
	s2sStore.RegisterToken(cfg.S2STokenBackoffice, "backoffice")

	// Repositories
	idempotencyRepo := repo.NewIdempotencyRepo(pool)
	auditRepo := repo.NewAuditRepo(pool)
	groupRepo := repo.NewGroupRepository(pool)
	aclRepo := repo.NewAclRepository(pool)
	formRepo := repo.NewFormRepository(pool)
	submissionRepo := repo.NewSubmissionRepository(pool)

	// Authorization core
	evaluator := permission.NewEvaluator(aclRepo)
	authorizer := service.NewAuthorizer(evaluator, metrics, log)
	permCache := cache.NewPermissionCache(redisClient, cfg.PermissionCacheTTL())
	actorLoader := service.NewActorLoader(groupRepo, permCache, log)

	// Services
	formService := service.NewFormService(formRepo, groupRepo, authorizer, auditRepo, cfg.AdminGroupName, log)
	submissionService := service.NewSubmissionService(submissionRepo, formRepo, authorizer, auditRepo, metrics, log)
	aclService := service.NewAclService(aclRepo, formRepo, authorizer, auditRepo, log)
	directoryService := service.NewDirectoryService(groupRepo, authorizer)
	groupService := service.NewGroupService(groupRepo, permCache, authorizer, auditRepo, cfg.AdminGroupName, log)

	var rateLimitCounter metric.Int64Counter
	if metrics != nil {
		rateLimitCounter = metrics.RateLimitRejections
	}
	rateLimiter := ratelimit.NewRedisRateLimiter(redisClient, rateLimitCounter)

	r := buildRouter(RouterDeps{
		Cfg:               cfg,
		Log:               log,
		Resolver:          resolver,
		S2SStore:          s2sStore,
		ActorLoader:       actorLoader,
		IdempotencyRepo:   idempotencyRepo,
		RateLimiter:       rateLimiter,
		Metrics:           metrics,
		DB:                pool,
		Redis:             PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		FormHandler:       handler.NewFormHandler(formService),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService),
		AclHandler:        handler.NewAclHandler(aclService),
		DirectoryHandler:  handler.NewDirectoryHandler(directoryService),
		GroupHandler:      handler.NewGroupHandler(groupService),
		DebugHandler:      handler.NewDebugHandler(cfg.IsDevelopment(), pool),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting http server", logger.Module("serve"), logger.Action("listen"), zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
	}

	log.Info(ctx, "shutdown signal received, starting graceful shutdown", logger.Module("serve"), logger.Action("shutdown"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", logger.Module("serve"), logger.Action("shutdown"), zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete", logger.Module("serve"), logger.Action("shutdown"))
	return nil
}

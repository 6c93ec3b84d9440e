package auth

import (
	"context"
	"net/http"
	"strings"

	"forms-api/internal/http/httperr"
	"forms-api/internal/observability/logger"

	"go.uber.org/zap"
)

func mapAuthErrorToCode(authErr *AuthError) string {
	if authErr == nil {
		return httperr.ErrCodeInvalidToken
	}

	switch authErr.Reason {
	case AuthFailureMissingAuthorization:
		return httperr.ErrCodeMissingAuthorization
	case AuthFailureInvalidScheme:
		return httperr.ErrCodeInvalidScheme
	case AuthFailureInvalidSignature:
		return httperr.ErrCodeInvalidSignature
	case AuthFailureTokenExpired:
		return httperr.ErrCodeTokenExpired
	case AuthFailureInvalidIssuer:
		return httperr.ErrCodeInvalidIssuer
	case AuthFailureInvalidAudience:
		return httperr.ErrCodeInvalidAudience
	default:
		return httperr.ErrCodeInvalidToken
	}
}

// AuthMiddleware accepts either a JWT or a registered S2S token and stores
// the resulting AuthContext. It does not load permissions.
func AuthMiddleware(resolver *KeyResolver, s2sStore *S2STokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logFailure(ctx, log, r, AuthFailureMissingAuthorization, "")
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingAuthorization, "missing authorization header")
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || scheme != "Bearer" || tokenString == "" || strings.Contains(tokenString, " ") {
				logFailure(ctx, log, r, AuthFailureInvalidScheme, "")
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidScheme, "invalid authorization scheme, expected Bearer")
				return
			}

			var ok bool
			if isJWTToken(tokenString) {
				ctx, ok = authenticateJWT(ctx, resolver, tokenString, log, w, r)
			} else {
				ctx, ok = authenticateS2S(ctx, s2sStore, tokenString, log, w, r)
			}
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logFailure(ctx context.Context, log *logger.Logger, r *http.Request, reason AuthFailureReason, authType string, fields ...zap.Field) {
	base := []zap.Field{
		logger.Module("auth"),
		logger.Action("authenticate"),
		zap.String("auth_failure_reason", string(reason)),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if authType != "" {
		base = append(base, zap.String("auth_type", authType))
	}
	log.Warn(ctx, "authentication failed", append(base, fields...)...)
}

func authenticateJWT(ctx context.Context, resolver *KeyResolver, tokenString string, log *logger.Logger, w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	claims, err := resolver.Resolve(ctx, tokenString)
	if err != nil {
		authErr, _ := IsAuthError(err)
		reason := AuthFailureUnknown
		if authErr != nil {
			reason = authErr.Reason
		}
		logFailure(ctx, log, r, reason, "jwt",
			zap.String("token_prefix", maskToken(tokenString)),
			zap.Error(err),
		)
		httperr.Unauthorized401(w, ctx, mapAuthErrorToCode(authErr), "invalid or expired token")
		return ctx, false
	}

	authCtx := &AuthContext{
		ActorID:    claims.ActorID(),
		ActorType:  ActorTypeUser,
		AuthMethod: "jwt",
		Issuer:     claims.Issuer,
	}

	ctx = context.WithValue(ctx, claimsContextKey, claims)
	ctx = WithAuthContext(ctx, authCtx)
	ctx = logger.SetActorIDInContext(ctx, authCtx.ActorID)

	log.Debug(ctx, "authenticated request",
		logger.Module("auth"),
		logger.Action("authenticate"),
		zap.String("auth_type", "jwt"),
		zap.String("issuer", claims.Issuer),
	)
	return ctx, true
}

func authenticateS2S(ctx context.Context, s2sStore *S2STokenStore, tokenString string, log *logger.Logger, w http.ResponseWriter, r *http.Request) (context.Context, bool) {
	client, ok := s2sStore.ValidateToken(tokenString)
	if !ok {
		logFailure(ctx, log, r, AuthFailureInvalidSignature, "s2s",
			zap.String("token_prefix", maskToken(tokenString)),
		)
		httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidSignature, "invalid S2S token")
		return ctx, false
	}

	actorID, err := s2sActorID(r)
	if err != nil {
		logFailure(ctx, log, r, AuthFailureInvalidClaims, "s2s",
			zap.String("client", client),
			zap.Error(err),
		)
		httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, err.Error())
		return ctx, false
	}

	authCtx := &AuthContext{
		ActorID:    actorID,
		ActorType:  ActorTypeService,
		AuthMethod: "s2s",
		Client:     client,
	}
	ctx = WithAuthContext(ctx, authCtx)
	ctx = logger.SetActorIDInContext(ctx, actorID)

	log.Debug(ctx, "authenticated request",
		logger.Module("auth"),
		logger.Action("authenticate"),
		zap.String("auth_type", "s2s"),
		zap.String("client", client),
	)
	return ctx, true
}

package auth

import "context"

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	authContextKey   contextKey = "auth_context"
)

// Actor types carried in AuthContext.
const (
	ActorTypeUser    = "user"
	ActorTypeService = "service"
)

// AuthContext describes who authenticated the request and how.
type AuthContext struct {
	ActorID    string
	ActorType  string
	AuthMethod string
	Issuer     string
	Client     string
}

// WithAuthContext stores authCtx in ctx. Used by the middleware and by handler tests.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok && authCtx != nil
}

// GetClaims retrieves verified JWT claims. Absent for S2S requests.
func GetClaims(ctx context.Context) (*CustomClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*CustomClaims)
	return claims, ok
}

package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// KeyResolver picks the validator for a token by its issuer and checks the audience.
type KeyResolver struct {
	validators       map[string]TokenValidator
	allowedIssuers   map[string]bool
	allowedAudiences []string
	parser           *jwt.Parser
}

func NewKeyResolver(allowedIssuers []string, allowedAudiences []string) *KeyResolver {
	issuersMap := make(map[string]bool, len(allowedIssuers))
	for _, issuer := range allowedIssuers {
		issuersMap[issuer] = true
	}

	return &KeyResolver{
		validators:       make(map[string]TokenValidator),
		allowedIssuers:   issuersMap,
		allowedAudiences: allowedAudiences,
		parser:           jwt.NewParser(),
	}
}

// RegisterValidator registers a validator for an issuer
func (kr *KeyResolver) RegisterValidator(issuer string, validator TokenValidator) {
	kr.validators[issuer] = validator
}

// Resolve verifies tokenString and returns its claims.
func (kr *KeyResolver) Resolve(ctx context.Context, tokenString string) (*CustomClaims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	issuer, kid, err := kr.peek(tokenString)
	if err != nil {
		return nil, NewAuthError(AuthFailureUnknown, "malformed token", err)
	}

	if !kr.allowedIssuers[issuer] {
		return nil, NewAuthError(AuthFailureInvalidIssuer, fmt.Sprintf("issuer not allowed: %s", issuer), nil)
	}

	validator, ok := kr.validators[issuer]
	if !ok {
		return nil, NewAuthError(AuthFailureInvalidIssuer, fmt.Sprintf("no validator registered for issuer: %s", issuer), nil)
	}

	claims, err := validator.Validate(tokenString, kid)
	if err != nil {
		return nil, err
	}

	if !kr.validAudience(claims.Audience) {
		return nil, NewAuthError(AuthFailureInvalidAudience, fmt.Sprintf("invalid audience: %v", claims.Audience), nil)
	}

	return claims, nil
}

// peek reads issuer and kid without verifying the signature.
func (kr *KeyResolver) peek(tokenString string) (string, string, error) {
	claims := &jwt.RegisteredClaims{}
	token, _, err := kr.parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return "", "", err
	}

	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		kid = DefaultKeyID
	}
	return claims.Issuer, kid, nil
}

func (kr *KeyResolver) validAudience(audiences []string) bool {
	for _, aud := range audiences {
		if slices.Contains(kr.allowedAudiences, aud) {
			return true
		}
	}
	return false
}

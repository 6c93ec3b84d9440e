package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a signed token for one issuer.
type TokenValidator interface {
	Validate(tokenString string, kid string) (*CustomClaims, error)
}

type keyLookup func(kid string) (interface{}, bool)

// signedValidator holds the parsing rules shared by HS256 and RS256.
type signedValidator struct {
	issuer    string
	method    string
	lookup    keyLookup
	clockSkew time.Duration
}

func (v *signedValidator) Validate(tokenString string, kid string) (*CustomClaims, error) {
	key, ok := v.lookup(kid)
	if !ok {
		return nil, NewAuthError(AuthFailureUnknownKey, fmt.Sprintf("key not found for issuer %s and kid %s", v.issuer, kid), nil)
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(*jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{v.method}),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, NewAuthError(AuthFailureTokenExpired, "token expired", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, NewAuthError(AuthFailureInvalidSignature, "invalid signature", err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, NewAuthError(AuthFailureInvalidIssuer, "invalid issuer", err)
		case errors.Is(err, jwt.ErrTokenInvalidClaims):
			return nil, NewAuthError(AuthFailureInvalidClaims, "invalid claims", err)
		}
		return nil, NewAuthError(AuthFailureUnknown, "failed to parse token", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, NewAuthError(AuthFailureUnknown, fmt.Sprintf("invalid token: valid=%v", token.Valid), nil)
	}
	return claims, nil
}

// NewHS256Validator validates HMAC-signed tokens from issuer.
func NewHS256Validator(keyStore *KeyStore, issuer string, clockSkew time.Duration) TokenValidator {
	return &signedValidator{
		issuer:    issuer,
		method:    jwt.SigningMethodHS256.Alg(),
		clockSkew: clockSkew,
		lookup: func(kid string) (interface{}, bool) {
			return keyStore.GetHS256Key(issuer, kid)
		},
	}
}

// NewRS256Validator validates RSA-signed tokens from issuer.
func NewRS256Validator(keyStore *KeyStore, issuer string, clockSkew time.Duration) TokenValidator {
	return &signedValidator{
		issuer:    issuer,
		method:    jwt.SigningMethodRS256.Alg(),
		clockSkew: clockSkew,
		lookup: func(kid string) (interface{}, bool) {
			key, ok := keyStore.GetRS256Key(issuer, kid)
			return key, ok
		},
	}
}

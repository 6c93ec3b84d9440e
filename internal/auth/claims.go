package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims are the token claims accepted by the API. The subject is the
// user id that group membership is looked up by.
type CustomClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ActorID returns the authenticated user id.
func (c *CustomClaims) ActorID() string {
	return c.Subject
}

// Validate is called by the jwt parser after the registered claims pass.
func (c *CustomClaims) Validate() error {
	if strings.TrimSpace(c.Subject) == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// ActorHeader names the user a trusted service acts on behalf of.
const ActorHeader = "X-Actor-Id"

// S2STokenStore stores service-to-service authentication tokens
type S2STokenStore struct {
	tokens map[string]string // token -> client name
}

func NewS2STokenStore() *S2STokenStore {
	return &S2STokenStore{
		tokens: make(map[string]string),
	}
}

// RegisterToken registers an S2S token for a client. Empty tokens are ignored.
func (s *S2STokenStore) RegisterToken(token, clientName string) {
	if token != "" {
		s.tokens[token] = clientName
	}
}

// ValidateToken returns the client name registered for token.
func (s *S2STokenStore) ValidateToken(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for known, client := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return client, true
		}
	}
	return "", false
}

// isJWTToken checks if a token looks like a JWT (starts with "eyJ" and has two dots)
func isJWTToken(token string) bool {
	return strings.HasPrefix(token, "eyJ") && strings.Count(token, ".") == 2
}

// s2sActorID reads the user a service call is made for. Services never act as themselves.
func s2sActorID(r *http.Request) (string, error) {
	raw, present := r.Header[http.CanonicalHeaderKey(ActorHeader)]
	if !present || len(raw) == 0 {
		return "", fmt.Errorf("%s header is required for service tokens", ActorHeader)
	}
	actorID := strings.TrimSpace(raw[0])
	if actorID == "" {
		return "", fmt.Errorf("%s must be non-empty", ActorHeader)
	}
	return actorID, nil
}

package auth

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultKeyID is assumed when a token header carries no kid.
const DefaultKeyID = "v1"

// KeyStore manages verification keys by issuer and kid
type KeyStore struct {
	hs256Keys map[string]map[string][]byte         // issuer -> kid -> secret
	rs256Keys map[string]map[string]*rsa.PublicKey // issuer -> kid -> public key
}

func NewKeyStore() *KeyStore {
	return &KeyStore{
		hs256Keys: make(map[string]map[string][]byte),
		rs256Keys: make(map[string]map[string]*rsa.PublicKey),
	}
}

// LoadHS256Key adds an HS256 secret key for an issuer and kid
func (ks *KeyStore) LoadHS256Key(issuer, kid string, secret []byte) {
	if _, ok := ks.hs256Keys[issuer]; !ok {
		ks.hs256Keys[issuer] = make(map[string][]byte)
	}
	ks.hs256Keys[issuer][kid] = secret
}

// LoadRS256Key parses a PEM public key and adds it for an issuer and kid.
// Literal "\n" sequences are accepted so the PEM can live in one env var line.
func (ks *KeyStore) LoadRS256Key(issuer, kid string, publicKeyPEM string) error {
	normalizedPEM := strings.TrimSpace(strings.ReplaceAll(publicKeyPEM, `\n`, "\n"))

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(normalizedPEM))
	if err != nil {
		return fmt.Errorf("failed to parse RSA public key: %w", err)
	}

	if _, ok := ks.rs256Keys[issuer]; !ok {
		ks.rs256Keys[issuer] = make(map[string]*rsa.PublicKey)
	}
	ks.rs256Keys[issuer][kid] = publicKey
	return nil
}

func (ks *KeyStore) GetHS256Key(issuer, kid string) ([]byte, bool) {
	secret, ok := ks.hs256Keys[issuer][kid]
	return secret, ok
}

func (ks *KeyStore) GetRS256Key(issuer, kid string) (*rsa.PublicKey, bool) {
	key, ok := ks.rs256Keys[issuer][kid]
	return key, ok
}

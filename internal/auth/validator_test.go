package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-key-must-be-at-least-32-chars-long-for-hmac"
	testIssuer   = "forms-web"
	testAudience = "forms-api"
)

func testClaims(subject, issuer string, exp time.Time) *CustomClaims {
	return &CustomClaims{
		Name: "Ana",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func signHS256(t *testing.T, secret string, claims *CustomClaims) string {
	t.Helper()
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func createTestToken(t *testing.T, subject string, exp time.Time) string {
	return signHS256(t, testSecret, testClaims(subject, testIssuer, exp))
}

func hsValidator() TokenValidator {
	keyStore := NewKeyStore()
	keyStore.LoadHS256Key(testIssuer, DefaultKeyID, []byte(testSecret))
	return NewHS256Validator(keyStore, testIssuer, 60*time.Second)
}

func TestHS256Validator_ValidToken(t *testing.T) {
	token := createTestToken(t, "user-67890", time.Now().Add(time.Hour))

	result, err := hsValidator().Validate(token, DefaultKeyID)

	require.NoError(t, err)
	assert.Equal(t, "user-67890", result.ActorID())
	assert.Equal(t, "Ana", result.Name)
	assert.Equal(t, testIssuer, result.Issuer)
}

func TestHS256Validator_Failures(t *testing.T) {
	tests := []struct {
		name   string
		token  func(t *testing.T) string
		kid    string
		reason AuthFailureReason
	}{
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				claims := testClaims("u1", testIssuer, time.Now().Add(time.Hour))
				return signHS256(t, "another-secret-of-sufficient-length-000000", claims)
			},
			kid:    DefaultKeyID,
			reason: AuthFailureInvalidSignature,
		},
		{
			name:   "expired beyond skew",
			token:  func(t *testing.T) string { return createTestToken(t, "u1", time.Now().Add(-2*time.Minute)) },
			kid:    DefaultKeyID,
			reason: AuthFailureTokenExpired,
		},
		{
			name:   "missing subject",
			token:  func(t *testing.T) string { return createTestToken(t, "", time.Now().Add(time.Hour)) },
			kid:    DefaultKeyID,
			reason: AuthFailureInvalidClaims,
		},
		{
			name:   "unknown kid",
			token:  func(t *testing.T) string { return createTestToken(t, "u1", time.Now().Add(time.Hour)) },
			kid:    "v9",
			reason: AuthFailureUnknownKey,
		},
		{
			name: "issuer differs from validator",
			token: func(t *testing.T) string {
				return signHS256(t, testSecret, testClaims("u1", "other", time.Now().Add(time.Hour)))
			},
			kid:    DefaultKeyID,
			reason: AuthFailureInvalidIssuer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := hsValidator().Validate(tt.token(t), tt.kid)
			require.Error(t, err)
			assert.Nil(t, result)

			authErr, ok := IsAuthError(err)
			require.True(t, ok)
			assert.Equal(t, tt.reason, authErr.Reason)
		})
	}
}

func TestHS256Validator_WithinClockSkew(t *testing.T) {
	token := createTestToken(t, "u1", time.Now().Add(-30*time.Second))

	result, err := hsValidator().Validate(token, DefaultKeyID)
	require.NoError(t, err)
	assert.Equal(t, "u1", result.ActorID())
}

func TestHS256Validator_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims("u1", testIssuer, time.Now().Add(time.Hour))).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = hsValidator().Validate(token, DefaultKeyID)
	require.Error(t, err)
}

func TestRS256Validator(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	keyStore := NewKeyStore()
	require.NoError(t, keyStore.LoadRS256Key("forms-sso", DefaultKeyID, string(pemBytes)))
	validator := NewRS256Validator(keyStore, "forms-sso", time.Minute)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, testClaims("user-rs", "forms-sso", time.Now().Add(time.Hour))).
		SignedString(privateKey)
	require.NoError(t, err)

	result, err := validator.Validate(token, DefaultKeyID)
	require.NoError(t, err)
	assert.Equal(t, "user-rs", result.ActorID())

	// an HS256 token must not pass the RS256 validator
	_, err = validator.Validate(signHS256(t, testSecret, testClaims("u1", "forms-sso", time.Now().Add(time.Hour))), DefaultKeyID)
	authErr, ok := IsAuthError(err)
	require.True(t, ok)
	assert.Equal(t, AuthFailureInvalidSignature, authErr.Reason)
}

func TestKeyStore_LoadRS256Key_EscapedNewlines(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	escaped := ""
	for _, b := range string(pemBytes) {
		if b == '\n' {
			escaped += `\n`
			continue
		}
		escaped += string(b)
	}

	ks := NewKeyStore()
	require.NoError(t, ks.LoadRS256Key("iss", DefaultKeyID, escaped))
	_, ok := ks.GetRS256Key("iss", DefaultKeyID)
	assert.True(t, ok)

	assert.Error(t, ks.LoadRS256Key("iss", "bad", "not a pem"))
}

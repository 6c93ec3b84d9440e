package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultIdempotencyTTL is how long a stored response is replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRepo handles idempotency key storage and retrieval.
// Keys are scoped: an actor id for authenticated calls, "public:<slug>:<ip>"
// for anonymous submissions.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewIdempotencyRepo creates a new IdempotencyRepo
func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool, ttl: DefaultIdempotencyTTL}
}

// CachedResponse represents a cached response from an idempotent request
type CachedResponse struct {
	RequestHash string
	Status      int
	Body        json.RawMessage
	Headers     map[string]string
}

// StoredRequest is what StoreResult persists.
type StoredRequest struct {
	Scope       string
	KeyHash     string
	OriginalKey string
	RequestHash string
	Method      string
	Path        string
	Payload     json.RawMessage
	Status      int
	Body        json.RawMessage
	Headers     map[string]string
}

// HashKey generates SHA256 hash of idempotency key
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// HashRequest fingerprints the request a key was first used with. A replay
// is only valid for the same method, path and body.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// CheckKey returns the cached response for (scope, keyHash), or nil when absent or expired.
func (r *IdempotencyRepo) CheckKey(ctx context.Context, scope, keyHash string) (*CachedResponse, error) {
	query := `
		SELECT request_hash, response_status, response_body, response_headers
		FROM idempotency_keys
		WHERE scope = $1 AND key_hash = $2 AND expires_at > NOW()
	`

	var requestHash string
	var status int
	var body json.RawMessage
	var headersJSON []byte

	err := r.pool.QueryRow(ctx, query, scope, keyHash).Scan(&requestHash, &status, &body, &headersJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	var headers map[string]string
	if headersJSON != nil {
		if err := json.Unmarshal(headersJSON, &headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}

	return &CachedResponse{
		RequestHash: requestHash,
		Status:      status,
		Body:        body,
		Headers:     headers,
	}, nil
}

// StoreResult stores the result of an idempotent request. The first writer
// for a key wins.
func (r *IdempotencyRepo) StoreResult(ctx context.Context, req StoredRequest) error {
	headersJSON, err := json.Marshal(req.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	var payload, body any
	if len(req.Payload) > 0 && json.Valid(req.Payload) {
		payload = string(req.Payload)
	}
	if len(req.Body) > 0 && json.Valid(req.Body) {
		body = string(req.Body)
	}

	query := `
		INSERT INTO idempotency_keys (
			key_hash, scope, original_key, request_hash, request_method, request_path,
			request_payload, response_status, response_body, response_headers, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (scope, key_hash) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		req.KeyHash, req.Scope, req.OriginalKey, req.RequestHash, req.Method, req.Path,
		payload, req.Status, body, string(headersJSON), time.Now().Add(r.ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}

	return nil
}

// CleanupExpired removes expired idempotency keys
func (r *IdempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired keys: %w", err)
	}

	return result.RowsAffected(), nil
}

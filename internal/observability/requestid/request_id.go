// Package requestid carries the per-request correlation id through context.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// Header is the header read from clients and echoed on every response.
const Header = "X-Request-Id"

// maxInboundLength bounds client-supplied ids before they reach logs.
const maxInboundLength = 128

// NewRequestID returns a time-ordered id (UUIDv7) prefixed with "req_".
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "req_" + uuid.NewString()
	}
	return "req_" + id.String()
}

// FromInbound accepts a client-supplied id when it is printable and short,
// otherwise it generates a new one.
func FromInbound(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxInboundLength {
		return NewRequestID()
	}
	for _, r := range raw {
		if r < 0x21 || r > 0x7e {
			return NewRequestID()
		}
	}
	return raw
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID stores request ID in context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

package service

import (
	"context"

	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"

	"go.uber.org/zap"
)

// AuditLogger records mutations. Implemented by repo.AuditRepo.
type AuditLogger interface {
	LogAction(ctx context.Context, entry repo.AuditEntry) error
}

type requestMetaKey struct{}

// RequestMeta is client information attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta stores meta for audit entries written while serving ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the meta stored by WithRequestMeta, or zero values.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// recordAudit writes an audit entry. Failures are logged and never fail the operation.
func recordAudit(ctx context.Context, audit AuditLogger, log *logger.Logger, module string, entry repo.AuditEntry) {
	if audit == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	entry.IPAddress = meta.IPAddress
	entry.UserAgent = meta.UserAgent

	if err := audit.LogAction(ctx, entry); err != nil {
		log.Warn(ctx, "failed to write audit entry",
			logger.Module(module),
			logger.Action(entry.Action),
			zap.Error(err),
		)
	}
}

func strPtr(s string) *string {
	return &s
}

package service

import (
	"context"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/permission"
	"forms-api/internal/telemetry"

	"go.uber.org/zap"
)

// Authorizer runs the permission evaluator and records every decision.
type Authorizer struct {
	evaluator *permission.Evaluator
	metrics   *telemetry.Metrics
	log       *logger.Logger
}

func NewAuthorizer(evaluator *permission.Evaluator, metrics *telemetry.Metrics, log *logger.Logger) *Authorizer {
	return &Authorizer{evaluator: evaluator, metrics: metrics, log: log}
}

// Require returns domain.ErrPermissionDenied unless actor may perform action on formID.
func (a *Authorizer) Require(ctx context.Context, module string, actor *domain.Actor, formID string, action domain.Action) error {
	allowed, decision, err := a.evaluator.Explain(ctx, actor, formID, action)
	if err != nil {
		a.log.Error(ctx, "permission evaluation failed",
			logger.Module(module),
			logger.Action("authorization"),
			zap.String("form_id", formID),
			zap.String("permission_action", string(action)),
			zap.Error(err),
		)
		return err
	}

	telemetry.RecordPermissionDecision(ctx, a.metrics, string(action), allowed, string(decision))

	fields := []zap.Field{
		logger.Module(module),
		logger.Action("authorization"),
		zap.String("form_id", formID),
		zap.String("permission_action", string(action)),
		zap.String("decision", string(decision)),
	}
	if !allowed {
		a.log.Warn(ctx, "form access denied", fields...)
		return domain.ErrPermissionDenied
	}

	a.log.Debug(ctx, "form access granted", fields...)
	return nil
}

// RequireForm loads formID and then checks action on it. A form that does
// not exist is reported as not found before any permission is evaluated,
// whatever the actor's grants.
func (a *Authorizer) RequireForm(ctx context.Context, module string, forms FormGetter, actor *domain.Actor, formID string, action domain.Action) (*domain.Form, error) {
	form, err := forms.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := a.Require(ctx, module, actor, formID, action); err != nil {
		return nil, err
	}
	return form, nil
}

// RequireCode checks a capability that is not tied to a form. Any of codes
// grants access, and forms:manage_all always does.
func (a *Authorizer) RequireCode(ctx context.Context, module string, actor *domain.Actor, codes ...domain.PermissionCode) error {
	granted := actor.HasCode(domain.CodeFormsManageAll)
	for _, c := range codes {
		if granted {
			break
		}
		granted = actor.HasCode(c)
	}

	label := "code"
	if len(codes) > 0 {
		label = string(codes[0])
	}
	reason := "global_code"
	if !granted {
		reason = "missing_code"
	}
	telemetry.RecordPermissionDecision(ctx, a.metrics, label, granted, reason)

	if !granted {
		a.log.Warn(ctx, "capability denied",
			logger.Module(module),
			logger.Action("authorization"),
			zap.String("required_code", label),
		)
		return domain.ErrPermissionDenied
	}
	return nil
}

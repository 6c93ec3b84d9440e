package service

import (
	"context"
	"errors"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"
	"forms-api/internal/submission"
	"forms-api/internal/telemetry"
	"forms-api/internal/uniqueness"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SubmissionStore is implemented by repo.SubmissionRepository.
type SubmissionStore interface {
	Create(ctx context.Context, sub *domain.Submission) error
	Get(ctx context.Context, formID, submissionID string) (*domain.Submission, error)
	List(ctx context.Context, formID string, params domain.ListSubmissionsParams) ([]domain.Submission, *string, error)
	Delete(ctx context.Context, formID, submissionID string) (bool, error)
	DeleteByForm(ctx context.Context, formID string) (int64, error)
}

// PublicFormGetter loads a form open for responses.
type PublicFormGetter interface {
	GetPublicBySlug(ctx context.Context, slug string) (*domain.Form, error)
}

// SubmissionForms is implemented by repo.FormRepository.
type SubmissionForms interface {
	FormGetter
	PublicFormGetter
}

type SubmissionService struct {
	subs    SubmissionStore
	forms   SubmissionForms
	authz   *Authorizer
	audit   AuditLogger
	metrics *telemetry.Metrics
	log     *logger.Logger
	newID   func() string
}

func NewSubmissionService(subs SubmissionStore, forms SubmissionForms, authz *Authorizer, audit AuditLogger, metrics *telemetry.Metrics, log *logger.Logger) *SubmissionService {
	return &SubmissionService{
		subs:    subs,
		forms:   forms,
		authz:   authz,
		audit:   audit,
		metrics: metrics,
		log:     log,
		newID:   uuid.NewString,
	}
}

// Submit accepts an anonymous response to the form published under slug.
//
// Empty items are dropped before validation. The identity key chosen by the
// form's uniqueness mode is stored alongside the answers, and a duplicate is
// reported by storage as *domain.ConflictError. Origin address and user agent
// come from the request context, never from the body.
func (s *SubmissionService) Submit(ctx context.Context, slug string, req *domain.CreateSubmissionRequest) (*domain.SubmissionReceipt, error) {
	form, err := s.forms.GetPublicBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	items := submission.DropEmpty(req.Items)
	if err := submission.ValidateAll(form, items); err != nil {
		return nil, err
	}

	ident, err := uniqueness.Resolve(form.UniquenessMode, submission.ExtractIdentity(form, items))
	if err != nil {
		return nil, err
	}

	meta := RequestMetaFrom(ctx)
	sub := &domain.Submission{
		ID:         s.newID(),
		FormID:     form.ID,
		Email:      ident.Email,
		Phone:      ident.Phone,
		NationalID: ident.NationalID,
		OriginIP:   optional(meta.IPAddress),
		UserAgent:  optional(meta.UserAgent),
		Meta:       req.Meta,
		Items:      items,
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			s.log.Info(ctx, "duplicate submission rejected",
				logger.Module("submission"),
				logger.Action("submit"),
				zap.String("form_id", form.ID),
				zap.String("identity_kind", string(ce.Kind)),
			)
		}
		return nil, err
	}

	if s.metrics != nil && s.metrics.SubmissionsAccepted != nil {
		s.metrics.SubmissionsAccepted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("uniqueness_mode", string(form.UniquenessMode)),
		))
	}

	s.log.Info(ctx, "submission accepted",
		logger.Module("submission"),
		logger.Action("submit"),
		zap.String("form_id", form.ID),
		zap.String("submission_id", sub.ID),
		zap.Int("items", len(items)),
	)

	return &domain.SubmissionReceipt{ID: sub.ID, FormID: sub.FormID, CreatedAt: sub.CreatedAt}, nil
}

func (s *SubmissionService) List(ctx context.Context, actor *domain.Actor, formID string, params domain.ListSubmissionsParams) (*domain.SubmissionListResponse, error) {
	if _, err := s.authz.RequireForm(ctx, "submission", s.forms, actor, formID, domain.ActionView); err != nil {
		return nil, err
	}
	subs, next, err := s.subs.List(ctx, formID, params)
	if err != nil {
		return nil, err
	}
	return &domain.SubmissionListResponse{Data: subs, NextCursor: next}, nil
}

func (s *SubmissionService) Get(ctx context.Context, actor *domain.Actor, formID, submissionID string) (*domain.Submission, error) {
	if _, err := s.authz.RequireForm(ctx, "submission", s.forms, actor, formID, domain.ActionView); err != nil {
		return nil, err
	}
	return s.subs.Get(ctx, formID, submissionID)
}

func (s *SubmissionService) Delete(ctx context.Context, actor *domain.Actor, formID, submissionID string) error {
	if _, err := s.authz.RequireForm(ctx, "submission", s.forms, actor, formID, domain.ActionDelete); err != nil {
		return err
	}

	deleted, err := s.subs.Delete(ctx, formID, submissionID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NewNotFoundError("submission", submissionID)
	}

	recordAudit(ctx, s.audit, s.log, "submission", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "submission.delete",
		ResourceType: "submission",
		ResourceID:   strPtr(submissionID),
		Metadata:     map[string]any{"formId": formID},
	})
	return nil
}

// DeleteAll removes every submission of the form and returns how many were removed.
func (s *SubmissionService) DeleteAll(ctx context.Context, actor *domain.Actor, formID string) (*domain.DeleteSubmissionsResponse, error) {
	if _, err := s.authz.RequireForm(ctx, "submission", s.forms, actor, formID, domain.ActionDelete); err != nil {
		return nil, err
	}
	n, err := s.subs.DeleteByForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.log, "submission", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "submission.delete_all",
		ResourceType: "form",
		ResourceID:   strPtr(formID),
		Metadata:     map[string]any{"deleted": n},
	})
	s.log.Info(ctx, "form submissions deleted",
		logger.Module("submission"),
		logger.Action("delete_all"),
		zap.String("form_id", formID),
		zap.Int64("deleted", n),
	)
	return &domain.DeleteSubmissionsResponse{Deleted: n}, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

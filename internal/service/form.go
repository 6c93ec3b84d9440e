package service

import (
	"context"
	"errors"
	"strings"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FormStore is the persistence the form service needs. Implemented by repo.FormRepository.
type FormStore interface {
	Create(ctx context.Context, form *domain.Form, grantGroups []string) error
	Get(ctx context.Context, formID string) (*domain.Form, error)
	GetPublicBySlug(ctx context.Context, slug string) (*domain.Form, error)
	List(ctx context.Context, params domain.ListFormsParams, viewerGroup *string) ([]domain.Form, *string, error)
	SetState(ctx context.Context, formID string, from, to domain.FormState) error
	Publish(ctx context.Context, formID, slug string) (string, error)
	Unpublish(ctx context.Context, formID string) error
}

// GroupLookup resolves the admin group by name. Implemented by repo.GroupRepository.
type GroupLookup interface {
	GetByName(ctx context.Context, name string) (*domain.Group, error)
}

const publishSlugAttempts = 3

type FormService struct {
	forms      FormStore
	groups     GroupLookup
	authz      *Authorizer
	audit      AuditLogger
	adminGroup string
	log        *logger.Logger
	newID      func() string
	newSlug    func() string
}

func NewFormService(forms FormStore, groups GroupLookup, authz *Authorizer, audit AuditLogger, adminGroup string, log *logger.Logger) *FormService {
	return &FormService{
		forms:      forms,
		groups:     groups,
		authz:      authz,
		audit:      audit,
		adminGroup: adminGroup,
		log:        log,
		newID:      uuid.NewString,
		newSlug:    newPublicSlug,
	}
}

// newPublicSlug returns 12 lowercase hex characters.
func newPublicSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Create builds the form with fresh ids and grants full access to the
// creator's group and the admin group in the same transaction.
func (s *FormService) Create(ctx context.Context, actor *domain.Actor, req *domain.CreateFormRequest) (*domain.Form, error) {
	if err := s.authz.RequireCode(ctx, "form", actor, domain.CodeFormsCreate); err != nil {
		return nil, err
	}

	form := &domain.Form{
		ID:             s.newID(),
		Title:          req.Title,
		Description:    req.Description,
		State:          domain.FormActive,
		UniquenessMode: req.UniquenessMode,
		CreatedBy:      actor.ID,
		Questions:      make([]domain.Question, 0, len(req.Questions)),
	}

	for i, qr := range req.Questions {
		q := domain.Question{
			ID:       s.newID(),
			FormID:   form.ID,
			Title:    qr.Title,
			Type:     qr.Type,
			Required: qr.Required,
			Position: i,
			ScaleMin: qr.ScaleMin,
			ScaleMax: qr.ScaleMax,
			Options:  make([]domain.Option, 0, len(qr.Options)),
		}
		for j, or := range qr.Options {
			q.Options = append(q.Options, domain.Option{
				ID:         s.newID(),
				QuestionID: q.ID,
				Text:       or.Text,
				Custom:     or.Custom,
				Position:   j,
			})
		}
		form.Questions = append(form.Questions, q)
	}

	grants := make([]string, 0, 2)
	if actor.GroupID != "" {
		grants = append(grants, actor.GroupID)
	}
	if adminID := s.adminGroupID(ctx); adminID != "" && adminID != actor.GroupID {
		grants = append(grants, adminID)
	}

	if err := s.forms.Create(ctx, form, grants); err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.log, "form", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "form.create",
		ResourceType: "form",
		ResourceID:   strPtr(form.ID),
		Metadata:     map[string]any{"questions": len(form.Questions), "uniquenessMode": form.UniquenessMode},
	})

	s.log.Info(ctx, "form created",
		logger.Module("form"),
		logger.Action("create"),
		zap.String("form_id", form.ID),
		zap.Int("questions", len(form.Questions)),
	)
	return form, nil
}

// adminGroupID returns "" when the admin group is missing; creation still
// succeeds with only the creator's grant.
func (s *FormService) adminGroupID(ctx context.Context) string {
	if s.adminGroup == "" || s.groups == nil {
		return ""
	}
	g, err := s.groups.GetByName(ctx, s.adminGroup)
	if err != nil {
		level := s.log.Error
		if errors.Is(err, domain.ErrNotFound) {
			level = s.log.Warn
		}
		level(ctx, "admin group unavailable for default grant",
			logger.Module("form"),
			logger.Action("create"),
			zap.String("admin_group", s.adminGroup),
			zap.Error(err),
		)
		return ""
	}
	return g.ID
}

// Get returns a form in any state to an actor with view access.
func (s *FormService) Get(ctx context.Context, actor *domain.Actor, formID string) (*domain.Form, error) {
	return s.authz.RequireForm(ctx, "form", s.forms, actor, formID, domain.ActionView)
}

// List returns every form to actors with a global view grant and only
// ACL-visible forms to everyone else.
func (s *FormService) List(ctx context.Context, actor *domain.Actor, params domain.ListFormsParams) (*domain.FormListResponse, error) {
	var viewerGroup *string
	if !actor.HasCode(domain.CodeFormsManageAll) && !actor.HasCode(domain.CodeFormsView) {
		if actor == nil || actor.GroupID == "" {
			return &domain.FormListResponse{Data: []domain.Form{}}, nil
		}
		viewerGroup = &actor.GroupID
	}

	forms, next, err := s.forms.List(ctx, params, viewerGroup)
	if err != nil {
		return nil, err
	}
	return &domain.FormListResponse{Data: forms, NextCursor: next}, nil
}

// Archive moves an active form to archived. Archiving an archived form is a no-op.
func (s *FormService) Archive(ctx context.Context, actor *domain.Actor, formID string) (*domain.Form, error) {
	form, err := s.authz.RequireForm(ctx, "form", s.forms, actor, formID, domain.ActionDelete)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, form, domain.FormActive, domain.FormArchived, "form.archive")
}

// Restore moves an archived form back to active. Requires a global grant.
func (s *FormService) Restore(ctx context.Context, actor *domain.Actor, formID string) (*domain.Form, error) {
	form, err := s.authz.RequireForm(ctx, "form", s.forms, actor, formID, domain.ActionRestore)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, form, domain.FormArchived, domain.FormActive, "form.restore")
}

func (s *FormService) transition(ctx context.Context, actor *domain.Actor, form *domain.Form, from, to domain.FormState, action string) (*domain.Form, error) {
	if form.State == to {
		return form, nil
	}

	if err := s.forms.SetState(ctx, form.ID, from, to); err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.log, "form", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       action,
		ResourceType: "form",
		ResourceID:   strPtr(form.ID),
	})
	s.log.Info(ctx, "form state changed",
		logger.Module("form"),
		logger.Action(action),
		zap.String("form_id", form.ID),
		zap.String("state", string(to)),
	)
	return s.forms.Get(ctx, form.ID)
}

// Publish opens the form for public responses, assigning a slug the first
// time. Slug collisions are retried with a fresh slug; when every attempt
// collides the result is a form-level duplicate error.
func (s *FormService) Publish(ctx context.Context, actor *domain.Actor, formID string) (*domain.PublishResponse, error) {
	form, err := s.authz.RequireForm(ctx, "form", s.forms, actor, formID, domain.ActionEdit)
	if err != nil {
		return nil, err
	}
	if !form.IsActive() {
		return nil, domain.NewValidationError("state", "archived forms cannot be published")
	}

	var slug string
	for attempt := 1; ; attempt++ {
		slug, err = s.forms.Publish(ctx, formID, s.newSlug())
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		if attempt == publishSlugAttempts {
			s.log.Error(ctx, "public slug attempts exhausted",
				logger.Module("form"),
				logger.Action("publish"),
				zap.String("form_id", formID),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return nil, &domain.DuplicateError{Entity: "form", Field: "public slug"}
		}
	}

	recordAudit(ctx, s.audit, s.log, "form", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "form.publish",
		ResourceType: "form",
		ResourceID:   strPtr(formID),
		Metadata:     map[string]any{"slug": slug},
	})
	return &domain.PublishResponse{FormID: formID, PublicSlug: slug, Accepting: true}, nil
}

// Unpublish stops public responses. The slug is kept for a later Publish.
func (s *FormService) Unpublish(ctx context.Context, actor *domain.Actor, formID string) (*domain.PublishResponse, error) {
	if _, err := s.authz.RequireForm(ctx, "form", s.forms, actor, formID, domain.ActionEdit); err != nil {
		return nil, err
	}
	if err := s.forms.Unpublish(ctx, formID); err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.log, "form", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "form.unpublish",
		ResourceType: "form",
		ResourceID:   strPtr(formID),
	})

	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	resp := &domain.PublishResponse{FormID: formID, Accepting: form.AcceptingResponses}
	if form.PublicSlug != nil {
		resp.PublicSlug = *form.PublicSlug
	}
	return resp, nil
}

// GetPublic returns the respondent view of a published form.
func (s *FormService) GetPublic(ctx context.Context, slug string) (*domain.Form, error) {
	form, err := s.forms.GetPublicBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return form.PublicView(), nil
}

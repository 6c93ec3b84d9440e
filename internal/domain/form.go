package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FormState is the explicit lifecycle of a form.
type FormState string

const (
	FormActive   FormState = "active"
	FormArchived FormState = "archived"
)

// Form is the resource every ACL entry and submission hangs off.
type Form struct {
	ID                 string         `json:"id" db:"id"`
	Title              string         `json:"title" db:"title"`
	Description        *string        `json:"description,omitempty" db:"description"`
	State              FormState      `json:"state" db:"state"`
	UniquenessMode     UniquenessMode `json:"uniquenessMode" db:"uniqueness_mode"`
	AcceptingResponses bool           `json:"acceptingResponses" db:"accepting_responses"`
	PublicSlug         *string        `json:"publicSlug,omitempty" db:"public_slug"`
	CreatedBy          string         `json:"createdBy" db:"created_by"`
	CreatedAt          time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time      `json:"updatedAt" db:"updated_at"`
	ArchivedAt         *time.Time     `json:"archivedAt,omitempty" db:"archived_at"`
	Questions          []Question     `json:"questions,omitempty"`
}

// IsActive reports whether the form is in the active state.
func (f *Form) IsActive() bool {
	return f.State == FormActive
}

// QuestionByID returns the question with id, or nil.
func (f *Form) QuestionByID(id string) *Question {
	for i := range f.Questions {
		if f.Questions[i].ID == id {
			return &f.Questions[i]
		}
	}
	return nil
}

// =====================================================
// Requests
// =====================================================

// CreateFormRequest DTO para POST /v1/forms
type CreateFormRequest struct {
	Title          string                  `json:"title" validate:"required,min=1,max=255"`
	Description    *string                 `json:"description,omitempty" validate:"omitempty,max=5000"`
	UniquenessMode UniquenessMode          `json:"uniquenessMode"`
	Questions      []CreateQuestionRequest `json:"questions" validate:"required,min=1,max=500"`
}

// Validate sanitizes and validates the request. An empty uniqueness mode defaults to none.
func (r *CreateFormRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		if trimmed == "" {
			r.Description = nil
		} else {
			r.Description = &trimmed
		}
	}
	if r.UniquenessMode == "" {
		r.UniquenessMode = UniquenessNone
	}

	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}

	if !r.UniquenessMode.IsValid() {
		return NewValidationError("uniquenessMode", "unsupported uniqueness mode %q", r.UniquenessMode)
	}

	for i := range r.Questions {
		if err := r.Questions[i].Validate(fmt.Sprintf("questions[%d]", i)); err != nil {
			return err
		}
	}

	if !r.collectsIdentity() {
		return NewValidationError("uniquenessMode",
			"uniqueness mode %q needs at least one question of a matching identity type", r.UniquenessMode)
	}
	return nil
}

// collectsIdentity reports whether some question can supply an identity the
// uniqueness mode looks for. Mode none needs none.
func (r *CreateFormRequest) collectsIdentity() bool {
	kinds, _ := r.UniquenessMode.Priority()
	if len(kinds) == 0 {
		return true
	}
	for _, q := range r.Questions {
		kind, ok := q.Type.IdentityKind()
		if !ok {
			continue
		}
		for _, k := range kinds {
			if k == kind {
				return true
			}
		}
	}
	return false
}

// ListFormsParams controla paginação e filtro de estado na listagem.
type ListFormsParams struct {
	IncludeArchived bool
	Limit           int
	Cursor          *string
}

// FormListResponse is returned by GET /v1/forms.
type FormListResponse struct {
	Data       []Form  `json:"data"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// PublishResponse is returned by POST /v1/forms/{formId}/publish.
type PublishResponse struct {
	FormID     string `json:"formId"`
	PublicSlug string `json:"publicSlug"`
	Accepting  bool   `json:"acceptingResponses"`
}

// PublicView returns a copy without fields respondents must not see.
func (f *Form) PublicView() *Form {
	out := *f
	out.CreatedBy = ""
	out.ArchivedAt = nil
	return &out
}

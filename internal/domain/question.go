package domain

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// QuestionType is the closed set of answer shapes a question accepts.
type QuestionType string

const (
	QuestionNumericScore QuestionType = "numeric_score"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionShortText    QuestionType = "short_text"
	QuestionLongText     QuestionType = "long_text"
	QuestionNumber       QuestionType = "number"
	QuestionDate         QuestionType = "date"
	QuestionEmail        QuestionType = "email"
	QuestionPhone        QuestionType = "phone"
	QuestionNationalID   QuestionType = "national_id"
	QuestionCustomChoice QuestionType = "custom_choice"
)

// AllQuestionTypes lists every supported type in declaration order.
var AllQuestionTypes = []QuestionType{
	QuestionNumericScore,
	QuestionSingleChoice,
	QuestionMultiChoice,
	QuestionShortText,
	QuestionLongText,
	QuestionNumber,
	QuestionDate,
	QuestionEmail,
	QuestionPhone,
	QuestionNationalID,
	QuestionCustomChoice,
}

// IsValid checks if the type is one of the defined constants
func (t QuestionType) IsValid() bool {
	for _, v := range AllQuestionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsChoice reports whether answers reference an option.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultiChoice || t == QuestionCustomChoice
}

// IdentityKind returns the identity kind an answer to this question feeds, if any.
func (t QuestionType) IdentityKind() (IdentityKind, bool) {
	switch t {
	case QuestionEmail:
		return IdentityEmail, true
	case QuestionPhone:
		return IdentityPhone, true
	case QuestionNationalID:
		return IdentityNationalID, true
	}
	return "", false
}

// Option is one selectable answer of a choice question.
// Custom options accept free text alongside the selection.
type Option struct {
	ID         string `json:"id" db:"id"`
	QuestionID string `json:"questionId" db:"question_id"`
	Text       string `json:"text" db:"text"`
	Custom     bool   `json:"custom" db:"custom"`
	Position   int    `json:"position" db:"position"`
}

// Question belongs to exactly one form.
type Question struct {
	ID       string       `json:"id" db:"id"`
	FormID   string       `json:"formId" db:"form_id"`
	Title    string       `json:"title" db:"title"`
	Type     QuestionType `json:"type" db:"type"`
	Required bool         `json:"required" db:"required"`
	Position int          `json:"position" db:"position"`
	ScaleMin *int         `json:"scaleMin,omitempty" db:"scale_min"`
	ScaleMax *int         `json:"scaleMax,omitempty" db:"scale_max"`
	Options  []Option     `json:"options"`
}

// HasOption reports whether optionID belongs to this question.
func (q *Question) HasOption(optionID string) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// CreateOptionRequest is one option of a choice question.
type CreateOptionRequest struct {
	Text   string `json:"text" validate:"required,min=1,max=500"`
	Custom bool   `json:"custom"`
}

// CreateQuestionRequest describes a question at form creation time.
type CreateQuestionRequest struct {
	Title    string                `json:"title" validate:"required,min=1,max=1000"`
	Type     QuestionType          `json:"type" validate:"required"`
	Required bool                  `json:"required"`
	ScaleMin *int                  `json:"scaleMin,omitempty"`
	ScaleMax *int                  `json:"scaleMax,omitempty"`
	Options  []CreateOptionRequest `json:"options,omitempty" validate:"omitempty,max=200,dive"`
}

// Validate sanitizes the request and enforces per-type shape rules.
// Numeric-score questions must declare both bounds with min < max.
func (r *CreateQuestionRequest) Validate(field string) error {
	r.Title = strings.TrimSpace(r.Title)
	for i := range r.Options {
		r.Options[i].Text = strings.TrimSpace(r.Options[i].Text)
	}

	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}

	if !r.Type.IsValid() {
		return NewValidationError(field+".type", "unsupported question type %q", r.Type)
	}

	switch r.Type {
	case QuestionNumericScore:
		if r.ScaleMin == nil || r.ScaleMax == nil {
			return NewValidationError(field, "numeric-score questions require scaleMin and scaleMax")
		}
		if *r.ScaleMin >= *r.ScaleMax {
			return NewValidationError(field, "scaleMin must be lower than scaleMax")
		}
	default:
		if r.ScaleMin != nil || r.ScaleMax != nil {
			return NewValidationError(field, "scale bounds are only allowed on numeric-score questions")
		}
	}

	if r.Type.IsChoice() {
		if len(r.Options) == 0 {
			return NewValidationError(field+".options", "choice questions require at least one option")
		}
	} else if len(r.Options) > 0 {
		return NewValidationError(field+".options", "options are only allowed on choice questions")
	}

	return nil
}

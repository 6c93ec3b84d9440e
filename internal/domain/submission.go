package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format of date answers.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// ParseDate parses s using DateLayout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("date must use %s: %w", DateLayout, err)
	}
	*d = parsed
	return nil
}

// AnswerItem is one answer to one question. Exactly one value field is set.
type AnswerItem struct {
	QuestionID string   `json:"questionId" validate:"required,uuid"`
	Text       *string  `json:"text,omitempty"`
	Number     *float64 `json:"number,omitempty"`
	OptionID   *string  `json:"optionId,omitempty" validate:"omitempty,uuid"`
	OptionText *string  `json:"optionText,omitempty"`
	Date       *Date    `json:"date,omitempty"`
}

// ValueCount returns how many value fields are populated.
func (a AnswerItem) ValueCount() int {
	n := 0
	if a.Text != nil {
		n++
	}
	if a.Number != nil {
		n++
	}
	if a.OptionID != nil {
		n++
	}
	if a.OptionText != nil {
		n++
	}
	if a.Date != nil {
		n++
	}
	return n
}

// IsEmpty reports whether the item carries no usable value. Whitespace-only
// text counts as empty.
func (a AnswerItem) IsEmpty() bool {
	if a.Number != nil || a.OptionID != nil || a.Date != nil {
		return false
	}
	if a.Text != nil && strings.TrimSpace(*a.Text) != "" {
		return false
	}
	if a.OptionText != nil && strings.TrimSpace(*a.OptionText) != "" {
		return false
	}
	return true
}

// Submission is one respondent's set of answers. Never mutated after creation.
type Submission struct {
	ID         string         `json:"id" db:"id"`
	FormID     string         `json:"formId" db:"form_id"`
	Email      *string        `json:"email,omitempty" db:"email"`
	Phone      *string        `json:"phone,omitempty" db:"phone"`
	NationalID *string        `json:"nationalId,omitempty" db:"national_id"`
	OriginIP   *string        `json:"originIp,omitempty" db:"origin_ip"`
	UserAgent  *string        `json:"userAgent,omitempty" db:"user_agent"`
	Meta       map[string]any `json:"meta,omitempty" db:"meta"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	Items      []AnswerItem   `json:"items"`
}

// Identity returns the submission's resolved identity fields.
func (s *Submission) Identity() IdentityFields {
	return IdentityFields{Email: s.Email, Phone: s.Phone, NationalID: s.NationalID}
}

// CreateSubmissionRequest DTO para POST /v1/public/forms/{slug}/submissions
// Meta is free-form client context (referrer, campaign) stored verbatim.
type CreateSubmissionRequest struct {
	Items []AnswerItem   `json:"items" validate:"required,max=2000,dive"`
	Meta  map[string]any `json:"meta,omitempty" validate:"omitempty,max=50"`
}

// Validate checks shape only; per-question rules run in the submission validator.
func (r *CreateSubmissionRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ListSubmissionsParams paginates submissions of a form.
type ListSubmissionsParams struct {
	Limit  int
	Cursor *string
}

// SubmissionListResponse is returned by GET /v1/forms/{formId}/submissions.
type SubmissionListResponse struct {
	Data       []Submission `json:"data"`
	NextCursor *string      `json:"nextCursor,omitempty"`
}

// SubmissionReceipt is returned to public respondents. It never echoes answers.
type SubmissionReceipt struct {
	ID        string    `json:"id"`
	FormID    string    `json:"formId"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeleteSubmissionsResponse is returned by DELETE /v1/forms/{formId}/submissions.
type DeleteSubmissionsResponse struct {
	Deleted int64 `json:"deleted"`
}

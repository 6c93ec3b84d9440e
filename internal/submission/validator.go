// Package submission validates answer items against their questions before
// anything is written.
package submission

import (
	"strings"

	"forms-api/internal/domain"
	"forms-api/internal/identity"
)

// Validate checks one item against its question's type rules.
// The exactly-one-value rule runs first for every type.
func Validate(q *domain.Question, item domain.AnswerItem) error {
	field := q.ID
	if item.ValueCount() != 1 {
		return domain.NewValidationError(field, "exactly one answer value must be provided")
	}

	switch q.Type {
	case domain.QuestionNumericScore:
		if item.Number == nil {
			return domain.NewValidationError(field, "a numeric score is required")
		}
		if q.ScaleMin == nil || q.ScaleMax == nil {
			return &domain.ConfigurationError{Subject: "numeric-score scale", Value: q.ID}
		}
		v := *item.Number
		if v < float64(*q.ScaleMin) || v > float64(*q.ScaleMax) {
			return domain.NewValidationError(field, "score must be between %d and %d", *q.ScaleMin, *q.ScaleMax)
		}
		return nil

	case domain.QuestionSingleChoice, domain.QuestionMultiChoice, domain.QuestionCustomChoice:
		return validateChoice(q, item)

	case domain.QuestionShortText, domain.QuestionLongText:
		if !hasText(item.Text) {
			return domain.NewValidationError(field, "a non-empty text answer is required")
		}
		return nil

	case domain.QuestionNumber:
		if item.Number == nil {
			return domain.NewValidationError(field, "a numeric answer is required")
		}
		return nil

	case domain.QuestionDate:
		if item.Date == nil {
			return domain.NewValidationError(field, "a date answer is required")
		}
		return nil

	case domain.QuestionEmail:
		return validateIdentityText(field, item.Text, identity.NormalizeEmail, "email")

	case domain.QuestionPhone:
		return validateIdentityText(field, item.Text, identity.NormalizePhone, "phone number")

	case domain.QuestionNationalID:
		return validateIdentityText(field, item.Text, identity.NormalizeNationalID, "national id")

	default:
		return &domain.ConfigurationError{Subject: "question type", Value: string(q.Type)}
	}
}

func validateChoice(q *domain.Question, item domain.AnswerItem) error {
	if item.OptionID != nil {
		if !q.HasOption(*item.OptionID) {
			return domain.NewValidationError(q.ID, "option %s does not belong to this question", *item.OptionID)
		}
		return nil
	}
	if hasText(item.OptionText) {
		return nil
	}
	return domain.NewValidationError(q.ID, "an option id or option text is required")
}

func validateIdentityText(field string, text *string, normalize func(string) (string, bool), label string) error {
	if !hasText(text) {
		return domain.NewValidationError(field, "a non-empty %s is required", label)
	}
	if _, ok := normalize(*text); !ok {
		return domain.NewValidationError(field, "invalid %s", label)
	}
	return nil
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// DropEmpty removes items that carry no usable value.
func DropEmpty(items []domain.AnswerItem) []domain.AnswerItem {
	out := make([]domain.AnswerItem, 0, len(items))
	for _, it := range items {
		if !it.IsEmpty() {
			out = append(out, it)
		}
	}
	return out
}

// ValidateAll validates a whole submission against form: every item must
// reference one of the form's questions, only multi-choice questions may be
// answered more than once, and every required question needs at least one item.
func ValidateAll(form *domain.Form, items []domain.AnswerItem) error {
	seen := make(map[string]int, len(items))

	for _, item := range items {
		q := form.QuestionByID(item.QuestionID)
		if q == nil {
			return domain.NewValidationError(item.QuestionID, "question does not belong to this form")
		}
		seen[q.ID]++
		if seen[q.ID] > 1 && q.Type != domain.QuestionMultiChoice {
			return domain.NewValidationError(q.ID, "question accepts a single answer")
		}
		if err := Validate(q, item); err != nil {
			return err
		}
	}

	for i := range form.Questions {
		q := &form.Questions[i]
		if q.Required && seen[q.ID] == 0 {
			return domain.NewValidationError(q.ID, "required question missing")
		}
	}
	return nil
}

// ExtractIdentity collects raw identity values from answers to email, phone
// and national-id questions. The first answer of each kind wins.
func ExtractIdentity(form *domain.Form, items []domain.AnswerItem) domain.IdentityFields {
	var raw domain.IdentityFields
	for _, item := range items {
		q := form.QuestionByID(item.QuestionID)
		if q == nil || item.Text == nil {
			continue
		}
		kind, ok := q.Type.IdentityKind()
		if !ok || raw.Get(kind) != nil {
			continue
		}
		v := *item.Text
		raw.Set(kind, &v)
	}
	return raw
}

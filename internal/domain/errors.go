package domain

import (
	"errors"
	"fmt"
)

// =====================================================
// Error Taxonomy
// =====================================================
// Every error produced by the authorization and intake core matches exactly
// one of the sentinels below via errors.Is. The HTTP layer is the only place
// that translates them into status codes.

var (
	// ErrPermissionDenied indicates the actor has neither a global grant nor an ACL grant.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound indicates a referenced group, form, question or option does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or policy-violating input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a duplicate identity on submission, or a clash with
	// existing state on an administrative change.
	ErrConflict = errors.New("conflict")

	// ErrConfiguration indicates inconsistent upstream data (unknown mode or question type).
	ErrConfiguration = errors.New("configuration error")
)

// ValidationError carries the offending question or field identifier.
type ValidationError struct {
	Field   string // question id or request field name
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports which identity kind collided with an existing submission.
type ConflictError struct {
	FormID string
	Kind   IdentityKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate %s identifier for form %s", e.Kind, e.FormID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// DuplicateError reports a unique value outside submission intake that is
// already taken: a group name, or a public slug that kept colliding.
type DuplicateError struct {
	Entity string
	Field  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %s is already in use", e.Entity, e.Field)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrConflict
}

// GroupInUseError refuses to delete a group that users still belong to.
type GroupInUseError struct {
	GroupID string
	Members int
}

func (e *GroupInUseError) Error() string {
	return fmt.Sprintf("group %s still has %d users", e.GroupID, e.Members)
}

func (e *GroupInUseError) Is(target error) bool {
	return target == ErrConflict
}

// ConfigurationError signals a data-integrity problem upstream. Fatal for the
// request, never for the process.
type ConfigurationError struct {
	Subject string
	Value   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %q", e.Subject, e.Value)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NotFoundError names the kind of entity that could not be resolved.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Ref)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError builds a NotFoundError for entity/ref.
func NewNotFoundError(entity, ref string) *NotFoundError {
	return &NotFoundError{Entity: entity, Ref: ref}
}

package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// AclEntry is the per-form, per-group grant. Unique per (FormID, GroupID).
// All three flags are always present; absent means false.
type AclEntry struct {
	FormID    string    `json:"formId" db:"form_id"`
	GroupID   string    `json:"groupId" db:"group_id"`
	GroupName string    `json:"groupName,omitempty" db:"group_name"`
	CanView   bool      `json:"canView" db:"can_view"`
	CanEdit   bool      `json:"canEdit" db:"can_edit"`
	CanDelete bool      `json:"canDelete" db:"can_delete"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Allows maps an action to its flag. Actions not covered by ACL flags
// (restore, manage) are never granted by an entry.
func (e *AclEntry) Allows(action Action) bool {
	if e == nil {
		return false
	}
	switch action {
	case ActionView:
		return e.CanView
	case ActionEdit:
		return e.CanEdit
	case ActionDelete:
		return e.CanDelete
	default:
		return false
	}
}

// AclFlags is the full replacement set written by an upsert.
type AclFlags struct {
	CanView   bool `json:"canView"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// AllFlags grants view, edit and delete.
var AllFlags = AclFlags{CanView: true, CanEdit: true, CanDelete: true}

// GroupRef identifies a group by id or, when the id is empty, by name.
type GroupRef struct {
	ID   string
	Name string
}

// UpsertAclRequest DTO para PUT /v1/forms/{formId}/acl.
//
// GroupID tem precedência; GroupName só é usado quando GroupID está vazio.
type UpsertAclRequest struct {
	GroupID   *string `json:"groupId,omitempty" validate:"required_without=GroupName,omitempty,uuid"`
	GroupName *string `json:"groupName,omitempty" validate:"required_without=GroupID,omitempty,min=1,max=100"`
	CanView   bool    `json:"canView"`
	CanEdit   bool    `json:"canEdit"`
	CanDelete bool    `json:"canDelete"`
}

// Validate sanitizes and validates the request.
func (r *UpsertAclRequest) Validate() error {
	if r.GroupName != nil {
		trimmed := strings.TrimSpace(*r.GroupName)
		r.GroupName = &trimmed
	}
	validate := validator.New()
	return validate.Struct(r)
}

// Ref converts the request into a GroupRef.
func (r *UpsertAclRequest) Ref() GroupRef {
	var ref GroupRef
	if r.GroupID != nil {
		ref.ID = *r.GroupID
	}
	if r.GroupName != nil {
		ref.Name = *r.GroupName
	}
	return ref
}

// Flags extracts the flag set.
func (r *UpsertAclRequest) Flags() AclFlags {
	return AclFlags{CanView: r.CanView, CanEdit: r.CanEdit, CanDelete: r.CanDelete}
}

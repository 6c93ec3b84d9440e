package domain

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// =====================================================
// Permission Codes
// =====================================================

// PermissionCode is an opaque capability token granted to every member of a group.
type PermissionCode string

// Resource family codes for forms. The "manage_all" code is the wildcard.
const (
	CodeFormsManageAll PermissionCode = "forms:manage_all"
	CodeFormsCreate    PermissionCode = "forms:create"
	CodeFormsView      PermissionCode = "forms:view"
	CodeFormsEdit      PermissionCode = "forms:edit"
	CodeFormsDelete    PermissionCode = "forms:delete"
	CodeFormsRestore   PermissionCode = "forms:restore"
	CodeFormsManage    PermissionCode = "forms:manage"

	CodeGroupsView      PermissionCode = "groups:view"
	CodeGroupsManage    PermissionCode = "groups:manage"
	CodePermissionsView PermissionCode = "permissions:view"
)

// Permission is a catalogue row: code plus display name.
type Permission struct {
	ID   string         `json:"id" db:"id"`
	Code PermissionCode `json:"code" db:"code"`
	Name string         `json:"name" db:"name"`
}

// DefaultPermissions is the catalogue seeded on first boot.
var DefaultPermissions = []Permission{
	{Code: CodeFormsManageAll, Name: "Manage all forms"},
	{Code: CodeFormsCreate, Name: "Create forms"},
	{Code: CodeFormsView, Name: "View forms"},
	{Code: CodeFormsEdit, Name: "Edit forms"},
	{Code: CodeFormsDelete, Name: "Delete forms"},
	{Code: CodeFormsRestore, Name: "Restore forms"},
	{Code: CodeFormsManage, Name: "Manage form access"},
	{Code: CodeGroupsView, Name: "View groups"},
	{Code: CodeGroupsManage, Name: "Manage groups and their permissions"},
	{Code: CodePermissionsView, Name: "View permissions"},
}

// =====================================================
// Actions
// =====================================================

// Action is what an actor attempts on a resource.
type Action string

const (
	ActionView    Action = "view"
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionRestore Action = "restore"
	ActionManage  Action = "manage"
)

// IsValid checks if the action is one of the defined constants
func (a Action) IsValid() bool {
	switch a {
	case ActionView, ActionEdit, ActionDelete, ActionRestore, ActionManage:
		return true
	default:
		return false
	}
}

// =====================================================
// Actor
// =====================================================

// Actor is the authenticated caller. Loaded once per request and never mutated.
type Actor struct {
	ID      string
	GroupID string // empty when the actor belongs to no group
	codes   map[PermissionCode]struct{}
}

// NewActor builds an Actor from its id, group and the group's permission codes.
func NewActor(id, groupID string, codes []PermissionCode) *Actor {
	set := make(map[PermissionCode]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return &Actor{ID: id, GroupID: groupID, codes: set}
}

// HasCode reports whether the actor's global capability set contains code.
func (a *Actor) HasCode(code PermissionCode) bool {
	if a == nil {
		return false
	}
	_, ok := a.codes[code]
	return ok
}

// Codes returns the capability set as a slice (unordered).
func (a *Actor) Codes() []PermissionCode {
	if a == nil {
		return nil
	}
	out := make([]PermissionCode, 0, len(a.codes))
	for c := range a.codes {
		out = append(out, c)
	}
	return out
}

// =====================================================
// Groups
// =====================================================

// Group is a named set of actors sharing one permission set.
type Group struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// CreateGroupRequest DTO for POST /v1/groups
type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// Validate trims the name before checking it.
func (r *CreateGroupRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	validate := validator.New()
	return validate.Struct(r)
}

// SetGroupPermissionsRequest DTO for PUT /v1/groups/{groupId}/permissions.
// Codes replace the group's whole set; an empty list revokes everything.
type SetGroupPermissionsRequest struct {
	Codes []PermissionCode `json:"codes" validate:"required,max=100,dive,required,max=100"`
}

// Validate drops duplicate codes, keeping the first occurrence.
func (r *SetGroupPermissionsRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	seen := make(map[PermissionCode]struct{}, len(r.Codes))
	unique := r.Codes[:0]
	for _, c := range r.Codes {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}
	r.Codes = unique
	return nil
}

// GroupPermissions is a group with its current code set.
type GroupPermissions struct {
	GroupID string           `json:"groupId"`
	Codes   []PermissionCode `json:"codes"`
}

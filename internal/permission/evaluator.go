// Package permission decides whether an actor may act on a form by combining
// the actor's global permission codes with the form's ACL entry for the
// actor's group.
package permission

import (
	"context"
	"errors"
	"fmt"

	"forms-api/internal/domain"
)

// AclReader is the single lookup the evaluator performs.
// A missing row must be reported as an error matching domain.ErrNotFound.
type AclReader interface {
	Get(ctx context.Context, formID, groupID string) (*domain.AclEntry, error)
}

// Evaluator is stateless apart from its ACL reader and safe for concurrent use.
type Evaluator struct {
	acl AclReader
}

// NewEvaluator creates an Evaluator backed by acl.
func NewEvaluator(acl AclReader) *Evaluator {
	return &Evaluator{acl: acl}
}

// globalCodes maps each action to the global code that grants it on any form.
var globalCodes = map[domain.Action]domain.PermissionCode{
	domain.ActionView:    domain.CodeFormsView,
	domain.ActionEdit:    domain.CodeFormsEdit,
	domain.ActionDelete:  domain.CodeFormsDelete,
	domain.ActionRestore: domain.CodeFormsRestore,
	domain.ActionManage:  domain.CodeFormsManage,
}

// Decision explains which rule produced an allow or deny.
type Decision string

const (
	DecisionManageAll  Decision = "manage_all"
	DecisionGlobalCode Decision = "global_code"
	DecisionAcl        Decision = "acl"
	DecisionNoActor    Decision = "no_actor"
	DecisionNoGroup    Decision = "no_group"
	DecisionNoEntry    Decision = "no_acl_entry"
	DecisionAclFlag    Decision = "acl_flag_unset"
	DecisionGlobalOnly Decision = "global_only_action"
	DecisionBadAction  Decision = "unknown_action"
)

// Can reports whether actor may perform action on formID.
//
// Missing actor, group, form or ACL row deny with a nil error. Only a failed
// storage read is returned as an error, and the decision is then false.
func (e *Evaluator) Can(ctx context.Context, actor *domain.Actor, formID string, action domain.Action) (bool, error) {
	allowed, _, err := e.Explain(ctx, actor, formID, action)
	return allowed, err
}

// Explain is Can plus the rule that decided it.
func (e *Evaluator) Explain(ctx context.Context, actor *domain.Actor, formID string, action domain.Action) (bool, Decision, error) {
	if actor == nil {
		return false, DecisionNoActor, nil
	}
	code, known := globalCodes[action]
	if !known {
		return false, DecisionBadAction, nil
	}

	if actor.HasCode(domain.CodeFormsManageAll) {
		return true, DecisionManageAll, nil
	}
	if actor.HasCode(code) {
		return true, DecisionGlobalCode, nil
	}

	// restore and manage are never granted through an ACL entry
	if action == domain.ActionRestore || action == domain.ActionManage {
		return false, DecisionGlobalOnly, nil
	}
	if actor.GroupID == "" {
		return false, DecisionNoGroup, nil
	}
	if formID == "" {
		return false, DecisionNoEntry, nil
	}

	entry, err := e.acl.Get(ctx, formID, actor.GroupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, DecisionNoEntry, nil
		}
		return false, DecisionNoEntry, fmt.Errorf("failed to read acl entry: %w", err)
	}

	if entry.Allows(action) {
		return true, DecisionAcl, nil
	}
	return false, DecisionAclFlag, nil
}

// Authorize is Can surfaced as an error: domain.ErrPermissionDenied on deny.
func (e *Evaluator) Authorize(ctx context.Context, actor *domain.Actor, formID string, action domain.Action) error {
	allowed, err := e.Can(ctx, actor, formID, action)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrPermissionDenied
	}
	return nil
}

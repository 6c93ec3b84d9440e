package permission

import (
	"context"
	"errors"
	"testing"

	"forms-api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcl struct {
	entries map[[2]string]domain.AclEntry
	err     error
	calls   int
}

func (f *fakeAcl) Get(_ context.Context, formID, groupID string) (*domain.AclEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[[2]string{formID, groupID}]
	if !ok {
		return nil, domain.NewNotFoundError("acl entry", formID+"/"+groupID)
	}
	return &e, nil
}

const (
	formID  = "6f1d2a8e-3c4b-4f6a-9a77-1b2c3d4e5f60"
	groupID = "0b8c1e2d-7f6a-4b3c-8d9e-aa11bb22cc33"
)

func TestCan_ManageAllBypassesAcl(t *testing.T) {
	acl := &fakeAcl{err: errors.New("must not be called")}
	ev := NewEvaluator(acl)
	actor := domain.NewActor("u1", "", []domain.PermissionCode{domain.CodeFormsManageAll})

	for _, action := range []domain.Action{
		domain.ActionView, domain.ActionEdit, domain.ActionDelete, domain.ActionRestore, domain.ActionManage,
	} {
		ok, err := ev.Can(context.Background(), actor, "any-form", action)
		require.NoError(t, err)
		assert.True(t, ok, "action %s", action)
	}
	assert.Zero(t, acl.calls)
}

func TestCan_GlobalActionCode(t *testing.T) {
	ev := NewEvaluator(&fakeAcl{})
	actor := domain.NewActor("u1", groupID, []domain.PermissionCode{domain.CodeFormsView, domain.CodeFormsRestore})

	ok, err := ev.Can(context.Background(), actor, formID, domain.ActionView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Can(context.Background(), actor, formID, domain.ActionRestore)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Can(context.Background(), actor, formID, domain.ActionEdit)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCan_AclFlags(t *testing.T) {
	acl := &fakeAcl{entries: map[[2]string]domain.AclEntry{
		{formID, groupID}: {FormID: formID, GroupID: groupID, CanView: true},
	}}
	ev := NewEvaluator(acl)
	actor := domain.NewActor("u1", groupID, nil)

	tests := []struct {
		action domain.Action
		want   bool
		rule   Decision
	}{
		{domain.ActionView, true, DecisionAcl},
		{domain.ActionEdit, false, DecisionAclFlag},
		{domain.ActionDelete, false, DecisionAclFlag},
		{domain.ActionRestore, false, DecisionGlobalOnly},
		{domain.ActionManage, false, DecisionGlobalOnly},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			ok, rule, err := ev.Explain(context.Background(), actor, formID, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestCan_FailClosed(t *testing.T) {
	ev := NewEvaluator(&fakeAcl{})

	t.Run("nil actor", func(t *testing.T) {
		ok, err := ev.Can(context.Background(), nil, formID, domain.ActionView)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("actor without group", func(t *testing.T) {
		ok, err := ev.Can(context.Background(), domain.NewActor("u1", "", nil), formID, domain.ActionView)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no acl entry", func(t *testing.T) {
		ok, err := ev.Can(context.Background(), domain.NewActor("u1", groupID, nil), formID, domain.ActionView)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown action", func(t *testing.T) {
		actor := domain.NewActor("u1", groupID, []domain.PermissionCode{domain.CodeFormsManageAll})
		ok, err := ev.Can(context.Background(), actor, formID, domain.Action("publish"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCan_StorageErrorSurfaces(t *testing.T) {
	boom := errors.New("connection reset")
	ev := NewEvaluator(&fakeAcl{err: boom})

	ok, err := ev.Can(context.Background(), domain.NewActor("u1", groupID, nil), formID, domain.ActionView)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestAuthorize(t *testing.T) {
	acl := &fakeAcl{entries: map[[2]string]domain.AclEntry{
		{formID, groupID}: {FormID: formID, GroupID: groupID, CanEdit: true},
	}}
	ev := NewEvaluator(acl)
	actor := domain.NewActor("u1", groupID, nil)

	assert.NoError(t, ev.Authorize(context.Background(), actor, formID, domain.ActionEdit))
	assert.ErrorIs(t, ev.Authorize(context.Background(), actor, formID, domain.ActionView), domain.ErrPermissionDenied)
}

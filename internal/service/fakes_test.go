package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"forms-api/internal/cache"
	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/permission"
	"forms-api/internal/repo"
	"forms-api/internal/telemetry"
)

// =====================================================
// ACL
// =====================================================

type fakeAcl struct {
	mu      sync.Mutex
	entries map[string]domain.AclEntry
	groups  map[string]domain.Group // by name
	getErr  error
}

func newFakeAcl() *fakeAcl {
	return &fakeAcl{entries: map[string]domain.AclEntry{}, groups: map[string]domain.Group{}}
}

func aclKey(formID, groupID string) string { return formID + "|" + groupID }

func (f *fakeAcl) grant(formID, groupID string, flags domain.AclFlags) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[aclKey(formID, groupID)] = domain.AclEntry{
		FormID: formID, GroupID: groupID,
		CanView: flags.CanView, CanEdit: flags.CanEdit, CanDelete: flags.CanDelete,
	}
}

func (f *fakeAcl) Get(_ context.Context, formID, groupID string) (*domain.AclEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.entries[aclKey(formID, groupID)]
	if !ok {
		return nil, domain.NewNotFoundError("acl_entry", groupID)
	}
	return &e, nil
}

func (f *fakeAcl) List(_ context.Context, formID string) ([]domain.AclEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.AclEntry{}
	for _, e := range f.entries {
		if e.FormID == formID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAcl) Upsert(_ context.Context, formID string, ref domain.GroupRef, flags domain.AclFlags) (*domain.AclEntry, error) {
	groupID := ref.ID
	if groupID == "" {
		g, ok := f.groups[ref.Name]
		if !ok {
			return nil, domain.NewNotFoundError("group", ref.Name)
		}
		groupID = g.ID
	}
	f.grant(formID, groupID, flags)
	e, _ := f.Get(context.Background(), formID, groupID)
	return e, nil
}

func (f *fakeAcl) Remove(_ context.Context, formID, groupID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := aclKey(formID, groupID)
	if _, ok := f.entries[k]; !ok {
		return false, nil
	}
	delete(f.entries, k)
	return true, nil
}

// =====================================================
// Forms
// =====================================================

type fakeForms struct {
	mu         sync.Mutex
	forms      map[string]*domain.Form
	grants     map[string][]string
	taken      map[string]bool
	listViewer *string
	listCalled bool
}

func newFakeForms() *fakeForms {
	return &fakeForms{forms: map[string]*domain.Form{}, grants: map[string][]string{}, taken: map[string]bool{}}
}

func (f *fakeForms) put(form *domain.Form) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms[form.ID] = form
}

func (f *fakeForms) Create(_ context.Context, form *domain.Form, grantGroups []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *form
	f.forms[form.ID] = &cp
	f.grants[form.ID] = grantGroups
	return nil
}

func (f *fakeForms) Get(_ context.Context, formID string) (*domain.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[formID]
	if !ok {
		return nil, domain.NewNotFoundError("form", formID)
	}
	cp := *form
	return &cp, nil
}

func (f *fakeForms) GetPublicBySlug(_ context.Context, slug string) (*domain.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, form := range f.forms {
		if form.PublicSlug != nil && *form.PublicSlug == slug && form.IsActive() && form.AcceptingResponses {
			cp := *form
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("form", slug)
}

func (f *fakeForms) List(_ context.Context, params domain.ListFormsParams, viewerGroup *string) ([]domain.Form, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalled = true
	f.listViewer = viewerGroup
	out := []domain.Form{}
	for _, form := range f.forms {
		if params.IncludeArchived || form.IsActive() {
			out = append(out, *form)
		}
	}
	return out, nil, nil
}

func (f *fakeForms) SetState(_ context.Context, formID string, from, to domain.FormState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[formID]
	if !ok || form.State != from {
		return domain.NewNotFoundError("form", formID)
	}
	form.State = to
	return nil
}

func (f *fakeForms) Publish(_ context.Context, formID, slug string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[formID]
	if !ok {
		return "", domain.NewNotFoundError("form", formID)
	}
	if form.PublicSlug == nil {
		if f.taken[slug] {
			return "", &domain.DuplicateError{Entity: "form", Field: "public slug"}
		}
		s := slug
		form.PublicSlug = &s
	}
	form.AcceptingResponses = true
	return *form.PublicSlug, nil
}

func (f *fakeForms) Unpublish(_ context.Context, formID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	form, ok := f.forms[formID]
	if !ok {
		return domain.NewNotFoundError("form", formID)
	}
	form.AcceptingResponses = false
	return nil
}

// =====================================================
// Groups, audit, submissions
// =====================================================

type fakeGroups struct {
	byName  map[string]domain.Group
	members map[string]string
	codes   map[string][]domain.PermissionCode
	perms   []domain.Permission
	calls   int
	err     error
}

func (f *fakeGroups) GetByName(_ context.Context, name string) (*domain.Group, error) {
	g, ok := f.byName[name]
	if !ok {
		return nil, domain.NewNotFoundError("group", name)
	}
	return &g, nil
}

func (f *fakeGroups) GetUserGroup(_ context.Context, userID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.members[userID], nil
}

func (f *fakeGroups) PermissionCodes(_ context.Context, groupID string) ([]domain.PermissionCode, error) {
	return f.codes[groupID], nil
}

func (f *fakeGroups) List(_ context.Context) ([]domain.Group, error) {
	out := []domain.Group{}
	for _, g := range f.byName {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeGroups) ListPermissions(_ context.Context) ([]domain.Permission, error) {
	return f.perms, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []repo.AuditEntry
	err     error
}

func (f *fakeAudit) LogAction(_ context.Context, entry repo.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeSubmissions struct {
	mu    sync.Mutex
	subs  map[string]*domain.Submission
	err   error
	order []string
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{subs: map[string]*domain.Submission{}}
}

func (f *fakeSubmissions) Create(_ context.Context, sub *domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.subs {
		if existing.FormID != sub.FormID {
			continue
		}
		if sub.Email != nil && existing.Email != nil && *sub.Email == *existing.Email {
			return &domain.ConflictError{FormID: sub.FormID, Kind: domain.IdentityEmail}
		}
	}
	cp := *sub
	f.subs[sub.ID] = &cp
	f.order = append(f.order, sub.ID)
	return nil
}

func (f *fakeSubmissions) Get(_ context.Context, formID, submissionID string) (*domain.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[submissionID]
	if !ok || s.FormID != formID {
		return nil, domain.NewNotFoundError("submission", submissionID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubmissions) List(_ context.Context, formID string, _ domain.ListSubmissionsParams) ([]domain.Submission, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Submission{}
	for _, id := range f.order {
		if s, ok := f.subs[id]; ok && s.FormID == formID {
			out = append(out, *s)
		}
	}
	return out, nil, nil
}

func (f *fakeSubmissions) Delete(_ context.Context, formID, submissionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[submissionID]
	if !ok || s.FormID != formID {
		return false, nil
	}
	delete(f.subs, submissionID)
	return true, nil
}

func (f *fakeSubmissions) DeleteByForm(_ context.Context, formID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.subs {
		if s.FormID == formID {
			delete(f.subs, id)
			n++
		}
	}
	return n, nil
}

type fakeCache struct {
	snaps  map[string]cache.ActorSnapshot
	getErr error
	sets   int
}

func (f *fakeCache) Get(_ context.Context, userID string) (*cache.ActorSnapshot, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	s, ok := f.snaps[userID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (f *fakeCache) Set(_ context.Context, userID string, snap cache.ActorSnapshot) error {
	f.sets++
	if f.snaps == nil {
		f.snaps = map[string]cache.ActorSnapshot{}
	}
	f.snaps[userID] = snap
	return nil
}

var errStorage = errors.New("connection reset")

func newTestAuthorizer(acl permission.AclReader) *Authorizer {
	return NewAuthorizer(permission.NewEvaluator(acl), telemetry.NoopMetrics(), logger.Nop())
}

func intPtr(i int) *int { return &i }

func textPtr(s string) *string { return &s }

type fakeGroupStore struct {
	mu      sync.Mutex
	groups  map[string]domain.Group // by id
	codes   map[string][]domain.PermissionCode
	members map[string][]string
	catalog map[domain.PermissionCode]bool
	n       int
}

func newFakeGroupStore() *fakeGroupStore {
	catalog := map[domain.PermissionCode]bool{}
	for _, p := range domain.DefaultPermissions {
		catalog[p.Code] = true
	}
	return &fakeGroupStore{
		groups:  map[string]domain.Group{},
		codes:   map[string][]domain.PermissionCode{},
		members: map[string][]string{},
		catalog: catalog,
	}
}

func (f *fakeGroupStore) GetByID(_ context.Context, groupID string) (*domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, domain.NewNotFoundError("group", groupID)
	}
	return &g, nil
}

func (f *fakeGroupStore) CreateGroup(_ context.Context, name string) (*domain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.Name == name {
			return nil, &domain.DuplicateError{Entity: "group", Field: "name"}
		}
	}
	f.n++
	g := domain.Group{ID: "g-" + strconv.Itoa(f.n), Name: name}
	f.groups[g.ID] = g
	return &g, nil
}

func (f *fakeGroupStore) DeleteGroup(_ context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[groupID]; !ok {
		return domain.NewNotFoundError("group", groupID)
	}
	if n := len(f.members[groupID]); n > 0 {
		return &domain.GroupInUseError{GroupID: groupID, Members: n}
	}
	delete(f.groups, groupID)
	delete(f.codes, groupID)
	return nil
}

func (f *fakeGroupStore) SetPermissionCodes(_ context.Context, groupID string, codes []domain.PermissionCode) ([]domain.PermissionCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[groupID]; !ok {
		return nil, domain.NewNotFoundError("group", groupID)
	}
	for _, c := range codes {
		if !f.catalog[c] {
			return nil, domain.NewValidationError("codes", "unknown permission code %q", c)
		}
	}
	f.codes[groupID] = append([]domain.PermissionCode(nil), codes...)
	return f.codes[groupID], nil
}

func (f *fakeGroupStore) GroupMembers(_ context.Context, groupID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[groupID]...), nil
}

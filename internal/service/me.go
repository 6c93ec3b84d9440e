package service

import (
	"context"
	"slices"

	"forms-api/internal/domain"
)

// DirectoryStore is implemented by repo.GroupRepository.
type DirectoryStore interface {
	List(ctx context.Context) ([]domain.Group, error)
	ListPermissions(ctx context.Context) ([]domain.Permission, error)
}

// MePermissions is returned by GET /v1/me/permissions.
type MePermissions struct {
	ActorID string                  `json:"actorId"`
	GroupID *string                 `json:"groupId"`
	Codes   []domain.PermissionCode `json:"codes"`
}

// DirectoryService exposes the caller's own capabilities and the group and
// permission catalogues.
type DirectoryService struct {
	store DirectoryStore
	authz *Authorizer
}

func NewDirectoryService(store DirectoryStore, authz *Authorizer) *DirectoryService {
	return &DirectoryService{store: store, authz: authz}
}

// Me needs no permission code; an actor may always see its own grants.
func (s *DirectoryService) Me(_ context.Context, actor *domain.Actor) *MePermissions {
	codes := actor.Codes()
	slices.Sort(codes)
	out := &MePermissions{ActorID: actor.ID, Codes: codes}
	if actor.GroupID != "" {
		g := actor.GroupID
		out.GroupID = &g
	}
	return out
}

func (s *DirectoryService) Groups(ctx context.Context, actor *domain.Actor) ([]domain.Group, error) {
	if err := s.authz.RequireCode(ctx, "directory", actor, domain.CodeGroupsView); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

func (s *DirectoryService) Permissions(ctx context.Context, actor *domain.Actor) ([]domain.Permission, error) {
	if err := s.authz.RequireCode(ctx, "directory", actor, domain.CodePermissionsView); err != nil {
		return nil, err
	}
	return s.store.ListPermissions(ctx)
}

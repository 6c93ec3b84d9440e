package service

import (
	"context"

	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"
	"forms-api/internal/repo"

	"go.uber.org/zap"
)

// GroupStore is implemented by repo.GroupRepository.
type GroupStore interface {
	GetByID(ctx context.Context, groupID string) (*domain.Group, error)
	CreateGroup(ctx context.Context, name string) (*domain.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	SetPermissionCodes(ctx context.Context, groupID string, codes []domain.PermissionCode) ([]domain.PermissionCode, error)
	GroupMembers(ctx context.Context, groupID string) ([]string, error)
}

// ActorInvalidator drops cached actor snapshots. Implemented by cache.PermissionCache.
type ActorInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// GroupService administers groups and their global codes. Every operation
// needs groups:manage.
type GroupService struct {
	groups     GroupStore
	cache      ActorInvalidator
	authz      *Authorizer
	audit      AuditLogger
	adminGroup string
	log        *logger.Logger
}

// NewGroupService creates the service. c may be nil when no cache is configured.
func NewGroupService(groups GroupStore, c ActorInvalidator, authz *Authorizer, audit AuditLogger, adminGroup string, log *logger.Logger) *GroupService {
	return &GroupService{groups: groups, cache: c, authz: authz, audit: audit, adminGroup: adminGroup, log: log}
}

func (s *GroupService) Create(ctx context.Context, actor *domain.Actor, req *domain.CreateGroupRequest) (*domain.Group, error) {
	if err := s.authz.RequireCode(ctx, "group", actor, domain.CodeGroupsManage); err != nil {
		return nil, err
	}

	group, err := s.groups.CreateGroup(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.log, "group", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "group.create",
		ResourceType: "group",
		ResourceID:   strPtr(group.ID),
		Metadata:     map[string]any{"name": group.Name},
	})
	s.log.Info(ctx, "group created",
		logger.Module("group"),
		logger.Action("create"),
		zap.String("target_group_id", group.ID),
	)
	return group, nil
}

// Delete removes an empty group. The admin group is never deleted.
func (s *GroupService) Delete(ctx context.Context, actor *domain.Actor, groupID string) error {
	if err := s.authz.RequireCode(ctx, "group", actor, domain.CodeGroupsManage); err != nil {
		return err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if s.adminGroup != "" && group.Name == s.adminGroup {
		return domain.NewValidationError("groupId", "the admin group cannot be deleted")
	}

	if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
		return err
	}

	recordAudit(ctx, s.audit, s.log, "group", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "group.delete",
		ResourceType: "group",
		ResourceID:   strPtr(groupID),
		Metadata:     map[string]any{"name": group.Name},
	})
	s.log.Info(ctx, "group deleted",
		logger.Module("group"),
		logger.Action("delete"),
		zap.String("target_group_id", groupID),
	)
	return nil
}

// SetPermissions replaces the group's codes and drops the cached snapshot of
// every member, so the next request of each member loads the new set.
// Cache failures are logged; affected members see the old set until the
// snapshot TTL runs out.
func (s *GroupService) SetPermissions(ctx context.Context, actor *domain.Actor, groupID string, req *domain.SetGroupPermissionsRequest) (*domain.GroupPermissions, error) {
	if err := s.authz.RequireCode(ctx, "group", actor, domain.CodeGroupsManage); err != nil {
		return nil, err
	}

	codes, err := s.groups.SetPermissionCodes(ctx, groupID, req.Codes)
	if err != nil {
		return nil, err
	}

	invalidated := s.invalidateMembers(ctx, groupID)

	recordAudit(ctx, s.audit, s.log, "group", repo.AuditEntry{
		ActorID:      actor.ID,
		Action:       "group.set_permissions",
		ResourceType: "group",
		ResourceID:   strPtr(groupID),
		Metadata:     map[string]any{"codes": codes, "invalidated": invalidated},
	})
	s.log.Info(ctx, "group permissions replaced",
		logger.Module("group"),
		logger.Action("set_permissions"),
		zap.String("target_group_id", groupID),
		zap.Int("codes", len(codes)),
		zap.Int("invalidated", invalidated),
	)

	if codes == nil {
		codes = []domain.PermissionCode{}
	}
	return &domain.GroupPermissions{GroupID: groupID, Codes: codes}, nil
}

func (s *GroupService) invalidateMembers(ctx context.Context, groupID string) int {
	if s.cache == nil {
		return 0
	}

	members, err := s.groups.GroupMembers(ctx, groupID)
	if err != nil {
		s.log.Warn(ctx, "failed to list group members for cache invalidation",
			logger.Module("group"),
			logger.Action("invalidate"),
			zap.String("target_group_id", groupID),
			zap.Error(err),
		)
		return 0
	}

	n := 0
	for _, userID := range members {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.log.Warn(ctx, "failed to invalidate cached actor",
				logger.Module("group"),
				logger.Action("invalidate"),
				zap.String("target_group_id", groupID),
				zap.Error(err),
			)
			continue
		}
		n++
	}
	return n
}

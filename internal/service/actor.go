package service

import (
	"context"
	"fmt"

	"forms-api/internal/cache"
	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"

	"go.uber.org/zap"
)

// ActorStore resolves group membership and the group's codes.
// Implemented by repo.GroupRepository.
type ActorStore interface {
	GetUserGroup(ctx context.Context, userID string) (string, error)
	PermissionCodes(ctx context.Context, groupID string) ([]domain.PermissionCode, error)
}

// ActorCache is the optional snapshot cache in front of ActorStore.
type ActorCache interface {
	Get(ctx context.Context, userID string) (*cache.ActorSnapshot, bool, error)
	Set(ctx context.Context, userID string, snap cache.ActorSnapshot) error
}

// ActorLoader builds the per-request domain.Actor.
type ActorLoader struct {
	store ActorStore
	cache ActorCache
	log   *logger.Logger
}

// NewActorLoader creates a loader. c may be nil.
func NewActorLoader(store ActorStore, c ActorCache, log *logger.Logger) *ActorLoader {
	return &ActorLoader{store: store, cache: c, log: log}
}

// Load returns the actor for userID. Unknown or inactive users get an actor
// with no group and no codes, which every permission check denies.
func (l *ActorLoader) Load(ctx context.Context, userID string) (*domain.Actor, error) {
	if l.cache != nil {
		snap, ok, err := l.cache.Get(ctx, userID)
		if err != nil {
			l.log.Warn(ctx, "permission cache read failed",
				logger.Module("actor"),
				logger.Action("load"),
				zap.Error(err),
			)
		} else if ok {
			return domain.NewActor(userID, snap.GroupID, snap.Codes), nil
		}
	}

	groupID, err := l.store.GetUserGroup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load actor group: %w", err)
	}

	var codes []domain.PermissionCode
	if groupID != "" {
		codes, err = l.store.PermissionCodes(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("load actor codes: %w", err)
		}
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, userID, cache.ActorSnapshot{GroupID: groupID, Codes: codes}); err != nil {
			l.log.Warn(ctx, "permission cache write failed",
				logger.Module("actor"),
				logger.Action("load"),
				zap.Error(err),
			)
		}
	}

	l.log.Debug(ctx, "actor loaded",
		logger.Module("actor"),
		logger.Action("load"),
		zap.Bool("has_group", groupID != ""),
		zap.Int("codes", len(codes)),
	)
	return domain.NewActor(userID, groupID, codes), nil
}

package service

import (
	"context"
	"testing"
	"time"

	"forms-api/internal/cache"
	"forms-api/internal/domain"
	"forms-api/internal/observability/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directoryGroups() *fakeGroups {
	return &fakeGroups{
		byName:  map[string]domain.Group{"team": {ID: "g-team", Name: "team"}},
		members: map[string]string{"u-1": "g-team"},
		codes:   map[string][]domain.PermissionCode{"g-team": {domain.CodeFormsCreate, domain.CodeFormsView}},
		perms:   domain.DefaultPermissions,
	}
}

func TestActorLoader_Load(t *testing.T) {
	store := directoryGroups()
	c := &fakeCache{}
	loader := NewActorLoader(store, c, logger.Nop())
	ctx := context.Background()

	actor, err := loader.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "g-team", actor.GroupID)
	assert.True(t, actor.HasCode(domain.CodeFormsView))
	assert.Equal(t, 1, c.sets)

	// second load is served from cache
	_, err = loader.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
}

func TestActorLoader_UnknownUser(t *testing.T) {
	loader := NewActorLoader(directoryGroups(), nil, logger.Nop())

	actor, err := loader.Load(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, actor.GroupID)
	assert.Empty(t, actor.Codes())
}

func TestActorLoader_CacheFailureFallsBackToStore(t *testing.T) {
	store := directoryGroups()
	loader := NewActorLoader(store, &fakeCache{getErr: errStorage}, logger.Nop())

	actor, err := loader.Load(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "g-team", actor.GroupID)
	assert.Equal(t, 1, store.calls)
}

func TestActorLoader_StoreFailure(t *testing.T) {
	store := directoryGroups()
	store.err = errStorage
	loader := NewActorLoader(store, nil, logger.Nop())

	_, err := loader.Load(context.Background(), "u-1")
	assert.ErrorIs(t, err, errStorage)
}

func TestActorLoader_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := directoryGroups()
	loader := NewActorLoader(store, cache.NewPermissionCache(client, time.Minute), logger.Nop())
	ctx := context.Background()

	_, err := loader.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("perm:actor:u-1"))

	actor, err := loader.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, actor.HasCode(domain.CodeFormsCreate))
	assert.Equal(t, 1, store.calls)

	// Redis outage degrades to the store
	mr.Close()
	_, err = loader.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestDirectoryService(t *testing.T) {
	svc := NewDirectoryService(directoryGroups(), newTestAuthorizer(newFakeAcl()))
	ctx := context.Background()

	member := domain.NewActor("u-1", "g-team", []domain.PermissionCode{domain.CodeFormsView, domain.CodeFormsCreate})
	me := svc.Me(ctx, member)
	assert.Equal(t, "u-1", me.ActorID)
	require.NotNil(t, me.GroupID)
	assert.Equal(t, []domain.PermissionCode{domain.CodeFormsCreate, domain.CodeFormsView}, me.Codes)

	none := svc.Me(ctx, domain.NewActor("u-2", "", nil))
	assert.Nil(t, none.GroupID)
	assert.Empty(t, none.Codes)

	_, err := svc.Groups(ctx, member)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	groups, err := svc.Groups(ctx, domain.NewActor("u-3", "g-x", []domain.PermissionCode{domain.CodeGroupsView}))
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	perms, err := svc.Permissions(ctx, admin())
	require.NoError(t, err)
	assert.Len(t, perms, len(domain.DefaultPermissions))
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siminyang/aboutxtime/internal/friendcache"
	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
	"github.com/siminyang/aboutxtime/internal/store/memstore"
)

func newUserService(t *testing.T) (*UserService, store.Store) {
	t.Helper()
	st := memstore.New()
	return NewUserService(st, friendcache.New(8)), st
}

func TestUpsertUser_MergesLists(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.UpsertUser(ctx, &model.User{
		ID: "u1", Name: "Simin",
		CreatedCapsulesIds: []string{"cap-a"},
	})
	require.NoError(t, err)

	got, err := svc.UpsertUser(ctx, &model.User{
		ID: "u1", Name: "Simin Y",
		CreatedCapsulesIds: []string{"cap-a", "cap-b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Simin Y", got.Name)
	assert.ElementsMatch(t, []string{"cap-a", "cap-b"}, got.CreatedCapsulesIds)

	_, err = svc.UpsertUser(ctx, &model.User{})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFetchFriendData_CachesLookups(t *testing.T) {
	svc, st := newUserService(t)
	ctx := context.Background()

	_, err := st.Users().Upsert(ctx, &model.User{ID: "u-friend", Name: "Nita", AvatarURL: "planet5"})
	require.NoError(t, err)

	f, err := svc.FetchFriendData(ctx, "u-friend")
	require.NoError(t, err)
	assert.Equal(t, "Nita", f.FullName)
	assert.Equal(t, "planet5", f.Avatar)

	// A later rename is not visible until the cache entry is evicted.
	_, err = st.Users().Upsert(ctx, &model.User{ID: "u-friend", Name: "Nita C"})
	require.NoError(t, err)
	f, err = svc.FetchFriendData(ctx, "u-friend")
	require.NoError(t, err)
	assert.Equal(t, "Nita", f.FullName)
}

func TestFetchFriendData_Fallbacks(t *testing.T) {
	svc, st := newUserService(t)
	ctx := context.Background()

	_, err := st.Users().Upsert(ctx, &model.User{ID: "u-bare"})
	require.NoError(t, err)

	f, err := svc.FetchFriendData(ctx, "u-bare")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", f.FullName)
	assert.Equal(t, "planet8", f.Avatar)

	_, err = svc.FetchFriendData(ctx, "u-ghost")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteFriend_EvictsCache(t *testing.T) {
	svc, st := newUserService(t)
	ctx := context.Background()

	_, err := st.Users().Upsert(ctx, &model.User{ID: "u1", Friends: []model.Friend{
		{ID: "u-friend", FullName: "Nita", LatestInteractionDate: time.Now()},
	}})
	require.NoError(t, err)
	_, err = st.Users().Upsert(ctx, &model.User{ID: "u-friend", Name: "Nita"})
	require.NoError(t, err)

	// Warm the cache.
	_, err = svc.FetchFriendData(ctx, "u-friend")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFriend(ctx, "u1", "u-friend"))

	u, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	_, ok := u.FindFriend("u-friend")
	assert.False(t, ok)

	// The next lookup refetches from the store.
	_, err = st.Users().Upsert(ctx, &model.User{ID: "u-friend", Name: "Nita C"})
	require.NoError(t, err)
	f, err := svc.FetchFriendData(ctx, "u-friend")
	require.NoError(t, err)
	assert.Equal(t, "Nita C", f.FullName)
}

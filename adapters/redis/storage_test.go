package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streakbot/core"
)

// newTestStore spins up a miniredis server and returns a store plus cleanup.
func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(client)
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return store, cleanup
}

func TestStore_EnsureAndFind(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	rec, err := store.Ensure(ctx, "u1", "Alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("u1"), rec.ID)
	assert.Equal(t, "Alice", rec.DisplayName)

	found, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	// Re-ensure refreshes presentation fields only.
	rec2, err := store.Ensure(ctx, "u1", "Alice!", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice!", rec2.DisplayName)
}

func TestStore_FindMissing(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	_, err := store.Find(context.Background(), "nobody")
	require.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestStore_UpdateAtomicMutation(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.Ensure(ctx, "u1", "", "")
	require.NoError(t, err)

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	updated, err := store.Update(ctx, "u1", func(rec *core.UserRecord) error {
		next, _, err := core.Advance(*rec, now, 10)
		if err != nil {
			return err
		}
		*rec = next
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), updated.TotalScore)
	assert.Equal(t, 1, updated.CurrentStreak)

	persisted, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated.TotalScore, persisted.TotalScore)
	require.NotNil(t, persisted.LastActivityDate)
}

func TestStore_UpdateMissingUser(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	_, err := store.Update(context.Background(), "ghost", func(rec *core.UserRecord) error { return nil })
	require.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestStore_Reset(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.Ensure(ctx, "u1", "", "")
	require.NoError(t, err)
	_, err = store.Update(ctx, "u1", func(rec *core.UserRecord) error {
		rec.TotalScore = 50
		rec.CurrentStreak = 5
		rec.LongestStreak = 7
		return nil
	})
	require.NoError(t, err)

	existed, err := store.Reset(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, existed)

	rec, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, rec.TotalScore)
	assert.Zero(t, rec.CurrentStreak)
	assert.Zero(t, rec.LongestStreak)
	assert.Nil(t, rec.LastActivityDate)

	existed, err = store.Reset(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestStore_TopN(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	scores := map[core.UserID]int64{"a": 30, "b": 90, "c": 60, "d": 90}
	longest := map[core.UserID]int{"a": 1, "b": 2, "c": 3, "d": 8}
	for id, score := range scores {
		_, err := store.Ensure(ctx, id, "", "")
		require.NoError(t, err)
		sc, ls := score, longest[id]
		_, err = store.Update(ctx, id, func(rec *core.UserRecord) error {
			rec.TotalScore = sc
			rec.LongestStreak = ls
			return nil
		})
		require.NoError(t, err)
	}

	top, err := store.TopN(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// d beats b on longest streak at equal score.
	assert.Equal(t, core.UserID("d"), top[0].ID)
	assert.Equal(t, core.UserID("b"), top[1].ID)
	assert.Equal(t, core.UserID("c"), top[2].ID)
}

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr
}

func notification(user string, kind domain.Kind, msg string) domain.Notification {
	return domain.Notification{
		Recipient: user,
		Room:      "912호",
		Date:      "2025-04-01",
		Weekday:   "Tue",
		TimeSlot:  "15:00~16:00",
		Kind:      kind,
		Message:   msg,
		CreatedAt: time.UnixMilli(1743465600000),
	}
}

func TestRedisStore_SaveLoadFIFO(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, "dave", notification("dave", domain.KindApproved, fmt.Sprintf("m%d|x", i))))
	}

	loaded, err := store.Load(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, n := range loaded {
		assert.Equal(t, fmt.Sprintf("m%d|x", i), n.Message)
		assert.Equal(t, "dave", n.Recipient)
		assert.Equal(t, int64(1743465600000), n.CreatedAt.UnixMilli())
	}

	count, err := store.Count(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRedisStore_CountSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(ctx, "erin", notification("erin", domain.KindRejected, "first")))
	_, err := mr.RPush(listKey("erin"), "garbage", "BOGUS|m|r|d|w|t|1")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "erin", notification("erin", domain.KindCancelled, "second")))

	count, err := store.Count(ctx, "erin")
	require.NoError(t, err)
	drained, err := store.Drain(ctx, "erin")
	require.NoError(t, err)
	assert.Len(t, drained, 2)
	assert.Equal(t, len(drained), count)
}

func TestRedisStore_ClearAndDrain(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(ctx, "erin", notification("erin", domain.KindRejected, "a")))
	require.NoError(t, store.Save(ctx, "erin", notification("erin", domain.KindCancelled, "b")))

	drained, err := store.Drain(ctx, "erin")
	require.NoError(t, err)
	require.Len(t, drained, 2)
	assert.Equal(t, domain.KindRejected, drained[0].Kind)
	assert.False(t, mr.Exists(listKey("erin")))
	assert.Empty(t, mr.HGet(mtimeKey, "erin"))

	require.NoError(t, store.Save(ctx, "erin", notification("erin", domain.KindApproved, "c")))
	require.NoError(t, store.Clear(ctx, "erin"))
	loaded, err := store.Load(ctx, "erin")
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.NoError(t, store.Clear(ctx, "nobody"))
}

func TestRedisStore_SkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(ctx, "frank", notification("frank", domain.KindApproved, "ok")))
	_, err := mr.Push(listKey("frank"), "not a record")
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "frank")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestRedisStore_SweepOlderThan(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	now := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	horizon := 7 * 24 * time.Hour
	boundary := now.Add(-horizon)

	writes := map[string]time.Time{
		"stale":    boundary.Add(-time.Millisecond),
		"boundary": boundary,
		"fresh":    now,
	}
	for user, at := range writes {
		at := at
		store.now = func() time.Time { return at }
		require.NoError(t, store.Save(ctx, user, notification(user, domain.KindApproved, "m")))
	}
	store.now = func() time.Time { return now }

	deleted, err := store.SweepOlderThan(ctx, horizon)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.False(t, mr.Exists(listKey("stale")))
	assert.True(t, mr.Exists(listKey("boundary")))
	assert.True(t, mr.Exists(listKey("fresh")))
}

func TestRedisStore_NotConfigured(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	assert.ErrorIs(t, store.Save(ctx, "x", notification("x", domain.KindApproved, "m")), domain.ErrStoreNotConfigured)
	_, err := store.Drain(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)
	_, err = store.SweepOlderThan(ctx, time.Hour)
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)
}

func TestRedisStore_SurfacesConnectionErrors(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Save(context.Background(), "x", notification("x", domain.KindApproved, "m"))
	assert.Error(t, err)
}

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotification(t *testing.T, user string, kind domain.Kind, msg string) domain.Notification {
	t.Helper()
	n, err := domain.NewNotification(user, "", "908호", "2025-03-10", "Mon", "09:00~10:00", kind, msg)
	require.NoError(t, err)
	return n
}

func TestStore_SaveLoadFIFO(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	var saved []domain.Notification
	for i, kind := range []domain.Kind{domain.KindApproved, domain.KindChangeRejected, domain.KindCancelled} {
		n := newNotification(t, "dave", kind, fmt.Sprintf("message %d, with | separators", i))
		require.NoError(t, store.Save(ctx, "dave", n))
		saved = append(saved, n)
	}

	loaded, err := store.Load(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, loaded, len(saved))
	for i := range saved {
		assert.Equal(t, saved[i].Kind, loaded[i].Kind)
		assert.Equal(t, saved[i].Message, loaded[i].Message)
		assert.Equal(t, saved[i].Room, loaded[i].Room)
		assert.Equal(t, saved[i].TimeSlot, loaded[i].TimeSlot)
		assert.Equal(t, "dave", loaded[i].Recipient)
		assert.Equal(t, saved[i].CreatedAt.UnixMilli(), loaded[i].CreatedAt.UnixMilli())
	}

	count, err := store.Count(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_LoadClearScenario(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, "dave", newNotification(t, "dave", domain.KindApproved, "m")))
	}

	loaded, err := store.Load(ctx, "dave")
	require.NoError(t, err)
	assert.Len(t, loaded, 3)

	require.NoError(t, store.Clear(ctx, "dave"))

	loaded, err = store.Load(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, loaded)
	count, err := store.Count(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_MissingLog(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())

	loaded, err := store.Load(ctx, "ghost")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
	assert.NoError(t, store.Clear(ctx, "ghost"))

	drained, err := store.Drain(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, drained)
}

func TestStore_DirectoryCreatedLazily(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := NewStore(base)

	_, err := os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Save(ctx, "alice", newNotification(t, "alice", domain.KindApproved, "hi")))
	_, err = os.Stat(filepath.Join(base, "notifications", "alice_notifications.txt"))
	assert.NoError(t, err)
}

func TestStore_Drain(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(ctx, "erin", newNotification(t, "erin", domain.KindRejected, "first")))
	require.NoError(t, store.Save(ctx, "erin", newNotification(t, "erin", domain.KindApproved, "second")))

	drained, err := store.Drain(ctx, "erin")
	require.NoError(t, err)
	require.Len(t, drained, 2)
	assert.Equal(t, "first", drained[0].Message)
	assert.Equal(t, "second", drained[1].Message)

	count, err := store.Count(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_SkipsCorruptLines(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(ctx, "frank", newNotification(t, "frank", domain.KindApproved, "good one")))

	f, err := os.OpenFile(store.path("frank"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n# comment\n\nBOGUS|m|r|d|w|t|1\nCANCELLED|legacy|911호|2025-03-11|Tue|13:00~14:00\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, store.Save(ctx, "frank", newNotification(t, "frank", domain.KindRejected, "good two")))

	loaded, err := store.Load(ctx, "frank")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "good one", loaded[0].Message)
	assert.Equal(t, "legacy", loaded[1].Message)
	assert.True(t, loaded[1].CreatedAt.IsZero())
	assert.Equal(t, "good two", loaded[2].Message)
}

func TestStore_NotConfigured(t *testing.T) {
	ctx := context.Background()
	store := NewStore("")
	n := domain.Notification{Recipient: "x", Kind: domain.KindApproved}

	assert.ErrorIs(t, store.Save(ctx, "x", n), domain.ErrStoreNotConfigured)
	_, err := store.Load(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)
	assert.ErrorIs(t, store.Clear(ctx, "x"), domain.ErrStoreNotConfigured)
	_, err = store.Count(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)
	_, err = store.Drain(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)
	_, err = store.SweepOlderThan(ctx, time.Hour)
	assert.ErrorIs(t, err, domain.ErrStoreNotConfigured)
}

func TestStore_SaveSurfacesStorageError(t *testing.T) {
	base := t.TempDir()
	// A regular file where the notifications directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(base, "notifications"), []byte("x"), 0o644))
	store := NewStore(base)

	err := store.Save(context.Background(), "alice", newNotification(t, "alice", domain.KindApproved, "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create notifications dir")
}

func TestStore_UserIDCannotEscapeDir(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store := NewStore(base)

	require.NoError(t, store.Save(ctx, "../evil", newNotification(t, "../evil", domain.KindApproved, "x")))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "..%2Fevil_notifications.txt", entries[0].Name())

	loaded, err := store.Load(ctx, "../evil")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())
	const writers, perWriter = 8, 40
	users := []string{"u1", "u2", "u3"}

	var wg sync.WaitGroup
	for _, user := range users {
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(user string, w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					msg := fmt.Sprintf("writer %d record %d", w, i)
					n := domain.Notification{Recipient: user, Kind: domain.KindApproved, Message: msg, CreatedAt: time.Now()}
					assert.NoError(t, store.Save(ctx, user, n))
				}
			}(user, w)
		}
	}
	wg.Wait()

	for _, user := range users {
		loaded, err := store.Load(ctx, user)
		require.NoError(t, err)
		assert.Len(t, loaded, writers*perWriter, "no record may be torn or lost for %s", user)
	}
	assert.Equal(t, 0, store.locks.size())
}

func TestStore_SweepOlderThan(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	horizon := 7 * 24 * time.Hour
	boundary := now.Add(-horizon)

	for _, user := range []string{"stale", "boundary", "fresh"} {
		require.NoError(t, store.Save(ctx, user, newNotification(t, user, domain.KindApproved, "m")))
	}
	require.NoError(t, os.Chtimes(store.path("stale"), boundary.Add(-time.Second), boundary.Add(-time.Second)))
	require.NoError(t, os.Chtimes(store.path("boundary"), boundary, boundary))
	require.NoError(t, os.Chtimes(store.path("fresh"), now, now))

	unrelated := filepath.Join(store.Dir(), "README.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))
	require.NoError(t, os.Chtimes(unrelated, boundary.Add(-time.Hour), boundary.Add(-time.Hour)))

	deleted, err := store.SweepOlderThan(ctx, horizon)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err := store.Count(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	for _, user := range []string{"boundary", "fresh"} {
		count, err := store.Count(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, 1, count, user)
	}
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestStore_SweepDeletesWholeLog(t *testing.T) {
	ctx := context.Background()
	store := NewStore(t.TempDir())
	now := time.Now()
	store.now = func() time.Time { return now }

	old := newNotification(t, "gina", domain.KindApproved, "old")
	old.CreatedAt = now.Add(-30 * 24 * time.Hour)
	require.NoError(t, store.Save(ctx, "gina", old))
	require.NoError(t, store.Save(ctx, "gina", newNotification(t, "gina", domain.KindApproved, "recent")))
	stamp := now.Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(store.path("gina"), stamp, stamp))

	deleted, err := store.SweepOlderThan(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestStore_SweepWithoutDirectory(t *testing.T) {
	store := NewStore(t.TempDir())
	deleted, err := store.SweepOlderThan(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

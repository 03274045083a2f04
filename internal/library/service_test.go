package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookhaven/internal/book"
	"github.com/lepinkainen/bookhaven/internal/cache"
	"github.com/lepinkainen/bookhaven/internal/datastore"
	"github.com/lepinkainen/bookhaven/internal/testutil"
)

// cacheResolver resolves only books already present in the cache.
type cacheResolver struct {
	store *cache.Store
	calls int
}

func (r *cacheResolver) Resolve(ctx context.Context, key string) (*book.Record, error) {
	r.calls++
	rec, err := r.store.Get(ctx, key)
	if errors.Is(err, cache.ErrAbsent) {
		return nil, book.ErrNotFound
	}
	return rec, err
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func setupLibrary(t *testing.T) (*Service, *cacheResolver, *testClock) {
	t.Helper()

	env := testutil.NewTestEnv(t)
	db, err := datastore.Open(context.Background(), datastore.DriverSQLite, env.DatabasePath("library"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := cache.NewStore(db)
	for _, rec := range []book.Record{
		{Key: "dune", Title: "Dune", Author: "Frank Herbert"},
		{Key: "emma", Title: "Emma", Author: "Jane Austen"},
		{Key: "ulysses", Title: "Ulysses", Author: "James Joyce"},
	} {
		_, err := store.Upsert(context.Background(), rec)
		require.NoError(t, err)
	}

	clock := &testClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	resolver := &cacheResolver{store: store}
	return NewService(db, resolver, WithClock(clock.Now)), resolver, clock
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"to_read", "reading", "completed"} {
		status, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), status)
	}

	_, err := ParseStatus("abandoned")
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAddDefaultsToToRead(t *testing.T) {
	svc, resolver, clock := setupLibrary(t)
	ctx := context.Background()

	entry, created, err := svc.Add(ctx, "alice", "dune")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusToRead, entry.Status)
	assert.Equal(t, 0, entry.Progress)
	assert.Equal(t, "Dune", entry.Title)
	assert.Equal(t, "Frank Herbert", entry.Author)
	assert.True(t, entry.AddedAt.Equal(clock.now))
	assert.Equal(t, 1, resolver.calls)
}

func TestAddExistingEntryIsUnchanged(t *testing.T) {
	svc, _, clock := setupLibrary(t)
	ctx := context.Background()

	_, _, err := svc.Add(ctx, "alice", "dune")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, "alice", "dune", StatusReading)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	again, created, err := svc.Add(ctx, "alice", "dune")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusReading, again.Status)

	counts, err := svc.Counts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Total)
}

func TestAddUnknownBook(t *testing.T) {
	svc, _, _ := setupLibrary(t)

	_, _, err := svc.Add(context.Background(), "alice", "missing")
	require.ErrorIs(t, err, book.ErrNotFound)
}

type uncachedResolver struct{}

func (uncachedResolver) Resolve(_ context.Context, key string) (*book.Record, error) {
	return &book.Record{Key: key, Title: "Ghost", Author: "Nobody"}, nil
}

func TestAddResolvedButUncachedBookIsStorageError(t *testing.T) {
	env := testutil.NewTestEnv(t)
	db, err := datastore.Open(context.Background(), datastore.DriverSQLite, env.DatabasePath("uncached"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewService(db, uncachedResolver{})
	_, created, err := svc.Add(context.Background(), "alice", "ghost")
	require.Error(t, err)
	assert.False(t, created)
	assert.NotErrorIs(t, err, book.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to add book to library")

	_, err = svc.Get(context.Background(), "alice", "ghost")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestAddRequiresUser(t *testing.T) {
	svc, resolver, _ := setupLibrary(t)

	_, _, err := svc.Add(context.Background(), "", "dune")
	require.ErrorIs(t, err, ErrMissingUser)
	assert.Equal(t, 0, resolver.calls)
}

func TestUpdateStatus(t *testing.T) {
	svc, _, clock := setupLibrary(t)
	ctx := context.Background()

	_, _, err := svc.Add(ctx, "alice", "dune")
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Hour)
	entry, err := svc.UpdateStatus(ctx, "alice", "dune", StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.True(t, entry.UpdatedAt.Equal(clock.now))
	assert.True(t, entry.AddedAt.Before(entry.UpdatedAt))

	_, err = svc.UpdateStatus(ctx, "alice", "dune", Status("lost"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, "bob", "dune", StatusReading)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestUpdateProgress(t *testing.T) {
	svc, _, _ := setupLibrary(t)
	ctx := context.Background()

	_, _, err := svc.Add(ctx, "alice", "dune")
	require.NoError(t, err)

	entry, err := svc.UpdateProgress(ctx, "alice", "dune", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, entry.Progress)

	for _, bad := range []int{-1, 101} {
		_, err = svc.UpdateProgress(ctx, "alice", "dune", bad)
		require.ErrorIs(t, err, ErrInvalidProgress)
	}

	_, err = svc.UpdateProgress(ctx, "alice", "emma", 10)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestRemove(t *testing.T) {
	svc, _, _ := setupLibrary(t)
	ctx := context.Background()

	_, _, err := svc.Add(ctx, "alice", "dune")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "alice", "dune"))
	require.ErrorIs(t, svc.Remove(ctx, "alice", "dune"), ErrEntryNotFound)

	_, err = svc.Get(ctx, "alice", "dune")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestListAndCounts(t *testing.T) {
	svc, _, clock := setupLibrary(t)
	ctx := context.Background()

	for _, key := range []string{"dune", "emma", "ulysses"} {
		_, _, err := svc.Add(ctx, "alice", key)
		require.NoError(t, err)
		clock.now = clock.now.Add(time.Minute)
	}
	_, _, err := svc.Add(ctx, "bob", "dune")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, "alice", "emma", StatusReading)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, "alice", "ulysses", StatusCompleted)
	require.NoError(t, err)

	all, err := svc.List(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"ulysses", "emma", "dune"}, []string{all[0].BookKey, all[1].BookKey, all[2].BookKey})
	assert.Equal(t, "Ulysses", all[0].Title)

	reading, err := svc.List(ctx, "alice", StatusReading)
	require.NoError(t, err)
	require.Len(t, reading, 1)
	assert.Equal(t, "emma", reading[0].BookKey)

	_, err = svc.List(ctx, "alice", Status("nope"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	empty, err := svc.List(ctx, "carol", "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	counts, err := svc.Counts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Counts{ToRead: 1, Reading: 1, Completed: 1, Total: 3}, counts)

	bobCounts, err := svc.Counts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, Counts{ToRead: 1, Total: 1}, bobCounts)
}

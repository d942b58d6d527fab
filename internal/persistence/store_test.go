package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "test:")
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "staged.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Hour))
	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is not an error
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestStores(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store := NewMemoryStore(0)
		defer store.Close()
		storeContract(t, store)
	})
	t.Run("redis", func(t *testing.T) {
		store, _ := newMiniRedisStore(t)
		storeContract(t, store)
	})
	t.Run("sqlite", func(t *testing.T) {
		storeContract(t, newSQLiteStore(t))
	})
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	defer store.Close()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("secret"), time.Minute))
	store.mu.RLock()
	held := store.entries["k"].value
	store.mu.RUnlock()

	now = now.Add(time.Minute)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	store.cleanup()
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, held)
	store.mu.RLock()
	assert.Empty(t, store.entries)
	store.mu.RUnlock()
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	defer store.Close()

	in := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", in, 0))
	in[0] = 'z'

	out, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)
	out[0] = 'y'

	again, _ := store.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_CloseStopsSweeper(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), 0))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestRedisStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newMiniRedisStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("test:k"))

	mr.FastForward(time.Minute)
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "short", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("b"), 0))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staged.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", []byte{0xff, 0xd8, 0x00}, 0))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00}, got)
}

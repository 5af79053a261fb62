package settings

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	key   string
	value string
}

type recorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *recorder) watch(key string, value []byte) {
	r.mu.Lock()
	r.changes = append(r.changes, change{key, string(value)})
	r.mu.Unlock()
}

func (r *recorder) all() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.changes...)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "settings.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreGetSet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "k", []byte(`"v1"`)))
			require.NoError(t, store.Set(ctx, "k", []byte(`"v2"`)))

			value, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `"v2"`, string(value))
		})
	}
}

func TestStoreWatch(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := &recorder{}
			cancel := store.Watch(rec.watch)

			require.NoError(t, store.Set(ctx, "a", []byte("1")))
			require.NoError(t, store.Set(ctx, "b", []byte("2")))
			cancel()
			cancel()
			require.NoError(t, store.Set(ctx, "c", []byte("3")))

			assert.Equal(t, []change{{"a", "1"}, {"b", "2"}}, rec.all())
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Close())
			assert.ErrorIs(t, store.Set(context.Background(), "k", []byte("1")), ErrClosed)
			_, _, err := store.Get(context.Background(), "k")
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.db")

	store, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeyEnabled, []byte("true")))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer store.Close()

	value, ok, err := store.Get(ctx, KeyEnabled)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", string(value))
	assert.Equal(t, path, store.Path())
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "", nil)
	assert.Error(t, err)
}

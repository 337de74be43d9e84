package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
	"github.com/fyrsmithlabs/ragassistant/internal/natstest"
	"github.com/fyrsmithlabs/ragassistant/internal/sanitize"
	"github.com/fyrsmithlabs/ragassistant/internal/siyuan"
)

// fakeFiles is an in-memory FileClient.
type fakeFiles struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (f *fakeFiles) GetFile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", path, siyuan.ErrNotFound)
	}
	return data, nil
}

func (f *fakeFiles) PutFile(_ context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.files == nil {
		f.files = map[string][]byte{}
	}
	f.files[path] = append([]byte(nil), data...)
	return nil
}

// backends returns every Store implementation wired to test resources.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqliteStore, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	natsStore, err := NewNATSStore(ctx, natstest.Connect(t), "test_bucket")
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
		"nats":   natsStore,
		"siyuan": NewSiYuanStore(&fakeFiles{}, "siyuan-rag-assistant"),
	}
}

func TestStores_Contract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx, "chat-history_20240101120000-abcdefg")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			blob := []byte(`[{"role":"user","content":"- [ ] todo"}]`)
			require.NoError(t, store.Save(ctx, "chat-history_20240101120000-abcdefg", blob))

			got, err := store.Load(ctx, "chat-history_20240101120000-abcdefg")
			require.NoError(t, err)
			assert.Equal(t, blob, got)

			require.NoError(t, store.Save(ctx, "chat-history_20240101120000-abcdefg", []byte(`[]`)))
			got, err = store.Load(ctx, "chat-history_20240101120000-abcdefg")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			// keys are independent
			require.NoError(t, store.Save(ctx, "plugin-settings", []byte(`{}`)))
			got, err = store.Load(ctx, "chat-history_20240101120000-abcdefg")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			assert.NoError(t, store.Close())
		})
	}
}

func TestMemoryStore_CopiesBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	blob := []byte("abc")
	require.NoError(t, m.Save(ctx, "k", blob))
	blob[0] = 'z'

	got, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, m.SaveCount())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, m.Save(cancelled, "k", blob))
}

func TestSiYuanStore_Paths(t *testing.T) {
	files := &fakeFiles{}
	s := NewSiYuanStore(files, "my-plugin")
	ctx := context.Background()

	err := s.Save(ctx, "../../escape", []byte("x"))
	require.ErrorIs(t, err, sanitize.ErrPathTraversal)
	assert.Empty(t, files.files, "keys cannot leave the plugin directory")

	require.NoError(t, s.Save(ctx, "chat-history_20240101120000-abcdefg", []byte("[]")))
	_, ok := files.files["/data/storage/petal/my-plugin/chat-history_20240101120000-abcdefg"]
	assert.True(t, ok, "history keys keep the editor plugin's file names")

	files.err = errors.New("kernel down")
	_, err = s.Load(ctx, "escape")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		provider string
		deps     Deps
		wantErr  bool
	}{
		{"memory", config.StorageMemory, Deps{}, false},
		{"sqlite", config.StorageSQLite, Deps{}, false},
		{"siyuan", config.StorageSiYuan, Deps{SiYuan: &fakeFiles{}}, false},
		{"siyuan without client", config.StorageSiYuan, Deps{}, true},
		{"nats without connection", config.StorageNATS, Deps{}, true},
		{"unknown", "redis", Deps{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Provider = tt.provider
			cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "h.db")

			store, err := New(ctx, cfg, tt.deps)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}
}

package wallet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackends(t *testing.T) {
	backends := map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   NewFileStorage(filepath.Join(t.TempDir(), "state")),
	}

	for name, s := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			data, err := s.Load(ctx, StorageKey)
			require.NoError(t, err)
			assert.Nil(t, data)

			require.NoError(t, s.Save(ctx, StorageKey, []byte(`{"account":"a","balance":"1"}`)))
			require.NoError(t, s.Save(ctx, StorageKey, []byte(`{"account":"b","balance":"2"}`)))

			data, err = s.Load(ctx, StorageKey)
			require.NoError(t, err)
			assert.JSONEq(t, `{"account":"b","balance":"2"}`, string(data))
		})
	}
}

func TestFileStorage_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir)
	require.NoError(t, s.Save(context.Background(), StorageKey, []byte(`{}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StorageKey+".json", entries[0].Name())
}

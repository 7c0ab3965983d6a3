package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/colloquy/pkg/adapters/file"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// Ensure Store implements StateStore
var _ ports.StateStore = (*file.Store)(nil)

func TestStore_Contract(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	t.Run("LoadNonExistentSession", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("SaveAndLoadSession", func(t *testing.T) {
		snap := domain.NewSnapshot("session-1", "Ordering")
		snap.Context["size"] = "large"
		snap.Context["count"] = 42
		snap.ReturnVariables = []string{"size"}
		require.NoError(t, store.Save(ctx, "session-1", snap))

		loaded, err := store.Load(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, "Ordering", loaded.State)
		assert.Equal(t, "large", loaded.Context["size"])
		assert.EqualValues(t, 42, loaded.Context["count"]) // JSON numbers decode as float64
		assert.Equal(t, []string{"size"}, loaded.ReturnVariables)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "session-1", domain.NewSnapshot("session-1", "Done")))
		loaded, err := store.Load(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, "Done", loaded.State)
	})

	t.Run("ListIgnoresForeignFiles", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "session-0", domain.NewSnapshot("session-0", "Init")))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"session-0", "session-1"}, ids)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "session-1"))
		require.NoError(t, store.Delete(ctx, "session-1"))
		_, err := store.Load(ctx, "session-1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("InvalidIDs", func(t *testing.T) {
		var argErr *domain.InvalidArgumentError
		for _, id := range []string{"", "..", "../escape", `a\b`} {
			err := store.Save(ctx, id, domain.NewSnapshot(id, "Init"))
			assert.ErrorAs(t, err, &argErr, "id %q", id)
		}
	})
}

func TestStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

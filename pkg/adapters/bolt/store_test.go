package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/colloquy/pkg/adapters/bolt"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore_Contract(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	ports.RunStateStoreContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := bolt.Open(path, bolt.WithBucket("dialogues"))
	require.NoError(t, err)
	snap := domain.NewSnapshot("ada", "Ordering")
	snap.Context["pizza"] = "margherita"
	require.NoError(t, store.Save(ctx, "ada", snap))
	require.NoError(t, store.Close())

	reopened, err := bolt.Open(path, bolt.WithBucket("dialogues"))
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "Ordering", loaded.State)
	assert.Equal(t, "margherita", loaded.Context["pizza"])
}

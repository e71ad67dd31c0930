package storage

import (
	"errors"
	"testing"

	"github.com/cuemby/nsx-orchestrator/pkg/security"
	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testProvider(zoneID int64, name string) *types.Provider {
	return &types.Provider{
		ZoneID:       zoneID,
		Name:         name,
		Hostname:     "nsx.example.com",
		Port:         443,
		Username:     "admin",
		Password:     "secret",
		Tier0Gateway: "t0",
		EdgeCluster:  "edge-cluster-1",
		Settings:     types.DefaultZoneSettings(),
	}
}

func TestProviderLifecycle(t *testing.T) {
	store := newTestStore(t)

	p := testProvider(1, "zone-one")
	require.NoError(t, store.CreateProvider(p))
	assert.False(t, p.CreatedAt.IsZero())

	got, err := store.GetProvider(1)
	require.NoError(t, err)
	assert.Equal(t, "zone-one", got.Name)
	assert.Equal(t, "t0", got.Tier0Gateway)
	assert.Equal(t, types.DefaultAPIRetries, got.Settings.APIRetries)

	byName, err := store.GetProviderByName("zone-one")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byName.ZoneID)

	got.Settings.APIRetries = 5
	require.NoError(t, store.UpdateProvider(got))
	got, err = store.GetProvider(1)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Settings.APIRetries)

	require.NoError(t, store.DeleteProvider(1))
	_, err = store.GetProvider(1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListProviders(t *testing.T) {
	store := newTestStore(t)

	providers, err := store.ListProviders()
	require.NoError(t, err)
	assert.Empty(t, providers)

	require.NoError(t, store.CreateProvider(testProvider(1, "a")))
	require.NoError(t, store.CreateProvider(testProvider(2, "b")))

	providers, err = store.ListProviders()
	require.NoError(t, err)
	assert.Len(t, providers, 2)
}

func TestMissingProvider(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetProvider(42)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.GetProviderByName("nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(store.DeleteProvider(42), ErrNotFound))
	assert.True(t, errors.Is(store.UpdateProvider(testProvider(42, "x")), ErrNotFound))
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.CreateProvider(testProvider(7, "persisted")))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetProvider(7)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}

func TestProviderPasswordSealed(t *testing.T) {
	dir := t.TempDir()
	sm, err := security.NewSecretsManagerFromPassword("passphrase")
	require.NoError(t, err)

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	store.SetSecretsManager(sm)
	require.NoError(t, store.CreateProvider(testProvider(1, "zone-one")))

	got, err := store.GetProvider(1)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Password)

	var raw []byte
	require.NoError(t, store.db.View(func(tx *bolt.Tx) error {
		raw = append(raw, tx.Bucket(bucketProviders).Get(zoneKey(1))...)
		return nil
	}))
	assert.NotContains(t, string(raw), `"secret"`)
	assert.Contains(t, string(raw), security.SealedPrefix)
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	_, err = reopened.GetProvider(1)
	assert.ErrorIs(t, err, ErrSealed)
	_, err = reopened.ListProviders()
	assert.ErrorIs(t, err, ErrSealed)

	reopened.SetSecretsManager(sm)
	providers, err := reopened.ListProviders()
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "secret", providers[0].Password)
}

func TestPlaintextProviderReadableWithSecrets(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateProvider(testProvider(2, "zone-two")))

	sm, err := security.NewSecretsManagerFromPassword("passphrase")
	require.NoError(t, err)
	store.SetSecretsManager(sm)

	got, err := store.GetProvider(2)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Password)
}

package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flashsol/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVStoreContract runs a suite of tests to verify that a KVStore
// implementation adheres to the interface contract. advance must move the
// store's notion of time forward so TTL expiry can be observed.
func RunKVStoreContract(t *testing.T, store KVStore, advance func(time.Duration)) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405") + ":"

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "set"
		require.NoError(t, store.Set(ctx, key, []byte(`{"flow":"buy"}`), time.Minute))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"flow":"buy"}`, string(got))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "delete"
		require.NoError(t, store.Set(ctx, key, []byte("v"), 0))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")
		assert.NoError(t, store.Delete(ctx, key), "deleting a missing key is not an error")
	})

	t.Run("SetNX", func(t *testing.T) {
		key := prefix + "nx"
		ok, err := store.SetNX(ctx, key, []byte("first"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetNX(ctx, key, []byte("second"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "first", string(got))
	})

	t.Run("Exists", func(t *testing.T) {
		key := prefix + "exists"
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Set(ctx, key, []byte("1"), time.Minute))
		ok, err = store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("CompareAndDelete", func(t *testing.T) {
		key := prefix + "cad"
		require.NoError(t, store.Set(ctx, key, []byte("owner-a"), time.Minute))

		ok, err := store.CompareAndDelete(ctx, key, []byte("owner-b"))
		require.NoError(t, err)
		assert.False(t, ok, "foreign token must not delete")

		ok, err = store.CompareAndDelete(ctx, key, []byte("owner-a"))
		require.NoError(t, err)
		assert.True(t, ok)

		exists, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("CompareAndExpire", func(t *testing.T) {
		key := prefix + "cae"
		require.NoError(t, store.Set(ctx, key, []byte("owner-a"), 2*time.Second))

		ok, err := store.CompareAndExpire(ctx, key, []byte("owner-b"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "foreign token must not extend")

		ok, err = store.CompareAndExpire(ctx, key, []byte("owner-a"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		advance(3 * time.Second)

		got, err := store.Get(ctx, key)
		require.NoError(t, err, "extended key must outlive its first ttl")
		assert.Equal(t, "owner-a", string(got))

		ok, err = store.CompareAndExpire(ctx, prefix+"cae-missing", []byte("owner-a"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TTL Expiry", func(t *testing.T) {
		key := prefix + "ttl"
		ok, err := store.SetNX(ctx, key, []byte("1"), 2*time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		advance(3 * time.Second)

		_, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		ok, err = store.SetNX(ctx, key, []byte("2"), 2*time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "expired key must be acquirable again")
	})

	t.Run("Set Replaces TTL", func(t *testing.T) {
		key := prefix + "persist"
		require.NoError(t, store.Set(ctx, key, []byte("1"), time.Second))
		require.NoError(t, store.Set(ctx, key, []byte("2"), 0))

		advance(2 * time.Second)

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))
	})
}

package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborchain/arbor/storage"
	badgerstorage "github.com/arborchain/arbor/storage/badger"
	"github.com/arborchain/arbor/utils/unittest"
)

func TestBatchStoreRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewBatches(db)

		batch := unittest.BatchFixture(4)
		err := store.Store(batch)
		require.NoError(t, err)

		retrieved, err := store.ByDigest(batch.Digest())
		require.NoError(t, err)
		assert.Equal(t, batch.Transactions, retrieved.Transactions)
		assert.Equal(t, batch.Digest(), retrieved.Digest())
	})
}

func TestBatchRetrieveUnknown(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewBatches(db)

		_, err := store.ByDigest(unittest.DigestFixture())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestBatchStoreTwice(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewBatches(db)

		batch := unittest.BatchFixture(4)
		require.NoError(t, store.Store(batch))

		// storing the same batch again is a no-op, not an error
		require.NoError(t, store.Store(batch))
	})
}

func TestBatchRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		store := badgerstorage.NewBatches(db)

		batch := unittest.BatchFixture(4)
		require.NoError(t, store.Store(batch))
		require.NoError(t, store.Remove(batch.Digest()))

		_, err := store.ByDigest(batch.Digest())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

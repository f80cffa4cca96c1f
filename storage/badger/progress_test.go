package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/storage"
	badgerstorage "github.com/arborchain/arbor/storage/badger"
	"github.com/arborchain/arbor/utils/unittest"
)

func TestExecutedProgress(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		progress := badgerstorage.NewExecutedProgress(db)

		// uninitialized cursor is distinguishable from round zero
		_, err := progress.ProcessedRound()
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, progress.InitProcessedRound(0))

		round, err := progress.ProcessedRound()
		require.NoError(t, err)
		assert.Equal(t, dag.Round(0), round)

		// second init fails, the cursor is already set
		err = progress.InitProcessedRound(10)
		assert.ErrorIs(t, err, storage.ErrAlreadyExists)

		require.NoError(t, progress.SetProcessedRound(42))
		round, err = progress.ProcessedRound()
		require.NoError(t, err)
		assert.Equal(t, dag.Round(42), round)
	})
}

func TestExecutedProgressSurvivesReopen(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		db := unittest.BadgerDB(t, dir)
		progress := badgerstorage.NewExecutedProgress(db)
		require.NoError(t, progress.InitProcessedRound(0))
		require.NoError(t, progress.SetProcessedRound(7))
		require.NoError(t, db.Close())

		db = unittest.BadgerDB(t, dir)
		defer db.Close()
		progress = badgerstorage.NewExecutedProgress(db)
		round, err := progress.ProcessedRound()
		require.NoError(t, err)
		assert.Equal(t, dag.Round(7), round)
	})
}

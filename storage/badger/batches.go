package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/storage"
	"github.com/arborchain/arbor/storage/badger/operation"
)

// Batches implements the local worker batch store on top of badger.
type Batches struct {
	db *badger.DB
}

var _ storage.Batches = (*Batches)(nil)

func NewBatches(db *badger.DB) *Batches {
	return &Batches{db: db}
}

func (b *Batches) Store(batch *dag.Batch) error {
	err := operation.RetryOnConflict(b.db.Update, operation.SkipDuplicates(operation.InsertBatch(batch)))
	if err != nil {
		return fmt.Errorf("could not store batch: %w", err)
	}
	return nil
}

func (b *Batches) ByDigest(digest dag.BatchDigest) (*dag.Batch, error) {
	var batch dag.Batch
	err := b.db.View(operation.RetrieveBatch(digest, &batch))
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (b *Batches) Remove(digest dag.BatchDigest) error {
	err := operation.RetryOnConflict(b.db.Update, operation.RemoveBatch(digest))
	if err != nil {
		return fmt.Errorf("could not remove batch: %w", err)
	}
	return nil
}

package storage

import (
	"github.com/arborchain/arbor/model/dag"
)

// Batches is the local worker batch store. On a combined worker/executor
// deployment the worker writes batches here as it receives them, which lets
// the executor resolve most digests without a network hop.
type Batches interface {
	// Store persists a batch under its content digest. Storing the same batch
	// twice is a no-op.
	Store(batch *dag.Batch) error

	// ByDigest returns the batch with the given digest.
	// Error returns:
	//   - storage.ErrNotFound if no batch with the digest is known locally
	ByDigest(digest dag.BatchDigest) (*dag.Batch, error)

	// Remove drops the batch with the given digest. Removing an unknown
	// digest is a no-op.
	Remove(digest dag.BatchDigest) error
}

package storage

import (
	"github.com/arborchain/arbor/model/dag"
)

// SubDags persists committed sub-DAGs until their batches have been delivered
// downstream. The subscriber stores every incoming sub-DAG before resolving
// it, which is what makes crash recovery possible: after a restart, all
// stored sub-DAGs above the recovery cursor are replayed.
type SubDags interface {
	// Store persists a committed sub-DAG under its commit index. Storing the
	// same sub-DAG twice is a no-op.
	Store(subdag *dag.SubDag) error

	// ByIndex returns the sub-DAG committed at the given index.
	// Error returns:
	//   - storage.ErrNotFound if no sub-DAG with the index is stored
	ByIndex(index uint64) (*dag.SubDag, error)

	// Since returns all stored sub-DAGs with a round strictly greater than
	// the given round, ordered by commit index.
	Since(round dag.Round) ([]*dag.SubDag, error)

	// PruneUpTo drops all stored sub-DAGs with a round at or below the given
	// round. Called after the recovery cursor has advanced past them.
	PruneUpTo(round dag.Round) error
}

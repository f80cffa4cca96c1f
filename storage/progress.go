package storage

import (
	"github.com/arborchain/arbor/model/dag"
)

// ExecutedProgress reads and writes the recovery cursor: the round of the
// last sub-DAG whose batches were fully delivered downstream. Monotonicity
// of the cursor is enforced by the recovery tracker on top of this store.
type ExecutedProgress interface {
	// ProcessedRound returns the currently stored cursor.
	// Error returns:
	//   - storage.ErrNotFound if the cursor has never been initialized
	ProcessedRound() (dag.Round, error)

	// InitProcessedRound inserts the default cursor. It should only be called
	// once.
	// Error returns:
	//   - storage.ErrAlreadyExists if the cursor has already been initialized
	InitProcessedRound(defaultRound dag.Round) error

	// SetProcessedRound updates the stored cursor. It returns a generic error
	// if InitProcessedRound was never called.
	SetProcessedRound(round dag.Round) error
}

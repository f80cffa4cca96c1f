package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/storage"
	"github.com/arborchain/arbor/storage/badger/operation"
)

// ExecutedProgress persists the recovery cursor: the round of the last fully
// delivered sub-DAG.
type ExecutedProgress struct {
	db *badger.DB
}

var _ storage.ExecutedProgress = (*ExecutedProgress)(nil)

func NewExecutedProgress(db *badger.DB) *ExecutedProgress {
	return &ExecutedProgress{db: db}
}

func (p *ExecutedProgress) ProcessedRound() (dag.Round, error) {
	var round dag.Round
	err := p.db.View(operation.RetrieveExecutedRound(&round))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("could not retrieve executed round: %w", err)
	}
	return round, nil
}

func (p *ExecutedProgress) InitProcessedRound(defaultRound dag.Round) error {
	err := operation.RetryOnConflict(p.db.Update, operation.InsertExecutedRound(defaultRound))
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("could not init executed round: %w", err)
	}
	return nil
}

func (p *ExecutedProgress) SetProcessedRound(round dag.Round) error {
	err := operation.RetryOnConflict(p.db.Update, operation.UpdateExecutedRound(round))
	if err != nil {
		return fmt.Errorf("could not update executed round: %w", err)
	}
	return nil
}

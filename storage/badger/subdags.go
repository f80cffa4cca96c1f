package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/storage"
	"github.com/arborchain/arbor/storage/badger/operation"
)

// SubDags persists committed sub-DAGs until the recovery cursor has advanced
// past them.
type SubDags struct {
	db *badger.DB
}

var _ storage.SubDags = (*SubDags)(nil)

func NewSubDags(db *badger.DB) *SubDags {
	return &SubDags{db: db}
}

func (s *SubDags) Store(subdag *dag.SubDag) error {
	err := operation.RetryOnConflict(s.db.Update, operation.SkipDuplicates(operation.InsertSubDag(subdag)))
	if err != nil {
		return fmt.Errorf("could not store sub-dag %d: %w", subdag.Index, err)
	}
	return nil
}

func (s *SubDags) ByIndex(index uint64) (*dag.SubDag, error) {
	var subdag dag.SubDag
	err := s.db.View(operation.RetrieveSubDag(index, &subdag))
	if err != nil {
		return nil, err
	}
	return &subdag, nil
}

func (s *SubDags) Since(round dag.Round) ([]*dag.SubDag, error) {
	var subdags []*dag.SubDag
	err := s.db.View(operation.TraverseSubDags(func(subdag *dag.SubDag) error {
		if subdag.Round > round {
			subdags = append(subdags, subdag)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not traverse sub-dags: %w", err)
	}
	return subdags, nil
}

func (s *SubDags) PruneUpTo(round dag.Round) error {
	// collect first, then delete in a separate transaction per entry, so a
	// large prune cannot exceed the transaction size limit
	var indices []uint64
	err := s.db.View(operation.TraverseSubDags(func(subdag *dag.SubDag) error {
		if subdag.Round <= round {
			indices = append(indices, subdag.Index)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("could not collect prunable sub-dags: %w", err)
	}
	for _, index := range indices {
		err = operation.RetryOnConflict(s.db.Update, operation.RemoveSubDag(index))
		if err != nil {
			return fmt.Errorf("could not prune sub-dag %d: %w", index, err)
		}
	}
	return nil
}

package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/arborchain/arbor/model/dag"
)

func InsertExecutedRound(round dag.Round) func(*badger.Txn) error {
	return insert(makePrefix(codeExecutedRound), round)
}

func UpdateExecutedRound(round dag.Round) func(*badger.Txn) error {
	return update(makePrefix(codeExecutedRound), round)
}

func RetrieveExecutedRound(round *dag.Round) func(*badger.Txn) error {
	return retrieve(makePrefix(codeExecutedRound), round)
}

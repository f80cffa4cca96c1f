package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/arborchain/arbor/model/dag"
)

func InsertSubDag(subdag *dag.SubDag) func(*badger.Txn) error {
	return insert(makePrefix(codeSubDag, subdag.Index), subdag)
}

func RetrieveSubDag(index uint64, subdag *dag.SubDag) func(*badger.Txn) error {
	return retrieve(makePrefix(codeSubDag, index), subdag)
}

func RemoveSubDag(index uint64) func(*badger.Txn) error {
	return remove(makePrefix(codeSubDag, index))
}

// TraverseSubDags visits all stored sub-DAGs in commit index order. Keys are
// encoded big-endian, so lexicographic iteration order is commit order.
func TraverseSubDags(handle func(subdag *dag.SubDag) error) func(*badger.Txn) error {
	return traverse(makePrefix(codeSubDag), func(key []byte, val []byte) error {
		var subdag dag.SubDag
		err := decodeValue(val, &subdag)
		if err != nil {
			return err
		}
		return handle(&subdag)
	})
}

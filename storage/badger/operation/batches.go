package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/arborchain/arbor/model/dag"
)

func InsertBatch(batch *dag.Batch) func(*badger.Txn) error {
	return insert(makePrefix(codeBatch, batch.Digest()), batch)
}

func RetrieveBatch(digest dag.BatchDigest, batch *dag.Batch) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBatch, digest), batch)
}

func RemoveBatch(digest dag.BatchDigest) func(*badger.Txn) error {
	return remove(makePrefix(codeBatch, digest))
}

func BatchExists(digest dag.BatchDigest, ok *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeBatch, digest), ok)
}

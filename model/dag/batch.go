package dag

import (
	"time"
)

// Batch is the transaction payload identified by a BatchDigest. Batches are
// produced and stored by worker nodes; the executor only holds a batch long
// enough to hand it to the notifier.
type Batch struct {
	// Transactions are opaque to the executor; validating their semantics is
	// the job of the downstream execution engine.
	Transactions [][]byte
	// CreatedAt is the worker-reported creation time of the batch, used to
	// measure creation-to-execution latency.
	CreatedAt time.Time
}

// Digest returns the content-derived identifier of the batch.
func (b *Batch) Digest() BatchDigest {
	return HashedBatchDigest(b.Transactions)
}

// Size returns the total payload size of the batch in bytes.
func (b *Batch) Size() int {
	size := 0
	for _, tx := range b.Transactions {
		size += len(tx)
	}
	return size
}

package network

import (
	"context"
	"errors"

	"github.com/arborchain/arbor/model/dag"
)

// ErrBatchNotFound is returned by a worker that does not (yet) hold the
// requested batch. For consensus-committed digests this is transient: the
// worker may still be syncing the batch from its peers.
var ErrBatchNotFound = errors.New("batch not found on worker")

// WorkerClient is the transport boundary towards worker nodes. The executor
// uses it to download batch bodies it cannot resolve from local storage.
type WorkerClient interface {
	// RequestBatch downloads the batch with the given digest from the given
	// worker peer.
	// Error returns:
	//   - network.ErrBatchNotFound if the worker does not hold the batch
	//   - any transport error encountered while making the request
	RequestBatch(ctx context.Context, digest dag.BatchDigest, worker dag.WorkerID) (*dag.Batch, error)
}

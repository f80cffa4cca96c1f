package module

import (
	"time"

	"github.com/arborchain/arbor/model/dag"
)

// ExecutorMetrics is the instrumentation surface of the executor pipeline.
// A single long-lived implementation is passed into each component at
// construction; each component only touches the metrics covering its own
// responsibility. Implementations must be safe for concurrent use.
type ExecutorMetrics interface {
	// NotifierOccupancy tracks the occupancy of the bounded channel from the
	// subscriber to the notifier.
	NotifierOccupancy(occupancy int)

	// LocalBatchFetch records the latency and outcome of one local worker
	// store lookup. A miss is not a failure; it falls through to a remote
	// fetch.
	LocalBatchFetch(hit bool, duration time.Duration)

	// RemoteBatchFetch records the latency and outcome of one physical
	// remote request_batch attempt.
	RemoteBatchFetch(success bool, duration time.Duration)

	// RemoteRequestStarted and RemoteRequestFinished track the number of
	// pending remote request_batch calls.
	RemoteRequestStarted()
	RemoteRequestFinished()

	// PendingFetches tracks the number of payload downloads currently
	// waiting to resolve.
	PendingFetches(count int)

	// BatchProcessed counts one batch handed to the notifier, with the
	// latency from batch creation to its availability for execution.
	BatchProcessed(executionLatency time.Duration)

	// CertificateProcessed records the round of the last certificate seen by
	// the subscriber and the latency from certificate creation to its
	// arrival at the executor.
	CertificateProcessed(round dag.Round, latency time.Duration)

	// RecoveredCertificates counts certificates replayed during the recovery
	// period to fetch their payloads.
	RecoveredCertificates(count int)

	// SubDagResolved records, for one committed sub-DAG, the number of
	// batches fetched and the total time until all of them were available.
	SubDagResolved(batchCount int, totalLatency time.Duration)
}

package executor_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arborchain/arbor/engine/executor"
	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/network"
	"github.com/arborchain/arbor/storage"
)

// memBatches is an in-memory stand-in for the local worker batch store.
type memBatches struct {
	mu      sync.Mutex
	batches map[dag.BatchDigest]*dag.Batch
	lookups int
}

var _ storage.Batches = (*memBatches)(nil)

func newMemBatches(batches ...*dag.Batch) *memBatches {
	m := &memBatches{batches: make(map[dag.BatchDigest]*dag.Batch)}
	for _, batch := range batches {
		m.batches[batch.Digest()] = batch
	}
	return m
}

func (m *memBatches) Store(batch *dag.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.Digest()] = batch
	return nil
}

func (m *memBatches) ByDigest(digest dag.BatchDigest) (*dag.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	batch, ok := m.batches[digest]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return batch, nil
}

func (m *memBatches) Remove(digest dag.BatchDigest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, digest)
	return nil
}

func (m *memBatches) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// fakeWorker is a scriptable remote worker. Each digest can be configured to
// fail a number of attempts before succeeding, or to block until released.
type fakeWorker struct {
	mu       sync.Mutex
	batches  map[dag.BatchDigest]*dag.Batch
	failures map[dag.BatchDigest]int
	requests map[dag.BatchDigest]int
	block    chan struct{}
}

func newFakeWorker(batches ...*dag.Batch) *fakeWorker {
	w := &fakeWorker{
		batches:  make(map[dag.BatchDigest]*dag.Batch),
		failures: make(map[dag.BatchDigest]int),
		requests: make(map[dag.BatchDigest]int),
	}
	for _, batch := range batches {
		w.batches[batch.Digest()] = batch
	}
	return w
}

func (w *fakeWorker) failFirst(digest dag.BatchDigest, attempts int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[digest] = attempts
}

func (w *fakeWorker) blockUntilReleased() chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.block = make(chan struct{})
	return w.block
}

func (w *fakeWorker) RequestBatch(ctx context.Context, digest dag.BatchDigest, worker dag.WorkerID) (*dag.Batch, error) {
	w.mu.Lock()
	w.requests[digest]++
	remaining := w.failures[digest]
	if remaining > 0 {
		w.failures[digest] = remaining - 1
	}
	batch, found := w.batches[digest]
	block := w.block
	w.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if remaining > 0 {
		return nil, context.DeadlineExceeded
	}
	if !found {
		return nil, network.ErrBatchNotFound
	}
	return batch, nil
}

func (w *fakeWorker) requestCount(digest dag.BatchDigest) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requests[digest]
}

func fastFetcherConfig() executor.FetcherConfig {
	cfg := executor.DefaultFetcherConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 2 * time.Millisecond
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

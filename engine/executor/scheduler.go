package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module"
	"github.com/arborchain/arbor/module/component"
	"github.com/arborchain/arbor/module/irrecoverable"
	"github.com/arborchain/arbor/storage"
)

// SchedulerConfig bounds the fetch pipeline.
type SchedulerConfig struct {
	// MaxConcurrentFetches is the global limit on in-flight remote
	// request_batch calls. Requests beyond the limit queue in FIFO order.
	MaxConcurrentFetches int64
	// ShutdownGrace is how long in-flight fetches may keep running after
	// shutdown has been signaled. Completed fetches land in the batch cache,
	// which makes the recovery replay after a restart cheap. Zero abandons
	// all in-flight fetches immediately.
	ShutdownGrace time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxConcurrentFetches: 16,
		ShutdownGrace:        time.Second,
	}
}

// Scheduler deduplicates and bounds batch fetches. At most one physical
// fetch per digest is outstanding at any time; all concurrent requesters of
// the same digest share that fetch and observe the same terminal result.
// Remote fetches are admitted in FIFO order under a global concurrency
// limit.
//
// The shared fetch runs under the scheduler's own lifecycle context, so the
// cancellation of a single waiter never aborts the fetch for the remaining
// waiters; cancelling the scheduler itself aborts all outstanding fetches.
// Callers must await Ready() before calling Fetch.
type Scheduler struct {
	component.Component

	log     zerolog.Logger
	metrics module.ExecutorMetrics
	fetcher *Fetcher
	cfg     SchedulerConfig

	flight  singleflight.Group
	sem     *semaphore.Weighted
	waiting *atomic.Int64

	cm     *component.ComponentManager
	runCtx context.Context
}

func NewScheduler(
	log zerolog.Logger,
	metrics module.ExecutorMetrics,
	fetcher *Fetcher,
	cfg SchedulerConfig,
) *Scheduler {
	s := &Scheduler{
		log:     log.With().Str("component", "fetch_scheduler").Logger(),
		metrics: metrics,
		fetcher: fetcher,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentFetches),
		waiting: atomic.NewInt64(0),
	}

	s.cm = component.NewComponentManagerBuilder().
		AddWorker(s.runWorker).
		Build()
	s.Component = s.cm

	return s
}

// runWorker pins the lifecycle context that shared fetches run under, then
// blocks until shutdown. Shared fetches deliberately do not run under the
// worker context directly: on shutdown, they are granted ShutdownGrace to
// complete before being aborted.
func (s *Scheduler) runWorker(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.runCtx = runCtx
	ready()

	<-ctx.Done()

	if s.cfg.ShutdownGrace <= 0 {
		return
	}

	// wait for in-flight fetches to drain, up to the grace period
	grace := time.NewTimer(s.cfg.ShutdownGrace)
	defer grace.Stop()
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-grace.C:
			return
		case <-poll.C:
			if s.waiting.Load() == 0 {
				return
			}
		}
	}
}

// Fetch returns the batch body for the given reference, joining an existing
// in-flight fetch for the same digest if one exists.
//
// The given context only governs this caller's wait: cancelling it releases
// the caller while the shared fetch proceeds for the remaining waiters.
// Error returns:
//   - FetchExhaustedError if the shared fetch consumed all remote attempts
//   - ctx.Err() if the caller's context was cancelled
func (s *Scheduler) Fetch(ctx context.Context, ref dag.BatchRef) (*dag.Batch, error) {
	if s.runCtx == nil {
		return nil, fmt.Errorf("scheduler not started")
	}

	s.metrics.PendingFetches(int(s.waiting.Inc()))
	defer func() {
		s.metrics.PendingFetches(int(s.waiting.Dec()))
	}()

	results := s.flight.DoChan(ref.Digest.String(), func() (interface{}, error) {
		return s.fetch(ref)
	})

	select {
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*dag.Batch), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch performs the one physical fetch shared by all waiters of a digest.
func (s *Scheduler) fetch(ref dag.BatchRef) (*dag.Batch, error) {

	// the local path needs no admission slot
	batch, err := s.fetcher.FetchLocal(ref.Digest)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// remote fetches queue FIFO for one of the bounded admission slots
	err = s.sem.Acquire(s.runCtx, 1)
	if err != nil {
		return nil, fmt.Errorf("could not acquire fetch slot: %w", err)
	}
	defer s.sem.Release(1)

	return s.fetcher.FetchRemote(s.runCtx, ref)
}

package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborchain/arbor/engine/executor"
	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module/irrecoverable"
	"github.com/arborchain/arbor/module/metrics"
	badgerstorage "github.com/arborchain/arbor/storage/badger"
	"github.com/arborchain/arbor/utils/unittest"
)

// subscriberHarness wires a full pipeline over one badger database.
type subscriberHarness struct {
	subscriber *executor.Subscriber
	recovery   *executor.Recovery
	cancel     context.CancelFunc
}

func buildSubscriber(t *testing.T, db *badger.DB, batches *memBatches, worker *fakeWorker, cfg executor.SubscriberConfig) *subscriberHarness {
	fetcher, err := executor.NewFetcher(testLogger(), metrics.NewNoopCollector(), batches, worker, fastFetcherConfig())
	require.NoError(t, err)
	scheduler := executor.NewScheduler(testLogger(), metrics.NewNoopCollector(), fetcher, fastSchedulerConfig())
	reassembler := executor.NewReassembler(testLogger(), metrics.NewNoopCollector(), scheduler)
	recovery := executor.NewRecovery(testLogger(), badgerstorage.NewExecutedProgress(db), badgerstorage.NewSubDags(db))

	subscriber := executor.NewSubscriber(
		testLogger(),
		metrics.NewNoopCollector(),
		scheduler,
		reassembler,
		recovery,
		badgerstorage.NewSubDags(db),
		cfg,
	)

	return &subscriberHarness{subscriber: subscriber, recovery: recovery}
}

func (h *subscriberHarness) start(t *testing.T) {
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	h.cancel = cancel
	h.subscriber.Start(ctx)
	unittest.RequireCloseBefore(t, h.subscriber.Ready(), time.Second, "subscriber did not start")
	t.Cleanup(h.stop)
}

func startSubscriber(t *testing.T, db *badger.DB, batches *memBatches, worker *fakeWorker, cfg executor.SubscriberConfig) *subscriberHarness {
	h := buildSubscriber(t, db, batches, worker, cfg)
	h.start(t)
	return h
}

func (h *subscriberHarness) stop() {
	h.cancel()
	<-h.subscriber.Done()
}

// completeSubDags returns n sub-DAGs at consecutive rounds plus the store
// holding all their batch bodies.
func completeSubDags(n int) ([]*dag.SubDag, *memBatches) {
	batches := newMemBatches()
	subdags := make([]*dag.SubDag, 0, n)
	for i := 0; i < n; i++ {
		subdag, bodies := unittest.CompleteSubDagFixture(uint64(i+1), dag.Round((i+1)*4), 2)
		for _, batch := range bodies {
			_ = batches.Store(batch)
		}
		subdags = append(subdags, subdag)
	}
	return subdags, batches
}

func receiveOutput(t *testing.T, h *subscriberHarness) *executor.ConsensusOutput {
	select {
	case output := <-h.subscriber.Output():
		require.NotNil(t, output)
		return output
	case <-time.After(5 * time.Second):
		t.Fatal("no output delivered in time")
		return nil
	}
}

func TestSubscriberDeliversInCommitOrder(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		subdags, batches := completeSubDags(3)

		// a tight output channel forces delivery to block between sub-DAGs
		h := startSubscriber(t, db, batches, newFakeWorker(), executor.SubscriberConfig{
			CommittedQueueCapacity: 8,
			NotifierCapacity:       1,
		})

		for _, subdag := range subdags {
			require.NoError(t, h.subscriber.OnCommittedSubDag(context.Background(), subdag))
		}

		for i, subdag := range subdags {
			output := receiveOutput(t, h)
			assert.Equal(t, subdag.Index, output.SubDag.Index, "output %d out of order", i)
			require.Len(t, output.Batches, len(subdag.Certificates))
			for j, cert := range subdag.Certificates {
				assert.Equal(t, cert.Round, output.Batches[j].Certificate.Round)
				for k, ref := range cert.Payload {
					assert.Equal(t, ref.Digest, output.Batches[j].Batches[k].Digest())
				}
			}
		}

		// the cursor follows the last delivered sub-DAG
		require.Eventually(t, func() bool {
			return h.recovery.Cursor() == subdags[2].Round
		}, time.Second, 10*time.Millisecond)
	})
}

func TestSubscriberBackpressure(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		// remote-only batches with a blocked worker stall processing
		subdags := make([]*dag.SubDag, 0, 3)
		for i := 0; i < 3; i++ {
			subdag, _ := unittest.CompleteSubDagFixture(uint64(i+1), dag.Round((i+1)*4), 1)
			subdags = append(subdags, subdag)
		}

		// the blocked worker stalls until shutdown cancels its context
		worker := newFakeWorker()
		worker.blockUntilReleased()

		h := startSubscriber(t, db, newMemBatches(), worker, executor.SubscriberConfig{
			CommittedQueueCapacity: 1,
			NotifierCapacity:       1,
		})

		// the first sub-DAG is dequeued and stalls, the second fills the
		// queue
		require.NoError(t, h.subscriber.OnCommittedSubDag(context.Background(), subdags[0]))
		require.NoError(t, h.subscriber.OnCommittedSubDag(context.Background(), subdags[1]))

		// the third blocks until the caller gives up
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := h.subscriber.OnCommittedSubDag(ctx, subdags[2])
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSubscriberPersistsBeforeProcessing(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		subdag, _ := unittest.CompleteSubDagFixture(1, 4, 1)

		worker := newFakeWorker()
		worker.blockUntilReleased()

		h := startSubscriber(t, db, newMemBatches(), worker, executor.SubscriberConfig{
			CommittedQueueCapacity: 4,
			NotifierCapacity:       4,
		})

		require.NoError(t, h.subscriber.OnCommittedSubDag(context.Background(), subdag))

		// the sub-DAG hits disk before it can possibly be delivered
		stored, err := badgerstorage.NewSubDags(db).ByIndex(1)
		require.NoError(t, err)
		assert.Equal(t, subdag.Round, stored.Round)
	})
}

func TestSubscriberReplaysAfterRestart(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		subdags, batches := completeSubDags(2)

		// committed and persisted, but never delivered: a crash between
		// commit and delivery
		store := badgerstorage.NewSubDags(db)
		for _, subdag := range subdags {
			require.NoError(t, store.Store(subdag))
		}

		h := startSubscriber(t, db, batches, newFakeWorker(), executor.SubscriberConfig{
			CommittedQueueCapacity: 4,
			NotifierCapacity:       4,
		})

		for _, subdag := range subdags {
			output := receiveOutput(t, h)
			assert.Equal(t, subdag.Index, output.SubDag.Index)
		}

		require.Eventually(t, func() bool {
			return h.recovery.Cursor() == subdags[1].Round
		}, time.Second, 10*time.Millisecond)
		h.stop()

		// a second restart finds nothing to replay
		restarted := startSubscriber(t, db, batches, newFakeWorker(), executor.SubscriberConfig{
			CommittedQueueCapacity: 4,
			NotifierCapacity:       4,
		})
		select {
		case output, ok := <-restarted.subscriber.Output():
			if ok {
				t.Fatalf("unexpected replayed output for sub-dag %d", output.SubDag.Index)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func TestSubscriberDeliversPreStartCommitOnce(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		subdags, batches := completeSubDags(1)
		h := buildSubscriber(t, db, batches, newFakeWorker(), executor.SubscriberConfig{
			CommittedQueueCapacity: 4,
			NotifierCapacity:       4,
		})

		// committed while the subscriber was not yet running: the sub-DAG is
		// persisted and queued, and the recovery replay will also find it
		require.NoError(t, h.subscriber.OnCommittedSubDag(context.Background(), subdags[0]))
		h.start(t)

		output := receiveOutput(t, h)
		assert.Equal(t, subdags[0].Index, output.SubDag.Index)

		// the queued copy is recognized as already delivered and skipped
		select {
		case output := <-h.subscriber.Output():
			t.Fatalf("sub-dag %d delivered twice", output.SubDag.Index)
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func TestSubscriberThrowsOnExhaustedFetch(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		subdag, _ := unittest.CompleteSubDagFixture(1, 4, 1)

		// every remote attempt times out; exhausting the attempts is a
		// terminal failure, not a shutdown signal, even though the error
		// chain carries a deadline error
		worker := newFakeWorker()
		for _, cert := range subdag.Certificates {
			for _, ref := range cert.Payload {
				worker.failFirst(ref.Digest, 100)
			}
		}

		fetcher, err := executor.NewFetcher(testLogger(), metrics.NewNoopCollector(), newMemBatches(), worker, fastFetcherConfig())
		require.NoError(t, err)
		scheduler := executor.NewScheduler(testLogger(), metrics.NewNoopCollector(), fetcher, fastSchedulerConfig())
		reassembler := executor.NewReassembler(testLogger(), metrics.NewNoopCollector(), scheduler)
		recovery := executor.NewRecovery(testLogger(), badgerstorage.NewExecutedProgress(db), badgerstorage.NewSubDags(db))
		subscriber := executor.NewSubscriber(
			testLogger(),
			metrics.NewNoopCollector(),
			scheduler,
			reassembler,
			recovery,
			badgerstorage.NewSubDags(db),
			executor.SubscriberConfig{CommittedQueueCapacity: 4, NotifierCapacity: 4},
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
		subscriber.Start(signalerCtx)
		unittest.RequireCloseBefore(t, subscriber.Ready(), time.Second, "subscriber did not start")

		require.NoError(t, subscriber.OnCommittedSubDag(context.Background(), subdag))

		select {
		case err := <-errChan:
			require.True(t, executor.IsFetchExhaustedError(err), "expected exhausted fetch, got: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("exhausted fetch was not escalated")
		}

		cancel()
		unittest.RequireCloseBefore(t, subscriber.Done(), 5*time.Second, "subscriber did not shut down")

		// the sub-DAG was not delivered
		_, ok := <-subscriber.Output()
		assert.False(t, ok, "unexpected delivery of a failed sub-dag")
	})
}

func TestSubscriberAbandonsInFlightSubDagOnShutdown(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		subdag, _ := unittest.CompleteSubDagFixture(1, 4, 1)

		worker := newFakeWorker()
		worker.blockUntilReleased()

		h := startSubscriber(t, db, newMemBatches(), worker, executor.SubscriberConfig{
			CommittedQueueCapacity: 4,
			NotifierCapacity:       4,
		})
		require.NoError(t, h.subscriber.OnCommittedSubDag(context.Background(), subdag))

		// give the loop a moment to pick the sub-DAG up, then shut down
		// while its fetch is still blocked
		time.Sleep(50 * time.Millisecond)
		h.stop()

		// nothing was delivered, the cursor did not move and the sub-DAG is
		// still persisted for replay
		assert.Equal(t, dag.Round(0), h.recovery.Cursor())
		_, err := badgerstorage.NewSubDags(db).ByIndex(1)
		require.NoError(t, err)
	})
}

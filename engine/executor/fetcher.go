package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module"
	"github.com/arborchain/arbor/network"
	"github.com/arborchain/arbor/storage"
)

// FetcherConfig bounds the remote retry behavior of the fetcher.
type FetcherConfig struct {
	// RetryAttempts is the total number of physical remote attempts per
	// fetch before it fails with FetchExhaustedError.
	RetryAttempts uint64
	// RetryBaseDelay is the backoff delay after the first failed attempt;
	// it doubles per attempt up to RetryMaxDelay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	// CacheSize is the number of recently fetched batches kept in memory so
	// that recovery replay and nearby duplicate references skip the network.
	CacheSize int
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  5 * time.Second,
		CacheSize:      1000,
	}
}

// Fetcher resolves a batch digest to its body, trying the local worker store
// first and falling back to a remote request_batch call against the worker
// that originally broadcast the batch. Remote failures are retried with
// bounded backoff; exhausting all attempts yields FetchExhaustedError.
//
// Outcome and latency metrics are updated exactly once per physical attempt,
// never per logical waiter; single-flight deduplication of waiters is the
// scheduler's job, as is bounding the number of concurrent remote fetches.
type Fetcher struct {
	log     zerolog.Logger
	metrics module.ExecutorMetrics
	batches storage.Batches
	workers network.WorkerClient
	cache   *lru.Cache
	cfg     FetcherConfig
}

func NewFetcher(
	log zerolog.Logger,
	metrics module.ExecutorMetrics,
	batches storage.Batches,
	workers network.WorkerClient,
	cfg FetcherConfig,
) (*Fetcher, error) {
	// a fetch always performs at least one physical attempt; zero would
	// underflow the retry budget below
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create batch cache: %w", err)
	}
	return &Fetcher{
		log:     log.With().Str("component", "batch_fetcher").Logger(),
		metrics: metrics,
		batches: batches,
		workers: workers,
		cache:   cache,
		cfg:     cfg,
	}, nil
}

// Fetch returns the batch body for the given reference, combining the local
// and remote paths.
// Error returns:
//   - FetchExhaustedError if all remote attempts have been consumed
//   - ctx.Err() if the context was cancelled while fetching
func (f *Fetcher) Fetch(ctx context.Context, ref dag.BatchRef) (*dag.Batch, error) {
	batch, err := f.FetchLocal(ref.Digest)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return f.FetchRemote(ctx, ref)
}

// FetchLocal resolves the digest from the recently-fetched cache or the
// local worker store, without a network hop.
// Error returns:
//   - storage.ErrNotFound if the batch is not available locally
func (f *Fetcher) FetchLocal(digest dag.BatchDigest) (*dag.Batch, error) {

	// a cache hit is not a physical attempt and updates no counters
	if cached, ok := f.cache.Get(digest); ok {
		return cached.(*dag.Batch), nil
	}

	start := time.Now()
	batch, err := f.batches.ByDigest(digest)
	f.metrics.LocalBatchFetch(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("could not look up batch %v in local store: %w", digest, err)
	}

	f.cache.Add(digest, batch)
	return batch, nil
}

// FetchRemote downloads the batch body from the worker that originally
// broadcast it, retrying transient failures with bounded backoff.
// Error returns:
//   - FetchExhaustedError if all remote attempts have been consumed
//   - ctx.Err() if the context was cancelled while fetching
func (f *Fetcher) FetchRemote(ctx context.Context, ref dag.BatchRef) (*dag.Batch, error) {
	backoff := retry.NewExponential(f.cfg.RetryBaseDelay)
	backoff = retry.WithCappedDuration(f.cfg.RetryMaxDelay, backoff)
	backoff = retry.WithMaxRetries(f.cfg.RetryAttempts-1, backoff)

	var batch *dag.Batch
	var attempts uint64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		f.metrics.RemoteRequestStarted()
		start := time.Now()
		fetched, err := f.workers.RequestBatch(ctx, ref.Digest, ref.Worker)
		f.metrics.RemoteRequestFinished()

		// a worker returning a body that does not hash to the requested
		// digest is treated like any other failed attempt
		if err == nil && fetched.Digest() != ref.Digest {
			err = fmt.Errorf("worker %d returned batch with mismatching digest", ref.Worker)
		}
		f.metrics.RemoteBatchFetch(err == nil, time.Since(start))

		if err != nil {
			f.log.Debug().
				Err(err).
				Uint64("attempt", attempts).
				Str("digest", ref.Digest.String()).
				Uint32("worker", uint32(ref.Worker)).
				Msg("remote batch fetch attempt failed")
			return retry.RetryableError(err)
		}

		batch = fetched
		return nil
	})
	if err != nil {
		// distinguish cancellation from a genuinely exhausted fetch
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, FetchExhaustedError{
			Digest:   ref.Digest,
			Worker:   ref.Worker,
			Attempts: attempts,
			Err:      err,
		}
	}

	f.cache.Add(ref.Digest, batch)
	return batch, nil
}

package executor

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/storage"
)

// Recovery tracks the recovery cursor: the round of the last sub-DAG whose
// batches were fully delivered to the notifier. On startup, the subscriber
// replays all persisted sub-DAGs above the cursor, so that no committed
// batch is silently skipped after a crash or restart.
//
// Recovery is driven solely by the subscriber's processing loop and is not
// safe for concurrent use.
type Recovery struct {
	log      zerolog.Logger
	progress storage.ExecutedProgress
	subdags  storage.SubDags
	cursor   dag.Round
	loaded   bool
}

func NewRecovery(log zerolog.Logger, progress storage.ExecutedProgress, subdags storage.SubDags) *Recovery {
	return &Recovery{
		log:      log.With().Str("component", "recovery").Logger(),
		progress: progress,
		subdags:  subdags,
	}
}

// Load reads the persisted cursor, initializing it to zero on first start.
// It must be called once, before Streaming begins.
func (r *Recovery) Load() (dag.Round, error) {
	round, err := r.progress.ProcessedRound()
	if errors.Is(err, storage.ErrNotFound) {
		err = r.progress.InitProcessedRound(0)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return 0, fmt.Errorf("could not initialize recovery cursor: %w", err)
		}
		round = 0
	} else if err != nil {
		return 0, fmt.Errorf("could not load recovery cursor: %w", err)
	}

	r.cursor = round
	r.loaded = true
	r.log.Info().Uint64("round", uint64(round)).Msg("recovery cursor loaded")
	return round, nil
}

// Pending returns the persisted sub-DAGs above the cursor, in commit order.
// These are exactly the sub-DAGs that were committed but not fully delivered
// before the last shutdown.
func (r *Recovery) Pending() ([]*dag.SubDag, error) {
	if !r.loaded {
		return nil, fmt.Errorf("recovery cursor not loaded")
	}
	subdags, err := r.subdags.Since(r.cursor)
	if err != nil {
		return nil, fmt.Errorf("could not read pending sub-dags: %w", err)
	}
	return subdags, nil
}

// Advance moves the cursor to the given round after a sub-DAG at that round
// has been fully delivered, and prunes the persisted sub-DAGs it covers.
// The cursor is strictly monotonic: advancing to a round at or below the
// stored value is an idempotent no-op, logged as a warning, and never
// corrupts the cursor.
func (r *Recovery) Advance(round dag.Round) error {
	if !r.loaded {
		return fmt.Errorf("recovery cursor not loaded")
	}
	if round <= r.cursor {
		r.log.Warn().
			Uint64("round", uint64(round)).
			Uint64("cursor", uint64(r.cursor)).
			Msg("rejected non-monotonic recovery cursor advance")
		return nil
	}

	err := r.progress.SetProcessedRound(round)
	if err != nil {
		return fmt.Errorf("could not advance recovery cursor to round %d: %w", round, err)
	}
	r.cursor = round

	err = r.subdags.PruneUpTo(round)
	if err != nil {
		return fmt.Errorf("could not prune delivered sub-dags: %w", err)
	}

	return nil
}

// Cursor returns the in-memory cursor value.
func (r *Recovery) Cursor() dag.Round {
	return r.cursor
}

package executor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module"
	"github.com/arborchain/arbor/module/component"
	"github.com/arborchain/arbor/module/irrecoverable"
	"github.com/arborchain/arbor/module/util"
	"github.com/arborchain/arbor/storage"
)

// SubscriberConfig bounds the subscriber's queues.
type SubscriberConfig struct {
	// CommittedQueueCapacity is the capacity of the inbound queue of
	// committed sub-DAGs. When it is full, OnCommittedSubDag blocks, which
	// transmits backpressure into the consensus layer's own flow control.
	CommittedQueueCapacity int
	// NotifierCapacity is the capacity of the outbound channel of resolved
	// outputs to the notifier. When it is full, delivery blocks; committed
	// batches are never dropped.
	NotifierCapacity int
}

func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		CommittedQueueCapacity: 64,
		NotifierCapacity:       16,
	}
}

// Subscriber drives the executor pipeline. It consumes the stream of
// committed sub-DAGs from the consensus layer, resolves each one to its
// batch bodies through the reassembler, and pushes the fully resolved,
// ordered outputs into a bounded channel consumed by the notifier.
//
// The subscriber moves through three states: on startup it replays
// previously committed but undelivered sub-DAGs (Recovering), then
// processes the live committed stream (Streaming), and on cancellation it
// abandons the in-flight sub-DAG without delivering partial results
// (Draining). Sub-DAGs are delivered in commit order, certificates within a
// sub-DAG in their original order, no matter in which order their fetches
// complete.
type Subscriber struct {
	component.Component

	log         zerolog.Logger
	metrics     module.ExecutorMetrics
	cfg         SubscriberConfig
	scheduler   *Scheduler
	reassembler *Reassembler
	recovery    *Recovery
	subdags     storage.SubDags

	committed chan *dag.SubDag
	out       chan *ConsensusOutput

	cm *component.ComponentManager
}

func NewSubscriber(
	log zerolog.Logger,
	metrics module.ExecutorMetrics,
	scheduler *Scheduler,
	reassembler *Reassembler,
	recovery *Recovery,
	subdags storage.SubDags,
	cfg SubscriberConfig,
) *Subscriber {
	s := &Subscriber{
		log:         log.With().Str("component", "subscriber").Logger(),
		metrics:     metrics,
		cfg:         cfg,
		scheduler:   scheduler,
		reassembler: reassembler,
		recovery:    recovery,
		subdags:     subdags,
		committed:   make(chan *dag.SubDag, cfg.CommittedQueueCapacity),
		out:         make(chan *ConsensusOutput, cfg.NotifierCapacity),
	}

	s.cm = component.NewComponentManagerBuilder().
		AddWorker(s.processLoop).
		Build()
	s.Component = s.cm

	return s
}

// Start starts the fetch scheduler, then the subscriber's own workers.
func (s *Subscriber) Start(ctx irrecoverable.SignalerContext) {
	s.scheduler.Start(ctx)
	s.Component.Start(ctx)
}

// Ready returns a channel that is closed once the scheduler and the
// subscriber have fully started.
func (s *Subscriber) Ready() <-chan struct{} {
	return util.AllReady(s.scheduler, s.cm)
}

// Done returns a channel that is closed once the scheduler and the
// subscriber have fully stopped.
func (s *Subscriber) Done() <-chan struct{} {
	return util.AllDone(s.scheduler, s.cm)
}

// Output returns the channel of resolved consensus outputs consumed by the
// notifier.
func (s *Subscriber) Output() <-chan *ConsensusOutput {
	return s.out
}

// OnCommittedSubDag delivers one committed sub-DAG from the consensus
// layer. The sub-DAG is persisted before it is queued, so that a crash
// cannot lose committed data. When the inbound queue is full, the call
// blocks until there is room or the given context is cancelled.
func (s *Subscriber) OnCommittedSubDag(ctx context.Context, subdag *dag.SubDag) error {
	err := s.subdags.Store(subdag)
	if err != nil {
		return err
	}
	select {
	case s.committed <- subdag:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processLoop is the single worker routine of the subscriber: recovery
// replay first, then the live stream.
func (s *Subscriber) processLoop(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	// the loop is the only writer of the output channel, so closing it here
	// tells the notifier that no further deliveries will come
	defer close(s.out)
	ready()

	// Recovering: replay committed sub-DAGs above the recovery cursor. The
	// batch cache and local store make replay of recently fetched payloads
	// cheap; delivery is repeated for anything not yet confirmed executed.
	_, err := s.recovery.Load()
	if err != nil {
		ctx.Throw(err)
	}
	pending, err := s.recovery.Pending()
	if err != nil {
		ctx.Throw(err)
	}
	if len(pending) > 0 {
		s.log.Info().Int("subdags", len(pending)).Msg("replaying committed sub-dags after restart")
	}
	for _, subdag := range pending {
		err = s.processSubDag(ctx, subdag, true)
		if err != nil {
			s.checkProcessingError(ctx, err)
			return
		}
	}

	// Streaming: consume the live committed stream in commit order.
	for {
		select {
		case <-ctx.Done():
			return
		case subdag := <-s.committed:
			// a sub-DAG queued before or during startup may already have
			// been delivered by the recovery replay above; delivering the
			// queued copy again would duplicate it downstream
			if subdag.Round <= s.recovery.Cursor() {
				s.log.Debug().
					Uint64("subdag", subdag.Index).
					Uint64("round", uint64(subdag.Round)).
					Msg("skipping already delivered sub-dag")
				continue
			}
			err = s.processSubDag(ctx, subdag, false)
			if err != nil {
				s.checkProcessingError(ctx, err)
				return
			}
		}
	}
}

// checkProcessingError distinguishes the Draining state from a genuine
// pipeline failure. Whether the subscriber is shutting down is decided by
// its own lifecycle context, never by the shape of the error: a terminal
// fetch failure may well carry a timeout in its chain. Outside of shutdown,
// any processing error, in particular an exhausted fetch or a malformed
// certificate, is irrecoverable: consensus-committed data must be fully
// delivered or the failure must be visible.
func (s *Subscriber) checkProcessingError(ctx irrecoverable.SignalerContext, err error) {
	if ctx.Err() != nil {
		s.log.Info().Msg("abandoning in-flight sub-dag on shutdown")
		return
	}
	ctx.Throw(err)
}

// processSubDag resolves one sub-DAG and delivers it downstream. Delivery
// blocks when the notifier channel is full; the resulting backpressure stops
// this loop and, transitively, the fetch pipeline from running unboundedly
// far ahead of delivery capacity.
func (s *Subscriber) processSubDag(ctx context.Context, subdag *dag.SubDag, recovered bool) error {
	if recovered {
		s.metrics.RecoveredCertificates(len(subdag.Certificates))
	}

	output, err := s.reassembler.Resolve(ctx, subdag)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, cert := range subdag.Certificates {
		s.metrics.CertificateProcessed(cert.Round, now.Sub(cert.CreatedAt))
	}

	select {
	case s.out <- output:
	case <-ctx.Done():
		// no partially-resolved or unconfirmed delivery on shutdown; the
		// sub-DAG stays persisted and is replayed on the next start
		return ctx.Err()
	}
	s.metrics.NotifierOccupancy(len(s.out))

	now = time.Now()
	for _, group := range output.Batches {
		for _, batch := range group.Batches {
			s.metrics.BatchProcessed(now.Sub(batch.CreatedAt))
		}
	}

	// deliver-before-advance: a crash between delivery and this advance
	// replays the sub-DAG on restart (at-least-once), never skips it
	err = s.recovery.Advance(subdag.Round)
	if err != nil {
		return err
	}

	s.log.Debug().
		Uint64("subdag", subdag.Index).
		Uint64("round", uint64(subdag.Round)).
		Bool("recovered", recovered).
		Msg("sub-dag delivered")

	return nil
}

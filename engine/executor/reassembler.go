package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module"
)

// Reassembler turns a committed sub-DAG into its fully resolved batch
// sequence. It fetches every referenced batch exactly once, regardless of
// how many certificates reference it, and reassembles the results into the
// sub-DAG's original per-certificate order.
type Reassembler struct {
	log       zerolog.Logger
	metrics   module.ExecutorMetrics
	scheduler *Scheduler
}

func NewReassembler(log zerolog.Logger, metrics module.ExecutorMetrics, scheduler *Scheduler) *Reassembler {
	return &Reassembler{
		log:       log.With().Str("component", "subdag_reassembler").Logger(),
		metrics:   metrics,
		scheduler: scheduler,
	}
}

// Resolve fetches all batches referenced by the sub-DAG and groups them by
// certificate, preserving the sub-DAG's internal order. A sub-DAG resolves
// only when every referenced batch is available: any terminal fetch failure
// fails the whole sub-DAG, since consensus-committed data must not be
// silently dropped.
// Error returns:
//   - ErrMalformedCertificate if a certificate violates consensus invariants
//   - FetchExhaustedError if any digest consumed all remote attempts
//   - ctx.Err() if the context was cancelled while resolving
func (r *Reassembler) Resolve(ctx context.Context, subdag *dag.SubDag) (*ConsensusOutput, error) {
	start := time.Now()

	plan, err := fetchPlan(subdag)
	if err != nil {
		return nil, err
	}

	// fetch all unique digests concurrently; the scheduler bounds the
	// fan-out and deduplicates against fetches already in flight
	var mu sync.Mutex
	resolved := make(map[dag.BatchDigest]*dag.Batch, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range plan {
		ref := ref
		g.Go(func() error {
			batch, err := r.scheduler.Fetch(gctx, ref)
			if err != nil {
				return err
			}
			mu.Lock()
			resolved[ref.Digest] = batch
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, fmt.Errorf("could not resolve sub-dag %d: %w", subdag.Index, err)
	}

	// reassemble into the original per-certificate order; a digest shared by
	// multiple certificates appears once per referencing certificate
	output := &ConsensusOutput{
		SubDag:  subdag,
		Batches: make([]CertificateBatches, 0, len(subdag.Certificates)),
	}
	for _, cert := range subdag.Certificates {
		batches := make([]*dag.Batch, 0, len(cert.Payload))
		for _, ref := range cert.Payload {
			batches = append(batches, resolved[ref.Digest])
		}
		output.Batches = append(output.Batches, CertificateBatches{
			Certificate: cert,
			Batches:     batches,
		})
	}

	r.metrics.SubDagResolved(subdag.NumBatches(), time.Since(start))
	r.log.Debug().
		Uint64("subdag", subdag.Index).
		Int("certificates", len(subdag.Certificates)).
		Int("batches", subdag.NumBatches()).
		Dur("latency", time.Since(start)).
		Msg("sub-dag resolved")

	return output, nil
}

// fetchPlan validates the sub-DAG's certificates and returns the unique
// batch references to fetch, in first-reference order.
func fetchPlan(subdag *dag.SubDag) ([]dag.BatchRef, error) {
	// validate before sizing anything off the certificates; NumBatches
	// dereferences every certificate
	for _, cert := range subdag.Certificates {
		if cert == nil {
			return nil, fmt.Errorf("sub-dag %d contains nil certificate: %w", subdag.Index, ErrMalformedCertificate)
		}
	}

	seen := make(map[dag.BatchDigest]struct{}, subdag.NumBatches())
	plan := make([]dag.BatchRef, 0, subdag.NumBatches())
	for _, cert := range subdag.Certificates {
		for _, ref := range cert.Payload {
			if ref.Digest.IsZero() {
				return nil, fmt.Errorf("certificate %v at round %d references zero digest: %w",
					cert.Author, cert.Round, ErrMalformedCertificate)
			}
			if _, ok := seen[ref.Digest]; ok {
				continue
			}
			seen[ref.Digest] = struct{}{}
			plan = append(plan, ref)
		}
	}
	return plan, nil
}

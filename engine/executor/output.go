package executor

import (
	"github.com/arborchain/arbor/model/dag"
)

// CertificateBatches pairs one certificate with its resolved batch bodies,
// in the certificate's payload order.
type CertificateBatches struct {
	Certificate *dag.Certificate
	Batches     []*dag.Batch
}

// ConsensusOutput is one fully resolved committed sub-DAG, ready for
// execution. The per-certificate grouping preserves the sub-DAG's internal
// certificate order; flattening the groups yields the exact batch order the
// notifier must execute.
type ConsensusOutput struct {
	SubDag  *dag.SubDag
	Batches []CertificateBatches
}

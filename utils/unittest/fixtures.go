package unittest

import (
	crand "crypto/rand"
	"time"

	"github.com/arborchain/arbor/model/dag"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := crand.Read(b)
	if err != nil {
		panic("failed to generate random bytes")
	}
	return b
}

func DigestFixture() dag.BatchDigest {
	var digest dag.BatchDigest
	copy(digest[:], RandomBytes(len(digest)))
	return digest
}

func AuthorityFixture() dag.AuthorityID {
	var id dag.AuthorityID
	copy(id[:], RandomBytes(len(id)))
	return id
}

func TransactionFixture() []byte {
	return RandomBytes(32)
}

func BatchFixture(numTransactions int) *dag.Batch {
	transactions := make([][]byte, 0, numTransactions)
	for i := 0; i < numTransactions; i++ {
		transactions = append(transactions, TransactionFixture())
	}
	return &dag.Batch{
		Transactions: transactions,
		CreatedAt:    time.Now().UTC(),
	}
}

func BatchRefFixture() dag.BatchRef {
	return dag.BatchRef{
		Digest: DigestFixture(),
		Worker: 0,
	}
}

func CertificateFixture(opts ...func(*dag.Certificate)) *dag.Certificate {
	cert := &dag.Certificate{
		Round:     dag.Round(1),
		Author:    AuthorityFixture(),
		Payload:   []dag.BatchRef{BatchRefFixture(), BatchRefFixture()},
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(cert)
	}
	return cert
}

func WithRound(round dag.Round) func(*dag.Certificate) {
	return func(cert *dag.Certificate) {
		cert.Round = round
	}
}

func WithPayload(refs ...dag.BatchRef) func(*dag.Certificate) {
	return func(cert *dag.Certificate) {
		cert.Payload = refs
	}
}

func SubDagFixture(index uint64, round dag.Round, numCertificates int) *dag.SubDag {
	certificates := make([]*dag.Certificate, 0, numCertificates)
	for i := 0; i < numCertificates; i++ {
		certificates = append(certificates, CertificateFixture(WithRound(round)))
	}
	return &dag.SubDag{
		Index:        index,
		Round:        round,
		Certificates: certificates,
	}
}

// CompleteSubDagFixture returns a sub-DAG together with the batch bodies its
// certificates reference, keyed by digest.
func CompleteSubDagFixture(index uint64, round dag.Round, numCertificates int) (*dag.SubDag, map[dag.BatchDigest]*dag.Batch) {
	subdag := SubDagFixture(index, round, numCertificates)
	batches := make(map[dag.BatchDigest]*dag.Batch)
	for _, cert := range subdag.Certificates {
		for i := range cert.Payload {
			batch := BatchFixture(3)
			cert.Payload[i].Digest = batch.Digest()
			batches[batch.Digest()] = batch
		}
	}
	return subdag, batches
}

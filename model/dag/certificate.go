package dag

import (
	"encoding/hex"
	"time"
)

// Round is the consensus round number a certificate was produced in. Rounds
// increase monotonically over the lifetime of the protocol.
type Round uint64

// WorkerID identifies the worker peer that originally broadcast a batch. The
// worker network client resolves a WorkerID to a dial address.
type WorkerID uint32

// AuthorityID identifies the validator that produced a certificate.
type AuthorityID [32]byte

func (a AuthorityID) String() string {
	return hex.EncodeToString(a[:])
}

// BatchRef points at one batch referenced by a certificate: the digest to
// fetch and the worker that holds the batch body.
type BatchRef struct {
	Digest BatchDigest
	Worker WorkerID
}

// Certificate is a consensus-validated reference to a set of transaction
// batches, tied to a round number. Certificates are produced and signed by
// the consensus layer and are immutable once created; the executor only
// reads them.
type Certificate struct {
	Round     Round
	Author    AuthorityID
	Payload   []BatchRef
	CreatedAt time.Time
}

// Digests returns the batch digests referenced by the certificate, in
// payload order. A digest may appear in multiple certificates of the same
// sub-DAG; deduplication is the reassembler's concern.
func (c *Certificate) Digests() []BatchDigest {
	digests := make([]BatchDigest, 0, len(c.Payload))
	for _, ref := range c.Payload {
		digests = append(digests, ref.Digest)
	}
	return digests
}

package dag

// SubDag is the ordered set of certificates committed together by one
// consensus decision. Sub-DAGs are handed to the executor exactly once, in
// commit order, and are immutable.
type SubDag struct {
	// Index is the commit sequence number of the sub-DAG. It increases by one
	// with every commit decision.
	Index uint64
	// Round is the round of the leader certificate that anchored the commit.
	Round Round
	// Certificates are ordered by the consensus layer; the executor must
	// preserve this order all the way to the notifier.
	Certificates []*Certificate
}

// NumBatches returns the total number of batch references across all
// certificates of the sub-DAG, counting duplicates.
func (s *SubDag) NumBatches() int {
	n := 0
	for _, cert := range s.Certificates {
		n += len(cert.Payload)
	}
	return n
}

package executor

import (
	"errors"
	"fmt"

	"github.com/arborchain/arbor/model/dag"
)

// ErrMalformedCertificate indicates a certificate that violates consensus
// invariants, e.g. one referencing the zero digest. A correct consensus
// layer never produces such certificates, so this is surfaced as fatal
// rather than silently skipped.
var ErrMalformedCertificate = errors.New("malformed certificate")

// FetchExhaustedError is the terminal failure for one digest: all configured
// remote attempts have been consumed. It propagates to all waiters of the
// fetch and aborts processing of any sub-DAG referencing the digest.
type FetchExhaustedError struct {
	Digest   dag.BatchDigest
	Worker   dag.WorkerID
	Attempts uint64
	Err      error
}

func (e FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch exhausted for batch %v after %d attempts on worker %d: %v",
		e.Digest, e.Attempts, e.Worker, e.Err)
}

func (e FetchExhaustedError) Unwrap() error {
	return e.Err
}

func IsFetchExhaustedError(err error) bool {
	var exhausted FetchExhaustedError
	return errors.As(err, &exhausted)
}

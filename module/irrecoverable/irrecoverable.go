package irrecoverable

import (
	"context"
	"log"
	"runtime"
)

// Signaler transmits irrecoverable errors to the routine supervising a
// component. Each Signaler must only be used to signal a single error; the
// goroutine that throws is terminated.
type Signaler struct {
	errors chan error
}

func NewSignaler() (*Signaler, <-chan error) {
	errors := make(chan error, 1)
	return &Signaler{errors: errors}, errors
}

// Throw is a narrow drop-in replacement for panic, log.Fatal, log.Panic, etc.
// anywhere there is something connected to the error channel. It only
// delivers the first error thrown; subsequent errors are dropped, since the
// component is already shutting down.
func (s *Signaler) Throw(err error) {
	select {
	case s.errors <- err:
	default:
	}
	runtime.Goexit()
}

// SignalerContext is a constrained drop-in replacement for context.Context
// that additionally allows throwing irrecoverable errors.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain construction to WithSignaler
}

type signalerCtx struct {
	context.Context
	*Signaler
}

func (signalerCtx) sealed() {}

// WithSignaler is the One True Way of getting a SignalerContext.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// Throw enables throwing an irrecoverable error through a plain
// context.Context, provided the context was built with WithSignaler. If it
// was not, there is no way to handle the irrecoverable error, and the
// process exits.
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	}
	log.Fatalf("irrecoverable error signaler not found for context, please implement! Unhandled irrecoverable error: %v", err)
}

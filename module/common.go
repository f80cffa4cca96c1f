package module

import (
	"errors"

	"github.com/arborchain/arbor/module/irrecoverable"
)

// ErrMultipleStartup is returned when Start is called more than once on a
// startable component.
var ErrMultipleStartup = errors.New("component may only be started once")

// ReadyDoneAware provides an interface for awaiting completion of startup
// and shutdown of a component. The Ready channel is closed once startup has
// completed, the Done channel once shutdown has completed.
type ReadyDoneAware interface {
	Ready() <-chan struct{}
	Done() <-chan struct{}
}

// Startable provides an interface to start a component. Once started, the
// component can be stopped by cancelling the given context.
type Startable interface {
	// Start starts the component. Any irrecoverable errors encountered while
	// the component is running are thrown with the given SignalerContext.
	// This method must only be called once; implementations may panic on
	// repeated calls.
	Start(irrecoverable.SignalerContext)
}

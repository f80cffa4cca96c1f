package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/arborchain/arbor/module"
	"github.com/arborchain/arbor/module/irrecoverable"
	"github.com/arborchain/arbor/module/util"
)

// Component represents a component that can be started and stopped, and
// exposes channels that close when startup and shutdown have completed.
// Once Start has been called, the channel returned by Done must eventually
// close, whether because of a graceful shutdown or an irrecoverable error.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called within a ComponentWorker to indicate that the worker
// is ready. The ComponentManager's Ready channel is closed once all workers
// have called their ReadyFunc.
type ReadyFunc func()

// ComponentWorker is a worker routine of a component. It receives a
// SignalerContext to throw any irrecoverable errors it encounters, and a
// ReadyFunc that it must call once it is ready.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects the worker routines of a component before
// building the ComponentManager that runs them.
type ComponentManagerBuilder interface {
	// AddWorker adds a worker routine. Not concurrency-safe; workers must be
	// added from a single goroutine before Build is called.
	AddWorker(ComponentWorker) ComponentManagerBuilder

	// Build builds and returns a new ComponentManager instance.
	Build() *ComponentManager
}

type componentManagerBuilder struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &componentManagerBuilder{}
}

func (c *componentManagerBuilder) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	c.workers = append(c.workers, worker)
	return c
}

func (c *componentManagerBuilder) Build() *ComponentManager {
	return &ComponentManager{
		started:        atomic.NewBool(false),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		workersDone:    make(chan struct{}),
		shutdownSignal: make(chan struct{}),
		workers:        c.workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager runs the worker routines of a component and implements
// the Component interface on their behalf. Ready() closes once all workers
// have signaled readiness; Done() closes once all workers have returned.
//
// Shutdown is signaled by cancelling the SignalerContext passed to Start.
// That context is also how workers communicate irrecoverable errors; any
// thrown error cancels the remaining workers and is propagated to the
// caller of Start.
type ComponentManager struct {
	started        *atomic.Bool
	ready          chan struct{}
	done           chan struct{}
	workersDone    chan struct{}
	shutdownSignal chan struct{}

	workers []ComponentWorker
}

// Start launches all worker routines. Start must only be called once; it
// panics otherwise.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		<-ctx.Done()
		close(c.shutdownSignal)
	}()

	// Closing the done channel only after shutdown errors have been handled
	// guarantees that an irrecoverable error reaches the parent before the
	// parent observes the done signal.
	go func() {
		defer func() {
			<-c.workersDone
			close(c.done)
		}()

		if err := util.WaitError(errChan, c.workersDone); err != nil {
			// shut down all workers, then escalate to the parent: a failure
			// in a worker routine is irrecoverable for the whole component
			cancel()
			parent.Throw(err)
		}
	}()

	var workersReady sync.WaitGroup
	var workersDone sync.WaitGroup
	workersReady.Add(len(c.workers))
	workersDone.Add(len(c.workers))

	for _, worker := range c.workers {
		worker := worker
		go func() {
			defer workersDone.Done()
			var readyOnce sync.Once
			worker(signalerCtx, func() {
				readyOnce.Do(workersReady.Done)
			})
		}()
	}

	go func() {
		workersReady.Wait()
		close(c.ready)
	}()

	go func() {
		workersDone.Wait()
		close(c.workersDone)
	}()
}

// Ready returns a channel that is closed once all worker routines have been
// launched and signaled readiness. If a worker returns before signaling
// readiness, the channel never closes.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done returns a channel that is closed once all worker routines have shut
// down, either gracefully or after an irrecoverable error.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal returns a channel that is closed when shutdown has
// commenced, either because the component's context was cancelled or a
// worker threw an irrecoverable error. Returns nil before Start.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.shutdownSignal
}

package util

import (
	"github.com/arborchain/arbor/module"
)

// WaitError waits for either an error on the error channel, or the closing
// of the done channel. It returns the error if one is received before done
// closes, and nil otherwise.
//
// This handles a race condition that can occur during shutdown, where a
// worker throws an error just as its done channel closes and both channels
// are readable. Without draining the error channel after done closes, the
// error could be silently dropped.
func WaitError(errChan <-chan error, done <-chan struct{}) error {
	select {
	case err := <-errChan:
		return err
	case <-done:
		select {
		case err := <-errChan:
			return err
		default:
			return nil
		}
	}
}

// AllReady returns a channel that is closed once all the given components
// are ready.
func AllReady(components ...module.ReadyDoneAware) <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for _, c := range components {
			<-c.Ready()
		}
		close(ready)
	}()
	return ready
}

// AllDone returns a channel that is closed once all the given components
// are done.
func AllDone(components ...module.ReadyDoneAware) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for _, c := range components {
			<-c.Done()
		}
		close(done)
	}()
	return done
}

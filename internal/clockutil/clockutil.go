// Package clockutil centralizes the injectable clock used by every
// watchdog, debounce, and connect/dispatch deadline in the tree, following
// the same swappable-package-var pattern as tast's internal/xcontext.
package clockutil

import (
	"context"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// Clock is the process-wide clock. Tests may swap it for a fake
// (clock.NewFakeClock()) to drive debounce/timeout logic deterministically
// without sleeping.
var Clock clock.Clock = clock.NewClock()

// WithTimeout mirrors context.WithTimeout but measures the deadline against
// Clock rather than the runtime's wall clock, so a test fake clock can
// control exactly when a connect/dispatch deadline fires.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if d <= 0 {
		return ctx, cancel
	}

	tm := Clock.NewTimer(d)
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	go func() {
		defer tm.Stop()
		select {
		case <-tm.C():
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		stop()
		cancel()
	}
}

// AfterFunc schedules f to run after d elapses on Clock, returning a stop
// function that cancels the pending call (a no-op if it already fired).
func AfterFunc(d time.Duration, f func()) (stop func()) {
	tm := Clock.NewTimer(d)
	done := make(chan struct{})
	var once sync.Once
	go func() {
		select {
		case <-tm.C():
			f()
		case <-done:
			tm.Stop()
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

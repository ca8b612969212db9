// Package host abstracts the event loop that drives frames and timers.
//
// Every callback scheduled through a Host runs on the host's single event
// goroutine, so callers never need to synchronize state that is touched only
// from callbacks. Loop is the real implementation; Manual is a virtual clock
// for tests.
package host

import "time"

// FrameHandle identifies a pending frame callback. The zero handle is never
// issued.
type FrameHandle uint64

// Timer is a cancelable one-shot or periodic callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was still
	// pending. A callback already running is not interrupted.
	Stop() bool
}

// Host is the scheduling surface consumed by the render pipeline and the
// phase scheduler.
type Host interface {
	// Now returns the host's current time.
	Now() time.Time

	// RequestFrame schedules fn for the next frame. fn receives the frame
	// timestamp.
	RequestFrame(fn func(now time.Time)) FrameHandle

	// CancelFrame cancels a pending frame callback. Cancelling an
	// unknown or already-fired handle is a no-op.
	CancelFrame(h FrameHandle)

	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer

	// Every runs fn every d until stopped.
	Every(d time.Duration, fn func()) Timer
}

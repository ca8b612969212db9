package render

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Pipeline.
type State int

const (
	// Uninitialized is the state before the first successful Setup.
	Uninitialized State = iota

	// Ready means all resources are built and the frame loop is about to
	// start.
	Ready

	// Rendering means the frame loop is running.
	Rendering

	// ContextLost means the context was invalidated and a retry is
	// pending.
	ContextLost

	// Abandoned is terminal: the pipeline was torn down or ran out of
	// retries.
	Abandoned
)

var stateNames = [...]string{"Uninitialized", "Ready", "Rendering", "ContextLost", "Abandoned"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Retry policy.
const (
	// MaxRetries is the default number of consecutive rebuild attempts
	// after context loss before the pipeline is abandoned.
	MaxRetries = 3

	// BackoffBase is the delay before the first rebuild.
	BackoffBase = 2 * time.Second

	// BackoffStep is added to the delay for every earlier attempt.
	BackoffStep = time.Second
)

// Backoff returns the delay before rebuild attempt number retries+1.
func Backoff(retries int) time.Duration {
	return BackoffBase + time.Duration(max(retries, 0))*BackoffStep
}

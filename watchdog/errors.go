package watchdog

import (
	"errors"
	"fmt"
	"time"
)

// ErrInfiniteLoop is matched by every [*InfiniteLoopError], via [errors.Is].
var ErrInfiniteLoop = errors.New("watchdog: infinite loop")

// InfiniteLoopError is returned by [Watchdog.Check] when the [Decider] chose
// to abort.
type InfiniteLoopError struct {
	// Stalled is the cumulative time spent without yielding, as of the trip.
	Stalled time.Duration
}

// Error implements the error interface.
func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("infinite loop: program ran for %s without yielding", e.Stalled)
}

// Is matches [ErrInfiniteLoop].
func (e *InfiniteLoopError) Is(target error) bool {
	return target == ErrInfiniteLoop
}

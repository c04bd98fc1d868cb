package watchdog

import (
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// State is the current state of a [Watchdog].
type State int

const (
	// StateIdle indicates no unit of work is being timed.
	StateIdle State = iota
	// StateArmed indicates time is being measured since the last reset or
	// decision.
	StateArmed
	// StateTripped indicates a decision is pending.
	StateTripped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateArmed:
		return "Armed"
	case StateTripped:
		return "Tripped"
	default:
		return "Unknown"
	}
}

// Decision is the answer to a trip.
type Decision int

const (
	// DecisionAbort stops the running program.
	DecisionAbort Decision = iota
	// DecisionContinue lets the program keep running, doubling the delay.
	DecisionContinue
)

// Trip describes the situation a [Decider] is asked about.
type Trip struct {
	// Stalled is the cumulative time spent without a reset.
	Stalled time.Duration
	// Delay is the delay that was exceeded.
	Delay time.Duration
	// Count is the 1-based number of this trip since the last reset.
	Count int
}

// Decider makes the blocking continue/abort decision.
type Decider interface {
	Decide(trip Trip) Decision
}

// DeciderFunc implements [Decider].
type DeciderFunc func(trip Trip) Decision

// Decide implements [Decider].
func (f DeciderFunc) Decide(trip Trip) Decision { return f(trip) }

var (
	// AlwaysAbort aborts on the first trip.
	AlwaysAbort Decider = DeciderFunc(func(Trip) Decision { return DecisionAbort })
	// AlwaysContinue never aborts. It is mostly useful for tests.
	AlwaysContinue Decider = DeciderFunc(func(Trip) Decision { return DecisionContinue })
)

// Watchdog is a cooperative guard against unbounded synchronous loops.
type Watchdog struct {
	clock     func() time.Time
	decider   Decider
	logger    *logiface.Logger[logiface.Event]
	start     time.Time
	baseDelay time.Duration
	delay     time.Duration
	stalled   time.Duration
	trips     int
	state     State
	disabled  atomic.Bool
	rearm     atomic.Bool
}

// New constructs a Watchdog, initially idle and enabled.
func New(opts ...Option) (*Watchdog, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Watchdog{
		clock:     cfg.clock,
		decider:   cfg.decider,
		logger:    cfg.logger,
		baseDelay: cfg.baseDelay,
		delay:     cfg.baseDelay,
	}, nil
}

// Reset re-arms the watchdog with the base delay, clearing all counters.
func (w *Watchdog) Reset() {
	w.delay = w.baseDelay
	w.stalled = 0
	w.trips = 0
	w.start = w.clock()
	w.state = StateArmed
}

// Check asks for a decision if the current delay has elapsed. It is a no-op
// while disabled.
func (w *Watchdog) Check() error {
	if w.disabled.Load() {
		return nil
	}

	now := w.clock()

	if w.rearm.Swap(false) && w.state == StateArmed {
		w.start = now
		return nil
	}

	if w.state == StateIdle {
		w.start = now
		w.state = StateArmed
		return nil
	}

	elapsed := now.Sub(w.start)
	if elapsed <= w.delay {
		return nil
	}

	w.stalled += elapsed
	w.trips++
	w.state = StateTripped

	trip := Trip{
		Stalled: w.stalled,
		Delay:   w.delay,
		Count:   w.trips,
	}

	w.logger.Warning().
		Dur(`stalled`, trip.Stalled).
		Dur(`delay`, trip.Delay).
		Int(`trip`, trip.Count).
		Log(`watchdog tripped`)

	if w.decider.Decide(trip) == DecisionContinue {
		w.delay *= 2
		w.start = w.clock()
		w.state = StateArmed
		return nil
	}

	w.delay = w.baseDelay
	w.state = StateIdle

	w.logger.Info().
		Dur(`stalled`, trip.Stalled).
		Log(`watchdog aborted program`)

	return &InfiniteLoopError{Stalled: trip.Stalled}
}

// SetEnabled toggles checking, e.g. off while the host is not visible.
// Time spent disabled is not counted: re-enabling re-arms the timer.
func (w *Watchdog) SetEnabled(enabled bool) {
	if w.disabled.Swap(!enabled) && enabled {
		w.rearm.Store(true)
	}
}

// Enabled reports whether Check is active.
func (w *Watchdog) Enabled() bool { return !w.disabled.Load() }

// State returns the current state.
func (w *Watchdog) State() State { return w.state }

// Delay returns the current delay, i.e. the base delay scaled by backoff.
func (w *Watchdog) Delay() time.Duration { return w.delay }

// Stalled returns the cumulative stalled time recorded since the last reset.
func (w *Watchdog) Stalled() time.Duration { return w.stalled }

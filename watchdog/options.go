package watchdog

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultBaseDelay is the initial delay before the first decision prompt.
const DefaultBaseDelay = 500 * time.Millisecond

type watchdogOptions struct {
	clock     func() time.Time
	decider   Decider
	logger    *logiface.Logger[logiface.Event]
	baseDelay time.Duration
}

// Option configures a [Watchdog].
type Option interface {
	applyWatchdog(*watchdogOptions) error
}

type optionImpl struct {
	applyWatchdogFunc func(*watchdogOptions) error
}

func (o *optionImpl) applyWatchdog(opts *watchdogOptions) error {
	return o.applyWatchdogFunc(opts)
}

// WithBaseDelay sets the delay before the first prompt, after each reset.
// It must be positive.
func WithBaseDelay(d time.Duration) Option {
	return &optionImpl{func(opts *watchdogOptions) error {
		if d <= 0 {
			return errors.New("watchdog: base delay must be positive")
		}
		opts.baseDelay = d
		return nil
	}}
}

// WithClock overrides [time.Now], primarily for testing.
func WithClock(clock func() time.Time) Option {
	return &optionImpl{func(opts *watchdogOptions) error {
		if clock == nil {
			return errors.New("watchdog: nil clock")
		}
		opts.clock = clock
		return nil
	}}
}

// WithDecider sets the continue/abort decision maker. A nil decider restores
// the default, which always aborts.
func WithDecider(decider Decider) Option {
	return &optionImpl{func(opts *watchdogOptions) error {
		opts.decider = decider
		return nil
	}}
}

// WithLogger sets the logger used to report trips. Nil disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *watchdogOptions) error {
		opts.logger = logger
		return nil
	}}
}

func resolveOptions(opts []Option) (*watchdogOptions, error) {
	cfg := &watchdogOptions{
		clock:     time.Now,
		baseDelay: DefaultBaseDelay,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWatchdog(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.decider == nil {
		cfg.decider = AlwaysAbort
	}
	return cfg, nil
}

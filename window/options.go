package window

import (
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-livecode/watchdog"
	"github.com/joeycumines/logiface"
)

type windowOptions struct {
	js       *eventloop.JS
	logger   *logiface.Logger[logiface.Event]
	watchdog *watchdog.Watchdog
	onError  func(err error)
	members  map[string]any
}

// Option configures a [Window].
type Option interface {
	applyWindow(*windowOptions) error
}

type optionImpl struct {
	applyWindowFunc func(*windowOptions) error
}

func (o *optionImpl) applyWindow(opts *windowOptions) error {
	return o.applyWindowFunc(opts)
}

// WithJS enables the timer functions. Without it they throw.
func WithJS(js *eventloop.JS) Option {
	return &optionImpl{func(opts *windowOptions) error {
		opts.js = js
		return nil
	}}
}

// WithLogger sets the logger console output is written to. Nil discards it.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *windowOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWatchdog sets a watchdog that is reset before every timer callback,
// each of which is a fresh unit of work.
func WithWatchdog(w *watchdog.Watchdog) Option {
	return &optionImpl{func(opts *windowOptions) error {
		opts.watchdog = w
		return nil
	}}
}

// WithErrorHandler receives the exceptions thrown by timer callbacks.
func WithErrorHandler(fn func(err error)) Option {
	return &optionImpl{func(opts *windowOptions) error {
		opts.onError = fn
		return nil
	}}
}

// WithMember adds a member to the whitelist, e.g. a host-provided helper.
func WithMember(name string, value any) Option {
	return &optionImpl{func(opts *windowOptions) error {
		if opts.members == nil {
			opts.members = make(map[string]any)
		}
		opts.members[name] = value
		return nil
	}}
}

func resolveOptions(opts []Option) (*windowOptions, error) {
	cfg := &windowOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWindow(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

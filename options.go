package livecode

import (
	"errors"

	"github.com/joeycumines/go-livecode/lint"
	"github.com/joeycumines/go-livecode/rewrite"
	"github.com/joeycumines/go-livecode/sketch"
	"github.com/joeycumines/go-livecode/watchdog"
	"github.com/joeycumines/go-livecode/window"
	"github.com/joeycumines/logiface"
)

// DefaultMaxCallStackSize bounds script recursion, so that runaway recursion
// surfaces as an exception.
const DefaultMaxCallStackSize = 4096

// engineOptions holds configuration options for Engine creation.
type engineOptions struct {
	logger           *logiface.Logger[logiface.Event]
	library          Library
	window           Window
	watchdog         *watchdog.Watchdog
	linter           lint.Linter
	delegate         Delegate
	entryPoints      []string
	rewriteOptions   []rewrite.Option
	maxCallStackSize int
	// used by NewSession only
	sketchOptions   []sketch.Option
	windowOptions   []window.Option
	watchdogOptions []watchdog.Option
}

// Option configures an [Engine].
type Option interface {
	applyEngine(*engineOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (o *optionImpl) applyEngine(opts *engineOptions) error {
	return o.applyEngineFunc(opts)
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLibrary sets the host library. By default scripts run against an
// empty library object.
func WithLibrary(library Library) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.library = library
		return nil
	}}
}

// WithWindow sets the custom window. By default an empty object is used.
func WithWindow(window Window) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.window = window
		return nil
	}}
}

// WithWatchdog sets the loop watchdog. By default a watchdog that always
// aborts after [watchdog.DefaultBaseDelay] is used.
func WithWatchdog(w *watchdog.Watchdog) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.watchdog = w
		return nil
	}}
}

// WithLinter sets the linter consulted by [Engine.HandleUpdate]. Nil
// disables linting.
func WithLinter(linter lint.Linter) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.linter = linter
		return nil
	}}
}

// WithDelegate sets the receiver of [Engine.HandleUpdate] outcomes.
func WithDelegate(delegate Delegate) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.delegate = delegate
		return nil
	}}
}

// WithEntryPoints replaces [rewrite.DefaultEntryPoints].
func WithEntryPoints(names ...string) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.entryPoints = append([]string(nil), names...)
		return nil
	}}
}

// WithRewriteOptions appends options passed to every rewrite, after the
// engine's own.
func WithRewriteOptions(options ...rewrite.Option) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.rewriteOptions = append(opts.rewriteOptions, options...)
		return nil
	}}
}

// WithMaxCallStackSize overrides [DefaultMaxCallStackSize].
func WithMaxCallStackSize(size int) Option {
	return &optionImpl{func(opts *engineOptions) error {
		if size <= 0 {
			return errors.New("livecode: max call stack size must be positive")
		}
		opts.maxCallStackSize = size
		return nil
	}}
}

// WithSketchOptions configures the sketch created by [NewSession].
func WithSketchOptions(options ...sketch.Option) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.sketchOptions = append(opts.sketchOptions, options...)
		return nil
	}}
}

// WithWindowOptions configures the window created by [NewSession].
func WithWindowOptions(options ...window.Option) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.windowOptions = append(opts.windowOptions, options...)
		return nil
	}}
}

// WithWatchdogOptions configures the watchdog created by [NewSession], or
// by [NewEngine], if none was provided via [WithWatchdog].
func WithWatchdogOptions(options ...watchdog.Option) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.watchdogOptions = append(opts.watchdogOptions, options...)
		return nil
	}}
}

// resolveEngineOptions applies Option instances to engineOptions.
func resolveEngineOptions(opts []Option) (*engineOptions, error) {
	cfg := &engineOptions{
		delegate:         NopDelegate{},
		maxCallStackSize: DefaultMaxCallStackSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.delegate == nil {
		cfg.delegate = NopDelegate{}
	}
	return cfg, nil
}

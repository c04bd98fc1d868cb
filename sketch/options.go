package sketch

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// DefaultErrorRates limit how often exceptions of the same handler are
// reported, since a broken draw throws on every frame.
var DefaultErrorRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

type sketchOptions struct {
	js         *eventloop.JS
	logger     *logiface.Logger[logiface.Event]
	onError    func(handler string, err error)
	errorRates map[time.Duration]int
	seed       uint64
	seeded     bool
	width      int
	height     int
	maxOps     int
}

// Option configures a [Sketch].
type Option interface {
	applySketch(*sketchOptions) error
}

type optionImpl struct {
	applySketchFunc func(*sketchOptions) error
}

func (o *optionImpl) applySketch(opts *sketchOptions) error {
	return o.applySketchFunc(opts)
}

// WithJS enables the frame loop, see [Sketch.Start].
func WithJS(js *eventloop.JS) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		opts.js = js
		return nil
	}}
}

// WithLogger sets the logger for println and handler exceptions.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithErrorHandler receives exceptions thrown by event handlers, subject to
// the error rates.
func WithErrorHandler(fn func(handler string, err error)) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		opts.onError = fn
		return nil
	}}
}

// WithErrorRates overrides [DefaultErrorRates].
func WithErrorRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		if len(rates) == 0 {
			return errors.New("sketch: empty error rates")
		}
		windows := slices.Sorted(maps.Keys(rates))
		for i, window := range windows {
			if window <= 0 || rates[window] <= 0 {
				return errors.New("sketch: error rates must be positive")
			}
			// longer windows must allow more events, at a lower rate
			if i > 0 {
				prev := windows[i-1]
				if rates[window] <= rates[prev] ||
					float64(rates[window])/float64(window) >= float64(rates[prev])/float64(prev) {
					return errors.New("sketch: invalid error rates")
				}
			}
		}
		opts.errorRates = rates
		return nil
	}}
}

// WithSeed fixes the seed random is reset to before every run. By default
// it is chosen randomly, once.
func WithSeed(seed uint64) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		opts.seed = seed
		opts.seeded = true
		return nil
	}}
}

// WithSize sets the canvas size.
func WithSize(width, height int) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		if width <= 0 || height <= 0 {
			return errors.New("sketch: invalid size")
		}
		opts.width, opts.height = width, height
		return nil
	}}
}

// WithMaxOps bounds the display list, the oldest ops are dropped first.
func WithMaxOps(n int) Option {
	return &optionImpl{func(opts *sketchOptions) error {
		if n <= 0 {
			return errors.New("sketch: max ops must be positive")
		}
		opts.maxOps = n
		return nil
	}}
}

func resolveOptions(opts []Option) (*sketchOptions, error) {
	cfg := &sketchOptions{
		errorRates: DefaultErrorRates,
		width:      400,
		height:     400,
		maxOps:     1 << 16,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySketch(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

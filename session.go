package livecode

import (
	"context"
	"slices"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-livecode/sketch"
	"github.com/joeycumines/go-livecode/window"
	"github.com/joeycumines/logiface"
)

// Session runs an [Engine] with a [sketch.Sketch] library and a
// [window.Window] on an event loop, which owns the runtime. Every method is
// safe for concurrent use, delegate methods are called from the loop.
type Session struct {
	loop   *eventloop.Loop
	vm     *goja.Runtime
	logger *logiface.Logger[logiface.Event]
	window *window.Window
	sketch *sketch.Sketch
	engine *Engine
}

// NewSession constructs a Session. The options are those of [NewEngine],
// except that WithLibrary and WithWindow are ignored. Exceptions thrown by
// timer callbacks and event handlers are passed to the delegate's
// DisplayException.
func NewSession(opts ...Option) (*Session, error) {
	cfg, err := resolveEngineOptions(opts)
	if err != nil {
		return nil, err
	}

	loop, err := eventloop.New()
	if err != nil {
		return nil, err
	}
	js, err := eventloop.NewJS(loop)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	s := &Session{
		loop:   loop,
		vm:     goja.New(),
		logger: cfg.logger,
	}

	wd := cfg.watchdog
	if wd == nil {
		if wd, err = newWatchdog(cfg); err != nil {
			_ = loop.Close()
			return nil, err
		}
	}

	s.window, err = window.New(s.vm, slices.Concat([]window.Option{
		window.WithJS(js),
		window.WithLogger(cfg.logger),
		window.WithWatchdog(wd),
		window.WithErrorHandler(cfg.delegate.DisplayException),
	}, cfg.windowOptions)...)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	s.sketch, err = sketch.New(s.vm, slices.Concat([]sketch.Option{
		sketch.WithJS(js),
		sketch.WithLogger(cfg.logger),
		sketch.WithErrorHandler(func(_ string, err error) { cfg.delegate.DisplayException(err) }),
	}, cfg.sketchOptions)...)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	s.engine, err = NewEngine(s.vm, slices.Concat(opts, []Option{
		WithWatchdog(wd),
		WithLibrary(s.sketch),
		WithWindow(s.window),
	})...)
	if err != nil {
		_ = loop.Close()
		return nil, err
	}

	return s, nil
}

// Run starts the frame loop, then runs the event loop until ctx is done or
// the session is shut down.
func (s *Session) Run(ctx context.Context) error {
	if err := s.loop.Submit(func() {
		if err := s.sketch.Start(); err != nil {
			s.logger.Err().
				Err(err).
				Log(`failed to start frame loop`)
		}
	}); err != nil {
		return err
	}
	return s.loop.Run(ctx)
}

// Shutdown stops the event loop, waiting for queued work.
func (s *Session) Shutdown(ctx context.Context) error {
	return s.loop.Shutdown(ctx)
}

// Do calls fn on the loop, and waits for it to return. The engine and
// everything reachable from it may only be used within fn.
func (s *Session) Do(ctx context.Context, fn func(engine *Engine)) error {
	done := make(chan struct{})
	if err := s.loop.Submit(func() {
		defer close(done)
		fn(s.engine)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update runs a cycle for source, see [Engine.HandleUpdate]. The context is
// nil if the cycle failed, in which case the delegate has been told why.
func (s *Session) Update(ctx context.Context, source string) (*Context, error) {
	var result *Context
	if err := s.Do(ctx, func(engine *Engine) { result = engine.HandleUpdate(source) }); err != nil {
		return nil, err
	}
	return result, nil
}

// Dispatch delivers an input event to the sketch.
func (s *Session) Dispatch(ctx context.Context, ev sketch.Event) error {
	var err error
	if doErr := s.Do(ctx, func(*Engine) { err = s.sketch.Dispatch(ev) }); doErr != nil {
		return doErr
	}
	return err
}

// Frame returns the sketch's current display list.
func (s *Session) Frame(ctx context.Context) ([]sketch.Op, error) {
	var frame []sketch.Op
	if err := s.Do(ctx, func(*Engine) { frame = s.sketch.Frame() }); err != nil {
		return nil, err
	}
	return frame, nil
}

// Sketch returns the library, which may only be used within [Session.Do].
func (s *Session) Sketch() *sketch.Sketch { return s.sketch }

// Window returns the window, which may only be used within [Session.Do].
func (s *Session) Window() *window.Window { return s.window }

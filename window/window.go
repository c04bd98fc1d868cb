package window

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/go-livecode/watchdog"
	"github.com/joeycumines/logiface"
)

// Whitelist are the standard globals copied from the runtime onto every
// window.
var Whitelist = []string{
	`parseInt`,
	`parseFloat`,
	`isNaN`,
	`isFinite`,
	`Object`,
	`Array`,
	`Boolean`,
	`Number`,
	`String`,
	`RegExp`,
	`Date`,
	`JSON`,
	`Math`,
	`undefined`,
	`Infinity`,
	`NaN`,
}

// Timers are the timer function names, console is the console object.
var Timers = []string{`setTimeout`, `clearTimeout`, `setInterval`, `clearInterval`}

var errNoTimers = errors.New("timers are not available")

type timerKind uint8

const (
	kindTimeout timerKind = iota + 1
	kindInterval
)

// Window is the custom window. It must be used from the goroutine that owns
// the runtime, i.e. the event loop's.
type Window struct {
	vm       *goja.Runtime
	object   *goja.Object
	js       *eventloop.JS
	logger   *logiface.Logger[logiface.Event]
	watchdog *watchdog.Watchdog
	onError  func(err error)
	globals  []string
	// timers belong to the last successful run, or to callbacks
	timers map[uint64]timerKind
	// pending are created by the run in progress
	pending map[uint64]timerKind
	running bool
}

// New constructs a Window for vm.
func New(vm *goja.Runtime, opts ...Option) (*Window, error) {
	if vm == nil {
		return nil, errors.New("window: nil runtime")
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	w := &Window{
		vm:       vm,
		object:   vm.NewObject(),
		js:       cfg.js,
		logger:   cfg.logger,
		watchdog: cfg.watchdog,
		onError:  cfg.onError,
		timers:   make(map[uint64]timerKind),
	}

	global := vm.GlobalObject()
	for _, name := range Whitelist {
		if err := w.object.Set(name, global.Get(name)); err != nil {
			return nil, err
		}
	}

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		`setTimeout`:    w.setTimeout,
		`clearTimeout`:  w.clearTimeout,
		`setInterval`:   w.setInterval,
		`clearInterval`: w.clearInterval,
	} {
		if err := w.object.Set(name, fn); err != nil {
			return nil, err
		}
	}

	consoleObj, err := w.console()
	if err != nil {
		return nil, err
	}
	if err := w.object.Set(`console`, consoleObj); err != nil {
		return nil, err
	}

	w.globals = slices.Concat(Whitelist, Timers, []string{`console`})
	for _, name := range slices.Sorted(maps.Keys(cfg.members)) {
		if err := w.object.Set(name, cfg.members[name]); err != nil {
			return nil, err
		}
		w.globals = append(w.globals, name)
	}

	return w, nil
}

// Object returns the script-facing window object.
func (w *Window) Object() *goja.Object { return w.object }

// Globals returns the whitelisted member names.
func (w *Window) Globals() []string { return slices.Clone(w.globals) }

// Begin starts tracking the timers of a run.
func (w *Window) Begin() {
	w.running = true
	w.pending = make(map[uint64]timerKind)
}

// End finishes a run. On commit the timers of the previous run are
// cancelled and the run's timers take their place, otherwise the run's
// timers are cancelled.
func (w *Window) End(commit bool) {
	w.running = false
	pending := w.pending
	w.pending = nil
	if commit {
		w.cancel(w.timers)
		w.timers = pending
	} else {
		w.cancel(pending)
	}
}

// ClearTimers cancels every timer.
func (w *Window) ClearTimers() {
	w.cancel(w.timers)
	w.cancel(w.pending)
}

// ActiveTimers returns the number of timers that have not fired or been
// cleared, intervals included.
func (w *Window) ActiveTimers() int { return len(w.timers) + len(w.pending) }

func (w *Window) cancel(timers map[uint64]timerKind) {
	for id, kind := range timers {
		w.clear(id, kind)
	}
	clear(timers)
}

func (w *Window) clear(id uint64, kind timerKind) {
	if w.js == nil {
		return
	}
	switch kind {
	case kindTimeout:
		_ = w.js.ClearTimeout(id)
	case kindInterval:
		_ = w.js.ClearInterval(id)
	}
}

func (w *Window) track(id uint64, kind timerKind) {
	if w.running {
		w.pending[id] = kind
	} else {
		w.timers[id] = kind
	}
}

func (w *Window) untrack(id uint64) (timerKind, bool) {
	if kind, ok := w.pending[id]; ok {
		delete(w.pending, id)
		return kind, true
	}
	if kind, ok := w.timers[id]; ok {
		delete(w.timers, id)
		return kind, true
	}
	return 0, false
}

// callback validates a timer callback and its extra arguments.
func (w *Window) callback(call goja.FunctionCall, name string) (goja.Callable, int, []goja.Value) {
	if w.js == nil {
		panic(w.vm.NewGoError(errNoTimers))
	}
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(w.vm.NewTypeError(name + " requires a function as first argument"))
	}
	delay := int(call.Argument(1).ToInteger())
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = slices.Clone(call.Arguments[2:])
	}
	return fn, delay, args
}

func (w *Window) setTimeout(call goja.FunctionCall) goja.Value {
	fn, delay, args := w.callback(call, `setTimeout`)
	var id uint64
	id, err := w.js.SetTimeout(func() {
		if _, ok := w.untrack(id); ok {
			w.invoke(`setTimeout`, fn, args)
		}
	}, delay)
	if err != nil {
		panic(w.vm.NewGoError(err))
	}
	w.track(id, kindTimeout)
	return w.vm.ToValue(id)
}

func (w *Window) setInterval(call goja.FunctionCall) goja.Value {
	fn, delay, args := w.callback(call, `setInterval`)
	var id uint64
	id, err := w.js.SetInterval(func() {
		_, inPending := w.pending[id]
		_, inTimers := w.timers[id]
		if inPending || inTimers {
			w.invoke(`setInterval`, fn, args)
		}
	}, delay)
	if err != nil {
		panic(w.vm.NewGoError(err))
	}
	w.track(id, kindInterval)
	return w.vm.ToValue(id)
}

func (w *Window) clearTimeout(call goja.FunctionCall) goja.Value {
	w.clearTimer(call.Argument(0))
	return goja.Undefined()
}

func (w *Window) clearInterval(call goja.FunctionCall) goja.Value {
	w.clearTimer(call.Argument(0))
	return goja.Undefined()
}

// clearTimer silently ignores unknown ids, like browsers do.
func (w *Window) clearTimer(v goja.Value) {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	id := uint64(v.ToInteger())
	if kind, ok := w.untrack(id); ok {
		w.clear(id, kind)
	}
}

// invoke runs a timer callback as a fresh unit of work.
func (w *Window) invoke(name string, fn goja.Callable, args []goja.Value) {
	if w.watchdog != nil {
		w.watchdog.Reset()
	}
	_, err := fn(w.object, args...)
	w.vm.ClearInterrupt()
	if err != nil {
		w.logger.Warning().
			Str(`timer`, name).
			Err(err).
			Log(`timer callback threw`)
		if w.onError != nil {
			w.onError(err)
		}
	}
}

// console loads the node-style console module, printing through the
// window's logger. The registry's global require is removed again.
func (w *Window) console() (*goja.Object, error) {
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{w.logger}))
	module := registry.Enable(w.vm)
	v, err := module.Require(console.ModuleName)
	if err != nil {
		return nil, fmt.Errorf("window: console: %w", err)
	}
	// loading needs the global, scripts must not see it
	if err := w.vm.GlobalObject().Delete(`require`); err != nil {
		return nil, err
	}
	return v.ToObject(w.vm), nil
}

// printer implements console.Printer.
type printer struct {
	logger *logiface.Logger[logiface.Event]
}

func (x printer) Log(s string)   { x.print(logiface.LevelInformational, `log`, s) }
func (x printer) Warn(s string)  { x.print(logiface.LevelWarning, `warn`, s) }
func (x printer) Error(s string) { x.print(logiface.LevelError, `error`, s) }

func (x printer) print(level logiface.Level, method, s string) {
	x.logger.Build(level).
		Str(`console`, method).
		Log(s)
}

package watchdog

import (
	"github.com/dop251/goja"
)

// Bind exposes the watchdog to scripts as an object with check and reset
// methods. An abort decision is thrown as a GoError wrapping the
// [*InfiniteLoopError].
func (w *Watchdog) Bind(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set(`check`, func(call goja.FunctionCall) goja.Value {
		if err := w.Check(); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set(`reset`, func(call goja.FunctionCall) goja.Value {
		w.Reset()
		return goja.Undefined()
	})
	return obj
}

// BindInterrupt is like [Watchdog.Bind], but an abort also interrupts vm, so
// that a script cannot swallow it with try/catch. The caller must call
// [goja.Runtime.ClearInterrupt] once the interrupted call has returned.
func (w *Watchdog) BindInterrupt(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set(`check`, func(call goja.FunctionCall) goja.Value {
		if err := w.Check(); err != nil {
			vm.Interrupt(err)
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set(`reset`, func(call goja.FunctionCall) goja.Value {
		w.Reset()
		return goja.Undefined()
	})
	return obj
}

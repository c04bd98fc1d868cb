package livecode

import (
	"github.com/dop251/goja"
	"github.com/joeycumines/go-livecode/rewrite"
)

// Context is the result of a successful cycle: the environment the script
// ran against, after the fold. Callbacks created by the script keep
// operating on it until the next successful cycle.
type Context struct {
	vm     *goja.Runtime
	env    *Environment
	result *rewrite.Result
	window *goja.Object
	cycle  int
}

// Object returns the environment object.
func (x *Context) Object() *goja.Object { return x.env.Object() }

// Environment returns the environment.
func (x *Context) Environment() *Environment { return x.env }

// Get returns the value of a top-level name, or undefined.
func (x *Context) Get(name string) goja.Value { return x.env.Get(name) }

// Names returns the names assigned by the script, sorted.
func (x *Context) Names() []string { return x.env.Names() }

// Globals returns the Global Name Set of the script.
func (x *Context) Globals() []string { return x.env.Globals() }

// EntryPoints returns the entry points the script defined at the top level.
func (x *Context) EntryPoints() []string { return append([]string(nil), x.result.EntryPoints...) }

// Rewrite returns the rewrite the context was produced from.
func (x *Context) Rewrite() *rewrite.Result { return x.result }

// Cycle returns the 1-based number of the cycle that produced the context.
func (x *Context) Cycle() int { return x.cycle }

// Entry returns the function bound to name, either on the environment or,
// for implicit globals, on the window.
func (x *Context) Entry(name string) (goja.Value, bool) {
	if v := x.env.Get(name); isCallable(v) {
		return v, true
	}
	if x.window != nil {
		if v := x.window.Get(name); v != nil && isCallable(v) {
			return v, true
		}
	}
	return nil, false
}

// Call invokes the function bound to name with args, with the window as
// the receiver. It returns (nil, nil) if no such function exists. Script
// exceptions are returned as a [*RuntimeError].
func (x *Context) Call(name string, args ...any) (goja.Value, error) {
	v, ok := x.Entry(name)
	if !ok {
		return nil, nil
	}
	fn, _ := goja.AssertFunction(v)
	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = x.vm.ToValue(arg)
	}
	var this goja.Value = goja.Undefined()
	if x.window != nil {
		this = x.window
	}
	result, err := fn(this, values...)
	x.vm.ClearInterrupt()
	if err != nil {
		return nil, newRuntimeError(err)
	}
	return result, nil
}

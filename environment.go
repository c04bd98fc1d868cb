package livecode

import (
	"slices"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-livecode/behavior"
)

// Environment is the object a run's top-level names live on. Every global is
// an accessor: functions written to it are routed through the proxy
// registry, keyed by the global's name, so the slot holds the proxy rather
// than the function itself.
type Environment struct {
	vm       *goja.Runtime
	registry *behavior.Registry
	object   *goja.Object
	values   map[string]goja.Value
	defined  map[string]struct{}
	globals  []string
}

func newEnvironment(vm *goja.Runtime, registry *behavior.Registry, globals []string) (*Environment, error) {
	e := &Environment{
		vm:       vm,
		registry: registry,
		object:   vm.NewObject(),
		values:   make(map[string]goja.Value, len(globals)),
		defined:  make(map[string]struct{}),
		globals:  slices.Clone(globals),
	}
	for _, name := range globals {
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
			return e.Get(name)
		})
		setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			e.set(name, call.Argument(0))
			return goja.Undefined()
		})
		if err := e.object.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Object returns the script-facing environment object.
func (e *Environment) Object() *goja.Object { return e.object }

// Globals returns the names installed on the environment, sorted.
func (e *Environment) Globals() []string { return slices.Clone(e.globals) }

// Get returns the value of name, or undefined.
func (e *Environment) Get(name string) goja.Value {
	if v, ok := e.values[name]; ok {
		return v
	}
	return goja.Undefined()
}

// Has reports whether name has been assigned.
func (e *Environment) Has(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Names returns the assigned names, sorted.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Defined reports whether name was written by the run.
func (e *Environment) Defined(name string) bool {
	_, ok := e.defined[name]
	return ok
}

// set is the accessor's setter. It panics with a script error if the proxy
// registry rejects the value, which surfaces as an exception in the run.
func (e *Environment) set(name string, v goja.Value) {
	e.defined[name] = struct{}{}
	if proxy, err := e.route(name, v); err != nil {
		panic(e.vm.NewGoError(err))
	} else if proxy != nil {
		v = proxy.Value()
	}
	e.values[name] = v
}

// route installs a function value into the proxy for name, returning nil for
// anything that is not routed.
func (e *Environment) route(name string, v goja.Value) (*behavior.Proxy, error) {
	if !isCallable(v) {
		return nil, nil
	}
	if _, ok := e.registry.Lookup(v); ok {
		// already a proxy, e.g. `var g = f;`
		return nil, nil
	}
	if proxy, ok := e.registry.Get(name); ok {
		return proxy, proxy.Update(v)
	}
	return e.registry.GetOrCreate(name, v)
}

// store writes a value directly, bypassing the registry.
func (e *Environment) store(name string, v goja.Value) {
	e.values[name] = v
}

func isCallable(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	_, ok = goja.AssertFunction(obj)
	return ok
}

package behavior

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dop251/goja"
)

// ErrNotCallable is returned when an implementation is not a function.
var ErrNotCallable = errors.New("behavior: implementation is not callable")

// trampolineSource builds a proxy function around a Go accessor for the
// current implementation.
const trampolineSource = `(function (current) {
	return function () {
		var impl = current();
		if (new.target) {
			return Reflect.construct(impl, arguments, new.target);
		}
		return impl.apply(this, arguments);
	};
})`

var trampolineProgram = goja.MustCompile(`behavior-trampoline.js`, trampolineSource, true)

// Registry holds one [Proxy] per name. It is bound to a single runtime and is
// not safe for concurrent use.
type Registry struct {
	vm      *goja.Runtime
	factory goja.Callable
	proxies map[string]*Proxy
	byValue map[*goja.Object]*Proxy
}

// NewRegistry prepares a registry for vm.
func NewRegistry(vm *goja.Runtime) (*Registry, error) {
	if vm == nil {
		return nil, errors.New("behavior: nil runtime")
	}
	v, err := vm.RunProgram(trampolineProgram)
	if err != nil {
		return nil, fmt.Errorf("behavior: trampoline: %w", err)
	}
	factory, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errors.New("behavior: trampoline factory is not a function")
	}
	return &Registry{
		vm:      vm,
		factory: factory,
		proxies: make(map[string]*Proxy),
		byValue: make(map[*goja.Object]*Proxy),
	}, nil
}

// GetOrCreate returns the proxy for name, creating it around impl if it does
// not exist yet. An existing proxy is returned unchanged, call [Proxy.Update]
// to install impl.
func (r *Registry) GetOrCreate(name string, impl goja.Value) (*Proxy, error) {
	if p, ok := r.proxies[name]; ok {
		return p, nil
	}

	implObj, ok := impl.(*goja.Object)
	if !ok {
		return nil, ErrNotCallable
	}
	if _, ok := goja.AssertFunction(implObj); !ok {
		return nil, ErrNotCallable
	}

	p := &Proxy{name: name, vm: r.vm, impl: implObj}

	current := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return p.impl })
	v, err := r.factory(goja.Undefined(), current)
	if err != nil {
		return nil, fmt.Errorf("behavior: create %q: %w", name, err)
	}
	p.value = v.ToObject(r.vm)
	p.methods = p.value.Get(`prototype`).ToObject(r.vm)

	if err := p.value.Set(`toString`, func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(p.impl.String())
	}); err != nil {
		return nil, err
	}

	// the table starts out as a copy of the initial implementation's
	for _, key := range methodNames(r.vm, implObj) {
		if err := p.methods.Set(key, implPrototype(r.vm, implObj).Get(key)); err != nil {
			return nil, err
		}
	}

	r.proxies[name] = p
	r.byValue[p.value] = p
	return p, nil
}

// Get returns the proxy registered for name.
func (r *Registry) Get(name string) (*Proxy, bool) {
	p, ok := r.proxies[name]
	return p, ok
}

// Lookup returns the proxy whose script value is v.
func (r *Registry) Lookup(v goja.Value) (*Proxy, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	p, ok := r.byValue[obj]
	return p, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.proxies))
	for name := range r.proxies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete forgets the proxy for name. Existing instances keep working against
// the last installed method table.
func (r *Registry) Delete(name string) {
	if p, ok := r.proxies[name]; ok {
		delete(r.byValue, p.value)
		delete(r.proxies, name)
	}
}

// Reset forgets every proxy.
func (r *Registry) Reset() {
	clear(r.proxies)
	clear(r.byValue)
}

// Len returns the number of proxies.
func (r *Registry) Len() int { return len(r.proxies) }

// Snapshot is a point-in-time copy of every proxy in a registry.
type Snapshot struct {
	states map[string]ProxyState
}

// Len returns the number of proxies captured.
func (s *Snapshot) Len() int { return len(s.states) }

// Snapshot captures the state of every registered proxy.
func (r *Registry) Snapshot() *Snapshot {
	s := &Snapshot{states: make(map[string]ProxyState, len(r.proxies))}
	for name, p := range r.proxies {
		s.states[name] = p.Snapshot()
	}
	return s
}

// Restore returns the registry to s: proxies created since are forgotten,
// and every captured proxy gets its implementation and method table back.
// Proxies deleted since are not resurrected. The first error is returned
// after every proxy has been attempted.
func (r *Registry) Restore(s *Snapshot) error {
	var first error
	for name, p := range r.proxies {
		state, ok := s.states[name]
		if !ok {
			r.Delete(name)
			continue
		}
		if err := p.Restore(state); err != nil && first == nil {
			first = fmt.Errorf("behavior: restore %q: %w", name, err)
		}
	}
	return first
}

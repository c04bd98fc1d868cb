package behavior

import (
	"github.com/dop251/goja"
)

// Proxy is a stable handle around a swappable implementation.
type Proxy struct {
	vm      *goja.Runtime
	impl    *goja.Object
	value   *goja.Object
	methods *goja.Object
	name    string
	updates int
}

// Name returns the name the proxy is registered under.
func (p *Proxy) Name() string { return p.name }

// Value returns the trampoline, the value scripts see.
func (p *Proxy) Value() *goja.Object { return p.value }

// Methods returns the method table shared by every instance.
func (p *Proxy) Methods() *goja.Object { return p.methods }

// Implementation returns the currently installed implementation.
func (p *Proxy) Implementation() *goja.Object { return p.impl }

// Updates returns the number of times Update has been called.
func (p *Proxy) Updates() int { return p.updates }

// Update installs impl and synchronises the method table: every method on
// the new implementation's prototype is copied in, and every method absent
// from it is removed.
func (p *Proxy) Update(impl goja.Value) error {
	implObj, ok := impl.(*goja.Object)
	if !ok {
		return ErrNotCallable
	}
	if _, ok := goja.AssertFunction(implObj); !ok {
		return ErrNotCallable
	}
	if implObj == p.value {
		return nil
	}

	p.impl = implObj
	p.updates++

	next := methodNames(p.vm, implObj)
	keep := make(map[string]struct{}, len(next))
	proto := implPrototype(p.vm, implObj)
	for _, key := range next {
		keep[key] = struct{}{}
		if err := p.methods.Set(key, proto.Get(key)); err != nil {
			return err
		}
	}

	for _, key := range p.methods.GetOwnPropertyNames() {
		if key == `constructor` {
			continue
		}
		if _, ok := keep[key]; !ok {
			if err := p.methods.Delete(key); err != nil {
				return err
			}
		}
	}

	return nil
}

// implPrototype returns impl.prototype, or an empty object for functions
// without one (e.g. arrow functions).
func implPrototype(vm *goja.Runtime, impl *goja.Object) *goja.Object {
	if proto, ok := impl.Get(`prototype`).(*goja.Object); ok {
		return proto
	}
	return vm.NewObject()
}

// methodNames lists the own properties of impl.prototype, including the
// non-enumerable methods of classes, excluding the constructor back-reference.
func methodNames(vm *goja.Runtime, impl *goja.Object) []string {
	names := implPrototype(vm, impl).GetOwnPropertyNames()
	out := names[:0]
	for _, name := range names {
		if name != `constructor` {
			out = append(out, name)
		}
	}
	return out
}

// ProxyState is a point-in-time copy of a proxy's implementation and method
// table, see [Proxy.Snapshot].
type ProxyState struct {
	impl    *goja.Object
	keys    []string
	methods map[string]goja.Value
	updates int
}

// Snapshot captures the installed implementation and the exact contents of
// the method table, including methods scripts assigned onto it directly.
func (p *Proxy) Snapshot() ProxyState {
	keys := p.methods.GetOwnPropertyNames()
	s := ProxyState{
		impl:    p.impl,
		keys:    make([]string, 0, len(keys)),
		methods: make(map[string]goja.Value, len(keys)),
		updates: p.updates,
	}
	for _, key := range keys {
		if key == `constructor` {
			continue
		}
		s.keys = append(s.keys, key)
		s.methods[key] = p.methods.Get(key)
	}
	return s
}

// Restore puts back a state captured by [Proxy.Snapshot]. Methods added
// since are removed, and changed or removed methods are reinstated.
func (p *Proxy) Restore(s ProxyState) error {
	if s.impl == nil {
		return ErrNotCallable
	}
	for _, key := range p.methods.GetOwnPropertyNames() {
		if key == `constructor` {
			continue
		}
		if _, ok := s.methods[key]; !ok {
			if err := p.methods.Delete(key); err != nil {
				return err
			}
		}
	}
	for _, key := range s.keys {
		if err := p.methods.Set(key, s.methods[key]); err != nil {
			return err
		}
	}
	p.impl = s.impl
	p.updates = s.updates
	return nil
}

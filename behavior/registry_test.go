package behavior

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*goja.Runtime, *Registry) {
	t.Helper()
	vm := goja.New()
	r, err := NewRegistry(vm)
	require.NoError(t, err)
	return vm, r
}

func eval(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	require.NoError(t, err)
	return v
}

func TestNewRegistry_nilRuntime(t *testing.T) {
	_, err := NewRegistry(nil)
	require.Error(t, err)
}

func TestRegistry_GetOrCreate_notCallable(t *testing.T) {
	vm, r := newTestRegistry(t)
	_, err := r.GetOrCreate(`x`, vm.ToValue(5))
	require.ErrorIs(t, err, ErrNotCallable)
	_, err = r.GetOrCreate(`x`, vm.NewObject())
	require.ErrorIs(t, err, ErrNotCallable)
}

func TestProxy_call(t *testing.T) {
	vm, r := newTestRegistry(t)
	p, err := r.GetOrCreate(`add`, eval(t, vm, `(function (a, b) { return a + b + (this && this.bias || 0); })`))
	require.NoError(t, err)
	require.NoError(t, vm.Set(`add`, p.Value()))

	assert.Equal(t, int64(3), eval(t, vm, `add(1, 2)`).Export())
	assert.Equal(t, int64(13), eval(t, vm, `add.call({bias: 10}, 1, 2)`).Export())

	require.NoError(t, p.Update(eval(t, vm, `(function (a, b) { return a * b; })`)))
	assert.Equal(t, int64(2), eval(t, vm, `add(1, 2)`).Export())
	assert.Equal(t, 1, p.Updates())
}

func TestProxy_liveInstances(t *testing.T) {
	vm, r := newTestRegistry(t)

	v1 := eval(t, vm, `
		(function () {
			function Dot(x) { this.x = x; }
			Dot.prototype.describe = function () { return 'v1:' + this.x; };
			Dot.prototype.remove = function () { return 'gone soon'; };
			return Dot;
		})()
	`)
	p, err := r.GetOrCreate(`Dot`, v1)
	require.NoError(t, err)
	require.NoError(t, vm.Set(`Dot`, p.Value()))

	eval(t, vm, `var d = new Dot(7);`)
	assert.Equal(t, `v1:7`, eval(t, vm, `d.describe()`).Export())
	assert.Equal(t, true, eval(t, vm, `d instanceof Dot`).Export())

	v2 := eval(t, vm, `
		(function () {
			function Dot(x) { this.x = x * 100; }
			Dot.prototype.describe = function () { return 'v2:' + this.x; };
			Dot.prototype.added = function () { return this.x + 1; };
			return Dot;
		})()
	`)
	require.NoError(t, p.Update(v2))

	// same instance, fields untouched, new method table
	assert.Equal(t, `v2:7`, eval(t, vm, `d.describe()`).Export())
	assert.Equal(t, int64(8), eval(t, vm, `d.added()`).Export())
	assert.Equal(t, `undefined`, eval(t, vm, `typeof d.remove`).Export())

	// new instances use the new constructor body
	assert.Equal(t, `v2:300`, eval(t, vm, `new Dot(3).describe()`).Export())
}

func TestProxy_class(t *testing.T) {
	vm, r := newTestRegistry(t)
	p, err := r.GetOrCreate(`Ball`, eval(t, vm, `(class Ball { constructor(r) { this.r = r; } area() { return this.r * this.r; } })`))
	require.NoError(t, err)
	require.NoError(t, vm.Set(`Ball`, p.Value()))

	eval(t, vm, `var b = new Ball(2);`)
	assert.Equal(t, int64(4), eval(t, vm, `b.area()`).Export())

	require.NoError(t, p.Update(eval(t, vm, `(class Ball { constructor(r) { this.r = r; } area() { return 3 * this.r * this.r; } })`)))
	assert.Equal(t, int64(12), eval(t, vm, `b.area()`).Export())
}

func TestProxy_toString(t *testing.T) {
	vm, r := newTestRegistry(t)
	p, err := r.GetOrCreate(`f`, eval(t, vm, `(function f() { return 1; })`))
	require.NoError(t, err)
	assert.Equal(t, `function f() { return 1; }`, p.Value().String())

	require.NoError(t, p.Update(eval(t, vm, `(function f() { return 2; })`)))
	assert.Equal(t, `function f() { return 2; }`, p.Value().String())
}

func TestRegistry_GetOrCreate_existing(t *testing.T) {
	vm, r := newTestRegistry(t)
	a, err := r.GetOrCreate(`f`, eval(t, vm, `(function () { return 1; })`))
	require.NoError(t, err)
	b, err := r.GetOrCreate(`f`, eval(t, vm, `(function () { return 2; })`))
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{`f`}, r.Names())
}

func TestRegistry_Lookup(t *testing.T) {
	vm, r := newTestRegistry(t)
	fn := eval(t, vm, `(function () {})`)
	p, err := r.GetOrCreate(`f`, fn)
	require.NoError(t, err)

	got, ok := r.Lookup(p.Value())
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = r.Lookup(fn)
	assert.False(t, ok)
	_, ok = r.Lookup(vm.ToValue(1))
	assert.False(t, ok)

	// updating a proxy with itself is a no-op
	require.NoError(t, p.Update(p.Value()))
	assert.Zero(t, p.Updates())

	r.Delete(`f`)
	_, ok = r.Lookup(p.Value())
	assert.False(t, ok)

	_, err = r.GetOrCreate(`g`, fn)
	require.NoError(t, err)
	r.Reset()
	assert.Zero(t, r.Len())
}

func TestProxy_arrowImplementation(t *testing.T) {
	vm, r := newTestRegistry(t)
	p, err := r.GetOrCreate(`double`, eval(t, vm, `(x => x * 2)`))
	require.NoError(t, err)
	require.NoError(t, vm.Set(`double`, p.Value()))
	assert.Equal(t, int64(8), eval(t, vm, `double(4)`).Export())

	_, err = vm.RunString(`new double(4)`)
	require.Error(t, err)
}

func TestRegistry_Restore_assignedMethods(t *testing.T) {
	vm, r := newTestRegistry(t)
	p, err := r.GetOrCreate(`Ball`, eval(t, vm, `(function Ball() { this.v = 5; })`))
	require.NoError(t, err)
	require.NoError(t, vm.Set(`Ball`, p.Value()))

	// methods assigned through the proxy land on the table, not on the raw
	// implementation's prototype
	eval(t, vm, `Ball.prototype.get = function () { return this.v; }; var b = new Ball();`)
	assert.Equal(t, int64(5), eval(t, vm, `b.get()`).Export())

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Len())
	impl := p.Implementation()

	require.NoError(t, p.Update(eval(t, vm, `(function Ball() { this.v = 6; })`)))
	eval(t, vm, `Ball.prototype.other = function () { return 1; };`)
	_, err = r.GetOrCreate(`fresh`, eval(t, vm, `(function () {})`))
	require.NoError(t, err)
	assert.Equal(t, `undefined`, eval(t, vm, `typeof b.get`).Export())

	require.NoError(t, r.Restore(snap))
	assert.Equal(t, int64(5), eval(t, vm, `b.get()`).Export())
	assert.Equal(t, `undefined`, eval(t, vm, `typeof b.other`).Export())
	assert.Same(t, impl, p.Implementation())
	assert.Zero(t, p.Updates())
	assert.Equal(t, []string{`Ball`}, r.Names())
	assert.Equal(t, int64(5), eval(t, vm, `new Ball().get()`).Export())
}

func TestProxy_Restore_changedMethod(t *testing.T) {
	vm, r := newTestRegistry(t)
	p, err := r.GetOrCreate(`Dot`, eval(t, vm, `(function () {
		function Dot() {}
		Dot.prototype.name = function () { return 'one'; };
		return Dot;
	})()`))
	require.NoError(t, err)
	require.NoError(t, vm.Set(`Dot`, p.Value()))
	eval(t, vm, `var d = new Dot();`)

	state := p.Snapshot()
	eval(t, vm, `Dot.prototype.name = function () { return 'two'; };`)
	assert.Equal(t, `two`, eval(t, vm, `d.name()`).Export())

	require.NoError(t, p.Restore(state))
	assert.Equal(t, `one`, eval(t, vm, `d.name()`).Export())

	require.ErrorIs(t, p.Restore(ProxyState{}), ErrNotCallable)
}

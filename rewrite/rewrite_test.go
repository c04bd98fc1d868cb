package rewrite

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness runs a rewritten program the way the engine does, against plain
// objects.
type harness struct {
	vm      *goja.Runtime
	result  *Result
	env     *goja.Object
	window  *goja.Object
	library *goja.Object
	resets  int
	checks  int
}

func newHarness(t *testing.T, source string, opts ...Option) *harness {
	t.Helper()
	result, err := Rewrite(source, opts...)
	require.NoError(t, err)
	vm := goja.New()
	return &harness{
		vm:      vm,
		result:  result,
		env:     vm.NewObject(),
		window:  vm.NewObject(),
		library: vm.NewObject(),
	}
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	names := h.result.Names
	unit := `(function (` + strings.Join(names.Params(), `, `) + `) { var ` + names.Temp + `; ` + h.result.Source + "\n})"
	value, err := h.vm.RunString(unit)
	require.NoError(t, err, unit)
	fn, ok := goja.AssertFunction(value)
	require.True(t, ok)

	wd := h.vm.NewObject()
	require.NoError(t, wd.Set(`reset`, func() { h.resets++ }))
	require.NoError(t, wd.Set(`check`, func() { h.checks++ }))
	source := h.vm.ToValue(func(start, end int) string { return h.result.Text(start, end) })

	_, err = fn(goja.Undefined(), h.env, h.window, h.library, source, wd)
	require.NoError(t, err, h.result.Source)
}

func run(t *testing.T, source string, opts ...Option) *harness {
	t.Helper()
	h := newHarness(t, source, opts...)
	h.run(t)
	return h
}

func (h *harness) call(t *testing.T, name string) goja.Value {
	t.Helper()
	fn, ok := goja.AssertFunction(h.env.Get(name))
	require.True(t, ok, name)
	v, err := fn(h.env)
	require.NoError(t, err)
	return v
}

func TestRewrite_declaration(t *testing.T) {
	result, err := Rewrite(`var x = 1;`)
	require.NoError(t, err)
	assert.Equal(t, `__watchdog__.reset();__env__.x = 1;`, result.Source)
	assert.Equal(t, []string{`x`}, result.Globals)
}

func TestRewrite_declarationSplit(t *testing.T) {
	result, err := Rewrite(`var a = 1, b, c = 2;`)
	require.NoError(t, err)
	assert.Equal(t, `__watchdog__.reset();__env__.a = 1; __env__.c = 2;`, result.Source)
	assert.Equal(t, []string{`a`, `b`, `c`}, result.Globals)
}

func TestRewrite_declarationWithoutInitializer(t *testing.T) {
	result, err := Rewrite("var a;\nvar b = a;")
	require.NoError(t, err)
	assert.Equal(t, "__watchdog__.reset();;\n__env__.b = __env__.a;", result.Source)
}

func TestRewrite_forHead(t *testing.T) {
	result, err := Rewrite(`for (var i = 0, j = 10; i < j; i++, j--) {}`)
	require.NoError(t, err)
	assert.Equal(t,
		`__watchdog__.reset();for (__env__.i = 0, __env__.j = 10; __env__.i < __env__.j; __env__.i++, __env__.j--) {__watchdog__.check();}`,
		result.Source)
}

func TestRewrite_parseError(t *testing.T) {
	_, err := Rewrite("var ok = 1;\nvar = ;")
	require.ErrorIs(t, err, ErrParse)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
	assert.NotEmpty(t, pe.Message)
}

func TestRewrite_invalidNames(t *testing.T) {
	_, err := Rewrite(`1`, WithEnvName(`not valid`))
	require.Error(t, err)
	_, err = Rewrite(`1`, WithEnvName(`__window__`))
	require.Error(t, err)
}

func TestRewrite_customNames(t *testing.T) {
	result, err := Rewrite(`var x = window;`, WithEnvName(`ctx`), WithWindowName(`win`))
	require.NoError(t, err)
	assert.Equal(t, `__watchdog__.reset();ctx.x = win;`, result.Source)
	assert.Equal(t, []string{`ctx`, `win`, `__library__`, `__source__`, `__watchdog__`}, result.Names.Params())
}

func TestRewrite_preservesLines(t *testing.T) {
	const source = `var a = 1,
	b = 2;
function draw() {
	for (var i = 0; i < 3; i++)
		a += i;
	return this;
}
class Thing {
	constructor(v) { this.v = v; }
}
var f = (x) => (
	x + 1
);
`
	result, err := Rewrite(source)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(source, "\n"), strings.Count(result.Source, "\n"), result.Source)
}

func TestRewrite_globals(t *testing.T) {
	h := run(t, `
var x = 1;
let y = x + 1;
const z = y * 2;
{
	var inBlock = z;
}
function f() { var local = 5; return local; }
`)
	assert.Equal(t, []string{`f`, `inBlock`, `x`, `y`, `z`}, h.result.Globals)
	assert.Equal(t, int64(1), h.env.Get(`x`).ToInteger())
	assert.Equal(t, int64(2), h.env.Get(`y`).ToInteger())
	assert.Equal(t, int64(4), h.env.Get(`z`).ToInteger())
	assert.Equal(t, int64(4), h.env.Get(`inBlock`).ToInteger())
	assert.Equal(t, int64(5), h.call(t, `f`).ToInteger())
	assert.Nil(t, h.env.Get(`local`))
	assert.Contains(t, h.result.Source, `var local = 5; return local;`)
}

func TestRewrite_shadowing(t *testing.T) {
	h := run(t, `
var x = 1;
function f(x) { return x * 10; }
function g() { var x = 2; return x; }
var a = f(3), b = g();
`)
	assert.Equal(t, int64(1), h.env.Get(`x`).ToInteger())
	assert.Equal(t, int64(30), h.env.Get(`a`).ToInteger())
	assert.Equal(t, int64(2), h.env.Get(`b`).ToInteger())
}

func TestRewrite_hoisting(t *testing.T) {
	h := run(t, `
var r = early();
function early() { return helper(); }
function helper() { return 7; }
`)
	assert.Equal(t, int64(7), h.env.Get(`r`).ToInteger())
}

func TestRewrite_library(t *testing.T) {
	h := newHarness(t, `
fill(1, 2);
var w = width + innerWidth;
var height = 5;
`, WithResolver(NewResolver([]string{`fill`, `width`, `height`}, []string{`innerWidth`})))

	var filled []any
	require.NoError(t, h.library.Set(`fill`, func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			filled = append(filled, arg.Export())
		}
		return goja.Undefined()
	}))
	require.NoError(t, h.library.Set(`width`, 100))
	require.NoError(t, h.window.Set(`innerWidth`, 640))
	h.run(t)

	assert.Equal(t, []any{int64(1), int64(2)}, filled)
	assert.Equal(t, int64(740), h.env.Get(`w`).ToInteger())
	assert.Equal(t, int64(5), h.library.Get(`height`).ToInteger())
	assert.Nil(t, h.env.Get(`height`))
	assert.Equal(t, []string{`w`}, h.result.Globals)
	assert.Contains(t, h.result.Source, `__library__.height = 5;`)
}

func TestRewrite_windowAliases(t *testing.T) {
	h := run(t, `
var w = window;
var same = w === globalThis && w === self;
`)
	assert.True(t, h.env.Get(`w`).SameAs(h.window))
	assert.True(t, h.env.Get(`same`).ToBoolean())
}

func TestRewrite_impliedGlobals(t *testing.T) {
	h := run(t, `
function get() { return count; }
function set() { count = 3; }
set();
var v = get();
`)
	assert.Equal(t, []string{`count`}, h.result.Implied)
	assert.Equal(t, int64(3), h.window.Get(`count`).ToInteger())
	assert.Equal(t, int64(3), h.env.Get(`v`).ToInteger())
	assert.Nil(t, h.vm.Get(`count`))
}

func TestRewrite_shorthandAndPatterns(t *testing.T) {
	h := run(t, `
var a = 1;
var o = {a};
var {b, c: [d]} = {b: 2, c: [3]};
[a, b] = [b, a];
`)
	assert.Equal(t, int64(1), h.env.Get(`o`).ToObject(h.vm).Get(`a`).ToInteger())
	assert.Equal(t, int64(2), h.env.Get(`a`).ToInteger())
	assert.Equal(t, int64(1), h.env.Get(`b`).ToInteger())
	assert.Equal(t, int64(3), h.env.Get(`d`).ToInteger())
	assert.Contains(t, h.result.Source, `{a: __env__.a}`)
	assert.Contains(t, h.result.Source, `0, {b: __env__.b, c: [__env__.d]} = `)
}

func TestRewrite_this(t *testing.T) {
	h := run(t, `
var top = this;
function f() { return this; }
var viaCall = f();
var o = { m() { return this; }, n: function () { return this; } };
var method = o.m() === o;
var fnProp = o.n() === o;
var arrow = (function () { return (() => this)(); })();
`)
	assert.True(t, h.env.Get(`top`).SameAs(h.window))
	assert.True(t, h.env.Get(`viaCall`).SameAs(h.window))
	assert.True(t, h.env.Get(`method`).ToBoolean())
	assert.True(t, h.env.Get(`fnProp`).ToBoolean())
	assert.True(t, h.env.Get(`arrow`).SameAs(h.window))
}

func TestRewrite_watchdog(t *testing.T) {
	h := run(t, `
var n = 0;
while (n < 3) n++;
do { n++; } while (n < 5);
function draw() { for (var i = 0; i < 2; i++) {} }
function other() {}
`)
	assert.Equal(t, 1, h.resets)
	assert.Equal(t, 5, h.checks)
	assert.Contains(t, h.result.Source, `while (__env__.n < 3) { __watchdog__.check(); __env__.n++; }`)
	assert.Equal(t, []string{`draw`}, h.result.EntryPoints)

	h.call(t, `draw`)
	assert.Equal(t, 2, h.resets)
	assert.Equal(t, 7, h.checks)

	h.call(t, `other`)
	assert.Equal(t, 2, h.resets)
	assert.Equal(t, 8, h.checks)
}

func TestRewrite_entryPoints(t *testing.T) {
	result, err := Rewrite(`
var mousePressed = function () { return 1; };
keyPressed = () => 2;
var draw2 = function () {};
`)
	require.NoError(t, err)
	assert.Equal(t, []string{`keyPressed`, `mousePressed`}, result.EntryPoints)
	assert.Contains(t, result.Source, `function () {__watchdog__.reset(); return 1; }`)
	assert.Contains(t, result.Source, `() => (__watchdog__.reset(), 2)`)
	assert.Contains(t, result.Source, `function () {__watchdog__.check();}`)

	result, err = Rewrite(`function tick() {}`, WithEntryPoints(`tick`))
	require.NoError(t, err)
	assert.Equal(t, []string{`tick`}, result.EntryPoints)
	assert.Contains(t, result.Source, `function tick() {__watchdog__.reset();}`)
}

func TestRewrite_functionSource(t *testing.T) {
	h := run(t, `
function f(a) { return a + 1; }
var g = function named() { return 2; };
var arrow = (a) => (a + 1);
var block = (a) => { return a; };
function outer() { function inner() { return 1; } return inner.toString(); }
class Thing { size() { return 1; } }
var s = [f.toString(), g.toString(), arrow.toString(), block.toString(), outer(), Thing.toString()];
var doubled = [1, 2].map(x => (x * 2));
`)
	var got []string
	require.NoError(t, h.vm.ExportTo(h.env.Get(`s`), &got))
	assert.Equal(t, []string{
		`function f(a) { return a + 1; }`,
		`function named() { return 2; }`,
		`(a) => (a + 1)`,
		`(a) => { return a; }`,
		`function inner() { return 1; }`,
		`class Thing { size() { return 1; } }`,
	}, got)

	var doubled []int64
	require.NoError(t, h.vm.ExportTo(h.env.Get(`doubled`), &doubled))
	assert.Equal(t, []int64{2, 4}, doubled)
}

func TestRewrite_class(t *testing.T) {
	h := run(t, `
class Ball {
	constructor(x) { this.x = x; }
	move(dx) { this.x += dx; return this.x; }
	static make() { return new Ball(1); }
}
var b = Ball.make();
var moved = b.move(2);
`)
	assert.Equal(t, []string{`Ball`, `b`, `moved`}, h.result.Globals)
	assert.Equal(t, int64(3), h.env.Get(`moved`).ToInteger())
	_, ok := goja.AssertConstructor(h.env.Get(`Ball`))
	assert.True(t, ok)
}

func TestRewrite_forIn(t *testing.T) {
	h := run(t, `
var o = {a: 1, b: 2};
var keys = [];
for (var k in o) keys.push(k);
let sum = 0;
for (const v of [1, 2, 3]) { sum += v; }
`)
	var keys []string
	require.NoError(t, h.vm.ExportTo(h.env.Get(`keys`), &keys))
	assert.Equal(t, []string{`a`, `b`}, keys)
	assert.Equal(t, `b`, h.env.Get(`k`).String())
	assert.Equal(t, int64(6), h.env.Get(`sum`).ToInteger())
	assert.Equal(t, 5, h.checks)
	assert.Contains(t, h.result.Source, `for (__env__.k in __env__.o) { __watchdog__.check(); __env__.keys.push(__env__.k); }`)
}

func TestRewrite_localScopes(t *testing.T) {
	h := run(t, `
var msg;
try { throw new Error('boom'); } catch (e) { msg = e.message; }
function f() {
	let total = 0;
	for (let i = 0; i < 3; i++) {
		const step = i;
		total += step;
	}
	switch (total) {
	case 3:
		let label = 'three';
		return label;
	}
	return 'other';
}
var r = f();
var named = (function fact(n) { return n <= 1 ? 1 : n * fact(n - 1); })(4);
`)
	assert.Equal(t, `boom`, h.env.Get(`msg`).String())
	assert.Equal(t, `three`, h.env.Get(`r`).String())
	assert.Equal(t, int64(24), h.env.Get(`named`).ToInteger())
	assert.Equal(t, []string{`f`, `msg`, `named`, `r`}, h.result.Globals)
	assert.Empty(t, h.result.Implied)
}

func TestResult_Text(t *testing.T) {
	x := &Result{Original: `abcdef`}
	assert.Equal(t, `bcd`, x.Text(1, 4))
	assert.Equal(t, `abcdef`, x.Text(-5, 100))
	assert.Equal(t, ``, x.Text(4, 1))
}

func TestRewrite_unresolved(t *testing.T) {
	result, err := Rewrite("var a = 1;\nfunction f(b) {\n  return a + b + missing;\n}\nlater = other;\n",
		WithResolver(NewResolver([]string{`rect`}, []string{`Math`})))
	require.NoError(t, err)
	assert.Equal(t, []Reference{
		{Name: `missing`, Offset: 44, Line: 3, Column: 18},
		{Name: `other`, Offset: 63, Line: 5, Column: 9},
	}, result.Unresolved)
}

package livecode

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-livecode/rewrite"
)

// Invocable is a compiled script, ready to be run against an environment.
type Invocable struct {
	vm     *goja.Runtime
	fn     goja.Callable
	result *rewrite.Result
	// Source is the unit that was compiled.
	Source string
}

// unitSource wraps the rewritten program in a function taking the five
// injected parameters. The prefix is kept on the first line, so that line
// numbers match the original script.
func unitSource(result *rewrite.Result) string {
	names := result.Names
	var b strings.Builder
	b.Grow(len(result.Source) + 128)
	b.WriteString(`(function (`)
	b.WriteString(strings.Join(names.Params(), `, `))
	b.WriteString(`) { var `)
	b.WriteString(names.Temp)
	b.WriteString(`; `)
	b.WriteString(result.Source)
	b.WriteString("\n})")
	return b.String()
}

// Compile compiles the output of the scope rewrite into an [Invocable]. The
// rewrite only produces valid programs, so any failure is returned as a
// [*CompileError].
func Compile(vm *goja.Runtime, result *rewrite.Result) (*Invocable, error) {
	if vm == nil {
		return nil, ErrNilRuntime
	}
	src := unitSource(result)
	program, err := goja.Compile(`livecode.js`, src, false)
	if err != nil {
		return nil, &CompileError{Err: err, Source: src}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, &CompileError{Err: err, Source: src}
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, &CompileError{Err: errNotAFunction, Source: src}
	}
	return &Invocable{vm: vm, fn: fn, result: result, Source: src}, nil
}

// Call runs the program. Exactly five arguments are passed, in the order of
// [rewrite.Names.Params]: the environment, the custom window, the host
// library, the source lookup and the watchdog handle.
//
// An exception is returned as a [*RuntimeError]. The runtime's interrupt
// flag is always cleared before returning.
func (x *Invocable) Call(env, window, library, source, watchdog goja.Value) error {
	_, err := x.fn(goja.Undefined(), env, window, library, source, watchdog)
	x.vm.ClearInterrupt()
	if err != nil {
		return newRuntimeError(err)
	}
	return nil
}

// Result returns the rewrite the program was compiled from.
func (x *Invocable) Result() *rewrite.Result { return x.result }

// SourceFunc returns the source lookup passed to the program: a function of
// two byte offsets returning that range of the original script.
func (x *Invocable) SourceFunc() goja.Value {
	return x.vm.ToValue(func(start, end int) string {
		return x.result.Text(start, end)
	})
}

package livecode

import (
	"errors"

	"github.com/joeycumines/go-livecode/internal/jsutil"
	"github.com/joeycumines/go-livecode/lint"
)

// Standard errors.
var (
	// ErrNilRuntime is returned when a nil goja runtime is supplied.
	ErrNilRuntime = errors.New("livecode: nil runtime")

	// ErrCycleInProgress is returned when Run is called from within a running
	// cycle, e.g. by a script calling back into the host.
	ErrCycleInProgress = errors.New("livecode: cycle already in progress")

	// ErrCompile is matched by every [*CompileError], via [errors.Is].
	ErrCompile = errors.New("livecode: compile error")

	// ErrRuntime is matched by every [*RuntimeError], via [errors.Is].
	ErrRuntime = errors.New("livecode: runtime error")

	// ErrLint is matched by every [*LintError], via [errors.Is].
	ErrLint = errors.New("livecode: lint failed")
)

// CompileError indicates the rewritten program was rejected by the compiler.
// It is an internal defect of the rewrite, never a problem with the script.
type CompileError struct {
	Err error
	// Source is the complete unit that failed to compile.
	Source string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return "livecode: compile rewritten source: " + e.Err.Error()
}

// Unwrap returns the compiler error.
func (e *CompileError) Unwrap() error { return e.Err }

// Is matches [ErrCompile].
func (e *CompileError) Is(target error) bool { return target == ErrCompile }

// RuntimeError is an exception thrown by a script, either while running the
// program or from a callback. A watchdog abort is a RuntimeError that also
// matches watchdog.ErrInfiniteLoop.
type RuntimeError struct {
	// Err is the error returned by goja, usually a [*goja.Exception] or a
	// [*goja.InterruptedError].
	Err error
	// Message is the thrown value as a string.
	Message string
	// Line and Column locate the innermost frame, in the rewritten source,
	// which preserves the line structure of the original.
	Line   int
	Column int
}

func newRuntimeError(err error) *RuntimeError {
	e := &RuntimeError{Err: err, Message: jsutil.Message(err)}
	e.Line, e.Column, _ = jsutil.Position(err)
	return e
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return "livecode: uncaught exception: " + e.Message
}

// Unwrap returns the goja error.
func (e *RuntimeError) Unwrap() error { return e.Err }

// Is matches [ErrRuntime].
func (e *RuntimeError) Is(target error) bool { return target == ErrRuntime }

// LintError carries a non-empty linter result.
type LintError struct {
	Messages []lint.Message
}

// Error implements the error interface.
func (e *LintError) Error() string {
	if len(e.Messages) == 0 {
		return "livecode: lint failed"
	}
	return "livecode: lint failed: " + e.Messages[0].String()
}

// Is matches [ErrLint].
func (e *LintError) Is(target error) bool { return target == ErrLint }

var errNotAFunction = errors.New("unit did not evaluate to a function")

package livecode

import (
	"github.com/joeycumines/go-livecode/lint"
)

// Delegate receives the outcome of every cycle run via
// [Engine.HandleUpdate]. Exactly one method is called per cycle.
type Delegate interface {
	DisplayLint(messages []lint.Message)
	DisplayException(err error)
	SuccessfulRun(ctx *Context)
}

// NopDelegate ignores everything.
type NopDelegate struct{}

var _ Delegate = NopDelegate{}

// DisplayLint implements [Delegate].
func (NopDelegate) DisplayLint([]lint.Message) {}

// DisplayException implements [Delegate].
func (NopDelegate) DisplayException(error) {}

// SuccessfulRun implements [Delegate].
func (NopDelegate) SuccessfulRun(*Context) {}

// DelegateFuncs adapts functions to [Delegate]. Nil fields are ignored.
type DelegateFuncs struct {
	Lint      func(messages []lint.Message)
	Exception func(err error)
	Success   func(ctx *Context)
}

var _ Delegate = DelegateFuncs{}

// DisplayLint implements [Delegate].
func (x DelegateFuncs) DisplayLint(messages []lint.Message) {
	if x.Lint != nil {
		x.Lint(messages)
	}
}

// DisplayException implements [Delegate].
func (x DelegateFuncs) DisplayException(err error) {
	if x.Exception != nil {
		x.Exception(err)
	}
}

// SuccessfulRun implements [Delegate].
func (x DelegateFuncs) SuccessfulRun(ctx *Context) {
	if x.Success != nil {
		x.Success(ctx)
	}
}

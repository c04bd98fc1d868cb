// Package lint defines the linter consulted before each run, along with
// implementations built on the goja parser and the scope rewrite.
package lint

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dop251/goja/parser"
	"github.com/joeycumines/go-livecode/rewrite"
)

// Message is a single linter finding. Line and Column are 1-based.
type Message struct {
	Message string
	Line    int
	Column  int
}

// String returns "line:column: message".
func (x Message) String() string {
	return fmt.Sprintf("%d:%d: %s", x.Line, x.Column, x.Message)
}

// Linter checks a script before it is run. The globals are the names the
// host declares for the script, i.e. library and window members. An empty
// result means the script may run.
type Linter interface {
	Lint(globals []string, source string) []Message
}

// Func implements [Linter].
type Func func(globals []string, source string) []Message

// Lint implements [Linter].
func (f Func) Lint(globals []string, source string) []Message { return f(globals, source) }

// Chain runs the linters in order, stopping at the first that reports
// anything.
func Chain(linters ...Linter) Linter {
	return Func(func(globals []string, source string) []Message {
		for _, l := range linters {
			if l == nil {
				continue
			}
			if messages := l.Lint(globals, source); len(messages) != 0 {
				return messages
			}
		}
		return nil
	})
}

// Syntax reports every error of the goja parser.
var Syntax Linter = Func(func(_ []string, source string) []Message {
	if _, err := parser.ParseFile(nil, ``, source, 0); err != nil {
		return parseMessages(err)
	}
	return nil
})

// Builtins are the standard ECMAScript globals scripts may use without the
// host declaring them. Function and eval are absent.
var Builtins = []string{
	`Array`, `ArrayBuffer`, `BigInt`, `Boolean`, `DataView`, `Date`,
	`decodeURI`, `decodeURIComponent`, `encodeURI`, `encodeURIComponent`,
	`Error`, `EvalError`, `Float32Array`, `Float64Array`, `Int8Array`,
	`Int16Array`, `Int32Array`, `isFinite`, `isNaN`, `JSON`, `Map`, `Math`,
	`Number`, `Object`, `parseFloat`, `parseInt`, `Promise`, `Proxy`,
	`RangeError`, `ReferenceError`, `Reflect`, `RegExp`, `Set`, `String`,
	`Symbol`, `SyntaxError`, `TypeError`, `Uint8Array`, `Uint8ClampedArray`,
	`Uint16Array`, `Uint32Array`, `URIError`, `WeakMap`, `WeakSet`,
}

// Undefined reports references to names that neither the script, the
// globals, nor [Builtins] declare. Assignments to undeclared names are
// allowed, they create globals.
var Undefined Linter = Func(func(globals []string, source string) []Message {
	known := slices.Concat(Builtins, globals)
	result, err := rewrite.Rewrite(source, rewrite.WithResolver(rewrite.NewResolver(nil, known)))
	if err != nil {
		var parseErr *rewrite.ParseError
		if errors.As(err, &parseErr) {
			return parseMessages(parseErr.Err)
		}
		return []Message{{Message: err.Error(), Line: 1, Column: 1}}
	}
	var out []Message
	for _, ref := range result.Unresolved {
		out = append(out, Message{
			Message: fmt.Sprintf("'%s' is not defined.", ref.Name),
			Line:    ref.Line,
			Column:  ref.Column,
		})
	}
	return out
})

// Default checks syntax, then undefined references.
var Default = Chain(Syntax, Undefined)

func parseMessages(err error) []Message {
	var list parser.ErrorList
	if !errors.As(err, &list) {
		return []Message{{Message: err.Error(), Line: 1, Column: 1}}
	}
	out := make([]Message, 0, len(list))
	for _, e := range list {
		out = append(out, Message{
			Message: e.Message,
			Line:    e.Position.Line,
			Column:  e.Position.Column,
		})
	}
	return out
}

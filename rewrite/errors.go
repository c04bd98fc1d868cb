package rewrite

import (
	"errors"

	"github.com/dop251/goja/parser"
)

// ErrParse is matched by every [*ParseError], via [errors.Is].
var ErrParse = errors.New("rewrite: parse error")

// ParseError indicates the source is not syntactically valid. The position is
// that of the first error reported by the parser.
type ParseError struct {
	// Err is the error returned by the parser, usually a [parser.ErrorList].
	Err     error
	Message string
	Line    int
	Column  int
}

func newParseError(err error) *ParseError {
	e := &ParseError{Err: err, Message: err.Error()}
	var list parser.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		e.Message = list[0].Message
		e.Line = list[0].Position.Line
		e.Column = list[0].Position.Column
	}
	return e
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return "rewrite: " + e.Err.Error()
}

// Unwrap returns the parser error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches [ErrParse].
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Package jsutil contains small helpers for working with goja errors.
package jsutil

import (
	"errors"

	"github.com/dop251/goja"
)

// Catch runs fn, converting a JS exception thrown by the goja object API
// (Get, Keys, String, Export, ...) into an error. It must not be called from
// within a native function invoked by a running script.
func Catch(vm *goja.Runtime, fn func()) error {
	if ex := vm.Try(fn); ex != nil {
		return ex
	}
	return nil
}

// Thrown returns the script value carried by err, if err (or something it
// wraps) is a script exception.
func Thrown(err error) (goja.Value, bool) {
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		return ex.Value(), true
	}
	return nil, false
}

// Message returns a single line describing err. For script exceptions this
// is the thrown value's string form, without the stack.
func Message(err error) string {
	if err == nil {
		return ``
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause := interrupted.Unwrap(); cause != nil {
			return cause.Error()
		}
	}
	if v, ok := Thrown(err); ok {
		if s, ok := safeString(v); ok {
			return s
		}
	}
	return err.Error()
}

// Position returns the source position of the innermost stack frame of a
// script exception.
func Position(err error) (line, column int, ok bool) {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return 0, 0, false
	}
	for _, frame := range ex.Stack() {
		pos := frame.Position()
		if pos.Line > 0 {
			return pos.Line, pos.Column, true
		}
	}
	return 0, 0, false
}

func safeString(v goja.Value) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = ``, false
		}
	}()
	return v.String(), true
}

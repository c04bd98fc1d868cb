package jsutil

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatch(t *testing.T) {
	vm := goja.New()
	obj, err := vm.RunString(`({get boom() { throw new Error("boom"); }})`)
	require.NoError(t, err)

	err = Catch(vm, func() { obj.ToObject(vm).Get(`boom`) })
	require.Error(t, err)
	assert.Equal(t, `Error: boom`, Message(err))

	assert.NoError(t, Catch(vm, func() {}))
}

func TestThrown(t *testing.T) {
	vm := goja.New()
	_, err := vm.RunString("throw 42")
	v, ok := Thrown(err)
	require.True(t, ok)
	assert.Equal(t, int64(42), v.Export())

	_, ok = Thrown(errors.New(`plain`))
	assert.False(t, ok)
}

func TestMessage_goError(t *testing.T) {
	sentinel := errors.New(`stop`)
	vm := goja.New()
	require.NoError(t, vm.Set(`fail`, func(goja.FunctionCall) goja.Value {
		panic(vm.NewGoError(sentinel))
	}))
	_, err := vm.RunString(`fail()`)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, Message(err), `stop`)
	assert.Empty(t, Message(nil))
}

func TestPosition(t *testing.T) {
	vm := goja.New()
	_, err := vm.RunString("var a = 1;\n\nnull.x;")
	require.Error(t, err)
	line, _, ok := Position(err)
	require.True(t, ok)
	assert.Equal(t, 3, line)

	_, _, ok = Position(errors.New(`plain`))
	assert.False(t, ok)
}

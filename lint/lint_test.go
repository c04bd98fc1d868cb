package lint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntax(t *testing.T) {
	assert.Empty(t, Syntax.Lint(nil, `var x = 1;`))

	messages := Syntax.Lint(nil, "var x = 1;\nvar = 2;")
	require.NotEmpty(t, messages)
	assert.Equal(t, 2, messages[0].Line)
	assert.NotEmpty(t, messages[0].Message)
}

func TestUndefined(t *testing.T) {
	assert.Empty(t, Undefined.Lint([]string{`rect`, `Math`}, `var x = Math.abs(-1); rect(x, x, 10, 10); y = x;`))

	messages := Undefined.Lint([]string{`rect`}, "rect(0, 0, 1, 1);\nellipse(1, 2, 3, 4);")
	assert.Equal(t, []Message{{Message: `'ellipse' is not defined.`, Line: 2, Column: 1}}, messages)
}

func TestUndefined_forbidsHostGlobals(t *testing.T) {
	messages := Undefined.Lint(nil, `var f = Function('return 1');`)
	require.Len(t, messages, 1)
	assert.Equal(t, `'Function' is not defined.`, messages[0].Message)
	assert.Equal(t, `1:9: 'Function' is not defined.`, messages[0].String())
}

func TestChain(t *testing.T) {
	var calls int
	counting := Func(func([]string, string) []Message {
		calls++
		return nil
	})

	messages := Chain(Syntax, counting).Lint(nil, `var = ;`)
	assert.NotEmpty(t, messages)
	assert.Zero(t, calls)

	messages = Default.Lint(nil, `var a = b;`)
	assert.Equal(t, []Message{{Message: `'b' is not defined.`, Line: 1, Column: 9}}, messages)

	assert.Empty(t, Chain(nil, counting).Lint(nil, `1`))
	assert.Equal(t, 1, calls)
}

func TestUndefined_builtins(t *testing.T) {
	assert.Empty(t, Undefined.Lint(nil, `var m = new Map(); throw new Error(String(Math.PI));`))
	assert.Len(t, Undefined.Lint(nil, `eval('1');`), 1)
}

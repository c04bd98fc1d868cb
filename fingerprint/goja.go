package fingerprint

import (
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

const (
	// MaxDepth bounds conversion of nested values.
	MaxDepth = 64
	// MaxElements bounds the elements converted per array. Longer arrays
	// are converted from their present elements, see [KindSparse].
	MaxElements = 1 << 16
)

// FromGoja converts a script value to the tagged model. Own enumerable
// properties are visited, prototypes and constructors are ignored, and
// functions are represented by their (recovered) source text.
//
// Reading v may run script code (getters, toString), and a script exception
// is raised as a panic, so outside of a native function FromGoja must be
// called via [goja.Runtime.Try].
func FromGoja(v goja.Value) Value {
	c := converter{}
	return c.convert(v)
}

// OfGoja is shorthand for Of(FromGoja(v)).
func OfGoja(v goja.Value) Fingerprint {
	return Of(FromGoja(v))
}

type converter struct {
	path []*goja.Object
}

func (c *converter) convert(v goja.Value) Value {
	if v == nil || goja.IsUndefined(v) {
		return Undefined()
	}
	if goja.IsNull(v) {
		return Null()
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return scalar(v)
	}

	for i := len(c.path) - 1; i >= 0; i-- {
		if c.path[i] == obj {
			return Value{Kind: KindCycle, Ref: len(c.path) - i}
		}
	}
	if len(c.path) >= MaxDepth {
		return Value{Kind: KindTruncated}
	}

	if _, ok := goja.AssertFunction(obj); ok {
		return Function(obj.String())
	}

	switch obj.ClassName() {
	case `Date`:
		if t, ok := obj.Export().(time.Time); ok {
			return String(t.UTC().Format(time.RFC3339Nano))
		}
		return String(obj.String())
	case `RegExp`, `String`, `Number`, `Boolean`:
		return String(obj.String())
	}

	c.path = append(c.path, obj)
	defer func() { c.path = c.path[:len(c.path)-1] }()

	if obj.ClassName() == `Array` {
		n := obj.Get(`length`).ToInteger()
		if n > MaxElements {
			return c.sparse(obj, n)
		}
		elems := make([]Value, n)
		for i := range elems {
			elems[i] = c.convert(obj.Get(strconv.Itoa(i)))
		}
		return Array(elems...)
	}

	keys := obj.Keys()
	sort.Strings(keys)
	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, Field{Key: key, Value: c.convert(obj.Get(key))})
	}
	return Record(fields...)
}

// sparse converts a long array from its own enumerable keys, which for a
// sparse array are only the elements actually present.
func (c *converter) sparse(obj *goja.Object, n int64) Value {
	v := Value{Kind: KindSparse, Number: float64(n)}
	for _, key := range obj.Keys() {
		i, err := strconv.ParseInt(key, 10, 64)
		if err != nil || i < 0 || i >= n {
			continue
		}
		if len(v.Fields) == MaxElements {
			v.Bool = true
			break
		}
		v.Fields = append(v.Fields, Field{Key: key, Value: c.convert(obj.Get(key))})
	}
	return v
}

func scalar(v goja.Value) Value {
	switch x := v.Export().(type) {
	case bool:
		return Bool(x)
	case int64:
		return Number(float64(x))
	case float64:
		return Number(x)
	case string:
		return String(x)
	case *big.Int:
		return String(x.String() + `n`)
	default:
		return String(v.String())
	}
}

package fingerprint

import (
	"math"
	"sort"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// Kind tags a [Value].
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	// KindFunction is a callable, represented by its source text.
	KindFunction
	KindArray
	KindRecord
	// KindCycle is a back-reference to an enclosing array or record.
	KindCycle
	// KindTruncated replaces values nested deeper than the conversion limit.
	KindTruncated
	// KindSparse is an array too long to list densely: its length, and its
	// present elements keyed by index. Bool is set if elements were dropped.
	KindSparse
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	case KindCycle:
		return "cycle"
	case KindTruncated:
		return "truncated"
	case KindSparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// Value is the tagged model hashed by [Of].
type Value struct {
	Text   string
	Elems  []Value
	Fields []Field
	Number float64
	// Ref is the number of levels up a KindCycle refers to.
	Ref  int
	Kind Kind
	Bool bool
}

// Field is a single record entry.
type Field struct {
	Key   string
	Value Value
}

// Undefined returns a KindUndefined value.
func Undefined() Value { return Value{Kind: KindUndefined} }

// Null returns a KindNull value.
func Null() Value { return Value{Kind: KindNull} }

// Bool returns a KindBool value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Number returns a KindNumber value.
func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// String returns a KindString value.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Function returns a KindFunction value, identified by its source.
func Function(source string) Value { return Value{Kind: KindFunction, Text: source} }

// Array returns a KindArray value.
func Array(elems ...Value) Value { return Value{Kind: KindArray, Elems: elems} }

// Record returns a KindRecord value. Field order is irrelevant.
func Record(fields ...Field) Value { return Value{Kind: KindRecord, Fields: fields} }

// AppendCanonical appends the canonical serialisation of v to dst.
func (v Value) AppendCanonical(dst []byte) []byte {
	switch v.Kind {
	case KindUndefined:
		return append(dst, 'u')
	case KindNull:
		return append(dst, `null`...)
	case KindBool:
		if v.Bool {
			return append(dst, `true`...)
		}
		return append(dst, `false`...)
	case KindNumber:
		return appendNumber(dst, v.Number)
	case KindString:
		return jsonenc.AppendString(dst, v.Text)
	case KindFunction:
		dst = append(dst, 'f')
		return jsonenc.AppendString(dst, v.Text)
	case KindArray:
		dst = append(dst, '[')
		for i, elem := range v.Elems {
			if i != 0 {
				dst = append(dst, ',')
			}
			dst = elem.AppendCanonical(dst)
		}
		return append(dst, ']')
	case KindRecord:
		fields := v.Fields
		if !sort.SliceIsSorted(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key }) {
			fields = append([]Field(nil), fields...)
			sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
		}
		dst = append(dst, '{')
		for i, field := range fields {
			if i != 0 {
				dst = append(dst, ',')
			}
			dst = jsonenc.AppendString(dst, field.Key)
			dst = append(dst, ':')
			dst = field.Value.AppendCanonical(dst)
		}
		return append(dst, '}')
	case KindCycle:
		dst = append(dst, '^')
		return jsonenc.AppendFloat64(dst, float64(v.Ref))
	case KindTruncated:
		return append(dst, '~')
	case KindSparse:
		dst = append(dst, 's')
		dst = appendNumber(dst, v.Number)
		dst = Record(v.Fields...).AppendCanonical(dst)
		if v.Bool {
			dst = append(dst, '~')
		}
		return dst
	default:
		return append(dst, '?')
	}
}

// appendNumber avoids jsonenc's quoted NaN/Infinity, which would collide
// with the equivalent strings.
func appendNumber(dst []byte, n float64) []byte {
	switch {
	case math.IsNaN(n):
		return append(dst, `NaN`...)
	case math.IsInf(n, 1):
		return append(dst, `Infinity`...)
	case math.IsInf(n, -1):
		return append(dst, `-Infinity`...)
	case n == 0:
		// -0 and 0 are the same script value for our purposes
		return append(dst, '0')
	}
	return jsonenc.AppendFloat64(dst, n)
}

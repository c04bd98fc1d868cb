package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

type tag uint8

const (
	tagNone tag = iota
	tagContent
	tagFunction
	tagSentinel
)

// Fingerprint identifies the content of a value. The zero value means "no
// fingerprint", and never equals a computed one. Fingerprints are comparable.
type Fingerprint struct {
	sum  [sha256.Size]byte
	text string
	tag  tag
}

// Of returns the content fingerprint of v.
func Of(v Value) Fingerprint {
	return Fingerprint{
		sum: sha256.Sum256(v.AppendCanonical(nil)),
		tag: tagContent,
	}
}

// FunctionMarker returns the fingerprint recorded for callables, which are
// tracked by identity rather than content.
func FunctionMarker() Fingerprint {
	return Fingerprint{tag: tagFunction}
}

// Sentinel returns a fixed fingerprint for values that are intentionally
// shared rather than re-created, e.g. the custom window object.
func Sentinel(label string) Fingerprint {
	return Fingerprint{tag: tagSentinel, text: label}
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool { return f.tag == tagNone }

// IsFunction reports whether f is a [FunctionMarker].
func (f Fingerprint) IsFunction() bool { return f.tag == tagFunction }

// String returns a short, human-readable representation.
func (f Fingerprint) String() string {
	switch f.tag {
	case tagContent:
		return hex.EncodeToString(f.sum[:8])
	case tagFunction:
		return "function"
	case tagSentinel:
		return "sentinel:" + f.text
	default:
		return "none"
	}
}

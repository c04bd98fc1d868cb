package rewrite

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// edit replaces src[from:to] with text. Insertions have from == to.
type edit struct {
	text string
	from int
	to   int
}

// applyEdits renders src with edits applied. At the same offset, insertions
// precede replacements, otherwise edits are applied in the order they were
// recorded. Edits overlapping an already applied one are dropped.
func applyEdits(src string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].from != edits[j].from {
			return edits[i].from < edits[j].from
		}
		return edits[i].from == edits[i].to && edits[j].from != edits[j].to
	})
	var b strings.Builder
	b.Grow(len(src) + len(edits)*16)
	cursor := 0
	for _, e := range edits {
		if e.from < cursor {
			continue
		}
		b.WriteString(src[cursor:e.from])
		b.WriteString(e.text)
		cursor = e.to
	}
	b.WriteString(src[cursor:])
	return b.String()
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// skipTrivia returns the offset of the first byte at or after pos that is not
// whitespace or part of a comment.
func skipTrivia(src string, pos int) int {
	for pos < len(src) {
		switch {
		case isSpace(src[pos]):
			pos++
		case strings.HasPrefix(src[pos:], `//`):
			if i := strings.IndexByte(src[pos:], '\n'); i >= 0 {
				pos += i + 1
			} else {
				pos = len(src)
			}
		case strings.HasPrefix(src[pos:], `/*`):
			if i := strings.Index(src[pos+2:], `*/`); i >= 0 {
				pos += i + 4
			} else {
				pos = len(src)
			}
		default:
			return pos
		}
	}
	return pos
}

// identifierEnd returns the offset just past the identifier starting at pos.
func identifierEnd(src string, pos int) int {
	for pos < len(src) {
		c := src[pos]
		switch {
		case c == '$' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9':
			pos++
		case c == '\\':
			// \uXXXX or \u{...}
			end := pos + 2
			if end < len(src) && src[end] == '{' {
				if i := strings.IndexByte(src[end:], '}'); i >= 0 {
					end += i + 1
				}
			} else {
				end += 4
			}
			pos = min(end, len(src))
		case c >= utf8.RuneSelf:
			r, size := utf8.DecodeRuneInString(src[pos:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r) &&
				!unicode.Is(unicode.Pc, r) && r != '\u200c' && r != '\u200d' {
				return pos
			}
			pos += size
		default:
			return pos
		}
	}
	return pos
}

package plan

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// LockMode is the row lock requested by a query.
type LockMode int

// Lock modes.
const (
	LockNone LockMode = iota
	LockRead
	LockWrite
)

// String returns the lock mode name.
func (m LockMode) String() string {
	switch m {
	case LockRead:
		return "read"
	case LockWrite:
		return "write"
	default:
		return "none"
	}
}

// ParseLockMode parses "none", "read" or "write".
func ParseLockMode(s string) (LockMode, bool) {
	switch strings.ToLower(s) {
	case "", "none":
		return LockNone, true
	case "read":
		return LockRead, true
	case "write":
		return LockWrite, true
	}
	return LockNone, false
}

// Key identifies a compiled select plan. Keys are comparable and equal
// keys address the same cache entry.
type Key struct {
	// Query is the normalized query text.
	Query string
	// ResultShape names the form the rows are returned in.
	ResultShape string
	LockMode    LockMode
	ReadOnly    bool

	raw string
}

// NewKey returns the key of a query text with the given execution options.
func NewKey(query, shape string, lock LockMode, readOnly bool) Key {
	return Key{
		Query:       Normalize(query),
		ResultShape: shape,
		LockMode:    lock,
		ReadOnly:    readOnly,
		raw:         query,
	}
}

// QueryString returns the text the key was created from, or the normalized
// text for keys returned by PrepareForStore.
func (k Key) QueryString() string {
	if k.raw != "" {
		return k.raw
	}
	return k.Query
}

// PrepareForStore returns the form of the key kept in the cache, without
// the caller supplied text.
func (k Key) PrepareForStore() Key {
	k.raw = ""
	return k
}

// Normalize returns the canonical form of a query text. Outside quoted
// text and comments, the text is put in Unicode NFC and runs of white space
// are collapsed into one space. Quoted literals, quoted identifiers, dollar
// quoted strings and comments are kept byte for byte, and a line comment
// keeps the newline ending it.
func Normalize(text string) string {
	var (
		b     strings.Builder
		space bool
		// skip drops white space at the start of the text and after a
		// line comment.
		skip = true
	)
	b.Grow(len(text))
	plain := func(seg string) {
		for _, r := range norm.NFC.String(seg) {
			if unicode.IsSpace(r) {
				space = !skip
				continue
			}
			if space {
				b.WriteByte(' ')
				space = false
			}
			skip = false
			b.WriteRune(r)
		}
	}
	verbatim := func(seg string) {
		if space {
			b.WriteByte(' ')
			space = false
		}
		skip = false
		b.WriteString(seg)
	}
	start := 0
	for i := 0; i < len(text); {
		end := opaqueEnd(text, i)
		if end == i {
			i++
			continue
		}
		plain(text[start:i])
		seg := text[i:end]
		verbatim(seg)
		skip = strings.HasPrefix(seg, "--") && strings.HasSuffix(seg, "\n")
		i, start = end, end
	}
	plain(text[start:])
	return b.String()
}

// opaqueEnd returns the end of the quoted text or comment starting at i,
// or i if none starts there. Unterminated ones run to the end of text.
func opaqueEnd(text string, i int) int {
	rest := text[i:]
	switch c := text[i]; {
	case c == '\'' || c == '"' || c == '`':
		if j := strings.IndexByte(rest[1:], c); j >= 0 {
			return i + j + 2
		}
		return len(text)
	case strings.HasPrefix(rest, "--"):
		if j := strings.IndexByte(rest, '\n'); j >= 0 {
			return i + j + 1
		}
		return len(text)
	case strings.HasPrefix(rest, "/*"):
		if j := strings.Index(rest[2:], "*/"); j >= 0 {
			return i + j + 4
		}
		return len(text)
	case c == '$':
		tag := dollarTag(rest)
		if tag == "" {
			return i
		}
		if j := strings.Index(rest[len(tag):], tag); j >= 0 {
			return i + len(tag) + j + len(tag)
		}
	}
	return i
}

// dollarTag returns the $tag$ opening a dollar quoted string at the start
// of s, or "". Positional markers like $1 are not tags.
func dollarTag(s string) string {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1]
		case isNameStart(c), j > 1 && c >= '0' && c <= '9':
		default:
			return ""
		}
	}
	return ""
}

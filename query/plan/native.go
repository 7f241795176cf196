package plan

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// ErrListParameter is returned when a collection is bound to a parameter of
// a cached plan. Plans have a fixed number of placeholders.
var ErrListParameter = errors.New("plan: collection values are not supported for this parameter")

// ParameterInterpretation is a native SQL text with its parameters
// rewritten to the placeholders of the dialect.
type ParameterInterpretation struct {
	// SQL is the rewritten statement.
	SQL string
	// Occurrences lists the parameter of every placeholder, in order. A
	// parameter used twice appears twice.
	Occurrences []*querylanguage.Param
	// Metadata describes the distinct parameters.
	Metadata *tree.ParameterMetadata
}

// String returns the rewritten statement and its parameter count.
func (p *ParameterInterpretation) String() string {
	return fmt.Sprintf("%s (%d parameters)", p.SQL, p.Metadata.Len())
}

// Args returns the arguments of one execution.
func (p *ParameterInterpretation) Args(x *tree.ParameterXref) ([]any, error) {
	args := make([]any, len(p.Occurrences))
	for i, param := range p.Occurrences {
		v, err := x.Value(param)
		if err != nil {
			return nil, err
		}
		if isList(v) {
			return nil, fmt.Errorf("%w %s", ErrListParameter, param)
		}
		args[i] = v
	}
	return args, nil
}

// InterpretNative scans a native SQL statement for :name, ?N and ? parameters
// and rewrites them for the dialect. Bare ? markers are numbered from 1 in
// order of appearance. Parameters inside literals, quoted identifiers,
// comments and Postgres dollar quoted strings are left untouched, and so
// are Postgres :: casts.
func InterpretNative(dialectName, text string) (*ParameterInterpretation, error) {
	if !dialect.Valid(dialectName) {
		return nil, fmt.Errorf("plan: unknown dialect %q", dialectName)
	}
	l := &nativeLexer{src: text, dialect: dialectName, stateFn: nativeRawState}
	for l.stateFn != nil {
		l.stateFn = l.stateFn(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	var named, positional bool
	for _, p := range l.params {
		if p.Name != "" {
			named = true
		} else {
			positional = true
		}
	}
	if named && positional {
		return nil, fmt.Errorf("plan: native query mixes named and positional parameters")
	}
	return &ParameterInterpretation{
		SQL:         l.out.String(),
		Occurrences: l.params,
		Metadata:    tree.NewParameterMetadata(l.params),
	}, nil
}

type nativeLexer struct {
	src     string
	pos     int
	dialect string
	out     strings.Builder
	params  []*querylanguage.Param
	bare    int
	err     error
	stateFn nativeStateFn
}

type nativeStateFn func(*nativeLexer) nativeStateFn

func (l *nativeLexer) placeholder(p *querylanguage.Param) {
	l.params = append(l.params, p)
	if l.dialect == dialect.Postgres {
		l.out.WriteString("$" + strconv.Itoa(len(l.params)))
	} else {
		l.out.WriteByte('?')
	}
}

func nativeRawState(l *nativeLexer) nativeStateFn {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\'' || c == '"' || c == '`':
			l.out.WriteByte(c)
			l.pos++
			return quoteState(c)
		case c == '-' && strings.HasPrefix(l.src[l.pos:], "--"):
			return nativeLineCommentState
		case c == '/' && strings.HasPrefix(l.src[l.pos:], "/*"):
			return nativeBlockCommentState
		case c == '$' && l.dialect == dialect.Postgres && dollarTag(l.src[l.pos:]) != "":
			return dollarQuoteState(dollarTag(l.src[l.pos:]))
		case c == ':' && strings.HasPrefix(l.src[l.pos:], "::"):
			l.out.WriteString("::")
			l.pos += 2
		case c == ':' && l.pos+1 < len(l.src) && isNameStart(l.src[l.pos+1]):
			start := l.pos + 1
			l.pos = start
			for l.pos < len(l.src) && isNamePart(l.src[l.pos]) {
				l.pos++
			}
			l.placeholder(querylanguage.NamedParam(l.src[start:l.pos]))
		case c == '?':
			l.pos++
			start := l.pos
			for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
				l.pos++
			}
			if start == l.pos {
				l.bare++
				l.placeholder(querylanguage.PositionalParam(l.bare))
				continue
			}
			n, _ := strconv.Atoi(l.src[start:l.pos])
			if n < 1 {
				l.err = fmt.Errorf("plan: invalid parameter position ?%s", l.src[start:l.pos])
				return nil
			}
			l.placeholder(querylanguage.PositionalParam(n))
		default:
			l.out.WriteByte(c)
			l.pos++
		}
	}
	return nil
}

func quoteState(q byte) nativeStateFn {
	return func(l *nativeLexer) nativeStateFn {
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			l.out.WriteByte(c)
			l.pos++
			if c == q {
				return nativeRawState
			}
		}
		l.err = fmt.Errorf("plan: unterminated quoted text in native query")
		return nil
	}
}

func dollarQuoteState(tag string) nativeStateFn {
	return func(l *nativeLexer) nativeStateFn {
		end := strings.Index(l.src[l.pos+len(tag):], tag)
		if end < 0 {
			l.err = fmt.Errorf("plan: unterminated dollar quoted text in native query")
			return nil
		}
		end += l.pos + 2*len(tag)
		l.out.WriteString(l.src[l.pos:end])
		l.pos = end
		return nativeRawState
	}
}

func nativeLineCommentState(l *nativeLexer) nativeStateFn {
	end := strings.IndexByte(l.src[l.pos:], '\n')
	if end < 0 {
		end = len(l.src) - l.pos
	}
	l.out.WriteString(l.src[l.pos : l.pos+end])
	l.pos += end
	return nativeRawState
}

func nativeBlockCommentState(l *nativeLexer) nativeStateFn {
	end := strings.Index(l.src[l.pos+2:], "*/")
	if end < 0 {
		l.err = fmt.Errorf("plan: unterminated comment in native query")
		return nil
	}
	end += l.pos + 4
	l.out.WriteString(l.src[l.pos:end])
	l.pos = end
	return nativeRawState
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool { return isNameStart(c) || (c >= '0' && c <= '9') }

// isList reports if v is a collection value. Byte slices are scalars.
func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

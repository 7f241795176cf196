package hql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokNamedParam
	tokPositionalParam
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokMinus
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// is reports if the token is the given keyword, ignoring case.
func (t token) is(keyword string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, keyword)
}

type lexer struct {
	src     string
	start   int
	pos     int
	tokens  []token
	err     *SyntaxError
	stateFn stateFn
}

type stateFn func(*lexer) stateFn

func lex(src string) ([]token, error) {
	l := &lexer{src: src, stateFn: rawState}
	for l.stateFn != nil {
		l.stateFn = l.stateFn(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	return append(l.tokens, token{kind: tokEOF, pos: len(src)}), nil
}

func (l *lexer) emit(kind tokenKind) {
	l.tokens = append(l.tokens, token{kind: kind, text: l.src[l.start:l.pos], pos: l.start})
	l.start = l.pos
}

func (l *lexer) fail(msg string) stateFn {
	l.err = &SyntaxError{Query: l.src, Pos: l.start, Msg: msg}
	return nil
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *lexer) next() rune {
	if l.pos >= len(l.src) {
		return -1
	}
	r, w := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += w
	return r
}

func rawState(l *lexer) stateFn {
	for unicode.IsSpace(l.peek()) {
		l.next()
	}
	l.start = l.pos
	r := l.next()
	switch {
	case r == -1:
		return nil
	case r == '\'':
		return stringState
	case r == ':':
		return namedParamState
	case r == '?':
		return positionalParamState
	case isDigit(r):
		return numberState
	case isIdentStart(r):
		return identState
	}
	switch r {
	case '(':
		l.emit(tokLParen)
	case ')':
		l.emit(tokRParen)
	case ',':
		l.emit(tokComma)
	case '.':
		l.emit(tokDot)
	case '-':
		l.emit(tokMinus)
	case '=':
		l.emit(tokOp)
	case '!':
		if l.next() != '=' {
			return l.fail("unexpected character '!'")
		}
		l.emit(tokOp)
	case '<':
		if p := l.peek(); p == '=' || p == '>' {
			l.next()
		}
		l.emit(tokOp)
	case '>':
		if l.peek() == '=' {
			l.next()
		}
		l.emit(tokOp)
	default:
		return l.fail("unexpected character " + string(r))
	}
	return rawState
}

func identState(l *lexer) stateFn {
	for isIdentPart(l.peek()) {
		l.next()
	}
	l.emit(tokIdent)
	return rawState
}

func numberState(l *lexer) stateFn {
	for isDigit(l.peek()) {
		l.next()
	}
	if l.peek() == '.' {
		l.next()
		if !isDigit(l.peek()) {
			return l.fail("malformed number")
		}
		for isDigit(l.peek()) {
			l.next()
		}
	}
	l.emit(tokNumber)
	return rawState
}

// stringState consumes a single quoted literal. Doubled quotes are escapes.
func stringState(l *lexer) stateFn {
	for {
		switch l.next() {
		case -1:
			return l.fail("unterminated string literal")
		case '\'':
			if l.peek() == '\'' {
				l.next()
				continue
			}
			l.emit(tokString)
			return rawState
		}
	}
}

func namedParamState(l *lexer) stateFn {
	if !isIdentStart(l.peek()) {
		return l.fail("missing parameter name after ':'")
	}
	for isIdentPart(l.peek()) {
		l.next()
	}
	l.emit(tokNamedParam)
	return rawState
}

func positionalParamState(l *lexer) stateFn {
	if !isDigit(l.peek()) {
		return l.fail("positional parameters must be numbered, e.g. ?1")
	}
	for isDigit(l.peek()) {
		l.next()
	}
	l.emit(tokPositionalParam)
	return rawState
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) }

// unquote returns the value of a string literal token.
func unquote(s string) string {
	return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
}

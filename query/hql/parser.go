package hql

import (
	"strconv"
	"strings"

	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// reserved words that end an optional alias.
var reserved = map[string]bool{
	"where": true, "set": true, "order": true, "from": true, "as": true,
	"and": true, "or": true, "not": true, "select": true, "update": true, "delete": true,
}

type parser struct {
	src    string
	toks   []token
	i      int
	entity string
	alias  string
	params []*querylanguage.Param
}

// Parse parses a select, update or delete statement without checking it
// against a mapping. Attribute paths are stripped of the entity alias.
func Parse(text string) (tree.Statement, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{src: text, toks: toks}
	return p.statement()
}

// ParsePredicate parses a standalone boolean expression over unqualified
// attributes, like the condition of a filter.
func ParsePredicate(text string) (querylanguage.P, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{src: text, toks: toks}
	pred, err := p.or()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return pred, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// accept consumes the next token if it is the keyword.
func (p *parser) accept(keyword string) bool {
	if p.peek().is(keyword) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(keyword string) error {
	if !p.accept(keyword) {
		return p.unexpected("expected " + strings.ToUpper(keyword))
	}
	return nil
}

func (p *parser) expectKind(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, p.unexpected("expected " + what)
	}
	return p.next(), nil
}

func (p *parser) expectEOF() error {
	if p.peek().kind != tokEOF {
		return p.unexpected("expected end of statement")
	}
	return nil
}

func (p *parser) unexpected(msg string) error {
	t := p.peek()
	if t.kind == tokEOF {
		msg += ", found end of statement"
	} else {
		msg += ", found " + strconv.Quote(t.text)
	}
	return &SyntaxError{Query: p.src, Pos: t.pos, Msg: msg}
}

func (p *parser) semantic(msg string) error {
	return &SemanticError{Query: p.src, Msg: msg}
}

func (p *parser) statement() (tree.Statement, error) {
	switch t := p.peek(); {
	case t.is("select"), t.is("from"):
		return p.selectStatement()
	case t.is("update"):
		return p.updateStatement()
	case t.is("delete"):
		return p.deleteStatement()
	default:
		return nil, p.unexpected("expected SELECT, UPDATE or DELETE")
	}
}

// target parses the entity name and its optional alias.
func (p *parser) target() error {
	t, err := p.expectKind(tokIdent, "entity name")
	if err != nil {
		return err
	}
	p.entity = t.text
	p.accept("as")
	if t := p.peek(); t.kind == tokIdent && !reserved[strings.ToLower(t.text)] {
		p.alias = p.next().text
	}
	return nil
}

func (p *parser) where() (querylanguage.P, error) {
	if !p.accept("where") {
		return nil, nil
	}
	return p.or()
}

func (p *parser) selectStatement() (*tree.SelectStatement, error) {
	var paths [][]string
	if p.accept("select") {
		for {
			path, err := p.rawPath()
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect("from"); err != nil {
		return nil, err
	}
	if err := p.target(); err != nil {
		return nil, err
	}
	stmt := &tree.SelectStatement{Target: p.entity, Alias: p.alias}
	for _, path := range paths {
		if len(path) == 1 && path[0] == p.alias {
			if len(paths) > 1 {
				return nil, p.semantic("entity selection cannot be combined with attributes")
			}
			continue
		}
		attr, err := p.strip(path)
		if err != nil {
			return nil, err
		}
		stmt.Selection = append(stmt.Selection, attr)
	}
	where, err := p.where()
	if err != nil {
		return nil, err
	}
	stmt.Where = where
	if p.accept("order") {
		if err := p.expect("by"); err != nil {
			return nil, err
		}
		for {
			attr, err := p.path()
			if err != nil {
				return nil, err
			}
			o := tree.Order{Attribute: attr}
			if p.accept("desc") {
				o.Desc = true
			} else {
				p.accept("asc")
			}
			stmt.OrderBy = append(stmt.OrderBy, o)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	stmt.Params = tree.NewParameterMetadata(p.params)
	return stmt, nil
}

func (p *parser) updateStatement() (*tree.UpdateStatement, error) {
	if err := p.expect("update"); err != nil {
		return nil, err
	}
	if err := p.target(); err != nil {
		return nil, err
	}
	if err := p.expect("set"); err != nil {
		return nil, err
	}
	stmt := &tree.UpdateStatement{Target: p.entity, Alias: p.alias}
	seen := make(map[string]bool)
	for {
		attr, err := p.path()
		if err != nil {
			return nil, err
		}
		if seen[attr] {
			return nil, p.semantic("attribute " + attr + " is assigned more than once")
		}
		seen[attr] = true
		if t := p.peek(); t.kind != tokOp || t.text != "=" {
			return nil, p.unexpected("expected =")
		}
		p.next()
		v, err := p.operand()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, tree.Assignment{Attribute: attr, Value: v})
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	where, err := p.where()
	if err != nil {
		return nil, err
	}
	stmt.Where = where
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	stmt.Params = tree.NewParameterMetadata(p.params)
	return stmt, nil
}

func (p *parser) deleteStatement() (*tree.DeleteStatement, error) {
	if err := p.expect("delete"); err != nil {
		return nil, err
	}
	p.accept("from")
	if err := p.target(); err != nil {
		return nil, err
	}
	where, err := p.where()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return &tree.DeleteStatement{
		Target: p.entity,
		Alias:  p.alias,
		Where:  where,
		Params: tree.NewParameterMetadata(p.params),
	}, nil
}

func (p *parser) or() (querylanguage.P, error) {
	x, err := p.and()
	if err != nil {
		return nil, err
	}
	ps := []querylanguage.P{x}
	for p.accept("or") {
		y, err := p.and()
		if err != nil {
			return nil, err
		}
		ps = append(ps, y)
	}
	if len(ps) == 1 {
		return x, nil
	}
	return querylanguage.Or(ps[0], ps[1], ps[2:]...), nil
}

func (p *parser) and() (querylanguage.P, error) {
	x, err := p.not()
	if err != nil {
		return nil, err
	}
	ps := []querylanguage.P{x}
	for p.accept("and") {
		y, err := p.not()
		if err != nil {
			return nil, err
		}
		ps = append(ps, y)
	}
	if len(ps) == 1 {
		return x, nil
	}
	return querylanguage.And(ps[0], ps[1], ps[2:]...), nil
}

func (p *parser) not() (querylanguage.P, error) {
	if p.accept("not") {
		x, err := p.not()
		if err != nil {
			return nil, err
		}
		return querylanguage.Not(x), nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		x, err := p.or()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokRParen, ")"); err != nil {
			return nil, err
		}
		return x, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (querylanguage.P, error) {
	x, err := p.operand()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp {
		p.next()
		y, err := p.operand()
		if err != nil {
			return nil, err
		}
		switch t.text {
		case "=":
			return querylanguage.EQ(x, y), nil
		case "!=", "<>":
			return querylanguage.NEQ(x, y), nil
		case "<":
			return querylanguage.LT(x, y), nil
		case "<=":
			return querylanguage.LTE(x, y), nil
		case ">":
			return querylanguage.GT(x, y), nil
		default:
			return querylanguage.GTE(x, y), nil
		}
	}
	if p.accept("is") {
		negated := p.accept("not")
		if err := p.expect("null"); err != nil {
			return nil, err
		}
		if negated {
			return querylanguage.NotNil(x), nil
		}
		return querylanguage.IsNil(x), nil
	}
	negated := p.accept("not")
	var pred querylanguage.P
	switch {
	case p.accept("in"):
		y, err := p.inList()
		if err != nil {
			return nil, err
		}
		if negated {
			return querylanguage.NotIn(x, y), nil
		}
		return querylanguage.In(x, y), nil
	case p.accept("like"):
		y, err := p.operand()
		if err != nil {
			return nil, err
		}
		pred = querylanguage.Call(querylanguage.FuncLike, x, y)
	case p.accept("between"):
		lo, err := p.operand()
		if err != nil {
			return nil, err
		}
		if err := p.expect("and"); err != nil {
			return nil, err
		}
		hi, err := p.operand()
		if err != nil {
			return nil, err
		}
		pred = querylanguage.And(querylanguage.GTE(x, lo), querylanguage.LTE(x, hi))
	default:
		return nil, p.unexpected("expected comparison operator")
	}
	if negated {
		return querylanguage.Not(pred), nil
	}
	return pred, nil
}

// inList parses the right operand of IN: a parenthesized list or a
// parameter bound to a collection.
func (p *parser) inList() (querylanguage.Expr, error) {
	if t := p.peek(); t.kind == tokNamedParam || t.kind == tokPositionalParam {
		return p.operand()
	}
	if _, err := p.expectKind(tokLParen, "( or parameter"); err != nil {
		return nil, err
	}
	list := &querylanguage.List{}
	for {
		x, err := p.operand()
		if err != nil {
			return nil, err
		}
		list.Xs = append(list.Xs, x)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expectKind(tokRParen, ")"); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *parser) operand() (querylanguage.Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return querylanguage.V(unquote(t.text)), nil
	case tokNumber:
		p.next()
		return number(t.text, false)
	case tokMinus:
		p.next()
		n, err := p.expectKind(tokNumber, "number")
		if err != nil {
			return nil, err
		}
		return number(n.text, true)
	case tokNamedParam:
		p.next()
		return p.param(querylanguage.NamedParam(t.text[1:])), nil
	case tokPositionalParam:
		p.next()
		pos, err := strconv.Atoi(t.text[1:])
		if err != nil || pos < 1 {
			return nil, &SyntaxError{Query: p.src, Pos: t.pos, Msg: "invalid parameter position " + t.text}
		}
		return p.param(querylanguage.PositionalParam(pos)), nil
	case tokIdent:
		switch {
		case t.is("null"):
			p.next()
			return querylanguage.V(nil), nil
		case t.is("true"), t.is("false"):
			p.next()
			return querylanguage.V(t.is("true")), nil
		}
		attr, err := p.path()
		if err != nil {
			return nil, err
		}
		return querylanguage.F(attr), nil
	}
	return nil, p.unexpected("expected operand")
}

func (p *parser) param(x *querylanguage.Param) *querylanguage.Param {
	p.params = append(p.params, x)
	return x
}

func number(s string, neg bool) (querylanguage.Expr, error) {
	if neg {
		s = "-" + s
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return querylanguage.V(f), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return querylanguage.V(n), nil
}

// rawPath parses a dotted identifier path.
func (p *parser) rawPath() ([]string, error) {
	t, err := p.expectKind(tokIdent, "attribute")
	if err != nil {
		return nil, err
	}
	path := []string{t.text}
	for p.peek().kind == tokDot {
		p.next()
		t, err := p.expectKind(tokIdent, "attribute")
		if err != nil {
			return nil, err
		}
		path = append(path, t.text)
	}
	return path, nil
}

func (p *parser) path() (string, error) {
	path, err := p.rawPath()
	if err != nil {
		return "", err
	}
	return p.strip(path)
}

// strip removes the entity alias from an attribute path.
func (p *parser) strip(path []string) (string, error) {
	switch {
	case len(path) == 1:
		return path[0], nil
	case len(path) == 2 && p.alias != "" && path[0] == p.alias:
		return path[1], nil
	case len(path) == 2:
		return "", p.semantic("unknown alias " + strconv.Quote(path[0]))
	default:
		return "", p.semantic("association paths are not supported: " + strings.Join(path, "."))
	}
}

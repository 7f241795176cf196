// Package hql translates object query text into statement trees.
//
// The accepted language is a small subset of HQL:
//
//	select c from Customer c where c.name = :name order by c.id desc
//	update Customer c set c.region = ?1 where c.name like 'A%'
//	delete from ForeignCustomer where vat in (:a, :b) and data is not null
//
// Predicates support and, or, not, the comparison operators, [not] in with a
// literal list or a collection parameter, is [not] null, [not] like and
// between. Association paths are not supported.
package hql

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// SyntaxError is returned for malformed query text.
type SyntaxError struct {
	Query string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("hql: syntax error at position %d: %s", e.Pos, e.Msg)
}

// SemanticError is returned for well formed text that cannot be resolved
// against the mapping.
type SemanticError struct {
	Query string
	Msg   string
	Err   error
}

func (e *SemanticError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hql: %s: %v", e.Msg, e.Err)
	}
	return "hql: " + e.Msg
}

// Unwrap returns the underlying error.
func (e *SemanticError) Unwrap() error { return e.Err }

// Translator translates query text into statements resolved against a mapping.
type Translator struct {
	schema *sqlgraph.Schema
}

// NewTranslator returns a translator over the schema.
func NewTranslator(schema *sqlgraph.Schema) *Translator {
	return &Translator{schema: schema}
}

// Translate parses the text and checks every entity, attribute and
// parameter it references.
func (t *Translator) Translate(text string) (tree.Statement, error) {
	stmt, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := t.Check(stmt); err != nil {
		if se, ok := err.(*SemanticError); ok {
			se.Query = text
		}
		return nil, err
	}
	return stmt, nil
}

// Check validates a statement against the mapping.
func (t *Translator) Check(stmt tree.Statement) error {
	e, ok := t.schema.Entity(stmt.Entity())
	if !ok {
		return &SemanticError{Msg: "unknown entity " + strconv.Quote(stmt.Entity())}
	}
	attrs := querylanguage.Fields(stmt.Predicate())
	switch stmt := stmt.(type) {
	case *tree.SelectStatement:
		attrs = append(attrs, stmt.Selection...)
		for _, o := range stmt.OrderBy {
			attrs = append(attrs, o.Attribute)
		}
	case *tree.UpdateStatement:
		ids := e.IDAttributes()
		for _, a := range stmt.Assignments {
			if slices.Contains(ids, a.Attribute) {
				return &SemanticError{Msg: "identifier attribute " + strconv.Quote(a.Attribute) + " cannot be assigned"}
			}
			attrs = append(attrs, a.Attribute)
			if f, ok := a.Value.(*querylanguage.Field); ok {
				attrs = append(attrs, f.Name)
			}
		}
	}
	for _, a := range attrs {
		if _, _, err := e.Resolve(a); err != nil {
			return &SemanticError{Msg: "unresolved attribute", Err: err}
		}
	}
	return CheckParameters(stmt.Parameters().Params())
}

// CheckParameters rejects mixing named and positional parameters and
// gaps in positional parameter numbering.
func CheckParameters(params []*querylanguage.Param) error {
	var named bool
	var positions []int
	for _, p := range params {
		if p.Name != "" {
			named = true
		} else {
			positions = append(positions, p.Position)
		}
	}
	if named && len(positions) > 0 {
		return &SemanticError{Msg: "named and positional parameters cannot be mixed"}
	}
	slices.Sort(positions)
	for i, pos := range positions {
		if pos != i+1 {
			return &SemanticError{Msg: fmt.Sprintf("gap in positional parameters: ?%d is missing", i+1)}
		}
	}
	return nil
}

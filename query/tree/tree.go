// Package tree holds the parsed form of object queries: select, update and
// delete statements over mapped entities. Statements are immutable once
// built and may be shared by concurrent executions. Per-execution state
// lives in a ParameterXref.
package tree

import (
	"strings"

	"github.com/syssam/sqm/querylanguage"
)

// Kind is the kind of a statement.
type Kind int

// Statement kinds.
const (
	KindSelect Kind = iota
	KindUpdate
	KindDelete
)

// String returns the statement keyword.
func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Statement is a parsed object query.
type Statement interface {
	// Kind returns the kind of the statement.
	Kind() Kind
	// Entity returns the name of the target entity.
	Entity() string
	// Predicate returns the WHERE restriction, or nil.
	Predicate() querylanguage.P
	// Parameters returns the parameter metadata of the statement.
	Parameters() *ParameterMetadata
	// String returns the canonical text of the statement.
	String() string
}

// MutationStatement is an update or delete statement.
type MutationStatement interface {
	Statement
	mutation()
}

// Order is an ORDER BY term.
type Order struct {
	Attribute string
	Desc      bool
}

// SelectStatement selects attributes of one entity.
type SelectStatement struct {
	Target string
	Alias  string
	// Selection lists the selected attributes. Empty selects the entity,
	// that is its identifier followed by every mapped attribute.
	Selection []string
	Where     querylanguage.P
	OrderBy   []Order
	Params    *ParameterMetadata
}

// Assignment is one SET clause of an update statement. The value is
// a literal, a parameter or another attribute of the entity.
type Assignment struct {
	Attribute string
	Value     querylanguage.Expr
}

// UpdateStatement updates attributes of the entities matching the predicate.
type UpdateStatement struct {
	Target      string
	Alias       string
	Assignments []Assignment
	Where       querylanguage.P
	Params      *ParameterMetadata
}

// DeleteStatement deletes the entities matching the predicate.
type DeleteStatement struct {
	Target string
	Alias  string
	Where  querylanguage.P
	Params *ParameterMetadata
}

// Kind implements the Statement interface.
func (*SelectStatement) Kind() Kind { return KindSelect }

// Kind implements the Statement interface.
func (*UpdateStatement) Kind() Kind { return KindUpdate }

// Kind implements the Statement interface.
func (*DeleteStatement) Kind() Kind { return KindDelete }

// Entity implements the Statement interface.
func (s *SelectStatement) Entity() string { return s.Target }

// Entity implements the Statement interface.
func (s *UpdateStatement) Entity() string { return s.Target }

// Entity implements the Statement interface.
func (s *DeleteStatement) Entity() string { return s.Target }

// Predicate implements the Statement interface.
func (s *SelectStatement) Predicate() querylanguage.P { return s.Where }

// Predicate implements the Statement interface.
func (s *UpdateStatement) Predicate() querylanguage.P { return s.Where }

// Predicate implements the Statement interface.
func (s *DeleteStatement) Predicate() querylanguage.P { return s.Where }

// Parameters implements the Statement interface.
func (s *SelectStatement) Parameters() *ParameterMetadata { return orEmpty(s.Params) }

// Parameters implements the Statement interface.
func (s *UpdateStatement) Parameters() *ParameterMetadata { return orEmpty(s.Params) }

// Parameters implements the Statement interface.
func (s *DeleteStatement) Parameters() *ParameterMetadata { return orEmpty(s.Params) }

func (*UpdateStatement) mutation() {}
func (*DeleteStatement) mutation() {}

func orEmpty(m *ParameterMetadata) *ParameterMetadata {
	if m == nil {
		return emptyMetadata
	}
	return m
}

func (s *SelectStatement) String() string {
	var b strings.Builder
	b.WriteString("select ")
	if len(s.Selection) == 0 {
		b.WriteString(s.alias())
	} else {
		b.WriteString(strings.Join(s.Selection, ", "))
	}
	b.WriteString(" from " + s.Target + " " + s.alias())
	writeWhere(&b, s.Where)
	for i, o := range s.OrderBy {
		if i == 0 {
			b.WriteString(" order by ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(o.Attribute)
		if o.Desc {
			b.WriteString(" desc")
		}
	}
	return b.String()
}

func (s *UpdateStatement) String() string {
	var b strings.Builder
	b.WriteString("update " + s.Target + " " + aliasOr(s.Alias, s.Target) + " set ")
	for i, a := range s.Assignments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Attribute + " = " + a.Value.String())
	}
	writeWhere(&b, s.Where)
	return b.String()
}

func (s *DeleteStatement) String() string {
	var b strings.Builder
	b.WriteString("delete " + s.Target + " " + aliasOr(s.Alias, s.Target))
	writeWhere(&b, s.Where)
	return b.String()
}

func (s *SelectStatement) alias() string { return aliasOr(s.Alias, s.Target) }

func aliasOr(alias, entity string) string {
	if alias != "" {
		return alias
	}
	return strings.ToLower(entity[:1])
}

func writeWhere(b *strings.Builder, p querylanguage.P) {
	if p != nil {
		b.WriteString(" where " + p.String())
	}
}

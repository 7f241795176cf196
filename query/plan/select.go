package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// Row is one result row keyed by attribute name.
type Row map[string]any

// SelectPlan is a compiled select statement. Plans hold no per-execution
// state and are shared by every execution of the same key.
type SelectPlan struct {
	// SQL is the statement text with dialect placeholders.
	SQL string
	// Columns are the attribute labels of the selected columns.
	Columns []string
	// Fixed reports if the plan inlined values that are not parameters,
	// such as the arguments of enabled filters. Fixed plans are not cached.
	Fixed bool

	args []any
}

// slot marks the position of a parameter in the argument template.
type slot struct{ param *querylanguage.Param }

// AppliedFilter is a filter enabled for one compilation, with the
// binder of its own parameters.
type AppliedFilter struct {
	Filter *sqlgraph.Filter
	Bind   sqlgraph.BindFunc
}

// CompileSelect compiles a select statement over the entity. Statement
// parameters become slots filled by Args at execution time. Filter
// arguments are inlined into the template and mark the plan as Fixed, and
// so are the parameters that x binds to a collection: they expand into one
// placeholder per element and are only valid on the right of in. x may be
// nil.
func CompileSelect(dialectName string, e *sqlgraph.Entity, stmt *tree.SelectStatement, lock LockMode, x *tree.ParameterXref, filters ...AppliedFilter) (*SelectPlan, error) {
	s := sqlgraph.NewSelector(dialectName, e)
	columns := stmt.Selection
	if len(columns) == 0 {
		columns = EntityAttributes(e)
	}
	selected := make([]string, len(columns))
	for i, attr := range columns {
		c, err := s.C(attr)
		if err != nil {
			return nil, err
		}
		selected[i] = c
	}
	s.Select(selected...)
	lists := ListBound(x)
	bind := func(p *querylanguage.Param) (any, error) {
		if lists {
			if v, err := x.Value(p); err == nil && isList(v) {
				return v, nil
			}
		}
		return slot{param: p}, nil
	}
	if stmt.Where != nil {
		if err := s.EvalP(stmt.Where, bind); err != nil {
			return nil, err
		}
	}
	for _, f := range filters {
		if err := s.ApplyFilter(f.Filter, f.Bind); err != nil {
			return nil, err
		}
	}
	for _, o := range stmt.OrderBy {
		c, err := s.C(o.Attribute)
		if err != nil {
			return nil, err
		}
		if o.Desc {
			s.OrderByDesc(c)
		} else {
			s.OrderBy(c)
		}
	}
	if lock == LockWrite {
		s.ForUpdate()
	}
	query, args := s.Query()
	for _, a := range args {
		if isList(a) {
			return nil, fmt.Errorf("%w outside of in", ErrListParameter)
		}
	}
	return &SelectPlan{
		SQL:     query,
		Columns: append([]string(nil), columns...),
		Fixed:   len(filters) > 0 || lists,
		args:    args,
	}, nil
}

// ListBound reports if x binds a collection to one of its parameters.
func ListBound(x *tree.ParameterXref) bool {
	if x == nil {
		return false
	}
	for _, p := range x.Metadata().Params() {
		if v, err := x.Value(p); err == nil && isList(v) {
			return true
		}
	}
	return false
}

// EntityAttributes returns the identifier attributes of the entity followed
// by every mapped attribute, table by table from the root.
func EntityAttributes(e *sqlgraph.Entity) []string {
	attrs := e.IDAttributes()
	for _, t := range e.Tables() {
		names := make([]string, 0, len(t.Columns))
		for a := range t.Columns {
			names = append(names, a)
		}
		sort.Strings(names)
		attrs = append(attrs, names...)
	}
	return attrs
}

// Args returns the arguments of one execution, taking parameter values
// from the xref.
func (p *SelectPlan) Args(x *tree.ParameterXref) ([]any, error) {
	args := make([]any, len(p.args))
	for i, a := range p.args {
		s, ok := a.(slot)
		if !ok {
			args[i] = a
			continue
		}
		v, err := x.Value(s.param)
		if err != nil {
			return nil, err
		}
		if isList(v) {
			return nil, fmt.Errorf("%w %s", ErrListParameter, s.param)
		}
		args[i] = v
	}
	return args, nil
}

// Execute runs the plan on the connection and returns the rows.
func (p *SelectPlan) Execute(ctx context.Context, conn dialect.ExecQuerier, x *tree.ParameterXref) ([]Row, error) {
	args, err := p.Args(x)
	if err != nil {
		return nil, err
	}
	var rows sql.Rows
	if err := conn.Query(ctx, p.SQL, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Row
	for rows.Next() {
		values := make([]any, len(p.Columns))
		dest := make([]any, len(p.Columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(Row, len(p.Columns))
		for i, c := range p.Columns {
			row[c] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

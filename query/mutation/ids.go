package mutation

import (
	"context"

	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// MatchingIDs are the identifiers of the rows a mutation acts on, one
// tuple per entity in the order of the root table identifier columns.
// They belong to one mutation call and are dropped when it returns.
type MatchingIDs struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of matched entities.
func (m *MatchingIDs) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// Empty reports whether nothing matched.
func (m *MatchingIDs) Empty() bool { return m.Len() == 0 }

// Composite reports whether the identifier spans more than one column.
func (m *MatchingIDs) Composite() bool { return len(m.Columns) > 1 }

// MatchingIDSelector returns the selection of the identifiers of the entity
// rows matching where and the enabled filters the entity defines. Predicates
// on attributes of other tables join them to the root table through their
// key columns, and the tables of the parents of the entity are always inner
// joined, so sibling sub entities never match.
func MatchingIDSelector(dialectName string, e *sqlgraph.Entity, where querylanguage.P, filters []EnabledFilter, bind sqlgraph.BindFunc) (*sqlgraph.Selector, error) {
	s := sqlgraph.NewSelector(dialectName, e).SelectIDs()
	if where != nil {
		if err := s.EvalP(where, bind); err != nil {
			return nil, err
		}
	}
	for _, f := range filters {
		def, ok := e.Filter(f.Name)
		if !ok {
			continue
		}
		if err := s.ApplyFilter(def, f.bind); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SelectMatchingIDs runs the id selection of the statement on the
// connection of the execution context.
func SelectMatchingIDs(ctx context.Context, ec *ExecutionContext, stmt tree.MutationStatement, x *tree.ParameterXref) (*MatchingIDs, error) {
	e, err := ec.entity(stmt.Entity())
	if err != nil {
		return nil, err
	}
	if x == nil {
		x = tree.NewParameterXref(stmt.Parameters())
	}
	s, err := MatchingIDSelector(ec.Dialect, e, stmt.Predicate(), ec.Filters, x.Value)
	if err != nil {
		return nil, err
	}
	if ec.Options.LockMode == plan.LockWrite {
		s.ForUpdate()
	}
	return collectIDs(ctx, ec, s)
}

func collectIDs(ctx context.Context, ec *ExecutionContext, s *sqlgraph.Selector) (*MatchingIDs, error) {
	query, args := s.Query()
	ec.logger().Debug("selecting matching ids", "session", ec.SessionID, "query", query)
	var rows sql.Rows
	if err := ec.Conn.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := &MatchingIDs{Columns: s.Entity().IDColumns()}
	for rows.Next() {
		values := make([]any, len(ids.Columns))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ids.Rows = append(ids.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

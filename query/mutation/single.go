package mutation

import (
	"context"
	"fmt"

	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/query/tree"
)

// ExecuteSingleTable runs a mutation of an entity stored in one table as a
// single UPDATE or DELETE statement, without selecting the matching ids
// first. It fails with ErrUnsupportedOperation for multi-table entities.
func ExecuteSingleTable(ctx context.Context, stmt tree.MutationStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error) {
	d, err := newDelegate(ec, stmt, x, nil)
	if err != nil {
		return 0, err
	}
	if d.entity.MultiTable() {
		return 0, fmt.Errorf("%w: %s is stored in more than one table", ErrUnsupportedOperation, d.entity.Name)
	}
	if d.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.options.Timeout)
		defer cancel()
	}
	s, err := MatchingIDSelector(ec.Dialect, d.entity, d.where, d.filters, d.xref.Value)
	if err != nil {
		return 0, err
	}
	table, alias := d.entity.Table.Name, s.Root().Alias()
	b := sql.Dialect(ec.Dialect)
	switch stmt := stmt.(type) {
	case *tree.DeleteStatement:
		q := b.Delete(table).As(alias)
		if p := s.P(); p != nil {
			q.Where(p)
		}
		return execute(ctx, ec, q)
	case *tree.UpdateStatement:
		u := &updateDelegate{delegate: d, assignments: stmt.Assignments}
		sets, err := u.tableSets(ec.Dialect)
		if err != nil {
			return 0, err
		}
		q := b.Update(table).As(alias)
		for _, ts := range sets {
			for i, c := range ts.columns {
				q.Set(c, ts.values[i])
			}
		}
		if q.Empty() {
			return 0, fmt.Errorf("%w: update of %s without assignments", ErrUnsupportedOperation, d.entity.Name)
		}
		if p := s.P(); p != nil {
			q.Where(p)
		}
		return execute(ctx, ec, q)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedOperation, stmt.Kind())
	}
}

package mutation

import (
	"context"
	"fmt"

	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"
)

// ExecutionDelegate runs one mutation and returns the number of affected
// entities. Delegates are created by a strategy for a single call and hold
// its bindings, options and enabled filters.
type ExecutionDelegate interface {
	Execute(ctx context.Context, ec *ExecutionContext) (int, error)
}

// restriction scopes the table statements of one call to the matching ids.
type restriction interface {
	// stage resolves the ids selected by s and returns their number.
	stage(ctx context.Context, ec *ExecutionContext, s *sqlgraph.Selector) (int, error)
	// predicate restricts the rows of t to the staged ids.
	predicate(t *sqlgraph.Table) *sql.Predicate
	// release ends the use of the staged ids.
	release(ctx context.Context, ec *ExecutionContext) error
}

type delegate struct {
	entity      *sqlgraph.Entity
	where       querylanguage.P
	xref        *tree.ParameterXref
	options     QueryOptions
	filters     []EnabledFilter
	restriction restriction
}

func newDelegate(ec *ExecutionContext, stmt tree.MutationStatement, x *tree.ParameterXref, r restriction) (delegate, error) {
	e, err := ec.entity(stmt.Entity())
	if err != nil {
		return delegate{}, err
	}
	if x == nil {
		x = tree.NewParameterXref(stmt.Parameters())
	}
	if err := x.Validate(); err != nil {
		return delegate{}, err
	}
	return delegate{
		entity:      e,
		where:       stmt.Predicate(),
		xref:        x,
		options:     ec.Options,
		filters:     append([]EnabledFilter(nil), ec.Filters...),
		restriction: r,
	}, nil
}

// run stages the matching ids and calls mutate unless nothing matched. The
// restriction is released whatever the outcome.
func (d *delegate) run(ctx context.Context, ec *ExecutionContext, mutate func(ctx context.Context, matched int) (int, error)) (n int, err error) {
	if d.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.options.Timeout)
		defer cancel()
	}
	s, err := MatchingIDSelector(ec.Dialect, d.entity, d.where, d.filters, d.xref.Value)
	if err != nil {
		return 0, err
	}
	if d.options.LockMode == plan.LockWrite {
		s.ForUpdate()
	}
	defer func() {
		rerr := d.restriction.release(ctx, ec)
		switch {
		case rerr == nil:
		case err == nil:
			err = rerr
		default:
			ec.logger().Warn("releasing matching ids after failure", "session", ec.SessionID, "entity", d.entity.Name, "error", rerr)
		}
	}()
	matched, err := d.restriction.stage(ctx, ec, s)
	if err != nil {
		return 0, err
	}
	if matched == 0 {
		ec.logger().Debug("no matching ids", "session", ec.SessionID, "entity", d.entity.Name)
		return 0, nil
	}
	return mutate(ctx, matched)
}

type deleteDelegate struct {
	delegate
}

// Execute deletes the rows of every table of the entity, sub entity tables
// first and the root table last, and returns the root table count.
func (d *deleteDelegate) Execute(ctx context.Context, ec *ExecutionContext) (int, error) {
	root := d.entity.Root().Table
	return d.run(ctx, ec, func(ctx context.Context, _ int) (int, error) {
		var count int
		for _, t := range d.entity.DeleteOrder() {
			q := sql.Dialect(ec.Dialect).Delete(t.Name).Where(d.restriction.predicate(t))
			n, err := execute(ctx, ec, q)
			if err != nil {
				return 0, err
			}
			if t == root {
				count = n
			}
		}
		return count, nil
	})
}

type updateDelegate struct {
	delegate
	assignments []tree.Assignment
}

type tableSet struct {
	table   *sqlgraph.Table
	columns []string
	values  []any
}

// Execute updates every table holding an assigned attribute. The result is
// the root table count, or the number of matched entities when the root
// table is not assigned.
func (d *updateDelegate) Execute(ctx context.Context, ec *ExecutionContext) (int, error) {
	sets, err := d.tableSets(ec.Dialect)
	if err != nil {
		return 0, err
	}
	root := d.entity.Root().Table
	return d.run(ctx, ec, func(ctx context.Context, matched int) (int, error) {
		count := matched
		for _, ts := range sets {
			u := sql.Dialect(ec.Dialect).Update(ts.table.Name)
			for i, c := range ts.columns {
				u.Set(c, ts.values[i])
			}
			u.Where(d.restriction.predicate(ts.table))
			n, err := execute(ctx, ec, u)
			if err != nil {
				return 0, err
			}
			if ts.table == root {
				count = n
			}
		}
		return count, nil
	})
}

// tableSets groups the assignments by table, in the order of Tables.
func (d *updateDelegate) tableSets(dialectName string) ([]*tableSet, error) {
	byTable := make(map[*sqlgraph.Table]*tableSet)
	for _, a := range d.assignments {
		t, c, err := d.entity.Resolve(a.Attribute)
		if err != nil {
			return nil, err
		}
		v, err := d.value(dialectName, t, a)
		if err != nil {
			return nil, err
		}
		ts, ok := byTable[t]
		if !ok {
			ts = &tableSet{table: t}
			byTable[t] = ts
		}
		ts.columns = append(ts.columns, c)
		ts.values = append(ts.values, v)
	}
	var sets []*tableSet
	for _, t := range d.entity.Tables() {
		if ts, ok := byTable[t]; ok {
			sets = append(sets, ts)
		}
	}
	return sets, nil
}

func (d *updateDelegate) value(dialectName string, t *sqlgraph.Table, a tree.Assignment) (any, error) {
	switch v := a.Value.(type) {
	case *querylanguage.Value:
		return v.V, nil
	case *querylanguage.Param:
		return d.xref.Value(v)
	case *querylanguage.Field:
		ft, c, err := d.entity.Resolve(v.Name)
		if err != nil {
			return nil, err
		}
		if ft != t {
			return nil, fmt.Errorf("%w: %s is assigned from %s of another table", ErrUnsupportedOperation, a.Attribute, v.Name)
		}
		return sql.Raw(sql.NewBuilder(dialectName).Quote(c)), nil
	default:
		return nil, fmt.Errorf("mutation: unexpected value %s assigned to %s", a.Value, a.Attribute)
	}
}

func execute(ctx context.Context, ec *ExecutionContext, q sql.Querier) (int, error) {
	query, args := q.Query()
	ec.logger().Debug("executing mutation statement", "session", ec.SessionID, "query", query, "args", len(args))
	var res sql.Result
	if err := ec.Conn.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

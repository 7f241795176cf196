package sqm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/query/mutation"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/query/tree"
)

// ShapeRow is the result shape of queries returning plan.Row values.
const ShapeRow = "row"

// Query is an HQL statement bound to a session. Setters record the first
// error, which is returned by the execution methods:
//
//	rows, err := q.SetParameter("region", "eu").SetLockMode(plan.LockWrite).List(ctx)
type Query struct {
	session  *Session
	text     string
	interp   *plan.HQLInterpretation
	lock     plan.LockMode
	readOnly bool
	timeout  time.Duration
	err      error
}

// CreateQuery translates an HQL text, or takes its translation from the
// cache. Invalid texts fail with a *QueryError.
func (s *Session) CreateQuery(text string) (*Query, error) {
	if s.done {
		return nil, ErrSessionClosed
	}
	interp, err := s.factory.cache.ResolveInterpretation(text, s.factory.translator.Translate)
	if err != nil {
		return nil, NewQueryError(text, "translate", err)
	}
	return &Query{session: s, text: text, interp: interp}, nil
}

// CreateNamedQuery returns the HQL query registered under name.
func (s *Session) CreateNamedQuery(name string) (*Query, error) {
	q, err := s.factory.namedQuery(name)
	if err != nil {
		return nil, err
	}
	if q.native {
		return nil, fmt.Errorf("%w: named query %q is native", ErrUnsupportedOperation, name)
	}
	return s.CreateQuery(q.text)
}

func (f *SessionFactory) namedQuery(name string) (namedQuery, error) {
	q, ok := f.queries[name]
	if !ok {
		return namedQuery{}, NewConfigurationError("named query "+strconv.Quote(name), errors.New("not registered"))
	}
	return q, nil
}

// Statement returns the translated statement.
func (q *Query) Statement() tree.Statement { return q.interp.Statement }

// SetParameter binds a named parameter.
func (q *Query) SetParameter(name string, v any) *Query {
	if q.err == nil {
		if err := q.interp.Xref.Bind(name, v); err != nil {
			q.err = NewQueryError(q.text, "bind", err)
		}
	}
	return q
}

// SetPositionalParameter binds the ?pos parameter. Positions start at 1.
func (q *Query) SetPositionalParameter(pos int, v any) *Query {
	if q.err == nil {
		if err := q.interp.Xref.BindPositional(pos, v); err != nil {
			q.err = NewQueryError(q.text, "bind", err)
		}
	}
	return q
}

// SetLockMode sets the row lock taken by selects and by the matching id
// selection of mutations.
func (q *Query) SetLockMode(m plan.LockMode) *Query {
	q.lock = m
	return q
}

// SetReadOnly marks the query results as read only. Read only selects
// have their own cached plan.
func (q *Query) SetReadOnly(readOnly bool) *Query {
	q.readOnly = readOnly
	return q
}

// SetTimeout bounds each execution of the query. Zero means no timeout.
func (q *Query) SetTimeout(d time.Duration) *Query {
	q.timeout = d
	return q
}

// ready checks the query can be executed.
func (q *Query) ready() error {
	switch {
	case q.session.done:
		return ErrSessionClosed
	case q.err != nil:
		return q.err
	}
	if err := q.interp.Xref.Validate(); err != nil {
		return NewQueryError(q.text, "bind", err)
	}
	return nil
}

// List runs a select and returns its rows, keyed by attribute name.
func (q *Query) List(ctx context.Context) ([]plan.Row, error) {
	stmt, ok := q.interp.Statement.(*tree.SelectStatement)
	if !ok {
		return nil, NewQueryError(q.text, "list", fmt.Errorf("%w: %s statement", ErrUnsupportedOperation, q.interp.Statement.Kind()))
	}
	if err := q.ready(); err != nil {
		return nil, err
	}
	f := q.session.factory
	e, _ := f.schema.Entity(stmt.Entity())
	filters, err := q.session.appliedFilters(e)
	if err != nil {
		return nil, err
	}
	compile := func() (*plan.SelectPlan, error) {
		return plan.CompileSelect(f.dialect, e, stmt, q.lock, q.interp.Xref, filters...)
	}
	var p *plan.SelectPlan
	// Filter arguments and bound collections are inlined in the plan, so
	// such plans are not shared.
	if len(filters) > 0 || plan.ListBound(q.interp.Xref) {
		p, err = compile()
	} else {
		p, err = f.cache.ResolveSelectPlan(plan.NewKey(q.text, ShapeRow, q.lock, q.readOnly), compile)
	}
	if errors.Is(err, plan.ErrListParameter) {
		return nil, NewQueryError(q.text, "bind", err)
	}
	if err != nil {
		return nil, NewQueryError(q.text, "compile", err)
	}
	ctx, cancel := withTimeout(ctx, q.timeout)
	defer cancel()
	rows, err := p.Execute(ctx, q.session.tx, q.interp.Xref)
	if errors.Is(err, plan.ErrListParameter) {
		return nil, NewQueryError(q.text, "bind", err)
	}
	return rows, err
}

// UniqueResult runs a select expected to return exactly one row.
func (q *Query) UniqueResult(ctx context.Context) (plan.Row, error) {
	rows, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	return unique(q.interp.Statement.Entity(), nil, rows)
}

// ExecuteUpdate runs an update or delete and returns the number of
// affected entities. Entities stored in one table are mutated with one
// statement, the others through the mutation strategy of the factory.
func (q *Query) ExecuteUpdate(ctx context.Context) (int, error) {
	stmt, ok := q.interp.Statement.(tree.MutationStatement)
	if !ok {
		return 0, NewQueryError(q.text, "execute update", fmt.Errorf("%w: %s statement", ErrUnsupportedOperation, q.interp.Statement.Kind()))
	}
	if err := q.ready(); err != nil {
		return 0, err
	}
	f := q.session.factory
	e, _ := f.schema.Entity(stmt.Entity())
	ec, err := q.session.executionContext(mutation.QueryOptions{Timeout: q.timeout, LockMode: q.lock})
	if err != nil {
		return 0, err
	}
	var n int
	switch stmt := stmt.(type) {
	case *tree.UpdateStatement:
		if !e.MultiTable() {
			n, err = mutation.ExecuteSingleTable(ctx, stmt, q.interp.Xref, ec)
		} else {
			n, err = f.strategy.ExecuteUpdate(ctx, stmt, q.interp.Xref, ec)
		}
	case *tree.DeleteStatement:
		if !e.MultiTable() {
			n, err = mutation.ExecuteSingleTable(ctx, stmt, q.interp.Xref, ec)
		} else {
			n, err = f.strategy.ExecuteDelete(ctx, stmt, q.interp.Xref, ec)
		}
	}
	if err != nil {
		return 0, NewMutationError(e.Name, stmt.Kind().String(), err)
	}
	return n, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// NativeQuery is a SQL statement bound to a session. Its :name, ?N and ?
// parameters are rewritten to the placeholders of the dialect.
type NativeQuery struct {
	session *Session
	text    string
	interp  *plan.ParameterInterpretation
	xref    *tree.ParameterXref
	timeout time.Duration
	err     error
}

// CreateNativeQuery returns a native SQL query. The parameter layout of
// the text is cached.
func (s *Session) CreateNativeQuery(text string) (*NativeQuery, error) {
	if s.done {
		return nil, ErrSessionClosed
	}
	interp, err := s.factory.resolveNative(text)
	if err != nil {
		return nil, NewQueryError(text, "interpret", err)
	}
	return &NativeQuery{
		session: s,
		text:    text,
		interp:  interp,
		xref:    tree.NewParameterXref(interp.Metadata),
	}, nil
}

// CreateNamedNativeQuery returns the native query registered under name.
func (s *Session) CreateNamedNativeQuery(name string) (*NativeQuery, error) {
	q, err := s.factory.namedQuery(name)
	if err != nil {
		return nil, err
	}
	if !q.native {
		return nil, fmt.Errorf("%w: named query %q is not native", ErrUnsupportedOperation, name)
	}
	return s.CreateNativeQuery(q.text)
}

// SQL returns the statement as sent to the database.
func (q *NativeQuery) SQL() string { return q.interp.SQL }

// SetParameter binds a named parameter.
func (q *NativeQuery) SetParameter(name string, v any) *NativeQuery {
	if q.err == nil {
		if err := q.xref.Bind(name, v); err != nil {
			q.err = NewQueryError(q.text, "bind", err)
		}
	}
	return q
}

// SetPositionalParameter binds the ?pos parameter, or the pos-th bare ?
// marker. Positions start at 1.
func (q *NativeQuery) SetPositionalParameter(pos int, v any) *NativeQuery {
	if q.err == nil {
		if err := q.xref.BindPositional(pos, v); err != nil {
			q.err = NewQueryError(q.text, "bind", err)
		}
	}
	return q
}

// SetTimeout bounds each execution of the query. Zero means no timeout.
func (q *NativeQuery) SetTimeout(d time.Duration) *NativeQuery {
	q.timeout = d
	return q
}

func (q *NativeQuery) args() ([]any, error) {
	switch {
	case q.session.done:
		return nil, ErrSessionClosed
	case q.err != nil:
		return nil, q.err
	}
	if err := q.xref.Validate(); err != nil {
		return nil, NewQueryError(q.text, "bind", err)
	}
	args, err := q.interp.Args(q.xref)
	if err != nil {
		return nil, NewQueryError(q.text, "bind", err)
	}
	return args, nil
}

// List runs the query and returns its rows, keyed by column name.
func (q *NativeQuery) List(ctx context.Context) ([]plan.Row, error) {
	args, err := q.args()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, q.timeout)
	defer cancel()
	var rows sql.Rows
	if err := q.session.tx.Query(ctx, q.interp.SQL, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []plan.Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(plan.Row, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// UniqueResult runs a query expected to return exactly one row.
func (q *NativeQuery) UniqueResult(ctx context.Context) (plan.Row, error) {
	rows, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	return unique("row", nil, rows)
}

// ExecuteUpdate runs the statement and returns the number of affected rows.
func (q *NativeQuery) ExecuteUpdate(ctx context.Context) (int, error) {
	args, err := q.args()
	if err != nil {
		return 0, err
	}
	ctx, cancel := withTimeout(ctx, q.timeout)
	defer cancel()
	var res sql.Result
	if err := q.session.tx.Exec(ctx, q.interp.SQL, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func unique(label string, id any, rows []plan.Row) (plan.Row, error) {
	switch len(rows) {
	case 1:
		return rows[0], nil
	case 0:
		if id != nil {
			return nil, NewNotFoundErrorWithID(label, id)
		}
		return nil, NewNotFoundError(label)
	default:
		return nil, NewNotSingularErrorWithCount(label, len(rows))
	}
}

package sqlgraph

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/querylanguage"
)

// BindFunc returns the value bound to a parameter.
type BindFunc func(*querylanguage.Param) (any, error)

// ErrUnboundParameter is returned when a predicate references a parameter
// and no BindFunc was provided.
var ErrUnboundParameter = errors.New("sqlgraph: unbound parameter")

// Selector is a SELECT over the tables of one entity. The root table of the
// hierarchy is aliased t0, the tables of the parents leading to the entity
// are inner joined up front, and secondary tables are left joined the first
// time one of their attributes is referenced.
type Selector struct {
	*sql.Selector
	entity  *Entity
	root    *sql.SelectTable
	aliases map[*Table]*sql.SelectTable
}

// NewSelector returns a selector for the entity. The selection is empty,
// callers add columns with AppendSelect or SelectIDs.
func NewSelector(dialect string, e *Entity) *Selector {
	s := &Selector{
		entity:  e,
		aliases: make(map[*Table]*sql.SelectTable),
	}
	root := e.Root()
	s.root = sql.Table(root.Table.Name).As("t0")
	s.aliases[root.Table] = s.root
	s.Selector = sql.Dialect(dialect).Select().From(s.root)
	for _, x := range e.Hierarchy()[1:] {
		t := s.alias(x.Table)
		s.Join(t)
		s.joinOn(x.Table, t)
	}
	return s
}

// Entity returns the entity of the selector.
func (s *Selector) Entity() *Entity { return s.entity }

// Root returns the aliased root table.
func (s *Selector) Root() *sql.SelectTable { return s.root }

// IDColumns returns the qualified identifier columns.
func (s *Selector) IDColumns() []string {
	ids := s.entity.IDColumns()
	cs := make([]string, len(ids))
	for i := range ids {
		cs[i] = s.root.C(ids[i])
	}
	return cs
}

// SelectIDs replaces the selection with the identifier columns.
func (s *Selector) SelectIDs() *Selector {
	s.Select(s.IDColumns()...)
	return s
}

func (s *Selector) alias(t *Table) *sql.SelectTable {
	if a, ok := s.aliases[t]; ok {
		return a
	}
	a := sql.Table(t.Name).As("t" + strconv.Itoa(len(s.aliases)))
	s.aliases[t] = a
	return a
}

func (s *Selector) joinOn(t *Table, a *sql.SelectTable) {
	ids := s.entity.IDColumns()
	for i, k := range t.KeyColumns {
		s.On(s.root.C(ids[i]), a.C(k))
	}
}

// C returns the qualified column of the attribute, joining its table if needed.
func (s *Selector) C(attr string) (string, error) {
	t, c, err := s.entity.Resolve(attr)
	if err != nil {
		return "", err
	}
	a, ok := s.aliases[t]
	if !ok {
		a = s.alias(t)
		s.LeftJoin(a)
		s.joinOn(t, a)
	}
	return a.C(c), nil
}

// EvalP evaluates the predicate and appends it to the WHERE clause.
func (s *Selector) EvalP(p querylanguage.P, bind BindFunc) error {
	pred, err := s.eval(p, bind)
	if err != nil {
		return err
	}
	s.Where(pred)
	return nil
}

// ApplyFilter evaluates the condition of an enabled filter with its own parameters.
func (s *Selector) ApplyFilter(f *Filter, bind BindFunc) error {
	if err := s.EvalP(f.Condition, bind); err != nil {
		return fmt.Errorf("sqlgraph: filter %q: %w", f.Name, err)
	}
	return nil
}

// Predicate evaluates p against the selector tables without adding it to the statement.
func (s *Selector) Predicate(p querylanguage.P, bind BindFunc) (*sql.Predicate, error) {
	return s.eval(p, bind)
}

func (s *Selector) eval(e querylanguage.Expr, bind BindFunc) (*sql.Predicate, error) {
	switch e := e.(type) {
	case *querylanguage.UnaryExpr:
		if e.Op != querylanguage.OpNot {
			return nil, fmt.Errorf("sqlgraph: unexpected unary operator %s", e.Op)
		}
		x, err := s.eval(e.X, bind)
		if err != nil {
			return nil, err
		}
		return sql.Not(x), nil
	case *querylanguage.BinaryExpr:
		switch e.Op {
		case querylanguage.OpAnd, querylanguage.OpOr:
			return s.nary(e.Op, []querylanguage.Expr{e.X, e.Y}, bind)
		case querylanguage.OpIn, querylanguage.OpNotIn:
			return s.in(e, bind)
		default:
			return s.compare(e, bind)
		}
	case *querylanguage.NaryExpr:
		return s.nary(e.Op, e.Xs, bind)
	case *querylanguage.CallExpr:
		return s.call(e, bind)
	default:
		return nil, fmt.Errorf("sqlgraph: unexpected predicate %T", e)
	}
}

func (s *Selector) nary(op querylanguage.Op, xs []querylanguage.Expr, bind BindFunc) (*sql.Predicate, error) {
	ps := make([]*sql.Predicate, 0, len(xs))
	for _, x := range xs {
		p, err := s.eval(x, bind)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	switch op {
	case querylanguage.OpAnd:
		return sql.And(ps...), nil
	case querylanguage.OpOr:
		return sql.Or(ps...), nil
	default:
		return nil, fmt.Errorf("sqlgraph: unexpected n-ary operator %s", op)
	}
}

var (
	sqlOps = map[querylanguage.Op]string{
		querylanguage.OpEQ:  "=",
		querylanguage.OpNEQ: "<>",
		querylanguage.OpGT:  ">",
		querylanguage.OpGTE: ">=",
		querylanguage.OpLT:  "<",
		querylanguage.OpLTE: "<=",
	}
	// mirror is the operator with swapped operands: 1 < x is x > 1.
	mirror = map[querylanguage.Op]querylanguage.Op{
		querylanguage.OpEQ:  querylanguage.OpEQ,
		querylanguage.OpNEQ: querylanguage.OpNEQ,
		querylanguage.OpGT:  querylanguage.OpLT,
		querylanguage.OpGTE: querylanguage.OpLTE,
		querylanguage.OpLT:  querylanguage.OpGT,
		querylanguage.OpLTE: querylanguage.OpGTE,
	}
)

func (s *Selector) compare(e *querylanguage.BinaryExpr, bind BindFunc) (*sql.Predicate, error) {
	op, x, y := e.Op, e.X, e.Y
	if _, ok := x.(*querylanguage.Field); !ok {
		if _, ok := y.(*querylanguage.Field); !ok {
			return nil, fmt.Errorf("sqlgraph: comparison %s has no attribute operand", e)
		}
		op, x, y = mirror[op], y, x
	}
	sqlOp, ok := sqlOps[op]
	if !ok {
		return nil, fmt.Errorf("sqlgraph: unexpected comparison operator %s", op)
	}
	col, err := s.C(x.(*querylanguage.Field).Name)
	if err != nil {
		return nil, err
	}
	if f, ok := y.(*querylanguage.Field); ok {
		c2, err := s.C(f.Name)
		if err != nil {
			return nil, err
		}
		return sql.ColumnsOp(col, sqlOp, c2), nil
	}
	if v, ok := y.(*querylanguage.Value); ok && v.IsNil() {
		switch op {
		case querylanguage.OpEQ:
			return sql.IsNull(col), nil
		case querylanguage.OpNEQ:
			return sql.NotNull(col), nil
		default:
			return nil, fmt.Errorf("sqlgraph: operator %s is not defined for nil", op)
		}
	}
	v, err := s.value(y, bind)
	if err != nil {
		return nil, err
	}
	return sql.P(func(b *sql.Builder) {
		b.Ident(col).WriteString(" " + sqlOp + " ").Arg(v)
	}), nil
}

func (s *Selector) in(e *querylanguage.BinaryExpr, bind BindFunc) (*sql.Predicate, error) {
	f, ok := e.X.(*querylanguage.Field)
	if !ok {
		return nil, fmt.Errorf("sqlgraph: left operand of %s must be an attribute", e.Op)
	}
	col, err := s.C(f.Name)
	if err != nil {
		return nil, err
	}
	var vs []any
	switch y := e.Y.(type) {
	case *querylanguage.List:
		for _, x := range y.Xs {
			v, err := s.value(x, bind)
			if err != nil {
				return nil, err
			}
			vs = append(vs, expand(v)...)
		}
	default:
		v, err := s.value(y, bind)
		if err != nil {
			return nil, err
		}
		vs = expand(v)
	}
	if e.Op == querylanguage.OpNotIn {
		return sql.NotIn(col, vs...), nil
	}
	return sql.In(col, vs...), nil
}

func (s *Selector) call(e *querylanguage.CallExpr, bind BindFunc) (*sql.Predicate, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("sqlgraph: %s expects 2 arguments, got %d", e.Func, len(e.Args))
	}
	f, ok := e.Args[0].(*querylanguage.Field)
	if !ok {
		return nil, fmt.Errorf("sqlgraph: first argument of %s must be an attribute", e.Func)
	}
	col, err := s.C(f.Name)
	if err != nil {
		return nil, err
	}
	v, err := s.value(e.Args[1], bind)
	if err != nil {
		return nil, err
	}
	if e.Func == querylanguage.FuncLike {
		return sql.P(func(b *sql.Builder) {
			b.Ident(col).WriteString(" LIKE ").Arg(v)
		}), nil
	}
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("sqlgraph: %s expects a string argument, got %T", e.Func, v)
	}
	switch e.Func {
	case querylanguage.FuncContains:
		return sql.Contains(col, str), nil
	case querylanguage.FuncHasPrefix:
		return sql.HasPrefix(col, str), nil
	case querylanguage.FuncHasSuffix:
		return sql.HasSuffix(col, str), nil
	case querylanguage.FuncEqualFold:
		return sql.P(func(b *sql.Builder) {
			b.WriteString("lower(").Ident(col).WriteString(") = lower(").Arg(str).WriteString(")")
		}), nil
	case querylanguage.FuncContainsFold:
		return sql.P(func(b *sql.Builder) {
			b.WriteString("lower(").Ident(col).WriteString(") LIKE lower(").Arg("%" + str + "%").WriteString(")")
		}), nil
	default:
		return nil, fmt.Errorf("sqlgraph: unsupported function %s", e.Func)
	}
}

func (s *Selector) value(e querylanguage.Expr, bind BindFunc) (any, error) {
	switch e := e.(type) {
	case *querylanguage.Value:
		return e.V, nil
	case *querylanguage.Param:
		if bind == nil {
			return nil, fmt.Errorf("%w %s", ErrUnboundParameter, e)
		}
		return bind(e)
	default:
		return nil, fmt.Errorf("sqlgraph: unexpected operand %s", e)
	}
}

// expand flattens slice values into IN list elements. Byte slices are scalars.
func expand(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	case []byte, nil:
		return []any{v}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	vs := make([]any, rv.Len())
	for i := range vs {
		vs[i] = rv.Index(i).Interface()
	}
	return vs
}

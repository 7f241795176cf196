package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/sqm/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// node is implemented by every element that renders into a Builder.
type node interface {
	render(*Builder)
}

// Builder is the low-level SQL writer shared by all statement builders.
// Placeholders are numbered per Builder, so nested selectors rendered into
// the same Builder keep a consistent numbering on Postgres.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
}

// NewBuilder returns an empty Builder for the given dialect.
func NewBuilder(name string) *Builder {
	return &Builder{dialect: name}
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// Quote quotes the given identifier with the characters of the dialect.
// Dotted identifiers are quoted per part. Expressions and the star
// selector are returned as-is.
func (b *Builder) Quote(ident string) string {
	if ident == "*" || strings.ContainsAny(ident, "( `\"") {
		return ident
	}
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}

// Ident writes the quoted identifier.
func (b *Builder) Ident(s string) *Builder {
	b.sb.WriteString(b.Quote(s))
	return b
}

// IdentComma writes a comma separated list of quoted identifiers.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.Comma()
		}
		b.Ident(s[i])
	}
	return b
}

// WriteString writes the raw string.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Comma writes a comma and a space.
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// Pad writes a single space.
func (b *Builder) Pad() *Builder {
	return b.WriteString(" ")
}

// Arg appends the value to the arguments and writes its placeholder.
// Values created with Raw are written verbatim.
func (b *Builder) Arg(a any) *Builder {
	if r, ok := a.(rawValue); ok {
		return b.WriteString(string(r))
	}
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		return b.WriteString("$" + strconv.Itoa(len(b.args)))
	}
	return b.WriteString("?")
}

// Args writes a comma separated list of placeholders.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.Comma()
		}
		b.Arg(a[i])
	}
	return b
}

// Wrap writes the output of f wrapped in parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.WriteString("(")
	f(b)
	return b.WriteString(")")
}

// Join renders the given selector or predicate into the builder.
func (b *Builder) Join(n node) *Builder {
	n.render(b)
	return b
}

// String returns the accumulated SQL.
func (b *Builder) String() string { return b.sb.String() }

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

type rawValue string

// Raw returns a value that Builder.Arg writes verbatim instead of binding it.
func Raw(s string) any { return rawValue(s) }

// DialectBuilder prefixes all root builders with the dialect name.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: selectColumns(columns)}
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table}
}

// CreateTable creates a TableBuilder for the configured dialect.
func (d *DialectBuilder) CreateTable(name string) *TableBuilder {
	return &TableBuilder{dialect: d.dialect, name: name, command: "CREATE TABLE"}
}

// DropTable creates a DropTableBuilder for the configured dialect.
func (d *DialectBuilder) DropTable(name string) *DropTableBuilder {
	return &DropTableBuilder{dialect: d.dialect, name: name, command: "DROP TABLE"}
}

// Predicate is a where predicate.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a new predicate.
//
//	P(func(b *Builder) {
//		b.Ident("name").WriteString(" = ").Arg("a8m")
//	})
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

func (p *Predicate) render(b *Builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// Query renders the predicate with the given dialect.
func (p *Predicate) Query(name string) (string, []any) {
	b := NewBuilder(name)
	p.render(b)
	return b.Query()
}

func compare(col, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" " + op + " ").Arg(v)
	})
}

// EQ returns a "=" predicate.
func EQ(col string, v any) *Predicate { return compare(col, "=", v) }

// NEQ returns a "<>" predicate.
func NEQ(col string, v any) *Predicate { return compare(col, "<>", v) }

// LT returns a "<" predicate.
func LT(col string, v any) *Predicate { return compare(col, "<", v) }

// LTE returns a "<=" predicate.
func LTE(col string, v any) *Predicate { return compare(col, "<=", v) }

// GT returns a ">" predicate.
func GT(col string, v any) *Predicate { return compare(col, ">", v) }

// GTE returns a ">=" predicate.
func GTE(col string, v any) *Predicate { return compare(col, ">=", v) }

// Like returns a "LIKE" predicate.
func Like(col, pattern string) *Predicate { return compare(col, "LIKE", pattern) }

// HasPrefix is a helper predicate that checks prefix using the LIKE predicate.
func HasPrefix(col, prefix string) *Predicate { return Like(col, escapeLike(prefix)+"%") }

// HasSuffix is a helper predicate that checks suffix using the LIKE predicate.
func HasSuffix(col, suffix string) *Predicate { return Like(col, "%"+escapeLike(suffix)) }

// Contains is a helper predicate that checks substring using the LIKE predicate.
func Contains(col, sub string) *Predicate { return Like(col, "%"+escapeLike(sub)+"%") }

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// ColumnsOp compares two columns with the given operator.
func ColumnsOp(c1, op, c2 string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(c1).WriteString(" " + op + " ").Ident(c2)
	})
}

// ColumnsEQ appends a "=" predicate between 2 columns.
func ColumnsEQ(c1, c2 string) *Predicate { return ColumnsOp(c1, "=", c2) }

// IsNull returns an "IS NULL" predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NULL") })
}

// NotNull returns an "IS NOT NULL" predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) { b.Ident(col).WriteString(" IS NOT NULL") })
}

// In returns an "IN" predicate. An empty list never matches.
func In(col string, args ...any) *Predicate {
	return P(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Ident(col).WriteString(" IN ").Wrap(func(b *Builder) { b.Args(args...) })
	})
}

// NotIn returns a "NOT IN" predicate. An empty list always matches.
func NotIn(col string, args ...any) *Predicate {
	return P(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("1 = 1")
			return
		}
		b.Ident(col).WriteString(" NOT IN ").Wrap(func(b *Builder) { b.Args(args...) })
	})
}

// InSelect returns an "IN" predicate with a subquery on the right.
func InSelect(col string, s *Selector) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN ").Wrap(s.render)
	})
}

// TupleIn returns a row value "IN" predicate. Every row must have
// the same arity as cols.
func TupleIn(cols []string, rows [][]any) *Predicate {
	return P(func(b *Builder) {
		if len(rows) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Wrap(func(b *Builder) { b.IdentComma(cols...) }).WriteString(" IN ")
		b.Wrap(func(b *Builder) {
			for i, r := range rows {
				if i > 0 {
					b.Comma()
				}
				b.Wrap(func(b *Builder) { b.Args(r...) })
			}
		})
	})
}

// TupleInSelect returns a row value "IN" predicate with a subquery on the right.
func TupleInSelect(cols []string, s *Selector) *Predicate {
	return P(func(b *Builder) {
		b.Wrap(func(b *Builder) { b.IdentComma(cols...) }).WriteString(" IN ").Wrap(s.render)
	})
}

// Exists returns an "EXISTS" predicate.
func Exists(s *Selector) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("EXISTS ").Wrap(s.render)
	})
}

// NotExists returns a "NOT EXISTS" predicate.
func NotExists(s *Selector) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT EXISTS ").Wrap(s.render)
	})
}

// Expr returns a raw predicate. Every "?" in expr is replaced
// with the placeholder of the matching argument.
func Expr(expr string, args ...any) *Predicate {
	return P(func(b *Builder) {
		parts := strings.Split(expr, "?")
		for i, p := range parts {
			b.WriteString(p)
			if i < len(parts)-1 && i < len(args) {
				b.Arg(args[i])
			}
		}
	})
}

// And combines the predicates with AND.
func And(preds ...*Predicate) *Predicate {
	return join(" AND ", false, preds)
}

// Or combines the predicates with OR, wrapped in parentheses.
func Or(preds ...*Predicate) *Predicate {
	return join(" OR ", true, preds)
}

func join(sep string, wrap bool, preds []*Predicate) *Predicate {
	ps := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			ps = append(ps, p)
		}
	}
	if len(ps) == 1 {
		return ps[0]
	}
	return P(func(b *Builder) {
		if len(ps) == 0 {
			if wrap {
				b.WriteString("1 = 0")
			} else {
				b.WriteString("1 = 1")
			}
			return
		}
		if wrap {
			b.WriteString("(")
		}
		for i, p := range ps {
			if i > 0 {
				b.WriteString(sep)
			}
			p.render(b)
		}
		if wrap {
			b.WriteString(")")
		}
	})
}

// Not wraps the given predicate with NOT.
func Not(pred *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ").Wrap(pred.render)
	})
}

// SelectTable is a table reference in a FROM or JOIN clause.
type SelectTable struct {
	name string
	as   string
}

// Table returns a new table selector.
//
//	t1 := Table("users").As("u")
//	return Select(t1.C("name"))
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As adds the AS clause to the table selector.
func (t *SelectTable) As(alias string) *SelectTable {
	t.as = alias
	return t
}

// C returns a formatted string for the table column.
func (t *SelectTable) C(column string) string {
	if t.as != "" {
		return t.as + "." + column
	}
	return t.name + "." + column
}

// Name returns the table name.
func (t *SelectTable) Name() string { return t.name }

// Alias returns the table alias, or its name if none was set.
func (t *SelectTable) Alias() string {
	if t.as != "" {
		return t.as
	}
	return t.name
}

func (t *SelectTable) render(b *Builder) {
	b.Ident(t.name)
	if t.as != "" {
		b.WriteString(" AS ").Ident(t.as)
	}
}

type selectColumn struct {
	column string
	expr   *Predicate
}

func selectColumns(columns []string) []selectColumn {
	cs := make([]selectColumn, len(columns))
	for i := range columns {
		cs[i] = selectColumn{column: columns[i]}
	}
	return cs
}

type joinClause struct {
	kind  string
	table *SelectTable
	on    *Predicate
}

type orderTerm struct {
	column string
	desc   bool
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	dialect   string
	distinct  bool
	columns   []selectColumn
	from      *SelectTable
	joins     []joinClause
	where     *Predicate
	order     []orderTerm
	limit     *int
	forUpdate bool
}

// Select returns a new selector for the `SELECT` statement.
func Select(columns ...string) *Selector {
	return &Selector{columns: selectColumns(columns)}
}

// SetDialect sets the dialect of the selector.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Dialect returns the dialect of the selector.
func (s *Selector) Dialect() string { return s.dialect }

// Select changes the columns selection of the SELECT statement.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = selectColumns(columns)
	return s
}

// AppendSelect appends additional columns to the SELECT statement.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	s.columns = append(s.columns, selectColumns(columns)...)
	return s
}

// AppendSelectExpr appends a raw expression to the selection.
// Arguments are bound the same way as in Expr.
func (s *Selector) AppendSelectExpr(expr string, args ...any) *Selector {
	s.columns = append(s.columns, selectColumn{expr: Expr(expr, args...)})
	return s
}

// SelectedColumns returns the plain column names of the selection.
func (s *Selector) SelectedColumns() []string {
	cs := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		if c.expr == nil {
			cs = append(cs, c.column)
		}
	}
	return cs
}

// Distinct adds the DISTINCT keyword to the `SELECT` statement.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// From sets the source of `FROM` clause.
func (s *Selector) From(t *SelectTable) *Selector {
	s.from = t
	return s
}

// Table returns the table of the FROM clause.
func (s *Selector) Table() *SelectTable { return s.from }

// Join appends a `JOIN` clause to the statement.
func (s *Selector) Join(t *SelectTable) *Selector {
	s.joins = append(s.joins, joinClause{kind: "JOIN", table: t})
	return s
}

// LeftJoin appends a `LEFT JOIN` clause to the statement.
func (s *Selector) LeftJoin(t *SelectTable) *Selector {
	s.joins = append(s.joins, joinClause{kind: "LEFT JOIN", table: t})
	return s
}

// On sets the `ON` clause of the last `JOIN` operation. Calling it
// more than once ANDs the conditions.
func (s *Selector) On(c1, c2 string) *Selector {
	return s.OnP(ColumnsEQ(c1, c2))
}

// OnP sets or appends the given predicate for the `ON` clause of the last `JOIN` operation.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) == 0 {
		return s
	}
	j := &s.joins[len(s.joins)-1]
	if j.on == nil {
		j.on = p
	} else {
		j.on = And(j.on, p)
	}
	return s
}

// Where sets or appends the given predicate to the statement.
func (s *Selector) Where(p *Predicate) *Selector {
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// P returns the predicate of the statement.
func (s *Selector) P() *Predicate { return s.where }

// OrderBy appends the `ORDER BY` columns in ascending order.
func (s *Selector) OrderBy(columns ...string) *Selector {
	for _, c := range columns {
		s.order = append(s.order, orderTerm{column: c})
	}
	return s
}

// OrderByDesc appends the `ORDER BY` columns in descending order.
func (s *Selector) OrderByDesc(columns ...string) *Selector {
	for _, c := range columns {
		s.order = append(s.order, orderTerm{column: c, desc: true})
	}
	return s
}

// Limit adds the `LIMIT` clause to the `SELECT` statement.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// ForUpdate sets the `FOR UPDATE` lock on the statement.
// SQLite has no row locks and ignores it.
func (s *Selector) ForUpdate() *Selector {
	s.forUpdate = true
	return s
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.render(b)
	return b.Query()
}

func (s *Selector) render(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	}
	for i, c := range s.columns {
		if i > 0 {
			b.Comma()
		}
		if c.expr != nil {
			c.expr.render(b)
		} else {
			b.Ident(c.column)
		}
	}
	if s.from != nil {
		b.WriteString(" FROM ")
		s.from.render(b)
	}
	for _, j := range s.joins {
		b.WriteString(" " + j.kind + " ")
		j.table.render(b)
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.render(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.render(b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.Comma()
			}
			b.Ident(o.column)
			if o.desc {
				b.WriteString(" DESC")
			}
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*s.limit))
	}
	if s.forUpdate && b.dialect != dialect.SQLite {
		b.WriteString(" FOR UPDATE")
	}
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	dialect string
	table   string
	as      string
	columns []string
	values  []any
	where   *Predicate
}

// Update creates a builder for the `UPDATE` statement.
//
//	Update("users").Set("name", "foo").Set("age", 10)
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Set sets a column to a given value. Values created with Raw are written verbatim.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// As sets the alias of the updated table. Not every MySQL version accepts it.
func (u *UpdateBuilder) As(alias string) *UpdateBuilder {
	u.as = alias
	return u
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Where adds a where predicate for update statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	b.WriteString("UPDATE ").Ident(u.table)
	if u.as != "" {
		b.WriteString(" AS ").Ident(u.as)
	}
	b.WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.Comma()
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.render(b)
	}
	return b.Query()
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	dialect string
	table   string
	as      string
	where   *Predicate
}

// Delete creates a builder for the `DELETE` statement.
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// As sets the alias of the table rows are deleted from.
func (d *DeleteBuilder) As(alias string) *DeleteBuilder {
	d.as = alias
	return d
}

// Where appends a where predicate to the `DELETE` statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ").Ident(d.table)
	if d.as != "" {
		b.WriteString(" AS ").Ident(d.as)
	}
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.render(b)
	}
	return b.Query()
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	dialect string
	table   string
	columns []string
	values  [][]any
	sel     *Selector
}

// Insert creates a builder for the `INSERT INTO` statement.
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values append a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Select sets the subquery feeding an INSERT INTO ... SELECT statement.
func (i *InsertBuilder) Select(s *Selector) *InsertBuilder {
	i.sel = s
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	b.WriteString("INSERT INTO ").Ident(i.table)
	if len(i.columns) > 0 {
		b.Pad().Wrap(func(b *Builder) { b.IdentComma(i.columns...) })
	}
	if i.sel != nil {
		b.Pad()
		i.sel.render(b)
		return b.Query()
	}
	b.WriteString(" VALUES ")
	for j, v := range i.values {
		if j > 0 {
			b.Comma()
		}
		b.Wrap(func(b *Builder) { b.Args(v...) })
	}
	return b.Query()
}

// TableBuilder is a query builder for `CREATE TABLE` statement.
type TableBuilder struct {
	dialect     string
	command     string
	name        string
	columns     []string
	types       []string
	primaryKeys []string
}

// Command replaces the statement prefix, e.g. with a dialect specific
// "CREATE TEMPORARY TABLE IF NOT EXISTS".
func (t *TableBuilder) Command(cmd string) *TableBuilder {
	t.command = cmd
	return t
}

// Column appends the given column to the `CREATE TABLE` statement.
func (t *TableBuilder) Column(name, typ string) *TableBuilder {
	t.columns = append(t.columns, name)
	t.types = append(t.types, typ)
	return t
}

// PrimaryKey adds a column to the primary-key constraint in the statement.
func (t *TableBuilder) PrimaryKey(column ...string) *TableBuilder {
	t.primaryKeys = append(t.primaryKeys, column...)
	return t
}

// Query returns query representation of a `CREATE TABLE` statement.
func (t *TableBuilder) Query() (string, []any) {
	b := NewBuilder(t.dialect)
	b.WriteString(t.command + " ").Ident(t.name).Pad()
	b.Wrap(func(b *Builder) {
		for i, c := range t.columns {
			if i > 0 {
				b.Comma()
			}
			b.Ident(c).Pad().WriteString(t.types[i])
		}
		if len(t.primaryKeys) > 0 {
			b.WriteString(", PRIMARY KEY ").Wrap(func(b *Builder) { b.IdentComma(t.primaryKeys...) })
		}
	})
	return b.Query()
}

// DropTableBuilder is a query builder for `DROP TABLE` statement.
type DropTableBuilder struct {
	dialect string
	command string
	name    string
}

// Command replaces the statement prefix, e.g. with "DROP TEMPORARY TABLE IF EXISTS".
func (t *DropTableBuilder) Command(cmd string) *DropTableBuilder {
	t.command = cmd
	return t
}

// Query returns query representation of a `DROP TABLE` statement.
func (t *DropTableBuilder) Query() (string, []any) {
	b := NewBuilder(t.dialect)
	b.WriteString(t.command + " ").Ident(t.name)
	return b.Query()
}

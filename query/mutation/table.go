package mutation

import (
	"context"
	"fmt"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/tree"
)

// TableKind is the kind of holding table.
type TableKind int

const (
	// LocalTemporary tables are private to the connection of the session.
	LocalTemporary TableKind = iota
	// GlobalPersistent tables are regular tables shared by all sessions.
	// Their rows carry the session id.
	GlobalPersistent
)

func (k TableKind) String() string {
	switch k {
	case LocalTemporary:
		return "local-temporary"
	case GlobalPersistent:
		return "global-persistent"
	default:
		return fmt.Sprintf("TableKind(%d)", int(k))
	}
}

// BeforeUseAction is applied to the holding table before staging ids.
type BeforeUseAction int

const (
	// CreateIfMissing creates the holding table if it does not exist.
	CreateIfMissing BeforeUseAction = iota
	// BeforeUseNone expects the holding table to exist.
	BeforeUseNone
)

// AfterUseAction is applied to the holding table once the table
// statements ran.
type AfterUseAction int

const (
	// AfterUseClean deletes the staged rows.
	AfterUseClean AfterUseAction = iota
	// AfterUseDrop drops the holding table.
	AfterUseDrop
	// AfterUseNone leaves the staged rows until the session ends. They are
	// removed by a cleanup registered with the session.
	AfterUseNone
)

func (a AfterUseAction) String() string {
	switch a {
	case AfterUseClean:
		return "clean"
	case AfterUseDrop:
		return "drop"
	case AfterUseNone:
		return "none"
	default:
		return fmt.Sprintf("AfterUseAction(%d)", int(a))
	}
}

const (
	// DefaultTablePrefix prefixes the root table name in holding table names.
	DefaultTablePrefix = "HT_"
	// SessionColumn is the column holding the session id in holding tables.
	SessionColumn = "sess_uid"
)

// TableBasedConfig configures a TableBasedStrategy. The zero value, with a
// dialect, creates local temporary tables on demand and cleans them after use.
type TableBasedConfig struct {
	Dialect   string
	Kind      TableKind
	BeforeUse BeforeUseAction
	AfterUse  AfterUseAction
	// SessionColumn adds the session column to local temporary tables.
	// Global tables always have it.
	SessionColumn bool
	// Prefix defaults to DefaultTablePrefix.
	Prefix string
}

// TableBasedStrategy stages the matching ids in a holding table and
// restricts every table statement with a subquery on it.
type TableBasedStrategy struct {
	cfg  TableBasedConfig
	caps dialect.Capabilities
}

// NewTableBasedStrategy returns a table based strategy, or an error
// wrapping ErrUnsupportedConfiguration for configurations the dialect
// cannot honor.
func NewTableBasedStrategy(cfg TableBasedConfig) (*TableBasedStrategy, error) {
	c, err := dialect.CapabilitiesOf(cfg.Dialect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedConfiguration, err)
	}
	switch {
	case cfg.Kind == LocalTemporary && c.TemporaryTables == dialect.NoTemporaryTables:
		return nil, fmt.Errorf("%w: dialect %s has no temporary tables", ErrUnsupportedConfiguration, cfg.Dialect)
	case cfg.Kind == GlobalPersistent && cfg.AfterUse == AfterUseDrop:
		return nil, fmt.Errorf("%w: %s holding tables are shared and cannot be dropped after use", ErrUnsupportedConfiguration, cfg.Kind)
	case cfg.BeforeUse == BeforeUseNone && cfg.AfterUse == AfterUseDrop:
		return nil, fmt.Errorf("%w: holding tables dropped after use must be created before use", ErrUnsupportedConfiguration)
	case cfg.Kind != LocalTemporary && cfg.Kind != GlobalPersistent:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfiguration, cfg.Kind)
	case cfg.AfterUse < AfterUseClean || cfg.AfterUse > AfterUseNone:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfiguration, cfg.AfterUse)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultTablePrefix
	}
	return &TableBasedStrategy{cfg: cfg, caps: c}, nil
}

// Config returns the configuration of the strategy.
func (s *TableBasedStrategy) Config() TableBasedConfig { return s.cfg }

// HoldingTable returns the name of the holding table of the entity.
func (s *TableBasedStrategy) HoldingTable(e *sqlgraph.Entity) string {
	return s.cfg.Prefix + e.Root().Table.Name
}

// ExecuteUpdate implements Strategy.
func (s *TableBasedStrategy) ExecuteUpdate(ctx context.Context, stmt *tree.UpdateStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error) {
	d, err := s.resolveDelegate(ec, stmt, x)
	if err != nil {
		return 0, err
	}
	return d.Execute(ctx, ec)
}

// ExecuteDelete implements Strategy.
func (s *TableBasedStrategy) ExecuteDelete(ctx context.Context, stmt *tree.DeleteStatement, x *tree.ParameterXref, ec *ExecutionContext) (int, error) {
	d, err := s.resolveDelegate(ec, stmt, x)
	if err != nil {
		return 0, err
	}
	return d.Execute(ctx, ec)
}

func (s *TableBasedStrategy) resolveDelegate(ec *ExecutionContext, stmt tree.MutationStatement, x *tree.ParameterXref) (ExecutionDelegate, error) {
	if ec.Dialect != s.cfg.Dialect {
		return nil, fmt.Errorf("%w: strategy for %s used with %s", ErrUnsupportedConfiguration, s.cfg.Dialect, ec.Dialect)
	}
	e, err := ec.entity(stmt.Entity())
	if err != nil {
		return nil, err
	}
	h := &holdingTable{
		strategy: s,
		name:     s.HoldingTable(e),
		entity:   e,
		session:  s.cfg.Kind == GlobalPersistent || s.cfg.SessionColumn,
		uid:      ec.SessionID,
	}
	if h.session && h.uid == "" {
		return nil, fmt.Errorf("%w: holding table %s requires a session id", ErrUnsupportedConfiguration, h.name)
	}
	return resolveDelegate(ec, stmt, x, h)
}

// holdingTable is the restriction of one call of a TableBasedStrategy.
type holdingTable struct {
	strategy *TableBasedStrategy
	name     string
	entity   *sqlgraph.Entity
	session  bool
	uid      string
}

func (h *holdingTable) stage(ctx context.Context, ec *ExecutionContext, s *sqlgraph.Selector) (int, error) {
	b := sql.Dialect(ec.Dialect)
	if h.strategy.cfg.BeforeUse == CreateIfMissing {
		t, err := h.create(b)
		if err != nil {
			return 0, err
		}
		if _, err := execute(ctx, ec, t); err != nil {
			return 0, err
		}
	}
	if _, err := execute(ctx, ec, h.clean(b)); err != nil {
		return 0, err
	}
	ids := s.IDColumns()
	columns := h.entity.IDColumns()
	s.Select()
	if h.session {
		columns = append([]string{SessionColumn}, columns...)
		if ec.Dialect == dialect.Postgres {
			s.AppendSelectExpr("CAST(? AS "+h.strategy.caps.SessionIDType+")", h.uid)
		} else {
			s.AppendSelectExpr("?", h.uid)
		}
	}
	s.AppendSelect(ids...)
	return execute(ctx, ec, b.Insert(h.name).Columns(columns...).Select(s.Selector))
}

func (h *holdingTable) create(b *sql.DialectBuilder) (*sql.TableBuilder, error) {
	t := b.CreateTable(h.name).Command("CREATE TABLE IF NOT EXISTS")
	if h.strategy.cfg.Kind == LocalTemporary {
		t.Command(h.strategy.caps.CreateTemporaryTable)
	}
	var pk []string
	if h.session {
		t.Column(SessionColumn, h.strategy.caps.SessionIDType)
		pk = append(pk, SessionColumn)
	}
	types := h.entity.IDTypes()
	for i, c := range h.entity.IDColumns() {
		if types[i] == "" {
			return nil, fmt.Errorf("%w: identifier column %s of %s has no type for holding table %s",
				ErrUnsupportedConfiguration, c, h.entity.Root().Name, h.name)
		}
		t.Column(c, types[i])
	}
	return t.PrimaryKey(append(pk, h.entity.IDColumns()...)...), nil
}

// clean deletes the rows of the session, or every row of a holding table
// private to the connection.
func (h *holdingTable) clean(b *sql.DialectBuilder) *sql.DeleteBuilder {
	d := b.Delete(h.name)
	if h.session {
		d.Where(sql.EQ(SessionColumn, h.uid))
	}
	return d
}

func (h *holdingTable) drop(b *sql.DialectBuilder) *sql.DropTableBuilder {
	return b.DropTable(h.name).Command(h.strategy.caps.DropTemporaryTable)
}

// predicate restricts t with a subquery on the holding table, correlated
// through EXISTS for composite ids:
//
//	"id" IN (SELECT "id" FROM "HT_customers" WHERE "sess_uid" = ?)
//	EXISTS (SELECT 1 FROM "HT_orders" AS "ht" WHERE "ht"."sess_uid" = ? AND "ht"."a" = "lines"."a" AND ...)
func (h *holdingTable) predicate(t *sqlgraph.Table) *sql.Predicate {
	ids := h.entity.IDColumns()
	if len(ids) == 1 {
		sub := sql.Select(ids[0]).From(sql.Table(h.name))
		if h.session {
			sub.Where(sql.EQ(SessionColumn, h.uid))
		}
		return sql.InSelect(t.KeyColumns[0], sub)
	}
	ht := sql.Table(h.name).As("ht")
	sub := sql.Select().AppendSelectExpr("1").From(ht)
	if h.session {
		sub.Where(sql.EQ(ht.C(SessionColumn), h.uid))
	}
	for i, c := range ids {
		sub.Where(sql.ColumnsEQ(ht.C(c), t.Name+"."+t.KeyColumns[i]))
	}
	return sql.Exists(sub)
}

func (h *holdingTable) release(ctx context.Context, ec *ExecutionContext) error {
	b := sql.Dialect(ec.Dialect)
	switch h.strategy.cfg.AfterUse {
	case AfterUseDrop:
		_, err := execute(ctx, ec, h.drop(b))
		return err
	case AfterUseNone:
		return ec.RegisterCleanup(h.name, h.deferred())
	default:
		_, err := execute(ctx, ec, h.clean(b))
		return err
	}
}

// deferred returns the cleanup run when the session ends. Connection
// private tables are dropped, shared ones lose the rows of the session.
func (h *holdingTable) deferred() CleanupFunc {
	dialectName := h.strategy.cfg.Dialect
	return func(ctx context.Context, conn dialect.ExecQuerier) error {
		b := sql.Dialect(dialectName)
		var q sql.Querier = h.clean(b)
		if h.strategy.cfg.Kind == LocalTemporary && h.strategy.cfg.BeforeUse == CreateIfMissing {
			q = h.drop(b)
		}
		query, args := q.Query()
		return conn.Exec(ctx, query, args, nil)
	}
}

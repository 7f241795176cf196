package sqm_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/sqm"
	"github.com/syssam/sqm/config"
	"github.com/syssam/sqm/dialect"
	entsql "github.com/syssam/sqm/dialect/sql"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/mutation"
	"github.com/syssam/sqm/query/plan"
	"github.com/syssam/sqm/query/tree"
)

// fixture: 7 and 8 are foreign customers, 9 and 10 domestic ones. Only 7
// and 8 have details. Tags live in one table.
var fixture = []string{
	"CREATE TABLE customers (id integer primary key, name text, region text)",
	"CREATE TABLE customer_details (customer_id integer primary key, data text)",
	"CREATE TABLE foreign_customers (id integer primary key, vat text)",
	"CREATE TABLE domestic_customers (id integer primary key, tax_code text)",
	"CREATE TABLE tags (id integer primary key, name text, region text)",
	"INSERT INTO customers VALUES (7, 'Acme', 'eu'), (8, 'Bolt', 'eu'), (9, 'Cove', 'us'), (10, 'Dune', 'us')",
	"INSERT INTO customer_details VALUES (7, 'X'), (8, 'Y')",
	"INSERT INTO foreign_customers VALUES (7, 'GB7'), (8, 'GB8')",
	"INSERT INTO domestic_customers VALUES (9, 'T9'), (10, 'T10')",
	"INSERT INTO tags VALUES (1, 'go', 'eu'), (2, 'sql', 'us'), (3, 'go', 'us')",
}

func testSchema() *sqlgraph.Schema {
	return sqlgraph.NewSchema().MustAdd(
		&sqlgraph.Entity{
			Name:      "Customer",
			IDs:       []sqlgraph.ID{{Attribute: "id", Type: "integer"}},
			Table:     &sqlgraph.Table{Columns: map[string]string{"name": "name", "region": "region"}},
			Secondary: []*sqlgraph.Table{{Name: "customer_details", Columns: map[string]string{"data": "data"}, Optional: true}},
		},
		&sqlgraph.Entity{
			Name:   "ForeignCustomer",
			Parent: "Customer",
			Table:  &sqlgraph.Table{Columns: map[string]string{"vat": "vat"}},
		},
		&sqlgraph.Entity{
			Name:   "DomesticCustomer",
			Parent: "Customer",
			Table:  &sqlgraph.Table{Columns: map[string]string{"taxCode": "tax_code"}},
		},
		&sqlgraph.Entity{
			Name:  "Tag",
			IDs:   []sqlgraph.ID{{Attribute: "id", Type: "integer"}},
			Table: &sqlgraph.Table{Columns: map[string]string{"name": "name", "region": "region"}},
		},
	)
}

func openDB(t *testing.T) (*sql.DB, *entsql.Driver) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqm.db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range fixture {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db, entsql.OpenDB(dialect.SQLite, db)
}

func openFactory(t *testing.T, opts ...sqm.Option) (*sql.DB, *sqm.SessionFactory) {
	t.Helper()
	db, drv := openDB(t)
	sf, err := sqm.Open(drv, testSchema(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close() })
	return db, sf
}

func openSession(t *testing.T, sf *sqm.SessionFactory) *sqm.Session {
	t.Helper()
	s, err := sf.OpenSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpen_Configuration(t *testing.T) {
	tests := []struct {
		name string
		opts []sqm.Option
		want error
	}{
		{
			name: "unknown filter entity",
			opts: []sqm.Option{sqm.WithFilter("Order", "region", "region = :region")},
		},
		{
			name: "filter on unknown attribute",
			opts: []sqm.Option{sqm.WithFilter("Customer", "color", "color = :color")},
		},
		{
			name: "positional filter parameter",
			opts: []sqm.Option{sqm.WithFilter("Customer", "region", "region = ?1")},
		},
		{
			name: "invalid named query",
			opts: []sqm.Option{sqm.WithNamedQuery("broken", "delete from")},
		},
		{
			name: "duplicate named query",
			opts: []sqm.Option{
				sqm.WithNamedQuery("byName", "from Customer c where c.name = :name"),
				sqm.WithNamedNativeQuery("byName", "SELECT * FROM customers WHERE name = :name"),
			},
		},
		{
			name: "shared holding table dropped after use",
			opts: []sqm.Option{sqm.WithTableBasedStrategy(mutation.TableBasedConfig{
				Kind:     mutation.GlobalPersistent,
				AfterUse: mutation.AfterUseDrop,
			})},
			want: sqm.ErrUnsupportedConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, drv := openDB(t)
			_, err := sqm.Open(drv, testSchema(), tt.opts...)
			require.Error(t, err)
			assert.True(t, sqm.IsConfigurationError(err), "%v", err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	t.Run("failed open leaves the mapping untouched", func(t *testing.T) {
		_, drv := openDB(t)
		g := testSchema()
		_, err := sqm.Open(drv, g,
			sqm.WithFilter("Customer", "region", "region = :region"),
			sqm.WithNamedQuery("broken", "delete from"),
		)
		require.Error(t, err)
		c, _ := g.Entity("Customer")
		_, ok := c.Filter("region")
		assert.False(t, ok)

		sf, err := sqm.Open(drv, g, sqm.WithFilter("Customer", "region", "region = :region"))
		require.NoError(t, err)
		_, ok = c.Filter("region")
		assert.True(t, ok)
		require.NoError(t, sf.Close())
	})

	t.Run("identifier type required by holding tables", func(t *testing.T) {
		_, drv := openDB(t)
		g := sqlgraph.NewSchema().MustAdd(&sqlgraph.Entity{
			Name:  "Tag",
			IDs:   []sqlgraph.ID{{Attribute: "id"}},
			Table: &sqlgraph.Table{Columns: map[string]string{"name": "name"}},
		})
		_, err := sqm.Open(drv, g, sqm.WithTableBasedStrategy(mutation.TableBasedConfig{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "identifier has no SQL type")

		sf, err := sqm.Open(drv, g)
		require.NoError(t, err, "untyped identifiers are fine inline")
		require.NoError(t, sf.Close())
	})
}

func TestSession_MultiTableMutations(t *testing.T) {
	strategies := map[string]sqm.Option{
		"inline":      sqm.WithInlineStrategy(),
		"table":       sqm.WithTableBasedStrategy(mutation.TableBasedConfig{}),
		"table-drop":  sqm.WithTableBasedStrategy(mutation.TableBasedConfig{AfterUse: mutation.AfterUseDrop}),
		"global-none": sqm.WithTableBasedStrategy(mutation.TableBasedConfig{Kind: mutation.GlobalPersistent, AfterUse: mutation.AfterUseNone}),
	}
	for name, opt := range strategies {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			db, sf := openFactory(t, opt)

			s := openSession(t, sf)
			q, err := s.CreateQuery("delete ForeignCustomer c where c.data = :d")
			require.NoError(t, err)
			n, err := q.SetParameter("d", "X").ExecuteUpdate(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			q, err = s.CreateQuery("update Customer c set c.name = 'Z', c.data = 'W' where c.region = :r")
			require.NoError(t, err)
			n, err = q.SetParameter("r", "us").ExecuteUpdate(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			require.NoError(t, s.Commit(ctx))

			assert.Equal(t, 3, count(t, db, "customers"))
			assert.Equal(t, 1, count(t, db, "customer_details"))
			assert.Equal(t, 1, count(t, db, "foreign_customers"))
			var zs int
			require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM customers WHERE name = 'Z'").Scan(&zs))
			assert.Equal(t, 2, zs)
		})
	}
}

func TestSession_SingleTableMutations(t *testing.T) {
	ctx := context.Background()
	db, sf := openFactory(t, sqm.WithTableBasedStrategy(mutation.TableBasedConfig{}))
	s := openSession(t, sf)

	q, err := s.CreateQuery("update Tag t set t.region = 'eu' where t.name = :name")
	require.NoError(t, err)
	n, err := q.SetParameter("name", "go").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	q, err = s.CreateQuery("delete Tag t where t.id = ?1")
	require.NoError(t, err)
	n, err = q.SetPositionalParameter(1, 2).ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Commit(ctx))

	assert.Equal(t, 2, count(t, db, "tags"))
	var eu int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tags WHERE region = 'eu'").Scan(&eu))
	assert.Equal(t, 2, eu)
	// Single table mutations never stage ids.
	var tables int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name LIKE 'HT_%'").Scan(&tables))
	assert.Zero(t, tables)
}

func TestQuery_List(t *testing.T) {
	ctx := context.Background()
	_, sf := openFactory(t, sqm.WithStatisticsEnabled(true))
	s := openSession(t, sf)

	for range 2 {
		q, err := s.CreateQuery("from Customer c where c.region = :r order by c.id")
		require.NoError(t, err)
		rows, err := q.SetParameter("r", "eu").List(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, plan.Row{"id": int64(7), "name": "Acme", "region": "eu", "data": "X"}, rows[0])
		assert.EqualValues(t, 8, rows[1]["id"])
	}
	stats := sf.CacheStats()
	assert.Equal(t, 1, stats.Plans)
	assert.Equal(t, 1, stats.Interpretations)
	snap := sf.Statistics().Snapshot()
	assert.EqualValues(t, 2, snap.PlanCacheHits, "second translation and second plan lookup")
	assert.EqualValues(t, 1, snap.PlanCacheMisses)

	t.Run("ReadOnlyPlan", func(t *testing.T) {
		q, err := s.CreateQuery("from Customer c where c.region = :r order by c.id")
		require.NoError(t, err)
		_, err = q.SetParameter("r", "eu").SetReadOnly(true).List(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, sf.CacheStats().Plans)
	})

	t.Run("Selection", func(t *testing.T) {
		q, err := s.CreateQuery("select c.vat from ForeignCustomer c where c.id = 8")
		require.NoError(t, err)
		row, err := q.UniqueResult(ctx)
		require.NoError(t, err)
		assert.Equal(t, plan.Row{"vat": "GB8"}, row)
	})

	t.Run("UniqueResult", func(t *testing.T) {
		q, err := s.CreateQuery("from Customer c where c.region = 'us'")
		require.NoError(t, err)
		_, err = q.UniqueResult(ctx)
		assert.True(t, sqm.IsNotSingular(err))

		q, err = s.CreateQuery("from Customer c where c.region = 'ap'")
		require.NoError(t, err)
		_, err = q.UniqueResult(ctx)
		assert.True(t, sqm.IsNotFound(err))
	})

	t.Run("ListParameter", func(t *testing.T) {
		plans := sf.CacheStats().Plans
		for _, names := range [][]string{{"Acme", "Cove"}, {"Acme", "Bolt", "Dune"}} {
			q, err := s.CreateQuery("select c.name from Customer c where c.name in :names order by c.id")
			require.NoError(t, err)
			rows, err := q.SetParameter("names", names).List(ctx)
			require.NoError(t, err)
			require.Len(t, rows, len(names))
			for i, r := range rows {
				assert.Equal(t, names[i], r["name"])
			}
		}
		assert.Equal(t, plans, sf.CacheStats().Plans, "plans with bound collections are not cached")

		q, err := s.CreateQuery("from Customer c where c.region = :r")
		require.NoError(t, err)
		_, err = q.SetParameter("r", []string{"eu", "us"}).List(ctx)
		assert.True(t, sqm.IsQueryError(err))
		assert.ErrorIs(t, err, plan.ErrListParameter)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := s.CreateQuery("from Order o")
		assert.True(t, sqm.IsQueryError(err))
		assert.ErrorIs(t, err, sqm.ErrInvalidQuery)

		q, err := s.CreateQuery("from Customer c where c.region = :r")
		require.NoError(t, err)
		_, err = q.List(ctx)
		assert.ErrorIs(t, err, tree.ErrUnboundParameter)

		q, err = s.CreateQuery("from Customer c where c.region = :r")
		require.NoError(t, err)
		_, err = q.SetParameter("x", 1).List(ctx)
		assert.True(t, sqm.IsQueryError(err))
		assert.ErrorIs(t, err, tree.ErrUndeclaredParameter)

		q, err = s.CreateQuery("delete Tag t")
		require.NoError(t, err)
		_, err = q.List(ctx)
		assert.ErrorIs(t, err, sqm.ErrUnsupportedOperation)

		q, err = s.CreateQuery("from Tag t")
		require.NoError(t, err)
		_, err = q.ExecuteUpdate(ctx)
		assert.ErrorIs(t, err, sqm.ErrUnsupportedOperation)
	})
}

func TestSession_Filters(t *testing.T) {
	ctx := context.Background()
	db, sf := openFactory(t,
		sqm.WithFilter("Customer", "region", "region = :region"),
		sqm.WithFilter("Tag", "tagRegion", "region = :region"),
	)
	s := openSession(t, sf)

	_, err := s.EnableFilter("color")
	assert.True(t, sqm.IsConfigurationError(err))

	b, err := s.EnableFilter("region")
	require.NoError(t, err)
	assert.Equal(t, "region", b.Name())
	again, err := s.EnableFilter("region")
	require.NoError(t, err)
	assert.Same(t, b, again)

	q, err := s.CreateQuery("from Customer c")
	require.NoError(t, err)
	_, err = q.List(ctx)
	assert.ErrorIs(t, err, sqlgraph.ErrUnboundParameter)

	b.SetParameter("region", "eu")
	q, err = s.CreateQuery("from ForeignCustomer c")
	require.NoError(t, err)
	rows, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Zero(t, sf.CacheStats().Plans, "filtered plans are not cached")

	q, err = s.CreateQuery("delete Customer c where c.name <> 'Acme'")
	require.NoError(t, err)
	n, err := q.ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only Bolt is in eu")

	// The region filter is not defined on tags.
	q, err = s.CreateQuery("delete Tag t where t.name = 'go'")
	require.NoError(t, err)
	n, err = q.ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s.DisableFilter("region")
	q, err = s.CreateQuery("from Customer c")
	require.NoError(t, err)
	rows, err = q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, 3, count(t, db, "customers"))

	t.Run("UndeclaredParameter", func(t *testing.T) {
		s := openSession(t, sf)
		b, err := s.EnableFilter("tagRegion")
		require.NoError(t, err)
		b.SetParameter("color", "red")
		assert.Error(t, b.Validate())
	})
}

func TestNativeQuery(t *testing.T) {
	ctx := context.Background()
	db, sf := openFactory(t)
	s := openSession(t, sf)

	_, err := s.CreateNativeQuery("SELECT id FROM customers WHERE region = :r AND id > ?1")
	assert.True(t, sqm.IsQueryError(err), "mixed parameters")

	q, err := s.CreateNativeQuery("SELECT id, name FROM customers WHERE region = :r AND id > :min ORDER BY id")
	require.NoError(t, err)
	assert.NotContains(t, q.SQL(), ":r")
	rows, err := q.SetParameter("r", "us").SetParameter("min", 9).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []plan.Row{{"id": int64(10), "name": "Dune"}}, rows)

	q, err = s.CreateNativeQuery("SELECT name FROM tags WHERE id = ?")
	require.NoError(t, err)
	row, err := q.SetPositionalParameter(1, 2).UniqueResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.Row{"name": "sql"}, row)

	q, err = s.CreateNativeQuery("UPDATE tags SET region = :r")
	require.NoError(t, err)
	_, err = q.ExecuteUpdate(ctx)
	assert.ErrorIs(t, err, tree.ErrUnboundParameter)

	q, err = s.CreateNativeQuery("UPDATE tags SET region = :r")
	require.NoError(t, err)
	n, err := q.SetParameter("r", "ap").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, s.Commit(ctx))

	var ap int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tags WHERE region = 'ap'").Scan(&ap))
	assert.Equal(t, 3, ap)
	assert.Equal(t, 3, sf.CacheStats().NativeParameters)
}

func TestNamedQueries(t *testing.T) {
	ctx := context.Background()
	_, sf := openFactory(t,
		sqm.WithNamedQuery("byName", "from Customer c where c.name = :name"),
		sqm.WithNamedQuery("purgeTags", "delete Tag t where t.region = :region"),
		sqm.WithNamedNativeQuery("tagByID", "SELECT id, name FROM tags WHERE id = ?1"),
	)
	assert.Equal(t, 2, sf.CacheStats().Interpretations, "named queries are translated at open")
	s := openSession(t, sf)

	q, err := s.CreateNamedQuery("byName")
	require.NoError(t, err)
	row, err := q.SetParameter("name", "Cove").UniqueResult(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 9, row["id"])

	q, err = s.CreateNamedQuery("purgeTags")
	require.NoError(t, err)
	n, err := q.SetParameter("region", "us").ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	nq, err := s.CreateNamedNativeQuery("tagByID")
	require.NoError(t, err)
	row, err = nq.SetPositionalParameter(1, 1).UniqueResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, "go", row["name"])

	_, err = s.CreateNamedQuery("tagByID")
	assert.ErrorIs(t, err, sqm.ErrUnsupportedOperation)
	_, err = s.CreateNamedNativeQuery("byName")
	assert.ErrorIs(t, err, sqm.ErrUnsupportedOperation)
	_, err = s.CreateNamedQuery("missing")
	assert.True(t, sqm.IsConfigurationError(err))
}

func TestProvidedQueryLoader(t *testing.T) {
	ctx := context.Background()
	_, sf := openFactory(t,
		sqm.WithNamedQuery("customerByID", "from Customer c where c.id = :id"),
		sqm.WithNamedQuery("purgeTags", "delete Tag t where t.region = :region"),
		sqm.WithNamedQuery("allTags", "from Tag t"),
		sqm.WithNamedNativeQuery("tagByID", "SELECT id, name FROM tags WHERE id = ?"),
	)
	s := openSession(t, sf)

	l, err := sqm.NewProvidedQueryLoader(sf, "Customer", "customerByID")
	require.NoError(t, err)
	assert.Equal(t, "Customer", l.Entity().Name)
	row, err := l.Load(ctx, s, 8)
	require.NoError(t, err)
	assert.Equal(t, "Bolt", row["name"])

	_, err = l.Load(ctx, s, 42)
	require.Error(t, err)
	var nf *sqm.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 42, nf.ID())

	row, err = l.LoadInto(ctx, s, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme", row["name"])
	_, err = l.LoadInto(ctx, s, 7, plan.Row{})
	assert.ErrorIs(t, err, sqm.ErrUnsupportedOperation)

	snap, err := l.LoadDatabaseSnapshot(ctx, s, 7)
	require.NoError(t, err)
	assert.Empty(t, snap)

	native, err := sqm.NewProvidedQueryLoader(sf, "Tag", "tagByID")
	require.NoError(t, err)
	row, err = native.Load(ctx, s, 3)
	require.NoError(t, err)
	assert.Equal(t, plan.Row{"id": int64(3), "name": "go"}, row)

	for name, args := range map[string][2]string{
		"unknown entity":  {"Order", "customerByID"},
		"unknown query":   {"Customer", "missing"},
		"mutation query":  {"Tag", "purgeTags"},
		"no id parameter": {"Tag", "allTags"},
	} {
		_, err := sqm.NewProvidedQueryLoader(sf, args[0], args[1])
		assert.True(t, sqm.IsConfigurationError(err), name)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db, sf := openFactory(t)

	s, err := sf.OpenSession(ctx)
	require.NoError(t, err)
	q, err := s.CreateQuery("delete Tag t")
	require.NoError(t, err)
	_, err = q.ExecuteUpdate(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is a no-op")
	assert.Equal(t, 3, count(t, db, "tags"), "close rolls back")

	_, err = s.CreateQuery("from Tag t")
	assert.ErrorIs(t, err, sqm.ErrSessionClosed)
	_, err = s.CreateNativeQuery("SELECT 1")
	assert.ErrorIs(t, err, sqm.ErrSessionClosed)
	_, err = s.EnableFilter("region")
	assert.ErrorIs(t, err, sqm.ErrSessionClosed)
	assert.ErrorIs(t, s.Commit(ctx), sqm.ErrSessionClosed)
	assert.ErrorIs(t, s.Rollback(), sqm.ErrSessionClosed)

	closed := s.ID()
	s = openSession(t, sf)
	assert.NotEqual(t, closed, s.ID())
	q, err = s.CreateQuery("delete Tag t")
	require.NoError(t, err)
	require.NoError(t, s.Rollback())
	_, err = q.ExecuteUpdate(ctx)
	assert.ErrorIs(t, err, sqm.ErrSessionClosed)

	require.NoError(t, sf.Close())
	require.NoError(t, sf.Close())
	_, err = sf.OpenSession(ctx)
	assert.ErrorIs(t, err, sqm.ErrFactoryClosed)
}

func TestSession_DeferredCleanup(t *testing.T) {
	ctx := context.Background()
	db, sf := openFactory(t, sqm.WithTableBasedStrategy(mutation.TableBasedConfig{
		Kind:     mutation.GlobalPersistent,
		AfterUse: mutation.AfterUseNone,
	}))
	s := openSession(t, sf)

	q, err := s.CreateQuery("update Customer c set c.data = 'S' where c.region = 'eu'")
	require.NoError(t, err)
	n, err := q.ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	staged, err := s.CreateNativeQuery("SELECT COUNT(*) AS n FROM HT_customers WHERE sess_uid = :uid")
	require.NoError(t, err)
	row, err := staged.SetParameter("uid", s.ID()).UniqueResult(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, row["n"], "rows stay staged until the session ends")

	require.NoError(t, s.Commit(ctx))
	assert.Zero(t, count(t, db, "HT_customers"))
	var data int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM customer_details WHERE data = 'S'").Scan(&data))
	assert.Equal(t, 2, data)
}

func TestFromConfig(t *testing.T) {
	c, err := config.Parse([]byte(`
dialect: sqlite
statistics: true
mutation:
  strategy: table
  table:
    kind: global
    after_use: none
mapping:
  entities:
    - name: ForeignCustomer
      parent: Customer
      attributes: {vat: ""}
    - name: Customer
      ids: [{attribute: id, type: integer}]
      attributes: {name: "", region: ""}
      secondary:
        - name: customer_details
          optional: true
          attributes: {data: ""}
      filters:
        region: "region = :region"
  queries:
    byRegion: "from ForeignCustomer c where c.region = :region order by c.id"
  native_queries:
    names: "SELECT name FROM customers ORDER BY id"
`))
	require.NoError(t, err)
	g, err := c.Mapping.Schema()
	require.NoError(t, err)

	_, drv := openDB(t)
	sf, err := sqm.Open(drv, g, sqm.FromConfig(c))
	require.NoError(t, err)
	t.Cleanup(func() { sf.Close() })
	assert.True(t, sf.Statistics().Enabled())
	assert.IsType(t, &mutation.TableBasedStrategy{}, sf.Strategy())
	assert.Equal(t, dialect.SQLite, sf.Dialect())

	ctx := context.Background()
	s := openSession(t, sf)
	q, err := s.CreateNamedQuery("byRegion")
	require.NoError(t, err)
	rows, err := q.SetParameter("region", "eu").List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "GB7", rows[0]["vat"])

	nq, err := s.CreateNamedNativeQuery("names")
	require.NoError(t, err)
	rows, err = nq.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	_, err = s.EnableFilter("region")
	require.NoError(t, err)
}

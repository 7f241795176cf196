package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/query/mutation"
)

const mappingYAML = `
entities:
  - name: ForeignCustomer
    parent: Customer
    attributes: {vat: ""}
  - name: Customer
    ids: [{attribute: id, type: integer}]
    attributes: {name: "", taxCode: ""}
    secondary:
      - name: customer_details
        optional: true
        attributes: {data: details}
    filters:
      region: "name = :n"
queries:
  byName: "from Customer c where c.name = :name"
native_queries:
  count: "SELECT COUNT(*) FROM customers"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
dialect: postgres
dsn: postgres://localhost/shop
statistics: true
slow_query: 250ms
cache:
  plans: 16
mutation:
  strategy: table
  table: {kind: global, after_use: none}
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Driver)
	assert.Equal(t, dialect.Postgres, c.Dialect)
	assert.True(t, c.Statistics)
	assert.Equal(t, 250*time.Millisecond, c.SlowQuery)
	assert.Equal(t, 16, c.Cache.Plans)
	require.NoError(t, c.Validate())
	tc, err := c.TableBasedConfig()
	require.NoError(t, err)
	assert.Equal(t, mutation.TableBasedConfig{
		Dialect:  dialect.Postgres,
		Kind:     mutation.GlobalPersistent,
		AfterUse: mutation.AfterUseNone,
	}, tc)

	c, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Driver)
	assert.Equal(t, StrategyInline, c.Mutation.Strategy)

	_, err = Parse([]byte("dialects: mysql"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Dialect = "oracle"
	c.LogLevel = "loud"
	c.Cache.Plans = -1
	c.Mutation.Strategy = "magic"
	err := c.Validate()
	require.Error(t, err)
	for _, msg := range []string{`unknown dialect "oracle"`, "log_level", "cache.plans", `unknown mutation strategy "magic"`} {
		assert.Contains(t, err.Error(), msg)
	}

	c = Default()
	c.Mutation = MutationConfig{Strategy: StrategyTable, Table: TableConfig{AfterUse: "later"}}
	assert.ErrorContains(t, c.Validate(), "after_use")
}

func TestLevel(t *testing.T) {
	c := Default()
	c.LogLevel = "debug"
	l, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", l.String())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mapping.yaml", mappingYAML)
	path := writeFile(t, dir, "sqm.yaml", "dialect: sqlite\ndsn: file:a.db\nmapping_file: mapping.yaml\n")
	t.Setenv("SQM_DSN", "file:b.db")
	t.Setenv("SQM_STATISTICS", "true")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file:b.db", c.DSN)
	assert.True(t, c.Statistics)
	assert.Len(t, c.Mapping.Entities, 2)
	assert.Equal(t, "from Customer c where c.name = :name", c.Mapping.Queries["byName"])

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMapping_Schema(t *testing.T) {
	dir := t.TempDir()
	m, err := LoadMapping(writeFile(t, dir, "mapping.yaml", mappingYAML))
	require.NoError(t, err)
	g, err := m.Schema()
	require.NoError(t, err)

	c, ok := g.Entity("Customer")
	require.True(t, ok)
	assert.Equal(t, "customers", c.Table.Name)
	assert.Equal(t, map[string]string{"name": "name", "taxCode": "tax_code"}, c.Table.Columns)
	require.Len(t, c.Secondary, 1)
	assert.Equal(t, []string{"customer_id"}, c.Secondary[0].KeyColumns)
	assert.Equal(t, "details", c.Secondary[0].Columns["data"])
	assert.True(t, c.Secondary[0].Optional)
	f, ok := c.Filter("region")
	require.True(t, ok)
	assert.NotNil(t, f.Condition)

	fc, ok := g.Entity("ForeignCustomer")
	require.True(t, ok)
	assert.Equal(t, "foreign_customers", fc.Table.Name)
	assert.Equal(t, c, fc.Root())

	m.Entities = append(m.Entities, EntityMapping{Name: "Orphan", Parent: "Nobody"})
	_, err = m.Schema()
	assert.ErrorContains(t, err, `unknown parent "Nobody"`)

	m = &Mapping{Entities: []EntityMapping{{
		Name:    "Tag",
		IDs:     []IDMapping{{Attribute: "id"}},
		Filters: map[string]string{"broken": "name = "},
	}}}
	_, err = m.Schema()
	assert.ErrorContains(t, err, `filter "broken"`)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sqm.yaml", "dialect: sqlite\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var enabled atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config, err error) {
			if err == nil {
				enabled.Store(c.Statistics)
			}
		})
	}()
	// The watcher may start after the first writes, so keep writing.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("dialect: sqlite\nstatistics: true\n"), 0o600)
		return enabled.Load()
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

package main

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqm"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/stat"
)

var fixture = []string{
	"CREATE TABLE customers (id integer primary key, name text, region text)",
	"CREATE TABLE customer_details (customer_id integer primary key, data text)",
	"CREATE TABLE foreign_customers (id integer primary key, vat text)",
	"CREATE TABLE tags (id integer primary key, name text)",
	"INSERT INTO customers VALUES (7, 'Acme', 'eu'), (8, 'Bolt', 'eu'), (9, 'Cove', 'us'), (10, 'Dune', 'us')",
	"INSERT INTO customer_details VALUES (7, 'X'), (8, 'Y')",
	"INSERT INTO foreign_customers VALUES (7, 'GB7'), (8, 'GB8')",
	"INSERT INTO tags VALUES (1, 'go'), (2, 'sql')",
}

const mapping = `
mapping:
  entities:
    - name: Customer
      ids: [{attribute: id, type: integer}]
      attributes: {name: "", region: ""}
      secondary:
        - name: customer_details
          optional: true
          attributes: {data: ""}
      filters:
        region: "region = :region"
    - name: ForeignCustomer
      parent: Customer
      attributes: {vat: ""}
    - name: Tag
      ids: [{attribute: id, type: integer}]
      attributes: {name: ""}
`

// setup creates a database and a configuration file over it.
func setup(t *testing.T, extra string) (*sql.DB, string) {
	t.Helper()
	dir := t.TempDir()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.Join(dir, "sqm.db"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range fixture {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	path := filepath.Join(dir, "sqm.yaml")
	cfg := fmt.Sprintf("dialect: sqlite\ndsn: %q\nlog_level: error\n%s%s", dsn, extra, mapping)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return db, path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sqm v"+version+" ("+commit+")\n", out)
}

func TestExec(t *testing.T) {
	db, cfg := setup(t, "")

	out, err := run(t, "exec", "-c", cfg, "delete ForeignCustomer c where c.name = :n", "-p", "n=Acme")
	require.NoError(t, err)
	assert.Equal(t, "1 affected\n", out)
	assert.Equal(t, 3, countRows(t, db, "SELECT COUNT(*) FROM customers"))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM customer_details"))

	out, err = run(t, "exec", "-c", cfg, "select c.name from Customer c order by c.id", "--filter", "region:region=us")
	require.NoError(t, err)
	assert.Equal(t, "name=Cove\nname=Dune\n(2 rows)\n", out)

	out, err = run(t, "exec", "-c", cfg, "--native", "SELECT name FROM tags WHERE id = ?1", "-p", "1=2")
	require.NoError(t, err)
	assert.Equal(t, "name=sql\n(1 rows)\n", out)

	out, err = run(t, "exec", "-c", cfg, "--rollback", "delete Tag t")
	require.NoError(t, err)
	assert.Equal(t, "2 affected\n", out)
	assert.Equal(t, 2, countRows(t, db, "SELECT COUNT(*) FROM tags"))

	_, err = run(t, "exec", "-c", cfg, "delete Order o")
	assert.ErrorIs(t, err, sqm.ErrInvalidQuery)
	assert.Equal(t, exitUsage, exitCode(err))

	_, err = run(t, "exec", "-c", filepath.Join(t.TempDir(), "missing.yaml"), "from Tag t")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestExplain(t *testing.T) {
	db, cfg := setup(t, "mutation:\n  strategy: table\n")

	out, err := run(t, "explain", "-c", cfg, "update Customer c set c.data = :d where c.region = 'eu'", "-p", "d=Z")
	require.NoError(t, err)
	assert.Contains(t, out, "statement:\n")
	assert.Contains(t, out, `INSERT INTO "HT_customers"`)
	assert.Contains(t, out, `UPDATE "customer_details"`)
	assert.Contains(t, out, "2 affected")
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM customer_details WHERE data = 'Z'"), "explain rolls back")
}

func TestStats(t *testing.T) {
	_, cfg := setup(t, "")
	file := filepath.Join(t.TempDir(), "queries.hql")
	require.NoError(t, os.WriteFile(file, []byte(`
-- customers of eu
from Customer c where c.region = 'eu'

update Tag t set t.name = 'x' where t.id = 1
`), 0o600))
	snapFile := filepath.Join(t.TempDir(), "stats.msgpack")

	out, err := run(t, "stats", "-c", cfg, "--repeat", "3", "--out", snapFile, file)
	require.NoError(t, err)
	assert.Contains(t, out, "plans:    hits=6 misses=1 compilations=2")
	assert.Contains(t, out, "cache:    plans=1 interpretations=2 native=0")
	assert.Contains(t, out, "database: queries=3 execs=3")

	data, err := os.ReadFile(snapFile)
	require.NoError(t, err)
	var snap stat.Snapshot
	require.NoError(t, snap.UnmarshalBinary(data))
	assert.True(t, snap.Enabled)
	assert.EqualValues(t, 6, snap.PlanCacheHits)
	assert.EqualValues(t, 2, snap.Compilations)

	_, err = run(t, "stats", "-c", cfg, "--repeat", "0", file)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	db, cfg := setup(t, "")

	out, err := run(t, "validate", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "3 entities")
	assert.Contains(t, out, "mapping ok")

	out, err = run(t, "validate", "-c", cfg, "--database")
	require.NoError(t, err)
	assert.Contains(t, out, "database ok")

	_, err = db.Exec("DROP TABLE foreign_customers")
	require.NoError(t, err)
	out, err = run(t, "validate", "-c", cfg, "--database")
	require.Error(t, err)
	assert.Contains(t, out, "table does not exist")
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailure, exitCode(errors.New("connection refused")))
	assert.Equal(t, exitUsage, exitCode(sqm.NewConfigurationError("mapping", errors.New("bad"))))
	assert.Equal(t, exitUsage, exitCode(sqm.NewQueryError("from", "translate", errors.New("bad"))))
	assert.Equal(t, exitConstraint, exitCode(fmt.Errorf("wrapped: %w", sqlgraph.NewConstraintError("duplicate key"))))
}

func TestParseParams(t *testing.T) {
	ps, err := parseParams([]string{"name=Acme", "1=42", "ratio=0.5", "ok=true", "none=null", "code='007'"})
	require.NoError(t, err)
	assert.Equal(t, []param{
		{name: "name", value: "Acme"},
		{pos: 1, value: int64(42)},
		{name: "ratio", value: 0.5},
		{name: "ok", value: true},
		{name: "none", value: nil},
		{name: "code", value: "007"},
	}, ps)

	for _, bad := range []string{"novalue", "=1", "0=1"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestReadStatements(t *testing.T) {
	file := filepath.Join(t.TempDir(), "q.hql")
	require.NoError(t, os.WriteFile(file, []byte("-- comment\n\n  from Tag t  \ndelete Tag t\n"), 0o600))
	stmts, err := readStatements(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"from Tag t", "delete Tag t"}, stmts)
}

func TestIsNativeSelect(t *testing.T) {
	assert.True(t, isNativeSelect("  select 1"))
	assert.True(t, isNativeSelect("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.False(t, isNativeSelect("UPDATE tags SET name = 'x'"))
}

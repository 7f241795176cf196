package sql

import (
	"context"
	"testing"
	"time"

	"github.com/syssam/sqm/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.Postgres, db),
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMPORARY TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("(?i)DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id FROM users", []any{}, rows))
	require.NoError(t, rows.Close())
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "CREATE TEMPORARY TABLE IF NOT EXISTS ht (id bigint)", []any{}, nil))
	require.NoError(t, tx.Exec(context.Background(), "INSERT INTO ht SELECT id FROM users", []any{}, nil))
	require.NoError(t, tx.Exec(context.Background(), "  delete FROM users", []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.QueryStats().Stats()
	assert.EqualValues(t, 1, s.TotalQueries)
	assert.EqualValues(t, 3, s.TotalExecs)
	assert.EqualValues(t, 1, s.Selects)
	assert.EqualValues(t, 1, s.Inserts)
	assert.EqualValues(t, 1, s.Deletes)
	assert.EqualValues(t, 1, s.DDL)
	assert.EqualValues(t, 2, s.Mutations())
	assert.Len(t, slow, 4)
	assert.Contains(t, s.String(), "delete=1")

	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().Mutations())
}

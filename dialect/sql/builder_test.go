package sql

import (
	"strconv"
	"testing"

	"github.com/syssam/sqm/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	t1 := Table("customers").As("t0")
	t2 := Table("customer_details").As("t1")
	tests := []struct {
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			input:     Dialect(dialect.Postgres).Select("id").From(Table("users")),
			wantQuery: `SELECT "id" FROM "users"`,
		},
		{
			input:     Dialect(dialect.MySQL).Select("id").From(Table("users")),
			wantQuery: "SELECT `id` FROM `users`",
		},
		{
			input: Dialect(dialect.Postgres).Select(t1.C("id")).
				From(t1).
				LeftJoin(t2).On(t1.C("id"), t2.C("customer_id")).
				Where(EQ(t2.C("data"), "X")),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" LEFT JOIN "customer_details" AS "t1" ON "t0"."id" = "t1"."customer_id" WHERE "t1"."data" = $1`,
			wantArgs:  []any{"X"},
		},
		{
			input: Dialect(dialect.SQLite).Select("*").From(Table("users")).
				Where(And(EQ("a", 1), Or(EQ("b", 2), IsNull("c")), Not(In("d", 3, 4)))),
			wantQuery: `SELECT * FROM "users" WHERE "a" = ? AND ("b" = ? OR "c" IS NULL) AND NOT ("d" IN (?, ?))`,
			wantArgs:  []any{1, 2, 3, 4},
		},
		{
			input:     Dialect(dialect.Postgres).Select("*").From(Table("users")).Where(In("id")),
			wantQuery: `SELECT * FROM "users" WHERE 1 = 0`,
		},
		{
			input: Dialect(dialect.Postgres).Update("customers").
				Set("name", "Acme").
				Where(InSelect("id", Dialect(dialect.Postgres).Select("id").From(Table("HT_customers")).Where(EQ("sess_uid", "u1")))),
			wantQuery: `UPDATE "customers" SET "name" = $1 WHERE "id" IN (SELECT "id" FROM "HT_customers" WHERE "sess_uid" = $2)`,
			wantArgs:  []any{"Acme", "u1"},
		},
		{
			input:     Dialect(dialect.MySQL).Delete("orders").Where(TupleIn([]string{"id", "region"}, [][]any{{1, "eu"}, {2, "us"}})),
			wantQuery: "DELETE FROM `orders` WHERE (`id`, `region`) IN ((?, ?), (?, ?))",
			wantArgs:  []any{1, "eu", 2, "us"},
		},
		{
			input: Dialect(dialect.Postgres).Insert("HT_customers").
				Columns("sess_uid", "id").
				Select(Dialect(dialect.Postgres).Select().AppendSelectExpr("?", "u1").AppendSelect(t1.C("id")).From(t1).Where(GT(t1.C("id"), 5))),
			wantQuery: `INSERT INTO "HT_customers" ("sess_uid", "id") SELECT $1, "t0"."id" FROM "customers" AS "t0" WHERE "t0"."id" > $2`,
			wantArgs:  []any{"u1", 5},
		},
		{
			input:     Dialect(dialect.SQLite).Insert("users").Columns("id", "name").Values(1, "a").Values(2, "b"),
			wantQuery: `INSERT INTO "users" ("id", "name") VALUES (?, ?), (?, ?)`,
			wantArgs:  []any{1, "a", 2, "b"},
		},
		{
			input:     Dialect(dialect.Postgres).CreateTable("HT_orders").Command("CREATE TEMPORARY TABLE IF NOT EXISTS").Column("id", "bigint").Column("sess_uid", "varchar(36)"),
			wantQuery: `CREATE TEMPORARY TABLE IF NOT EXISTS "HT_orders" ("id" bigint, "sess_uid" varchar(36))`,
		},
		{
			input:     Dialect(dialect.MySQL).DropTable("HT_orders").Command("DROP TEMPORARY TABLE IF EXISTS"),
			wantQuery: "DROP TEMPORARY TABLE IF EXISTS `HT_orders`",
		},
		{
			input:     Dialect(dialect.SQLite).Select("id").From(Table("users")).OrderByDesc("id").Limit(1).ForUpdate(),
			wantQuery: `SELECT "id" FROM "users" ORDER BY "id" DESC LIMIT 1`,
		},
		{
			input: Dialect(dialect.Postgres).Delete("users").
				Where(Exists(Dialect(dialect.Postgres).Select("*").From(Table("HT_users").As("ht")).
					Where(And(ColumnsEQ("ht.id", "users.id"), EQ("ht.sess_uid", "u1"))))),
			wantQuery: `DELETE FROM "users" WHERE EXISTS (SELECT * FROM "HT_users" AS "ht" WHERE "ht"."id" = "users"."id" AND "ht"."sess_uid" = $1)`,
			wantArgs:  []any{"u1"},
		},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			query, args := tt.input.Query()
			require.Equal(t, tt.wantQuery, query)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestExpr(t *testing.T) {
	query, args := Expr("? + ? > ?", 1, 2, 3).Query(dialect.Postgres)
	assert.Equal(t, "$1 + $2 > $3", query)
	assert.Equal(t, []any{1, 2, 3}, args)

	query, args = Expr("coalesce(x, ?)", Raw("0")).Query(dialect.SQLite)
	assert.Equal(t, "coalesce(x, 0)", query)
	assert.Empty(t, args)
}

func TestSelectedColumns(t *testing.T) {
	s := Dialect(dialect.SQLite).Select("a", "b").AppendSelectExpr("?", 1)
	assert.Equal(t, []string{"a", "b"}, s.SelectedColumns())
}

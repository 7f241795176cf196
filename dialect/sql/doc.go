// Package sql provides SQL query building primitives and database dialect abstraction.
//
// This package is the foundation for building and executing SQL queries across
// different database systems (PostgreSQL, MySQL, SQLite). It provides a fluent API
// for constructing SQL statements.
//
// # Builder Types
//
// The package provides specialized builders for different SQL operations:
//
//   - Builder: Low-level SQL string builder with identifier quoting
//   - Selector: SELECT query builder with joins, predicates, ordering and a row limit
//   - InsertBuilder: INSERT ... VALUES and INSERT ... SELECT statement builder
//   - UpdateBuilder: UPDATE statement builder with SET and WHERE clauses
//   - DeleteBuilder: DELETE statement builder with WHERE predicates
//
// # Dialect Support
//
// SQL generation adapts to different database dialects:
//
//	import "github.com/syssam/sqm/dialect"
//
//	// PostgreSQL
//	b := sql.Dialect(dialect.Postgres)
//	b.Select("id", "name").From(sql.Table("users")).Where(sql.EQ("status", "active"))
//
//	// MySQL
//	b := sql.Dialect(dialect.MySQL)
//
// # Predicates
//
// The package provides predicate functions:
//
//	// Equality
//	sql.EQ("name", "john")           // name = 'john'
//	sql.NEQ("status", "deleted")     // status <> 'deleted'
//
//	// Comparison
//	sql.GT("age", 18)                // age > 18
//	sql.LTE("price", 100.0)          // price <= 100.0
//
//	// String matching
//	sql.Contains("name", "john")     // name LIKE '%john%'
//	sql.HasPrefix("email", "admin")  // email LIKE 'admin%'
//
//	// Row values
//	sql.TupleIn([]string{"id", "region"}, rows) // (id, region) IN ((?, ?), ...)
//
//	// NULL checks
//	sql.IsNull("deleted_at")         // deleted_at IS NULL
//	sql.NotNull("email")             // email IS NOT NULL
//
//	// IN clauses
//	sql.In("status", "active", "pending")  // status IN ('active', 'pending')
//
// # Joins
//
// Join operations are supported through the selector:
//
//	sql.Select("u.id", "u.name", "p.title").
//	    From(sql.Table("users").As("u")).
//	    Join(sql.Table("posts").As("p")).On("u.id", "p.user_id").
//	    Where(sql.EQ("u.status", "active"))
//
// # Mutations
//
// UPDATE, DELETE and INSERT ... SELECT statements are used by the
// multi-table mutation strategies:
//
//	sql.Dialect(dialect.Postgres).Delete("customers").
//	    Where(sql.InSelect("id", sql.Dialect(dialect.Postgres).
//	        Select("id").From(sql.Table("HT_customers")).
//	        Where(sql.EQ("sess_uid", uid))))
//
// # Row-Level Locking
//
// Pessimistic locking for transactions:
//
//	sql.Select("*").From(sql.Table("users")).
//	    Where(sql.EQ("id", 1)).
//	    ForUpdate()  // SELECT ... FOR UPDATE
//
// # Statistics
//
// StatsDriver counts statements by kind, which lets tests assert that a
// mutation issued no UPDATE or DELETE statements:
//
//	drv := sql.NewStatsDriver(sql.OpenDB(dialect.SQLite, db))
//	...
//	drv.QueryStats().Stats().Mutations()
package sql

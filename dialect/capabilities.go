package dialect

import "fmt"

// TemporaryTableKind describes how a dialect scopes temporary tables.
type TemporaryTableKind int

const (
	// NoTemporaryTables means the dialect has no session-scoped tables
	// and holding tables must be regular tables with a session column.
	NoTemporaryTables TemporaryTableKind = iota
	// LocalTemporaryTables are visible only to the creating connection.
	LocalTemporaryTables
)

// Capabilities describes the parts of a dialect the mutation strategies
// depend on. It is a plain value, callers may copy and tweak it.
type Capabilities struct {
	// Name is the dialect name.
	Name string
	// MaxInListSize is the largest number of elements a single IN list
	// may carry. Zero means unbounded.
	MaxInListSize int
	// TupleInList reports support for (a, b) IN ((?, ?), (?, ?)).
	TupleInList bool
	// TupleInSubquery reports support for (a, b) IN (SELECT a, b ...).
	TupleInSubquery bool
	// TemporaryTables reports the scoping of temporary tables.
	TemporaryTables TemporaryTableKind
	// CreateTemporaryTable is the statement prefix for creating a temporary table.
	CreateTemporaryTable string
	// DropTemporaryTable is the statement prefix for dropping a temporary table.
	DropTemporaryTable string
	// SessionIDType is the column type used for the session discriminator.
	SessionIDType string
}

var capabilities = map[string]Capabilities{
	Postgres: {
		Name:                 Postgres,
		TupleInList:          true,
		TupleInSubquery:      true,
		TemporaryTables:      LocalTemporaryTables,
		CreateTemporaryTable: "CREATE TEMPORARY TABLE IF NOT EXISTS",
		DropTemporaryTable:   "DROP TABLE IF EXISTS",
		SessionIDType:        "varchar(36)",
	},
	MySQL: {
		Name:                 MySQL,
		TupleInList:          true,
		TupleInSubquery:      true,
		TemporaryTables:      LocalTemporaryTables,
		CreateTemporaryTable: "CREATE TEMPORARY TABLE IF NOT EXISTS",
		DropTemporaryTable:   "DROP TEMPORARY TABLE IF EXISTS",
		SessionIDType:        "varchar(36)",
	},
	// SQLite accepts row values on the left of IN only with a subquery
	// on the right, and binds at most 32766 host parameters per statement.
	SQLite: {
		Name:                 SQLite,
		MaxInListSize:        32766,
		TupleInList:          false,
		TupleInSubquery:      true,
		TemporaryTables:      LocalTemporaryTables,
		CreateTemporaryTable: "CREATE TEMPORARY TABLE IF NOT EXISTS",
		DropTemporaryTable:   "DROP TABLE IF EXISTS",
		SessionIDType:        "text",
	},
}

// CapabilitiesOf returns the capabilities of the named dialect.
func CapabilitiesOf(name string) (Capabilities, error) {
	c, ok := capabilities[name]
	if !ok {
		return Capabilities{}, fmt.Errorf("dialect: unsupported dialect %q", name)
	}
	return c, nil
}

// Package schema validates entity mappings, both on their own and against
// the tables found in a live database.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/dialect/sql/sqlgraph"
)

// ValidationError represents a mapping validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates the mapping cannot be executed as is.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of mapping validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking issues.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// Err returns the validation errors joined in a single error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return fmt.Errorf("schema: invalid mapping:\n%s", r)
}

// ValidateOption configures mapping validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	requireIDTypes bool
	allowMissing   bool
}

// RequireIDTypes reports identifiers without an SQL type as errors. Holding
// tables cannot be created without them.
func RequireIDTypes() ValidateOption {
	return func(c *validateConfig) {
		c.requireIDTypes = true
	}
}

// AllowMissingColumns reports columns missing in the database as warnings.
func AllowMissingColumns() ValidateOption {
	return func(c *validateConfig) {
		c.allowMissing = true
	}
}

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// ValidateTable validates a single table mapping.
func ValidateTable(t *sqlgraph.Table) *ValidationResult {
	result := &ValidationResult{}
	if !isValidIdentifier(t.Name) {
		result.Errors = append(result.Errors, &ValidationError{
			Table:    t.Name,
			Message:  "invalid table name",
			Breaking: true,
		})
	}
	if len(t.KeyColumns) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Table:    t.Name,
			Message:  "table has no key columns",
			Breaking: true,
		})
	}
	colNames := make(map[string]bool)
	for _, c := range t.KeyColumns {
		colNames[c] = true
	}
	attrs := make([]string, 0, len(t.Columns))
	for a := range t.Columns {
		attrs = append(attrs, a)
	}
	slices.Sort(attrs)
	for _, a := range attrs {
		c := t.Columns[a]
		if !isValidIdentifier(c) {
			result.Errors = append(result.Errors, &ValidationError{
				Table:    t.Name,
				Column:   c,
				Message:  fmt.Sprintf("invalid column name for attribute %q", a),
				Breaking: true,
			})
		}
		if colNames[c] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c,
				Message: "duplicate column name",
			})
		}
		colNames[c] = true
	}
	if len(t.Columns) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table maps no attributes",
		})
	}
	return result
}

// ValidateMapping validates all entities of a schema.
//
// Example:
//
//	result := schema.ValidateMapping(g, schema.RequireIDTypes())
//	if result.HasErrors() {
//	    log.Fatal("invalid mapping:", result)
//	}
func ValidateMapping(g *sqlgraph.Schema, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	owners := make(map[string]string)
	for _, e := range g.Entities() {
		for _, t := range append([]*sqlgraph.Table{e.Table}, e.Secondary...) {
			if prev, ok := owners[t.Name]; ok {
				result.Errors = append(result.Errors, &ValidationError{
					Table:    t.Name,
					Message:  fmt.Sprintf("table is mapped by both %s and %s", prev, e.Name),
					Breaking: true,
				})
			}
			owners[t.Name] = e.Name
			tableResult := ValidateTable(t)
			result.Errors = append(result.Errors, tableResult.Errors...)
			result.Warnings = append(result.Warnings, tableResult.Warnings...)
		}
		if !e.IsRoot() {
			continue
		}
		for _, id := range e.IDs {
			if id.Type != "" {
				continue
			}
			err := &ValidationError{
				Table:   e.Table.Name,
				Column:  id.Column,
				Message: "identifier has no SQL type",
			}
			if cfg.requireIDTypes {
				err.Breaking = true
				result.Errors = append(result.Errors, err)
			} else {
				result.Warnings = append(result.Warnings, err)
			}
		}
	}
	return result
}

// Column is a column found in the database.
type Column struct {
	Name string
	// Type is the column type as the database reports it.
	Type string
	Null bool
}

// inspectors opens the atlas driver of a dialect, and names the schema
// holding the tables when it is not the connection default.
var inspectors = map[string]struct {
	open   func(atlas.ExecQuerier) (migrate.Driver, error)
	schema string
}{
	dialect.SQLite:   {open: sqlite.Open, schema: "main"},
	dialect.Postgres: {open: postgres.Open},
	dialect.MySQL:    {open: mysql.Open},
}

// Inspect returns the columns of the given tables as found in the database.
// Tables that do not exist are left out of the result, and every other
// failure, such as a lost connection, is returned.
func Inspect(ctx context.Context, db atlas.ExecQuerier, dialectName string, tables []string) (map[string][]Column, error) {
	in, ok := inspectors[dialectName]
	if !ok {
		return nil, fmt.Errorf("schema: no inspector for dialect %q", dialectName)
	}
	drv, err := in.open(db)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s inspector: %w", dialectName, err)
	}
	s, err := drv.InspectSchema(ctx, in.schema, &atlas.InspectOptions{Tables: tables})
	if err != nil {
		return nil, fmt.Errorf("schema: inspect: %w", err)
	}
	found := make(map[string][]Column, len(s.Tables))
	for _, t := range s.Tables {
		cols := make([]Column, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = Column{Name: c.Name}
			if c.Type != nil {
				cols[i].Type = c.Type.Raw
				cols[i].Null = c.Type.Null
			}
		}
		found[t.Name] = cols
	}
	return found, nil
}

// ValidateDatabase compares the mapping with the tables found by Inspect.
// Missing tables are always errors. An identifier column whose type differs
// from the mapped one is a warning.
func ValidateDatabase(g *sqlgraph.Schema, found map[string][]Column, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	for _, e := range g.Entities() {
		for _, t := range append([]*sqlgraph.Table{e.Table}, e.Secondary...) {
			cols, ok := found[t.Name]
			if !ok {
				result.Errors = append(result.Errors, &ValidationError{
					Table:    t.Name,
					Message:  "table does not exist",
					Breaking: true,
				})
				continue
			}
			want := slices.Clone(t.KeyColumns)
			for _, c := range t.Columns {
				want = append(want, c)
			}
			slices.Sort(want)
			for _, c := range slices.Compact(want) {
				if lookup(cols, c) != nil {
					continue
				}
				err := &ValidationError{
					Table:    t.Name,
					Column:   c,
					Message:  "column does not exist",
					Breaking: true,
				}
				if cfg.allowMissing {
					result.Warnings = append(result.Warnings, err)
				} else {
					result.Errors = append(result.Errors, err)
				}
			}
		}
		if !e.IsRoot() {
			continue
		}
		types := e.IDTypes()
		for i, name := range e.IDColumns() {
			c := lookup(found[e.Table.Name], name)
			if c == nil || i >= len(types) || types[i] == "" || c.Type == "" || strings.EqualFold(c.Type, types[i]) {
				continue
			}
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   e.Table.Name,
				Column:  name,
				Message: fmt.Sprintf("identifier is mapped as %s but the column is %s", types[i], c.Type),
			})
		}
	}
	return result
}

func lookup(cols []Column, name string) *Column {
	for i := range cols {
		if strings.EqualFold(cols[i].Name, name) {
			return &cols[i]
		}
	}
	return nil
}

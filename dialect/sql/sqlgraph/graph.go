// Package sqlgraph maps entities onto their physical tables and evaluates
// predicates over them. An entity is stored in a primary table, optional
// secondary tables and, for joined inheritance, the tables of its parents.
// Every table is linked to the root identifier through its key columns.
package sqlgraph

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/sqm/querylanguage"
)

// Table is one physical table of an entity.
type Table struct {
	// Name of the table. Defaults to the snake_case plural of the entity name.
	Name string
	// KeyColumns link the table rows to the root identifier, in identifier
	// order. For the root table they are the identifier columns.
	KeyColumns []string
	// Columns maps attribute names to column names.
	Columns map[string]string
	// Optional marks secondary tables whose row may be absent.
	Optional bool
}

// Column returns the column mapped to the attribute.
func (t *Table) Column(attr string) (string, bool) {
	c, ok := t.Columns[attr]
	return c, ok
}

// ID describes one identifier attribute of a root entity.
type ID struct {
	// Attribute is the attribute name, e.g. "id".
	Attribute string
	// Column is the column on the root table. Defaults to Attribute.
	Column string
	// Type is the SQL type used when the identifier is staged in a holding table.
	Type string
}

// Filter is a named restriction that sessions may enable on an entity.
type Filter struct {
	Name      string
	Condition querylanguage.P
}

// Entity describes how one entity is stored.
type Entity struct {
	// Name of the entity, e.g. "Customer".
	Name string
	// Parent names the super entity in a joined inheritance hierarchy.
	Parent string
	// IDs are the identifier attributes. Only root entities declare them.
	IDs []ID
	// Table is the primary table of the entity.
	Table *Table
	// Secondary tables holding more attributes of the entity.
	Secondary []*Table
	// Filters that can be enabled per session.
	Filters map[string]*Filter

	parent   *Entity
	children []*Entity
}

// Schema holds the entity mapping. It is built once at setup and only read afterwards.
type Schema struct {
	entities map[string]*Entity
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{entities: make(map[string]*Entity)}
}

// DefaultTableName returns the table name used for entities without one.
//
//	DefaultTableName("DomesticCustomer") // domestic_customers
func DefaultTableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// Add registers the entity. Parents must be added before their children.
func (g *Schema) Add(e *Entity) error {
	switch {
	case e.Name == "":
		return fmt.Errorf("sqlgraph: entity without a name")
	case g.entities[e.Name] != nil:
		return fmt.Errorf("sqlgraph: entity %q already exists", e.Name)
	}
	if e.Table == nil {
		e.Table = &Table{}
	}
	if e.Table.Name == "" {
		e.Table.Name = DefaultTableName(e.Name)
	}
	if e.Parent == "" {
		if len(e.IDs) == 0 {
			return fmt.Errorf("sqlgraph: root entity %q has no identifier", e.Name)
		}
		for i := range e.IDs {
			if e.IDs[i].Column == "" {
				e.IDs[i].Column = e.IDs[i].Attribute
			}
		}
		if len(e.Table.KeyColumns) == 0 {
			for _, id := range e.IDs {
				e.Table.KeyColumns = append(e.Table.KeyColumns, id.Column)
			}
		}
	} else {
		p, ok := g.entities[e.Parent]
		if !ok {
			return fmt.Errorf("sqlgraph: parent %q of entity %q was not added", e.Parent, e.Name)
		}
		if len(e.IDs) > 0 {
			return fmt.Errorf("sqlgraph: entity %q inherits its identifier from %q", e.Name, e.Parent)
		}
		e.parent = p
		if len(e.Table.KeyColumns) == 0 {
			e.Table.KeyColumns = slices.Clone(e.Root().Table.KeyColumns)
		}
	}
	root := e.Root()
	for _, t := range append([]*Table{e.Table}, e.Secondary...) {
		if t.Name == "" {
			return fmt.Errorf("sqlgraph: secondary table of entity %q has no name", e.Name)
		}
		if len(t.KeyColumns) == 0 {
			for _, id := range root.IDs {
				t.KeyColumns = append(t.KeyColumns, inflect.Singularize(root.Table.Name)+"_"+id.Column)
			}
		}
		if len(t.KeyColumns) != len(root.IDs) {
			return fmt.Errorf("sqlgraph: table %q of entity %q has %d key columns, identifier has %d",
				t.Name, e.Name, len(t.KeyColumns), len(root.IDs))
		}
	}
	seen := make(map[string]string)
	for _, x := range e.Hierarchy() {
		for _, t := range x.tables() {
			for attr := range t.Columns {
				if prev, ok := seen[attr]; ok {
					return fmt.Errorf("sqlgraph: attribute %q of entity %q is mapped by %q and %q", attr, e.Name, prev, t.Name)
				}
				seen[attr] = t.Name
			}
		}
	}
	for name, f := range e.Filters {
		if f.Name == "" {
			f.Name = name
		}
	}
	if e.parent != nil {
		e.parent.children = append(e.parent.children, e)
	}
	g.entities[e.Name] = e
	return nil
}

// MustAdd is like Add, but panics on error.
func (g *Schema) MustAdd(es ...*Entity) *Schema {
	for _, e := range es {
		if err := g.Add(e); err != nil {
			panic(err)
		}
	}
	return g
}

// Entity returns the entity registered under the name.
func (g *Schema) Entity(name string) (*Entity, bool) {
	e, ok := g.entities[name]
	return e, ok
}

// Entities returns all entities sorted by name.
func (g *Schema) Entities() []*Entity {
	es := make([]*Entity, 0, len(g.entities))
	for _, e := range g.entities {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Name < es[j].Name })
	return es
}

// Root returns the root of the entity hierarchy.
func (e *Entity) Root() *Entity {
	r := e
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Hierarchy returns the entities from the root down to e.
func (e *Entity) Hierarchy() []*Entity {
	var chain []*Entity
	for x := e; x != nil; x = x.parent {
		chain = append(chain, x)
	}
	slices.Reverse(chain)
	return chain
}

// Children returns the direct sub entities.
func (e *Entity) Children() []*Entity { return e.children }

// IsRoot reports if the entity has no parent.
func (e *Entity) IsRoot() bool { return e.parent == nil }

// IDColumns returns the identifier columns on the root table.
func (e *Entity) IDColumns() []string {
	return e.Root().Table.KeyColumns
}

// IDAttributes returns the identifier attribute names.
func (e *Entity) IDAttributes() []string {
	ids := e.Root().IDs
	attrs := make([]string, len(ids))
	for i := range ids {
		attrs[i] = ids[i].Attribute
	}
	return attrs
}

// IDTypes returns the SQL types of the identifier columns.
func (e *Entity) IDTypes() []string {
	ids := e.Root().IDs
	types := make([]string, len(ids))
	for i := range ids {
		types[i] = ids[i].Type
	}
	return types
}

func (e *Entity) tables() []*Table {
	return append([]*Table{e.Table}, e.Secondary...)
}

// Tables returns every table holding state of the entity, root table first.
func (e *Entity) Tables() []*Table {
	var ts []*Table
	for _, x := range e.Hierarchy() {
		ts = append(ts, x.tables()...)
	}
	return ts
}

// MultiTable reports if mutating the entity touches more than one table.
func (e *Entity) MultiTable() bool {
	return len(e.Tables()) > 1 || len(e.children) > 0
}

// DeleteOrder returns the tables a delete of the entity must clear, in
// an order that satisfies the key constraints: rows of sub entities
// first, then secondary tables, the root table last.
func (e *Entity) DeleteOrder() []*Table {
	var ts []*Table
	var descend func(*Entity)
	descend = func(x *Entity) {
		for _, c := range x.children {
			descend(c)
			ts = append(ts, c.Secondary...)
			ts = append(ts, c.Table)
		}
	}
	descend(e)
	chain := e.Hierarchy()
	for i := len(chain) - 1; i >= 0; i-- {
		ts = append(ts, chain[i].Secondary...)
		ts = append(ts, chain[i].Table)
	}
	return ts
}

// Resolve returns the table and column an attribute is stored in. Identifier
// attributes resolve to the root table.
func (e *Entity) Resolve(attr string) (*Table, string, error) {
	root := e.Root()
	for _, id := range root.IDs {
		if id.Attribute == attr {
			return root.Table, id.Column, nil
		}
	}
	chain := e.Hierarchy()
	for i := len(chain) - 1; i >= 0; i-- {
		for _, t := range chain[i].tables() {
			if c, ok := t.Column(attr); ok {
				return t, c, nil
			}
		}
	}
	return nil, "", &UnknownAttributeError{Entity: e.Name, Attribute: attr}
}

// Filter returns the named filter defined on the entity or one of its parents.
func (e *Entity) Filter(name string) (*Filter, bool) {
	for x := e; x != nil; x = x.parent {
		if f, ok := x.Filters[name]; ok {
			return f, true
		}
	}
	return nil, false
}

// UnknownAttributeError is returned when an attribute is not mapped by an entity.
type UnknownAttributeError struct {
	Entity    string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("sqlgraph: entity %q has no attribute %q", e.Entity, e.Attribute)
}

// String returns a compact description of the mapping, used by the CLI.
func (e *Entity) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if e.parent != nil {
		b.WriteString(" extends " + e.parent.Name)
	}
	b.WriteString(" {")
	for i, t := range e.Tables() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Name)
	}
	b.WriteString("}")
	return b.String()
}

package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/hql"
)

// Mapping describes how entities are stored, with the named queries and
// the filters defined over them.
//
//	entities:
//	  - name: Customer
//	    ids: [{attribute: id, type: integer}]
//	    attributes: {name: "", region: ""}
//	    secondary:
//	      - name: customer_details
//	        optional: true
//	        attributes: {data: ""}
//	    filters:
//	      region: "region = :region"
//	  - name: ForeignCustomer
//	    parent: Customer
//	    attributes: {vat: ""}
//	queries:
//	  byName: "from Customer c where c.name = :name"
type Mapping struct {
	Entities []EntityMapping `yaml:"entities"`
	// Queries are named HQL queries.
	Queries map[string]string `yaml:"queries"`
	// NativeQueries are named SQL queries.
	NativeQueries map[string]string `yaml:"native_queries"`
}

// EntityMapping describes one entity.
type EntityMapping struct {
	Name string `yaml:"name"`
	// Parent is the super entity in a joined inheritance hierarchy.
	Parent string `yaml:"parent"`
	// Table defaults to the snake_case plural of the name.
	Table string      `yaml:"table"`
	IDs   []IDMapping `yaml:"ids"`
	// Attributes maps attribute names to columns. An empty column is the
	// snake_case attribute name.
	Attributes map[string]string `yaml:"attributes"`
	Secondary  []TableMapping    `yaml:"secondary"`
	// Filters maps filter names to their HQL condition.
	Filters map[string]string `yaml:"filters"`
}

// IDMapping describes an identifier attribute.
type IDMapping struct {
	Attribute string `yaml:"attribute"`
	Column    string `yaml:"column"`
	Type      string `yaml:"type"`
}

// TableMapping describes a secondary table.
type TableMapping struct {
	Name       string            `yaml:"name"`
	KeyColumns []string          `yaml:"key_columns"`
	Attributes map[string]string `yaml:"attributes"`
	Optional   bool              `yaml:"optional"`
}

// LoadMapping reads a mapping file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: mapping: %w", err)
	}
	m := &Mapping{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("config: mapping %s: %w", path, err)
	}
	return m, nil
}

// Schema builds the entity graph of the mapping. Entities may be listed
// in any order.
func (m *Mapping) Schema() (*sqlgraph.Schema, error) {
	g := sqlgraph.NewSchema()
	pending := slices.Clone(m.Entities)
	for len(pending) > 0 {
		var next []EntityMapping
		for _, em := range pending {
			if _, ok := g.Entity(em.Parent); em.Parent != "" && !ok {
				next = append(next, em)
				continue
			}
			e, err := em.entity()
			if err != nil {
				return nil, err
			}
			if err := g.Add(e); err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("config: entity %q has unknown parent %q", next[0].Name, next[0].Parent)
		}
		pending = next
	}
	return g, nil
}

func (em EntityMapping) entity() (*sqlgraph.Entity, error) {
	e := &sqlgraph.Entity{
		Name:   em.Name,
		Parent: em.Parent,
		Table:  &sqlgraph.Table{Name: em.Table, Columns: columns(em.Attributes)},
	}
	for _, id := range em.IDs {
		e.IDs = append(e.IDs, sqlgraph.ID{Attribute: id.Attribute, Column: id.Column, Type: id.Type})
	}
	for _, t := range em.Secondary {
		e.Secondary = append(e.Secondary, &sqlgraph.Table{
			Name:       t.Name,
			KeyColumns: t.KeyColumns,
			Columns:    columns(t.Attributes),
			Optional:   t.Optional,
		})
	}
	if len(em.Filters) > 0 {
		e.Filters = make(map[string]*sqlgraph.Filter, len(em.Filters))
	}
	for name, cond := range em.Filters {
		p, err := hql.ParsePredicate(cond)
		if err != nil {
			return nil, fmt.Errorf("config: filter %q of %s: %w", name, em.Name, err)
		}
		e.Filters[name] = &sqlgraph.Filter{Name: name, Condition: p}
	}
	return e, nil
}

func columns(attrs map[string]string) map[string]string {
	cs := make(map[string]string, len(attrs))
	for a, c := range attrs {
		if c == "" {
			c = inflect.Underscore(a)
		}
		cs[a] = c
	}
	return cs
}

package sqlgraph

import (
	"errors"
	"strconv"
	"testing"

	"github.com/syssam/sqm/dialect"
	"github.com/syssam/sqm/querylanguage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerSchema() *Schema {
	return NewSchema().MustAdd(
		&Entity{
			Name: "Customer",
			IDs:  []ID{{Attribute: "id", Type: "bigint"}},
			Table: &Table{
				Columns: map[string]string{"name": "name", "region": "region"},
			},
			Secondary: []*Table{
				{Name: "customer_details", Columns: map[string]string{"data": "data"}, Optional: true},
			},
			Filters: map[string]*Filter{
				"region": {Condition: querylanguage.EQ(querylanguage.F("region"), querylanguage.NamedParam("region"))},
			},
		},
		&Entity{
			Name:   "DomesticCustomer",
			Parent: "Customer",
			Table:  &Table{Columns: map[string]string{"taxID": "tax_id"}},
		},
		&Entity{
			Name:   "ForeignCustomer",
			Parent: "Customer",
			Table:  &Table{Columns: map[string]string{"vat": "vat"}},
		},
	)
}

func TestSchema_Add(t *testing.T) {
	g := customerSchema()
	c, ok := g.Entity("Customer")
	require.True(t, ok)
	assert.Equal(t, "customers", c.Table.Name)
	assert.Equal(t, []string{"id"}, c.Table.KeyColumns)
	assert.Equal(t, []string{"customer_id"}, c.Secondary[0].KeyColumns)
	assert.True(t, c.MultiTable())

	f, ok := g.Entity("ForeignCustomer")
	require.True(t, ok)
	assert.Equal(t, "foreign_customers", f.Table.Name)
	assert.Equal(t, []string{"id"}, f.Table.KeyColumns)
	assert.Equal(t, c, f.Root())
	assert.Equal(t, []string{"id"}, f.IDAttributes())
	assert.Equal(t, []string{"bigint"}, f.IDTypes())

	var names []string
	for _, t := range f.Tables() {
		names = append(names, t.Name)
	}
	assert.Equal(t, []string{"customers", "customer_details", "foreign_customers"}, names)

	names = names[:0]
	for _, t := range c.DeleteOrder() {
		names = append(names, t.Name)
	}
	assert.Equal(t, []string{"domestic_customers", "foreign_customers", "customer_details", "customers"}, names)

	names = names[:0]
	for _, t := range f.DeleteOrder() {
		names = append(names, t.Name)
	}
	assert.Equal(t, []string{"foreign_customers", "customer_details", "customers"}, names)

	_, ok = f.Filter("region")
	assert.True(t, ok)
	assert.Equal(t, "ForeignCustomer extends Customer {customers, customer_details, foreign_customers}", f.String())

	tests := []struct {
		name string
		e    *Entity
	}{
		{"no name", &Entity{}},
		{"duplicate", &Entity{Name: "Customer", IDs: []ID{{Attribute: "id"}}}},
		{"no id", &Entity{Name: "Order"}},
		{"unknown parent", &Entity{Name: "Order", Parent: "Invoice"}},
		{"own id", &Entity{Name: "VIP", Parent: "Customer", IDs: []ID{{Attribute: "id"}}}},
		{"key arity", &Entity{Name: "Order", IDs: []ID{{Attribute: "id"}, {Attribute: "region"}}, Table: &Table{KeyColumns: []string{"id"}}}},
		{"shadowed attribute", &Entity{Name: "VIP", Parent: "Customer", Table: &Table{Columns: map[string]string{"name": "vip_name"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, g.Add(tt.e))
		})
	}
}

func TestSelector_EvalP(t *testing.T) {
	g := customerSchema()
	bind := func(p *querylanguage.Param) (any, error) {
		switch p.String() {
		case ":vat":
			return "GB1", nil
		case "?1":
			return []int{1, 2}, nil
		}
		return nil, errors.New("unbound " + p.String())
	}
	tests := []struct {
		entity    string
		p         querylanguage.P
		wantQuery string
		wantArgs  []any
	}{
		{
			entity:    "Customer",
			p:         querylanguage.FieldEQ("name", "Acme"),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" WHERE "t0"."name" = $1`,
			wantArgs:  []any{"Acme"},
		},
		{
			entity:    "Customer",
			p:         querylanguage.FieldEQ("data", "X"),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" LEFT JOIN "customer_details" AS "t1" ON "t0"."id" = "t1"."customer_id" WHERE "t1"."data" = $1`,
			wantArgs:  []any{"X"},
		},
		{
			entity:    "ForeignCustomer",
			p:         querylanguage.EQ(querylanguage.F("vat"), querylanguage.NamedParam("vat")),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" JOIN "foreign_customers" AS "t1" ON "t0"."id" = "t1"."id" WHERE "t1"."vat" = $1`,
			wantArgs:  []any{"GB1"},
		},
		{
			entity:    "ForeignCustomer",
			p:         querylanguage.FieldEQ("name", "Acme"),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" JOIN "foreign_customers" AS "t1" ON "t0"."id" = "t1"."id" WHERE "t0"."name" = $1`,
			wantArgs:  []any{"Acme"},
		},
		{
			entity:    "Customer",
			p:         querylanguage.LT(querylanguage.V(5), querylanguage.F("id")),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" WHERE "t0"."id" > $1`,
			wantArgs:  []any{5},
		},
		{
			entity:    "Customer",
			p:         querylanguage.And(querylanguage.FieldNil("region"), querylanguage.FieldNotNil("name")),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" WHERE "t0"."region" IS NULL AND "t0"."name" IS NOT NULL`,
		},
		{
			entity: "Customer",
			p: querylanguage.In(querylanguage.F("id"), &querylanguage.List{Xs: []querylanguage.Expr{
				querylanguage.PositionalParam(1), querylanguage.V(7),
			}}),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" WHERE "t0"."id" IN ($1, $2, $3)`,
			wantArgs:  []any{1, 2, 7},
		},
		{
			entity:    "Customer",
			p:         querylanguage.EQ(querylanguage.F("name"), querylanguage.F("data")),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" LEFT JOIN "customer_details" AS "t1" ON "t0"."id" = "t1"."customer_id" WHERE "t0"."name" = "t1"."data"`,
		},
		{
			entity: "Customer",
			p: querylanguage.Or(
				querylanguage.Not(querylanguage.FieldEQ("name", "a")),
				querylanguage.FieldNotIn("region", "eu", "us"),
				querylanguage.FieldHasPrefix("name", "b_"),
			),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" WHERE (NOT ("t0"."name" = $1) OR "t0"."region" NOT IN ($2, $3) OR "t0"."name" LIKE $4)`,
			wantArgs:  []any{"a", "eu", "us", `b\_%`},
		},
		{
			entity:    "Customer",
			p:         querylanguage.FieldEqualFold("name", "ACME"),
			wantQuery: `SELECT "t0"."id" FROM "customers" AS "t0" WHERE lower("t0"."name") = lower($1)`,
			wantArgs:  []any{"ACME"},
		},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			e, ok := g.Entity(tt.entity)
			require.True(t, ok)
			s := NewSelector(dialect.Postgres, e).SelectIDs()
			require.NoError(t, s.EvalP(tt.p, bind))
			query, args := s.Query()
			require.Equal(t, tt.wantQuery, query)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelector_Errors(t *testing.T) {
	g := customerSchema()
	c, _ := g.Entity("Customer")

	err := NewSelector(dialect.SQLite, c).EvalP(querylanguage.FieldEQ("vat", "x"), nil)
	var uae *UnknownAttributeError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "vat", uae.Attribute)

	err = NewSelector(dialect.SQLite, c).EvalP(querylanguage.EQ(querylanguage.F("name"), querylanguage.NamedParam("n")), nil)
	require.ErrorIs(t, err, ErrUnboundParameter)

	err = NewSelector(dialect.SQLite, c).EvalP(querylanguage.EQ(querylanguage.V(1), querylanguage.V(2)), nil)
	require.Error(t, err)

	err = NewSelector(dialect.SQLite, c).EvalP(querylanguage.FieldContains("name", ""), nil)
	require.NoError(t, err)

	err = NewSelector(dialect.SQLite, c).EvalP(querylanguage.Call(querylanguage.FuncContains, querylanguage.F("name"), querylanguage.V(1)), nil)
	require.Error(t, err)
}

func TestSelector_ApplyFilter(t *testing.T) {
	g := customerSchema()
	d, _ := g.Entity("DomesticCustomer")
	f, ok := d.Filter("region")
	require.True(t, ok)

	s := NewSelector(dialect.SQLite, d).SelectIDs()
	require.NoError(t, s.EvalP(querylanguage.FieldEQ("taxID", "T1"), nil))
	require.NoError(t, s.ApplyFilter(f, func(*querylanguage.Param) (any, error) { return "eu", nil }))
	query, args := s.Query()
	assert.Equal(t, `SELECT "t0"."id" FROM "customers" AS "t0" JOIN "domestic_customers" AS "t1" ON "t0"."id" = "t1"."id" WHERE "t1"."tax_id" = ? AND "t0"."region" = ?`, query)
	assert.Equal(t, []any{"T1", "eu"}, args)
}

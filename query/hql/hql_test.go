package hql

import (
	"testing"

	"github.com/syssam/sqm/dialect/sql/sqlgraph"
	"github.com/syssam/sqm/query/tree"
	"github.com/syssam/sqm/querylanguage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *sqlgraph.Schema {
	return sqlgraph.NewSchema().MustAdd(
		&sqlgraph.Entity{
			Name:      "Customer",
			IDs:       []sqlgraph.ID{{Attribute: "id", Type: "integer"}},
			Table:     &sqlgraph.Table{Columns: map[string]string{"name": "name", "region": "region"}},
			Secondary: []*sqlgraph.Table{{Name: "customer_details", Columns: map[string]string{"data": "data"}}},
		},
		&sqlgraph.Entity{
			Name:   "ForeignCustomer",
			Parent: "Customer",
			Table:  &sqlgraph.Table{Columns: map[string]string{"vat": "vat"}},
		},
	)
}

func TestParse(t *testing.T) {
	stmt, err := Parse("select c from Customer c where c.name = :name order by c.id desc, name")
	require.NoError(t, err)
	sel, ok := stmt.(*tree.SelectStatement)
	require.True(t, ok)
	assert.Equal(t, "Customer", sel.Target)
	assert.Equal(t, "c", sel.Alias)
	assert.Empty(t, sel.Selection)
	assert.Equal(t, `name == :name`, sel.Where.String())
	assert.Equal(t, []tree.Order{{Attribute: "id", Desc: true}, {Attribute: "name"}}, sel.OrderBy)
	assert.True(t, sel.Parameters().Has(":name"))

	stmt, err = Parse("update Customer c set c.region = ?1, name = 'O''Brien' where c.id in (1, 2, -3)")
	require.NoError(t, err)
	upd := stmt.(*tree.UpdateStatement)
	require.Len(t, upd.Assignments, 2)
	assert.Equal(t, "region", upd.Assignments[0].Attribute)
	assert.Equal(t, querylanguage.PositionalParam(1), upd.Assignments[0].Value)
	assert.Equal(t, querylanguage.V("O'Brien"), upd.Assignments[1].Value)
	assert.Equal(t, `id in [1,2,-3]`, upd.Where.String())
	assert.Equal(t, 1, upd.Parameters().Len())

	stmt, err = Parse("DELETE FROM ForeignCustomer WHERE vat NOT LIKE 'GB%' OR data IS NULL")
	require.NoError(t, err)
	del := stmt.(*tree.DeleteStatement)
	assert.Equal(t, "ForeignCustomer", del.Target)
	assert.Empty(t, del.Alias)
	assert.Equal(t, `!(like(vat, "GB%")) || data == nil`, del.Where.String())

	stmt, err = Parse("delete Customer x where not (x.name = 'a' and region is not null) and id between 1 and 2.5")
	require.NoError(t, err)
	assert.Equal(t, `!(name == "a" && region != nil) && id >= 1 && id <= 2.5`, stmt.Predicate().String())

	stmt, err = Parse("select name, c.region from Customer as c where name in :names and region <> 'eu'")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "region"}, stmt.(*tree.SelectStatement).Selection)
	assert.Equal(t, `name in :names && region != "eu"`, stmt.Predicate().String())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		query    string
		semantic bool
	}{
		{query: ""},
		{query: "insert into Customer"},
		{query: "delete Customer where name = 'x"},
		{query: "delete Customer where name = ?"},
		{query: "delete Customer where name = ?0"},
		{query: "delete Customer where name ="},
		{query: "delete Customer where name"},
		{query: "delete Customer where (name = 'x'"},
		{query: "delete Customer where name = 1.x"},
		{query: "delete Customer c where name = 'x' extra"},
		{query: "update Customer set name"},
		{query: "select from Customer"},
		{query: "delete Customer c where d.name = 'x'", semantic: true},
		{query: "delete Customer c where c.address.city = 'x'", semantic: true},
		{query: "update Customer set name = 'a', name = 'b'", semantic: true},
		{query: "select c, name from Customer c", semantic: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)
			if tt.semantic {
				var se *SemanticError
				require.ErrorAs(t, err, &se)
			} else {
				var se *SyntaxError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.query, se.Query)
			}
		})
	}
}

func TestTranslator(t *testing.T) {
	tr := NewTranslator(testSchema())
	stmt, err := tr.Translate("delete ForeignCustomer f where f.vat = :vat and f.data = 'X' and f.name is not null")
	require.NoError(t, err)
	assert.Equal(t, "ForeignCustomer", stmt.Entity())
	assert.Equal(t, tree.KindDelete, stmt.Kind())

	_, err = tr.Translate("update Customer set region = name where id = ?1")
	require.NoError(t, err)

	tests := []string{
		"delete Order o",
		"delete Customer c where c.vat = 'x'",
		"update Customer set id = 1",
		"update Customer set name = vat",
		"select c from Customer c order by vat",
		"delete Customer where name = :n and region = ?1",
		"delete Customer where name = ?1 and region = ?3",
	}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			_, err := tr.Translate(query)
			var se *SemanticError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, query, se.Query)
		})
	}

	_, err = tr.Translate("delete Customer c where c.vat = 'x'")
	var uae *sqlgraph.UnknownAttributeError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "vat", uae.Attribute)
}

func TestParsePredicate(t *testing.T) {
	p, err := ParsePredicate("region = :region or region is null")
	require.NoError(t, err)
	assert.Equal(t, `region == :region || region == nil`, p.String())
	assert.Equal(t, []*querylanguage.Param{querylanguage.NamedParam("region")}, querylanguage.Params(p))

	_, err = ParsePredicate("region = :region)")
	assert.Error(t, err)
}

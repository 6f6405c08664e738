package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-db-migrater/sdk/audit"
)

func ptr(s string) *string { return &s }

func createTable(name string, fields ...audit.Field) audit.Table {
	return audit.Table{NewName: ptr(name), DB: "public", Fields: fields}
}

func createField(name, dbType string) audit.Field {
	return audit.Field{NewName: ptr(name), NewType: dbType}
}

func migration(tables ...audit.Table) *audit.Migration {
	return &audit.Migration{
		GUID:     "guid-1",
		Name:     "m1",
		DBSource: "source-1",
		Schemas:  []audit.Schema{{Name: "public", Tables: tables}},
	}
}

func TestFormatRoutesByFKCount(t *testing.T) {
	m := migration(
		createTable("customer_hub",
			createField("customer_hash_key", "str"),
			createField("name", "str"),
		),
		createTable("customer_sat",
			createField("customer_sat_hash_key", "str"),
			createField("idcustomer_hash_fkey", "str"),
			createField("email", "str"),
		),
		createTable("customer_order_link",
			createField("customer_order_hash_key", "str"),
			createField("idcustomer_hash_fkey", "str"),
			createField("idorder_hash_fkey", "str"),
		),
		createTable("overlinked",
			createField("ida_hash_fkey", "str"),
			createField("idb_hash_fkey", "str"),
			createField("idc_hash_fkey", "str"),
		),
	)

	p := Format(m, compiled(t))
	require.Len(t, p.Schemas, 1)
	s := p.Schemas[0]

	require.Len(t, s.HubsToCreate, 1)
	assert.Equal(t, "customer_hub", s.HubsToCreate[0].Name)

	require.Len(t, s.SatsToCreate, 1)
	assert.Equal(t, "customer_sat", s.SatsToCreate[0].Name)
	assert.Equal(t, "idcustomer_hash_fkey", s.SatsToCreate[0].Link.FK)

	require.Len(t, s.LinksToCreate, 1)
	assert.Equal(t, "customer_order_link", s.LinksToCreate[0].Name)

	// More than two FKs cannot be modeled, the table is dropped.
	assert.Empty(t, s.TablesToDelete)
}

func TestFormatPKDetection(t *testing.T) {
	m := migration(
		createTable("customer_hub",
			createField("customer_hash_key", "str"),
			createField("name", "str"),
		),
		createTable("ambiguous_hub",
			createField("a_hash_key", "str"),
			createField("b_hash_key", "str"),
		),
	)

	p := Format(m, compiled(t))
	s := p.Schemas[0]

	require.Len(t, s.HubsToCreate, 2)
	assert.Equal(t, "customer_hash_key", s.HubsToCreate[0].PK)
	assert.True(t, s.HubsToCreate[0].Fields[0].IsKey)
	assert.False(t, s.HubsToCreate[0].Fields[1].IsKey)

	// Two PK candidates, none selected.
	assert.Empty(t, s.HubsToCreate[1].PK)

	assert.Equal(t, map[string]string{"customer_hub": "customer_hash_key"}, s.TablesWithPKs)
}

func TestFormatDeleteAndAlter(t *testing.T) {
	m := migration(
		audit.Table{OldName: ptr("gone_hub"), DB: "public"},
		audit.Table{
			OldName: ptr("customer_hub"),
			NewName: ptr("customer_hub"),
			DB:      "public",
			Fields: []audit.Field{
				{NewName: ptr("phone"), NewType: "str"},
				{OldName: ptr("fax")},
				{OldName: ptr("age"), NewName: ptr("age"), OldType: "str", NewType: "int"},
			},
		},
	)

	p := Format(m, compiled(t))
	s := p.Schemas[0]

	assert.Equal(t, []string{"gone_hub"}, s.TablesToDelete)
	require.Len(t, s.HubsToAlter, 1)
	alter := s.HubsToAlter[0]
	assert.Equal(t, []FieldToCreate{{Name: "phone", DBType: "str"}}, alter.FieldsToCreate)
	assert.Equal(t, []string{"fax"}, alter.FieldsToDelete)
	require.Len(t, alter.FieldsToAlter, 1)
	assert.Equal(t, FieldToAlter{Name: "age", OldType: "str", NewType: "int"}, alter.FieldsToAlter[0])
}

func TestFormatCustomPatterns(t *testing.T) {
	m := migration(
		createTable("t1",
			createField("pkid", "int"),
			createField("other_ref", "str"),
		),
	)

	cp, err := Pattern{PKPattern: `^pkid$`, FKPattern: `^(\w+)_ref$`}.Compile()
	require.NoError(t, err)
	p := Format(m, cp)
	s := p.Schemas[0]
	require.Len(t, s.SatsToCreate, 1)
	assert.Equal(t, "pkid", s.SatsToCreate[0].PK)
	assert.Equal(t, "other_ref", s.SatsToCreate[0].Link.FK)
}

func TestCompileInvalidPattern(t *testing.T) {
	_, err := Pattern{FKPattern: `([`}.Compile()
	assert.Error(t, err)
}

func compiled(t *testing.T) *CompiledPattern {
	cp, err := Pattern{}.Compile()
	require.NoError(t, err)
	return cp
}

func TestResolveSats(t *testing.T) {
	s := &Schema{
		SatsToCreate: []*SatToCreate{
			{
				TableToCreate: TableToCreate{Name: "customer_sat"},
				Link:          LinkRef{FK: "idcustomer_hash_fkey"},
			},
			{
				TableToCreate: TableToCreate{Name: "orphan_sat"},
				Link:          LinkRef{FK: "idorphan_hash_fkey"},
			},
		},
		TablesWithPKs: map[string]string{
			"customer_hub": "customer_hash_key",
			"order_hub":    "order_hash_key",
		},
	}

	linked, unlinked := ResolveSats(s, compiled(t))
	require.Len(t, linked, 1)
	assert.Equal(t, "customer_hub", linked[0].Link.RefTable)
	assert.Equal(t, "customer_hash_key", linked[0].Link.RefTablePK)
	assert.Equal(t, "idcustomer_hash_fkey", linked[0].Link.FK)

	require.Len(t, unlinked, 1)
	assert.Equal(t, "orphan_sat", unlinked[0].Name)
	assert.Empty(t, unlinked[0].Link.RefTable)
}

func TestResolveLinks(t *testing.T) {
	s := &Schema{
		LinksToCreate: []*LinkToCreate{
			{
				TableToCreate: TableToCreate{
					Name: "customer_order_link",
					Fields: []FieldToCreate{
						{Name: "customer_order_hash_key", IsKey: true},
						{Name: "idcustomer_hash_fkey"},
						{Name: "idorder_hash_fkey"},
					},
				},
			},
		},
		TablesWithPKs: map[string]string{
			"customer_hub": "customer_hash_key",
			"order_hub":    "order_hash_key",
		},
	}

	linked, unlinked := ResolveLinks(s, compiled(t))
	require.Len(t, linked, 1)
	assert.Empty(t, unlinked)

	l := linked[0]
	require.NotNil(t, l.MainLink)
	require.NotNil(t, l.PairedLink)
	assert.Equal(t, "customer_hub", l.MainLink.RefTable)
	assert.Equal(t, "customer_hash_key", l.MainLink.RefTablePK)
	assert.Equal(t, "idcustomer_hash_fkey", l.MainLink.FK)
	assert.Equal(t, "order_hub", l.PairedLink.RefTable)
	assert.Equal(t, "order_hash_key", l.PairedLink.RefTablePK)
	assert.Equal(t, "idorder_hash_fkey", l.PairedLink.FK)
}

func TestResolveLinksFallsBackUnlinked(t *testing.T) {
	s := &Schema{
		LinksToCreate: []*LinkToCreate{
			{
				TableToCreate: TableToCreate{
					Name: "mystery_link",
					Fields: []FieldToCreate{
						{Name: "idzzz_hash_fkey"},
						{Name: "idyyy_hash_fkey"},
					},
				},
			},
			{
				TableToCreate: TableToCreate{
					Name: "wide_link",
					Fields: []FieldToCreate{
						{Name: "idcustomer_hash_fkey"},
						{Name: "idorder_hash_fkey"},
						{Name: "idproduct_hash_fkey"},
					},
				},
			},
		},
		TablesWithPKs: map[string]string{
			"customer_hub": "customer_hash_key",
			"order_hub":    "order_hash_key",
			"product_hub":  "product_hash_key",
		},
	}

	linked, unlinked := ResolveLinks(s, compiled(t))
	assert.Empty(t, linked)
	require.Len(t, unlinked, 2)
	for _, l := range unlinked {
		assert.Nil(t, l.MainLink)
		assert.Nil(t, l.PairedLink)
	}
}

func TestSchemaAltersAndEmpty(t *testing.T) {
	s := &Schema{}
	assert.True(t, s.Empty())
	assert.Empty(t, s.Alters())

	s.HubsToAlter = append(s.HubsToAlter, &TableToAlter{Name: "a"})
	s.LinksToAlter = append(s.LinksToAlter, &TableToAlter{Name: "b"})
	assert.False(t, s.Empty())
	assert.Len(t, s.Alters(), 2)
}

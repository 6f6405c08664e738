package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"graph-db-migrater/sdk/plan"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, Quote("plain"))
	assert.Equal(t, `'o\'hare'`, Quote("o'hare"))
	assert.Equal(t, `'a\\b'`, Quote(`a\b`))
	assert.Equal(t, `''`, Quote(""))
}

func TestDeleteNodes(t *testing.T) {
	q := DeleteNodes([]string{"customer_hub", "order_hub"})
	assert.Contains(t, q, `WITH ['customer_hub','order_hub'] as node_batch`)
	assert.Contains(t, q, "DETACH DELETE node, f")
}

func TestCreateHubs(t *testing.T) {
	q := CreateHubs([]*plan.TableToCreate{
		{
			Name: "customer_hub",
			DB:   "public.customer_hub",
			Fields: []plan.FieldToCreate{
				{Name: "customer_hash_key", DBType: "str", IsKey: true},
				{Name: "name", DBType: "str"},
			},
		},
	})
	assert.Contains(t, q,
		`[{name: 'customer_hub',db: 'public.customer_hub',fields: [{name: 'customer_hash_key',db_type: 'str'},{name: 'name',db_type: 'str'}]}]`)
	assert.Contains(t, q, "MERGE (hub:Table { name: hub_record.name })")
}

func TestCreateSatsLinked(t *testing.T) {
	q := CreateSats([]*plan.SatToCreate{
		{
			TableToCreate: plan.TableToCreate{
				Name:   "customer_sat",
				DB:     "public.customer_sat",
				Fields: []plan.FieldToCreate{{Name: "email", DBType: "str"}},
			},
			Link: plan.LinkRef{
				RefTable:   "customer_hub",
				RefTablePK: "customer_hash_key",
				FK:         "idcustomer_hash_fkey",
			},
		},
	}, true)
	assert.Contains(t, q,
		`link: {ref_table: 'customer_hub', ref_table_pk: 'customer_hash_key', fk: 'idcustomer_hash_fkey'}`)
	assert.Contains(t, q, "ONE_TO_MANY {on: [sat_record.link.ref_table_pk, sat_record.link.fk] }")
	assert.Contains(t, q, "MANY_TO_ONE {on: [sat_record.link.fk, sat_record.link.ref_table_pk] }")
}

func TestCreateSatsUnlinked(t *testing.T) {
	q := CreateSats([]*plan.SatToCreate{
		{TableToCreate: plan.TableToCreate{Name: "orphan_sat", DB: "public.orphan_sat"}},
	}, false)
	assert.NotContains(t, q, "link:")
	assert.NotContains(t, q, "ONE_TO_MANY")
	assert.Contains(t, q, "MERGE (sat:Table {name: sat_record.name, db: sat_record.db})")
}

func TestCreateLinksLinked(t *testing.T) {
	q := CreateLinks([]*plan.LinkToCreate{
		{
			TableToCreate: plan.TableToCreate{Name: "customer_order_link", DB: "public.customer_order_link"},
			MainLink:      &plan.LinkRef{RefTable: "customer_hub", RefTablePK: "customer_hash_key", FK: "idcustomer_hash_fkey"},
			PairedLink:    &plan.LinkRef{RefTable: "order_hub", RefTablePK: "order_hash_key", FK: "idorder_hash_fkey"},
		},
	}, true)
	assert.Contains(t, q, `main_link: {ref_table: 'customer_hub', ref_table_pk: 'customer_hash_key', fk: 'idcustomer_hash_fkey'}`)
	assert.Contains(t, q, `paired_link: {ref_table: 'order_hub', ref_table_pk: 'order_hash_key', fk: 'idorder_hash_fkey'}`)
	assert.Contains(t, q, "MERGE (hub1:Table { name: link_record.main_link.ref_table })")
	assert.Contains(t, q, "MERGE (hub2:Table { name: link_record.paired_link.ref_table })")
}

func TestAlterStatements(t *testing.T) {
	alters := []*plan.TableToAlter{
		{
			Name:           "customer_hub",
			FieldsToCreate: []plan.FieldToCreate{{Name: "phone", DBType: "str"}},
			FieldsToDelete: []string{"fax"},
			FieldsToAlter:  []plan.FieldToAlter{{Name: "age", OldType: "str", NewType: "int"}},
		},
	}

	create := AlterCreateFields(alters)
	assert.Contains(t, create, `[{name: 'customer_hub',fields_to_create: [{name: 'phone',db_type: 'str'}]}]`)

	del := AlterDeleteFields(alters)
	assert.Contains(t, del, `[{name: 'customer_hub',fields_to_delete: ['fax']}]`)
	assert.Contains(t, del, "DETACH DELETE f")

	alter := AlterAlterFields(alters)
	assert.Contains(t, alter, `[{name: 'customer_hub',fields_to_alter: [{name: 'age',new_type: 'int'}]}]`)
	assert.Contains(t, alter, "SET f.dbtype = field.new_type")
}

func TestDescribeNodes(t *testing.T) {
	q := DescribeNodes([]string{"public.customer_hub"})
	assert.Contains(t, q, `WHERE obj.db IN ['public.customer_hub']`)
	assert.Contains(t, q, "ORDER BY obj.db")
}

// Package cypher renders the openCypher statements applied to an
// Apache AGE graph. Payloads are inlined as cypher list literals with
// every string value quoted, since AGE cannot bind parameters inside
// a dollar-quoted cypher body.
package cypher

import (
	"fmt"
	"strings"

	"graph-db-migrater/sdk/plan"
)

const deleteNodesTmpl = `
WITH %s as node_batch
UNWIND node_batch as node_name

MATCH (node { name: node_name })
OPTIONAL MATCH (node)-[:ATTR]->(f:Field)

DETACH DELETE node, f
`

const createHubsTmpl = `
WITH %s as hub_batch
UNWIND hub_batch as hub_record

MERGE (hub:Table { name: hub_record.name })
SET hub.db = hub_record.db

WITH hub_record.fields as field_batch, hub
UNWIND field_batch as field
CREATE (hub)-[:ATTR]->(:Field {name: field.name, db: field.name, attrs: [], dbtype: field.db_type})
`

const createSatsTmpl = `
WITH %s as sat_batch
UNWIND sat_batch as sat_record

MERGE (sat:Table {name: sat_record.name, db: sat_record.db})

WITH sat_record.fields as field_batch, sat
UNWIND field_batch as field
CREATE (sat)-[:ATTR]->(:Field {name: field.name, db: sat.db + '.' + field.name, attrs: [], dbtype: field.db_type})
`

const createSatsWithHubsTmpl = `
WITH %s as sat_batch
UNWIND sat_batch as sat_record

MERGE (node:Table { name: sat_record.link.ref_table })

MERGE (sat:Table { name: sat_record.name })
SET sat.db = sat_record.db

CREATE (node)-[:ONE_TO_MANY {on: [sat_record.link.ref_table_pk, sat_record.link.fk] }]->(sat)-[:MANY_TO_ONE {on: [sat_record.link.fk, sat_record.link.ref_table_pk] }]->(node)

WITH sat_record.fields as field_batch, sat
UNWIND field_batch as field
CREATE (sat)-[:ATTR]->(:Field {name: field.name, db: sat.db + '.' + field.name, attrs: [], dbtype: field.db_type})
`

const createLinksTmpl = `
WITH %s as link_batch
UNWIND link_batch as link_record

MERGE (link:Table { name: link_record.name })
SET link.db = link_record.db

WITH link_record.fields as field_batch, link
UNWIND field_batch as field
CREATE (link)-[:ATTR]->(:Field {name: field.name, db: field.name, attrs: [], dbtype: field.db_type})
`

const createLinksWithHubsTmpl = `
WITH %s as link_batch
UNWIND link_batch as link_record

MERGE (hub1:Table { name: link_record.main_link.ref_table })
MERGE (hub2:Table { name: link_record.paired_link.ref_table })

MERGE (link:Table { name: link_record.name })
SET link.db = link_record.db

CREATE (hub1)-[:ONE_TO_MANY {on: [link_record.main_link.ref_table_pk, link_record.main_link.fk] }]->(link)-[:MANY_TO_ONE {on: [link_record.paired_link.fk, link_record.paired_link.ref_table_pk] }]->(hub2)
CREATE (hub2)-[:ONE_TO_MANY {on: [link_record.paired_link.ref_table_pk, link_record.paired_link.fk] }]->(link)-[:MANY_TO_ONE {on: [link_record.main_link.fk, link_record.main_link.ref_table_pk] }]->(hub1)

WITH link_record.fields as field_batch, link
UNWIND field_batch as field
CREATE (link)-[:ATTR]->(:Field { name: field.name, db: field.name, attrs: [], dbtype: field.db_type })
`

const alterCreateFieldsTmpl = `
WITH %s as node_batch
UNWIND node_batch as node_record

MATCH (node { name: node_record.name })

WITH node_record.fields_to_create as fields_to_create, node
UNWIND fields_to_create as field
CREATE (node)-[:ATTR]->(:Field { name: field.name, db: field.name, attrs: [], dbtype: field.db_type })
`

const alterDeleteFieldsTmpl = `
WITH %s as node_batch
UNWIND node_batch as node_record

MATCH (node { name: node_record.name })

WITH node_record.fields_to_delete as fields_to_delete, node
UNWIND fields_to_delete as field

MATCH (node)-[:ATTR]->(f:Field { db: field })
DETACH DELETE f
`

const alterAlterFieldsTmpl = `
WITH %s as node_batch
UNWIND node_batch as node_record

MATCH (node { name: node_record.name })

WITH node_record.fields_to_alter as fields_to_alter, node
UNWIND fields_to_alter as field

MATCH (node)-[:ATTR]->(f:Field { db: field.name })
SET f.dbtype = field.new_type
`

// ListNodes matches every node in the graph and returns its name.
const ListNodes = `
MATCH (obj)
RETURN obj.name as name
`

// DescribeNodes returns the attribute fields of the named nodes,
// ordered by node so rows group per table.
func DescribeNodes(names []string) string {
	return fmt.Sprintf(`
MATCH (obj)-[:ATTR]->(f:Field)
WHERE obj.db IN %s
RETURN obj.db, obj.name, f.db, f.dbtype
ORDER BY obj.db
`, strList(names))
}

// DeleteNodes renders the batched node deletion statement.
func DeleteNodes(names []string) string {
	return fmt.Sprintf(deleteNodesTmpl, strList(names))
}

// CreateHubs renders the batched hub creation statement.
func CreateHubs(hubs []*plan.TableToCreate) string {
	var b payloadBuilder
	b.open()
	for _, hub := range hubs {
		b.openRecord()
		b.pair("name", hub.Name)
		b.pair("db", hub.DB)
		b.fields("fields", hub.Fields)
		b.closeRecord()
	}
	b.close()
	return fmt.Sprintf(createHubsTmpl, b.String())
}

// CreateSats renders the batched satellite creation statement. Linked
// satellites carry their resolved hub reference and merge the
// topology edges; unlinked ones are created as isolated nodes.
func CreateSats(sats []*plan.SatToCreate, linked bool) string {
	var b payloadBuilder
	b.open()
	for _, sat := range sats {
		b.openRecord()
		b.pair("name", sat.Name)
		b.pair("db", sat.DB)
		if linked {
			b.linkRef("link", &sat.Link)
		}
		b.fields("fields", sat.Fields)
		b.closeRecord()
	}
	b.close()
	if linked {
		return fmt.Sprintf(createSatsWithHubsTmpl, b.String())
	}
	return fmt.Sprintf(createSatsTmpl, b.String())
}

// CreateLinks renders the batched link creation statement, with or
// without the resolved hub pair.
func CreateLinks(links []*plan.LinkToCreate, linked bool) string {
	var b payloadBuilder
	b.open()
	for _, link := range links {
		b.openRecord()
		b.pair("name", link.Name)
		b.pair("db", link.DB)
		if linked {
			b.linkRef("main_link", link.MainLink)
			b.linkRef("paired_link", link.PairedLink)
		}
		b.fields("fields", link.Fields)
		b.closeRecord()
	}
	b.close()
	if linked {
		return fmt.Sprintf(createLinksWithHubsTmpl, b.String())
	}
	return fmt.Sprintf(createLinksTmpl, b.String())
}

// AlterCreateFields renders the statement attaching new fields to
// existing nodes.
func AlterCreateFields(alters []*plan.TableToAlter) string {
	var b payloadBuilder
	b.open()
	for _, alter := range alters {
		b.openRecord()
		b.pair("name", alter.Name)
		b.fields("fields_to_create", alter.FieldsToCreate)
		b.closeRecord()
	}
	b.close()
	return fmt.Sprintf(alterCreateFieldsTmpl, b.String())
}

// AlterDeleteFields renders the statement detaching deleted fields.
func AlterDeleteFields(alters []*plan.TableToAlter) string {
	var b payloadBuilder
	b.open()
	for _, alter := range alters {
		b.openRecord()
		b.pair("name", alter.Name)
		b.key("fields_to_delete")
		b.buf.WriteString(strList(alter.FieldsToDelete))
		b.closeRecord()
	}
	b.close()
	return fmt.Sprintf(alterDeleteFieldsTmpl, b.String())
}

// AlterAlterFields renders the statement retyping existing fields.
func AlterAlterFields(alters []*plan.TableToAlter) string {
	var b payloadBuilder
	b.open()
	for _, alter := range alters {
		b.openRecord()
		b.pair("name", alter.Name)
		b.key("fields_to_alter")
		b.buf.WriteByte('[')
		for i, f := range alter.FieldsToAlter {
			if i > 0 {
				b.buf.WriteByte(',')
			}
			b.buf.WriteByte('{')
			b.buf.WriteString("name: " + Quote(f.Name))
			b.buf.WriteString(",new_type: " + Quote(f.NewType))
			b.buf.WriteByte('}')
		}
		b.buf.WriteByte(']')
		b.closeRecord()
	}
	b.close()
	return fmt.Sprintf(alterAlterFieldsTmpl, b.String())
}

// Quote renders s as a single-quoted cypher string literal, escaping
// backslashes and embedded quotes.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}

func strList(items []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Quote(item))
	}
	b.WriteByte(']')
	return b.String()
}

// payloadBuilder assembles the inline list-of-maps payload fed to the
// WITH clause of each batched statement.
type payloadBuilder struct {
	buf     strings.Builder
	records int
	pairs   int
}

func (b *payloadBuilder) open()  { b.buf.WriteByte('[') }
func (b *payloadBuilder) close() { b.buf.WriteByte(']') }

func (b *payloadBuilder) openRecord() {
	if b.records > 0 {
		b.buf.WriteByte(',')
	}
	b.records++
	b.pairs = 0
	b.buf.WriteByte('{')
}

func (b *payloadBuilder) closeRecord() { b.buf.WriteByte('}') }

func (b *payloadBuilder) key(name string) {
	if b.pairs > 0 {
		b.buf.WriteByte(',')
	}
	b.pairs++
	b.buf.WriteString(name)
	b.buf.WriteString(": ")
}

func (b *payloadBuilder) pair(name, value string) {
	b.key(name)
	b.buf.WriteString(Quote(value))
}

func (b *payloadBuilder) linkRef(name string, ref *plan.LinkRef) {
	b.key(name)
	b.buf.WriteString(fmt.Sprintf("{ref_table: %s, ref_table_pk: %s, fk: %s}",
		Quote(ref.RefTable), Quote(ref.RefTablePK), Quote(ref.FK)))
}

func (b *payloadBuilder) fields(name string, fields []plan.FieldToCreate) {
	b.key(name)
	b.buf.WriteByte('[')
	for i, f := range fields {
		if i > 0 {
			b.buf.WriteByte(',')
		}
		b.buf.WriteString(fmt.Sprintf("{name: %s,db_type: %s}", Quote(f.Name), Quote(f.DBType)))
	}
	b.buf.WriteByte(']')
}

func (b *payloadBuilder) String() string { return b.buf.String() }

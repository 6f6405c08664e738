// Package audit persists migration records: a migration owns schemas,
// a schema owns table diffs, a table diff owns field diffs. Records
// are immutable once written and chained per db_source through
// ParentID.
package audit

import (
	"regexp"
	"sort"
	"time"

	"graph-db-migrater/sdk/diff"
)

type Migration struct {
	ID       uint64  `gorm:"primaryKey;autoIncrement"`
	ParentID *uint64 `gorm:"column:parent_id"`

	GUID     string `gorm:"column:guid;size:36;not null;uniqueIndex"`
	Name     string `gorm:"size:110;not null"`
	DBSource string `gorm:"column:db_source;size:36;not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Schemas []Schema   `gorm:"foreignKey:MigrationID"`
	Prev    *Migration `gorm:"foreignKey:ParentID"`
}

func (Migration) TableName() string { return "migrations" }

type Schema struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	MigrationID uint64 `gorm:"not null;index"`
	Name        string `gorm:"size:110;not null"`

	Tables []Table `gorm:"foreignKey:SchemaID"`
}

func (Schema) TableName() string { return "schemas" }

// Table is a three-state diff record: OldName nil means create,
// NewName nil means delete, both equal means alter.
type Table struct {
	ID       uint64  `gorm:"primaryKey;autoIncrement"`
	SchemaID uint64  `gorm:"not null;index"`
	OldName  *string `gorm:"size:110"`
	NewName  *string `gorm:"size:110"`
	DB       string  `gorm:"column:db;size:255"`

	Fields []Field `gorm:"foreignKey:TableID"`
}

func (Table) TableName() string { return "tables" }

// FKCount counts fields whose effective name matches the fk pattern.
func (t *Table) FKCount(fk *regexp.Regexp) int {
	count := 0
	for i := range t.Fields {
		if fk.MatchString(t.Fields[i].EffectiveName()) {
			count++
		}
	}
	return count
}

type Field struct {
	ID      uint64  `gorm:"primaryKey;autoIncrement"`
	TableID uint64  `gorm:"not null;index"`
	OldName *string `gorm:"size:110"`
	NewName *string `gorm:"size:110"`
	OldType string  `gorm:"size:36"`
	NewType string  `gorm:"size:36"`
}

func (Field) TableName() string { return "fields" }

// EffectiveName is the new name when present, the old name otherwise.
func (f *Field) EffectiveName() string {
	if f.NewName != nil {
		return *f.NewName
	}
	if f.OldName != nil {
		return *f.OldName
	}
	return ""
}

// NewMigration converts per-namespace diff records into a persistable
// migration tree. Schema names are stored without the db_source
// prefix; namespaces are reassembled at apply time.
func NewMigration(name, guid, dbSource string, diffs map[string][]diff.TableDiff) *Migration {
	m := &Migration{Name: name, GUID: guid, DBSource: dbSource}
	for _, ns := range sortedNamespaces(diffs) {
		schema := Schema{Name: schemaName(ns, dbSource)}
		for _, td := range diffs[ns] {
			table := Table{OldName: td.OldName, NewName: td.NewName, DB: td.DB}
			for _, fd := range td.Fields {
				table.Fields = append(table.Fields, Field{
					OldName: fd.OldName,
					NewName: fd.NewName,
					OldType: fd.OldType,
					NewType: fd.NewType,
				})
			}
			schema.Tables = append(schema.Tables, table)
		}
		m.Schemas = append(m.Schemas, schema)
	}
	return m
}

func schemaName(ns, dbSource string) string {
	prefix := dbSource + "."
	if len(ns) > len(prefix) && ns[:len(prefix)] == prefix {
		return ns[len(prefix):]
	}
	return ns
}

func sortedNamespaces(diffs map[string][]diff.TableDiff) []string {
	names := make([]string, 0, len(diffs))
	for ns := range diffs {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

package diff

import "sort"

// Table is the snapshot of a single table: its name, its
// schema-qualified path and a field name to canonical type mapping.
type Table struct {
	Name   string
	DB     string
	Fields map[string]string
}

// Equal reports structural equality: same name, same db path and the
// same field-to-type mapping.
func (t Table) Equal(o Table) bool {
	if t.Name != o.Name || t.DB != o.DB || len(t.Fields) != len(o.Fields) {
		return false
	}
	for name, typ := range t.Fields {
		if other, ok := o.Fields[name]; !ok || other != typ {
			return false
		}
	}
	return true
}

// Snapshot maps table names to their descriptions within a single
// namespace.
type Snapshot map[string]Table

// Names returns the table names of the snapshot in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnRow is one row of a table description: schema-qualified table
// path, table name, field path and field type.
type ColumnRow struct {
	DB    string
	Name  string
	Field string
	Type  string
}

// BuildSnapshot folds description rows into a snapshot. Rows are
// expected to be grouped by table, as both the extractors and the
// graph store return them.
func BuildSnapshot(rows []ColumnRow) Snapshot {
	snap := make(Snapshot)
	for _, row := range rows {
		t, ok := snap[row.Name]
		if !ok {
			t = Table{Name: row.Name, DB: row.DB, Fields: make(map[string]string)}
		}
		t.Fields[fieldName(row.Field)] = row.Type
		snap[row.Name] = t
	}
	return snap
}

// fieldName strips the table path prefix from a field path. Graph
// fields carry either a bare name or a full db_source.schema.table.name
// path depending on how they were created.
func fieldName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return path
}

// Package diff computes migration records from two schema snapshots:
// the source database view and the graph view of the same namespace.
package diff

import "sort"

// TableDiff is the three-state migration record for one table.
// OldName nil means create, NewName nil means delete, both set (and
// equal) means alter.
type TableDiff struct {
	OldName *string
	NewName *string
	DB      string
	Fields  []FieldDiff
}

// FieldDiff mirrors TableDiff at the field level, carrying the old and
// new canonical types.
type FieldDiff struct {
	OldName *string
	NewName *string
	OldType string
	NewType string
}

// Compute derives the create/alter/delete sets for one namespace by
// set algebra over the table names, then descends into fields for
// tables present on both sides. Tables whose field-to-type mappings
// are identical produce no record. Records are emitted in sorted name
// order so runs are reproducible.
func Compute(source, graph Snapshot) []TableDiff {
	var diffs []TableDiff

	for _, name := range source.Names() {
		src := source[name]
		if gr, ok := graph[name]; ok {
			if d, changed := alterTable(src, gr); changed {
				diffs = append(diffs, d)
			}
			continue
		}
		diffs = append(diffs, createTable(src))
	}
	for _, name := range graph.Names() {
		if _, ok := source[name]; !ok {
			gr := graph[name]
			diffs = append(diffs, TableDiff{OldName: strptr(name), DB: gr.DB})
		}
	}
	return diffs
}

func createTable(src Table) TableDiff {
	d := TableDiff{NewName: strptr(src.Name), DB: src.DB}
	for _, field := range sortedKeys(src.Fields) {
		d.Fields = append(d.Fields, FieldDiff{
			NewName: strptr(field),
			NewType: src.Fields[field],
		})
	}
	return d
}

func alterTable(src, gr Table) (TableDiff, bool) {
	d := TableDiff{OldName: strptr(gr.Name), NewName: strptr(src.Name), DB: src.DB}

	for _, field := range sortedKeys(src.Fields) {
		srcType := src.Fields[field]
		grType, ok := gr.Fields[field]
		switch {
		case !ok:
			d.Fields = append(d.Fields, FieldDiff{NewName: strptr(field), NewType: srcType})
		case grType != srcType:
			d.Fields = append(d.Fields, FieldDiff{
				OldName: strptr(field),
				NewName: strptr(field),
				OldType: grType,
				NewType: srcType,
			})
		}
	}
	for _, field := range sortedKeys(gr.Fields) {
		if _, ok := src.Fields[field]; !ok {
			d.Fields = append(d.Fields, FieldDiff{OldName: strptr(field), OldType: gr.Fields[field]})
		}
	}
	return d, len(d.Fields) > 0
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func strptr(s string) *string { return &s }

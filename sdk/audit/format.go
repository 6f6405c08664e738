package audit

// MigrationOut is the read view of a persisted migration, served over
// HTTP and echoed on the result queue.
type MigrationOut struct {
	Name    string      `json:"name"`
	Schemas []SchemaOut `json:"schemas"`
}

type SchemaOut struct {
	Name           string          `json:"name"`
	TablesToCreate []TableToCreate `json:"tables_to_create"`
	TablesToAlter  []TableToAlter  `json:"tables_to_alter"`
	TablesToDelete []string        `json:"tables_to_delete"`
}

type TableToCreate struct {
	Name   string          `json:"name"`
	Fields []FieldToCreate `json:"fields"`
}

type FieldToCreate struct {
	Name   string `json:"name"`
	DBType string `json:"db_type"`
}

type TableToAlter struct {
	Name           string          `json:"name"`
	FieldsToCreate []FieldToCreate `json:"fields_to_create"`
	FieldsToAlter  []FieldToAlter  `json:"fields_to_alter"`
	FieldsToDelete []string        `json:"fields_to_delete"`
}

type FieldToAlter struct {
	Name    string `json:"name"`
	OldType string `json:"old_type"`
	NewType string `json:"new_type"`
}

// Format converts a persisted migration tree into its read view.
func Format(m *Migration) MigrationOut {
	out := MigrationOut{Name: m.Name}
	for i := range m.Schemas {
		schema := &m.Schemas[i]
		schemaOut := SchemaOut{
			Name:           schema.Name,
			TablesToCreate: []TableToCreate{},
			TablesToAlter:  []TableToAlter{},
			TablesToDelete: []string{},
		}
		for j := range schema.Tables {
			table := &schema.Tables[j]
			switch {
			case table.OldName == nil && table.NewName != nil:
				schemaOut.TablesToCreate = append(schemaOut.TablesToCreate, formatCreate(table))
			case table.OldName != nil && table.NewName == nil:
				schemaOut.TablesToDelete = append(schemaOut.TablesToDelete, *table.OldName)
			case table.OldName != nil && *table.OldName == *table.NewName:
				schemaOut.TablesToAlter = append(schemaOut.TablesToAlter, formatAlter(table))
			}
		}
		out.Schemas = append(out.Schemas, schemaOut)
	}
	return out
}

func formatCreate(table *Table) TableToCreate {
	out := TableToCreate{Name: *table.NewName, Fields: []FieldToCreate{}}
	for i := range table.Fields {
		f := &table.Fields[i]
		out.Fields = append(out.Fields, FieldToCreate{Name: *f.NewName, DBType: f.NewType})
	}
	return out
}

func formatAlter(table *Table) TableToAlter {
	out := TableToAlter{
		Name:           *table.NewName,
		FieldsToCreate: []FieldToCreate{},
		FieldsToAlter:  []FieldToAlter{},
		FieldsToDelete: []string{},
	}
	for i := range table.Fields {
		f := &table.Fields[i]
		switch {
		case f.OldName == nil && f.NewName != nil:
			out.FieldsToCreate = append(out.FieldsToCreate, FieldToCreate{Name: *f.NewName, DBType: f.NewType})
		case f.OldName != nil && f.NewName == nil:
			out.FieldsToDelete = append(out.FieldsToDelete, *f.OldName)
		case f.OldName != nil && *f.OldName == *f.NewName:
			out.FieldsToAlter = append(out.FieldsToAlter, FieldToAlter{
				Name:    *f.NewName,
				OldType: f.OldType,
				NewType: f.NewType,
			})
		}
	}
	return out
}

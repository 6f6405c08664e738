// Package plan classifies a persisted migration into a Data Vault
// apply plan: hubs, satellites and links bucketed per schema, ready
// for batched application against the graph store.
package plan

import (
	"fmt"
	"regexp"
)

// Pattern carries the request-scoped regexes used for classification.
// PK names PK detection, FK names FK detection (group 1 is the stem
// fed to the similarity resolver), FKTable extracts a satellite's
// parent-hub stem from the satellite's own name.
type Pattern struct {
	PKPattern string `json:"pk_pattern"`
	FKPattern string `json:"fk_pattern"`
	FKTable   string `json:"fk_table"`
}

const (
	DefaultPKPattern = `hash_key`
	DefaultFKPattern = `^(?:id)?(\w*)_hash_fkey$`
	DefaultFKTable   = `^(\w*?)_?sat$`
)

// CompiledPattern is a Pattern compiled once per request.
type CompiledPattern struct {
	PK      *regexp.Regexp
	FK      *regexp.Regexp
	FKTable *regexp.Regexp
}

// Compile compiles the patterns, substituting defaults for empty
// fields.
func (p Pattern) Compile() (*CompiledPattern, error) {
	cp := &CompiledPattern{}
	var err error
	if cp.PK, err = compileOr(p.PKPattern, DefaultPKPattern); err != nil {
		return nil, fmt.Errorf("pk_pattern: %w", err)
	}
	if cp.FK, err = compileOr(p.FKPattern, DefaultFKPattern); err != nil {
		return nil, fmt.Errorf("fk_pattern: %w", err)
	}
	if cp.FKTable, err = compileOr(p.FKTable, DefaultFKTable); err != nil {
		return nil, fmt.Errorf("fk_table: %w", err)
	}
	return cp, nil
}

func compileOr(expr, fallback string) (*regexp.Regexp, error) {
	if expr == "" {
		expr = fallback
	}
	return regexp.Compile(expr)
}

// FieldToCreate is a field payload for a create statement. IsKey is
// set when the field name matches the PK pattern.
type FieldToCreate struct {
	IsKey  bool   `json:"is_key,omitempty"`
	Name   string `json:"name"`
	DBType string `json:"db_type"`
}

// FieldToAlter carries a type change for an existing field.
type FieldToAlter struct {
	IsKey   bool   `json:"is_key,omitempty"`
	Name    string `json:"name"`
	OldType string `json:"old_type"`
	NewType string `json:"new_type"`
}

// TableToCreate is the common shape of hub, satellite and link create
// records.
type TableToCreate struct {
	Name   string          `json:"name"`
	DB     string          `json:"db"`
	PK     string          `json:"pk,omitempty"`
	Fields []FieldToCreate `json:"fields"`
}

// LinkRef binds a table to a referenced hub: the hub name, its PK and
// the local FK field.
type LinkRef struct {
	RefTable   string `json:"ref_table"`
	RefTablePK string `json:"ref_table_pk"`
	FK         string `json:"fk"`
}

// SatToCreate is a satellite create record. Link is filled during
// apply-time resolution; an empty RefTable means the satellite is
// created unlinked.
type SatToCreate struct {
	TableToCreate
	Link LinkRef `json:"link"`
}

// LinkToCreate is a link create record. MainLink and PairedLink are
// filled by FK resolution; nil means the link is created unlinked.
type LinkToCreate struct {
	TableToCreate
	MainLink   *LinkRef `json:"main_link,omitempty"`
	PairedLink *LinkRef `json:"paired_link,omitempty"`
}

// TableToAlter carries the three field diff sets of an altered table.
type TableToAlter struct {
	Name           string          `json:"name"`
	DB             string          `json:"db"`
	FieldsToCreate []FieldToCreate `json:"fields_to_create"`
	FieldsToAlter  []FieldToAlter  `json:"fields_to_alter"`
	FieldsToDelete []string        `json:"fields_to_delete"`
}

// Schema is the apply plan of one source schema.
type Schema struct {
	Name string

	HubsToCreate  []*TableToCreate
	SatsToCreate  []*SatToCreate
	LinksToCreate []*LinkToCreate

	HubsToAlter  []*TableToAlter
	SatsToAlter  []*TableToAlter
	LinksToAlter []*TableToAlter

	TablesToDelete []string

	// TablesWithPKs maps every created table with a detected PK to
	// that PK; it is the candidate set for FK resolution.
	TablesWithPKs map[string]string
}

// Alters returns all alter records regardless of role; the three
// alter statements are role-agnostic.
func (s *Schema) Alters() []*TableToAlter {
	out := make([]*TableToAlter, 0, len(s.HubsToAlter)+len(s.SatsToAlter)+len(s.LinksToAlter))
	out = append(out, s.HubsToAlter...)
	out = append(out, s.SatsToAlter...)
	out = append(out, s.LinksToAlter...)
	return out
}

// Empty reports whether the schema plan contains no work.
func (s *Schema) Empty() bool {
	return len(s.HubsToCreate) == 0 && len(s.SatsToCreate) == 0 && len(s.LinksToCreate) == 0 &&
		len(s.HubsToAlter) == 0 && len(s.SatsToAlter) == 0 && len(s.LinksToAlter) == 0 &&
		len(s.TablesToDelete) == 0
}

// Plan is a classified migration, partitioned per schema.
type Plan struct {
	GUID     string
	Name     string
	DBSource string
	Schemas  []*Schema
}

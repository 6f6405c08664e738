package plan

import (
	"regexp"

	"github.com/sirupsen/logrus"

	"graph-db-migrater/sdk/audit"
)

var log = logrus.WithField("component", "plan")

// Format classifies a persisted migration into an apply plan. Create
// records are routed by FK count (0 hub, 1 satellite, 2 link, more
// dropped), alter records are bucketed by the same count, delete
// records collapse into a single list since the deletion query is
// role-agnostic. The caller compiles the pattern once per request and
// reuses it for resolution.
func Format(m *audit.Migration, cp *CompiledPattern) *Plan {
	p := &Plan{GUID: m.GUID, Name: m.Name, DBSource: m.DBSource}
	for i := range m.Schemas {
		schema := &m.Schemas[i]
		s := &Schema{Name: schema.Name, TablesWithPKs: make(map[string]string)}
		for j := range schema.Tables {
			table := &schema.Tables[j]
			switch {
			case table.OldName == nil && table.NewName != nil:
				routeCreate(s, table, cp)
			case table.OldName != nil && table.NewName == nil:
				s.TablesToDelete = append(s.TablesToDelete, *table.OldName)
			case table.OldName != nil && *table.OldName == *table.NewName:
				routeAlter(s, table, cp)
			}
		}
		p.Schemas = append(p.Schemas, s)
	}
	return p
}

func routeCreate(s *Schema, table *audit.Table, cp *CompiledPattern) {
	fkCount := table.FKCount(cp.FK)
	switch fkCount {
	case 0:
		hub := &TableToCreate{Name: *table.NewName, DB: table.DB}
		addFields(hub, table, cp.PK)
		s.HubsToCreate = append(s.HubsToCreate, hub)
		notePK(s, hub)
	case 1:
		sat := &SatToCreate{TableToCreate: TableToCreate{Name: *table.NewName, DB: table.DB}}
		addFields(&sat.TableToCreate, table, cp.PK)
		sat.Link.FK = firstFK(table, cp.FK)
		s.SatsToCreate = append(s.SatsToCreate, sat)
		notePK(s, &sat.TableToCreate)
	case 2:
		link := &LinkToCreate{TableToCreate: TableToCreate{Name: *table.NewName, DB: table.DB}}
		addFields(&link.TableToCreate, table, cp.PK)
		s.LinksToCreate = append(s.LinksToCreate, link)
		notePK(s, &link.TableToCreate)
	default:
		log.WithFields(logrus.Fields{"table": *table.NewName, "fk_count": fkCount}).
			Warn("table has too many foreign keys to model, dropped from plan")
	}
}

func routeAlter(s *Schema, table *audit.Table, cp *CompiledPattern) {
	alter := &TableToAlter{
		Name:           *table.NewName,
		DB:             table.DB,
		FieldsToCreate: []FieldToCreate{},
		FieldsToAlter:  []FieldToAlter{},
		FieldsToDelete: []string{},
	}
	for i := range table.Fields {
		f := &table.Fields[i]
		switch {
		case f.OldName == nil && f.NewName != nil:
			alter.FieldsToCreate = append(alter.FieldsToCreate, FieldToCreate{
				IsKey:  cp.PK.MatchString(*f.NewName),
				Name:   *f.NewName,
				DBType: f.NewType,
			})
		case f.OldName != nil && f.NewName == nil:
			alter.FieldsToDelete = append(alter.FieldsToDelete, *f.OldName)
		case f.OldName != nil && *f.OldName == *f.NewName:
			alter.FieldsToAlter = append(alter.FieldsToAlter, FieldToAlter{
				IsKey:   cp.PK.MatchString(*f.NewName),
				Name:    *f.NewName,
				OldType: f.OldType,
				NewType: f.NewType,
			})
		}
	}

	switch table.FKCount(cp.FK) {
	case 0:
		s.HubsToAlter = append(s.HubsToAlter, alter)
	case 1:
		s.SatsToAlter = append(s.SatsToAlter, alter)
	case 2:
		s.LinksToAlter = append(s.LinksToAlter, alter)
	default:
		s.LinksToAlter = append(s.LinksToAlter, alter)
	}
}

// addFields copies field records onto a create payload and detects
// the PK: it is set only when exactly one field matches the pattern.
func addFields(t *TableToCreate, table *audit.Table, pk *regexp.Regexp) {
	var possiblePK string
	pkCount := 0
	for i := range table.Fields {
		f := &table.Fields[i]
		if f.NewName == nil {
			continue
		}
		field := FieldToCreate{Name: *f.NewName, DBType: f.NewType}
		if pk.MatchString(field.Name) {
			field.IsKey = true
			possiblePK = field.Name
			pkCount++
		}
		t.Fields = append(t.Fields, field)
	}
	if pkCount == 1 {
		t.PK = possiblePK
	}
}

func firstFK(table *audit.Table, fk *regexp.Regexp) string {
	for i := range table.Fields {
		if name := table.Fields[i].EffectiveName(); fk.MatchString(name) {
			return name
		}
	}
	return ""
}

func notePK(s *Schema, t *TableToCreate) {
	if t.PK != "" {
		s.TablesWithPKs[t.Name] = t.PK
	}
}

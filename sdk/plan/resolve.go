package plan

import (
	"fmt"
	"sort"

	"graph-db-migrater/sdk/errs"
)

// ResolveSats binds each satellite to its parent hub by applying the
// fk_table pattern to the satellite's own name and resolving the stem
// against the tables with known PKs. Unresolvable satellites are
// returned separately and created without topology.
func ResolveSats(s *Schema, cp *CompiledPattern) (linked, unlinked []*SatToCreate) {
	candidates := pkTables(s)
	for _, sat := range s.SatsToCreate {
		m := cp.FKTable.FindStringSubmatch(sat.Name)
		if m == nil || len(m) < 2 || m[1] == "" {
			unlinked = append(unlinked, sat)
			continue
		}
		ref, ok := BestMatch(m[1], candidates, sat.Name)
		if !ok {
			log.WithField("sat", sat.Name).Warn("no hub resolved for satellite, creating unlinked")
			unlinked = append(unlinked, sat)
			continue
		}
		sat.Link.RefTable = ref
		sat.Link.RefTablePK = s.TablesWithPKs[ref]
		linked = append(linked, sat)
	}
	return linked, unlinked
}

// ResolveLinks pairs each link's FK fields with referenced hubs.
// Links with an ambiguous or incomplete resolution fall back to the
// unlinked create path; this is non-fatal by design of the plan.
func ResolveLinks(s *Schema, cp *CompiledPattern) (linked, unlinked []*LinkToCreate) {
	candidates := pkTables(s)
	for _, link := range s.LinksToCreate {
		if err := link.matchFKs(cp, candidates); err != nil {
			log.WithField("link", link.Name).WithError(err).
				Warn("link foreign keys not resolved, creating unlinked")
			link.MainLink, link.PairedLink = nil, nil
			unlinked = append(unlinked, link)
			continue
		}
		link.MainLink.RefTablePK = s.TablesWithPKs[link.MainLink.RefTable]
		link.PairedLink.RefTablePK = s.TablesWithPKs[link.PairedLink.RefTable]
		linked = append(linked, link)
	}
	return linked, unlinked
}

// matchFKs walks the link's fields in table order, resolving each FK
// stem to a hub. The first match becomes MainLink, the second
// PairedLink; a third FK field is an error.
func (l *LinkToCreate) matchFKs(cp *CompiledPattern, candidates []string) error {
	var refs []*LinkRef
	for _, field := range l.Fields {
		m := cp.FK.FindStringSubmatch(field.Name)
		if m == nil {
			continue
		}
		if len(refs) == 2 {
			return errs.ErrTooManyForeignKeys
		}
		ref, ok := BestMatch(m[1], candidates, l.Name)
		if !ok {
			return fmt.Errorf("no table resolved for fk %q", field.Name)
		}
		refs = append(refs, &LinkRef{RefTable: ref, FK: field.Name})
	}
	if len(refs) != 2 {
		return fmt.Errorf("link resolves %d of 2 foreign keys", len(refs))
	}
	l.MainLink, l.PairedLink = refs[0], refs[1]
	return nil
}

func pkTables(s *Schema) []string {
	names := make([]string, 0, len(s.TablesWithPKs))
	for name := range s.TablesWithPKs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

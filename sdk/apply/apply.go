// Package apply executes a classified plan against the graph store.
// Statements run per namespace in a fixed phase order so deletions
// free names before creations and hubs exist before anything that
// references them.
package apply

import (
	"context"

	"github.com/sirupsen/logrus"

	"graph-db-migrater/sdk/cypher"
	"graph-db-migrater/sdk/extractor"
	"graph-db-migrater/sdk/plan"
)

// batchSize caps the records inlined into one statement.
const batchSize = 50

var log = logrus.WithField("component", "apply")

// Graph is the slice of the graph store the applier needs.
type Graph interface {
	ExecBatch(ctx context.Context, ns string, stmts []string) error
}

// Applier turns plans into graph mutations.
type Applier struct {
	graph Graph
}

// New creates an applier over the given graph store.
func New(graph Graph) *Applier {
	return &Applier{graph: graph}
}

// Apply runs every schema of the plan, each inside its own
// transaction. FK resolution happens here so the candidate hub set
// reflects the full create plan.
func (a *Applier) Apply(ctx context.Context, p *plan.Plan, cp *plan.CompiledPattern) error {
	for _, schema := range p.Schemas {
		if schema.Empty() {
			continue
		}
		ns := extractor.Namespace(p.DBSource, schema.Name)
		stmts := statements(schema, cp)
		log.WithFields(logrus.Fields{"namespace": ns, "statements": len(stmts)}).
			Info("applying schema plan")
		if err := a.graph.ExecBatch(ctx, ns, stmts); err != nil {
			return err
		}
	}
	return nil
}

// statements renders the schema plan in apply order: deletions, hubs,
// links, satellites, then field alterations.
func statements(s *plan.Schema, cp *plan.CompiledPattern) []string {
	var stmts []string
	for _, batch := range toBatches(s.TablesToDelete) {
		stmts = append(stmts, cypher.DeleteNodes(batch))
	}
	for _, batch := range toBatches(s.HubsToCreate) {
		stmts = append(stmts, cypher.CreateHubs(batch))
	}

	linkedLinks, unlinkedLinks := plan.ResolveLinks(s, cp)
	for _, batch := range toBatches(linkedLinks) {
		stmts = append(stmts, cypher.CreateLinks(batch, true))
	}
	for _, batch := range toBatches(unlinkedLinks) {
		stmts = append(stmts, cypher.CreateLinks(batch, false))
	}

	linkedSats, unlinkedSats := plan.ResolveSats(s, cp)
	for _, batch := range toBatches(linkedSats) {
		stmts = append(stmts, cypher.CreateSats(batch, true))
	}
	for _, batch := range toBatches(unlinkedSats) {
		stmts = append(stmts, cypher.CreateSats(batch, false))
	}

	for _, batch := range toBatches(s.Alters()) {
		if hasFieldCreates(batch) {
			stmts = append(stmts, cypher.AlterCreateFields(batch))
		}
		if hasFieldDeletes(batch) {
			stmts = append(stmts, cypher.AlterDeleteFields(batch))
		}
		if hasFieldAlters(batch) {
			stmts = append(stmts, cypher.AlterAlterFields(batch))
		}
	}
	return stmts
}

func hasFieldCreates(batch []*plan.TableToAlter) bool {
	for _, t := range batch {
		if len(t.FieldsToCreate) > 0 {
			return true
		}
	}
	return false
}

func hasFieldDeletes(batch []*plan.TableToAlter) bool {
	for _, t := range batch {
		if len(t.FieldsToDelete) > 0 {
			return true
		}
	}
	return false
}

func hasFieldAlters(batch []*plan.TableToAlter) bool {
	for _, t := range batch {
		if len(t.FieldsToAlter) > 0 {
			return true
		}
	}
	return false
}

func toBatches[T any](records []T) [][]T {
	var batches [][]T
	for len(records) > batchSize {
		batches = append(batches, records[:batchSize])
		records = records[batchSize:]
	}
	if len(records) > 0 {
		batches = append(batches, records)
	}
	return batches
}

package apply

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-db-migrater/sdk/plan"
)

type fakeGraph struct {
	calls map[string][]string
	err   error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{calls: make(map[string][]string)}
}

func (g *fakeGraph) ExecBatch(_ context.Context, ns string, stmts []string) error {
	if g.err != nil {
		return g.err
	}
	g.calls[ns] = append(g.calls[ns], stmts...)
	return nil
}

func compiled(t *testing.T) *plan.CompiledPattern {
	cp, err := plan.Pattern{}.Compile()
	require.NoError(t, err)
	return cp
}

func TestApplyPhaseOrder(t *testing.T) {
	s := &plan.Schema{
		Name:           "public",
		TablesToDelete: []string{"old_hub"},
		HubsToCreate: []*plan.TableToCreate{
			{Name: "customer_hub", PK: "customer_hash_key"},
		},
		SatsToCreate: []*plan.SatToCreate{
			{
				TableToCreate: plan.TableToCreate{Name: "customer_sat"},
				Link:          plan.LinkRef{FK: "idcustomer_hash_fkey"},
			},
		},
		LinksToCreate: []*plan.LinkToCreate{
			{
				TableToCreate: plan.TableToCreate{
					Name: "customer_order_link",
					Fields: []plan.FieldToCreate{
						{Name: "idcustomer_hash_fkey"},
						{Name: "idorder_hash_fkey"},
					},
				},
			},
		},
		HubsToAlter: []*plan.TableToAlter{
			{Name: "other_hub", FieldsToCreate: []plan.FieldToCreate{{Name: "phone", DBType: "str"}}},
		},
		TablesWithPKs: map[string]string{
			"customer_hub": "customer_hash_key",
			"order_hub":    "order_hash_key",
		},
	}
	p := &plan.Plan{DBSource: "source-1", Schemas: []*plan.Schema{s}}

	g := newFakeGraph()
	err := New(g).Apply(context.Background(), p, compiled(t))
	require.NoError(t, err)

	stmts := g.calls["source-1.public"]
	require.Len(t, stmts, 5)
	assert.Contains(t, stmts[0], "DETACH DELETE node, f")
	assert.Contains(t, stmts[1], "MERGE (hub:Table")
	assert.Contains(t, stmts[2], "main_link.ref_table")
	assert.Contains(t, stmts[3], "sat_record.link.ref_table")
	assert.Contains(t, stmts[4], "fields_to_create")
}

func TestApplyUnresolvedLinkFallsBackUnlinked(t *testing.T) {
	s := &plan.Schema{
		Name: "public",
		LinksToCreate: []*plan.LinkToCreate{
			{
				TableToCreate: plan.TableToCreate{
					Name: "mystery_link",
					Fields: []plan.FieldToCreate{
						{Name: "idzzz_hash_fkey"},
						{Name: "idyyy_hash_fkey"},
					},
				},
			},
		},
		TablesWithPKs: map[string]string{},
	}
	p := &plan.Plan{DBSource: "source-1", Schemas: []*plan.Schema{s}}

	g := newFakeGraph()
	err := New(g).Apply(context.Background(), p, compiled(t))
	require.NoError(t, err)

	stmts := g.calls["source-1.public"]
	require.Len(t, stmts, 1)
	assert.NotContains(t, stmts[0], "main_link")
	assert.Contains(t, stmts[0], "MERGE (link:Table { name: link_record.name })")
}

func TestApplySkipsEmptySchemas(t *testing.T) {
	p := &plan.Plan{DBSource: "source-1", Schemas: []*plan.Schema{{Name: "public"}}}
	g := newFakeGraph()
	require.NoError(t, New(g).Apply(context.Background(), p, compiled(t)))
	assert.Empty(t, g.calls)
}

func TestApplyPropagatesGraphErrors(t *testing.T) {
	p := &plan.Plan{DBSource: "source-1", Schemas: []*plan.Schema{
		{Name: "public", TablesToDelete: []string{"x"}},
	}}
	g := newFakeGraph()
	g.err = fmt.Errorf("connection reset")
	err := New(g).Apply(context.Background(), p, compiled(t))
	assert.Error(t, err)
}

func TestToBatches(t *testing.T) {
	var names []string
	for i := 0; i < 120; i++ {
		names = append(names, fmt.Sprintf("table_%03d", i))
	}
	batches := toBatches(names)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[1], 50)
	assert.Len(t, batches[2], 20)
	assert.Equal(t, strings.Join(names, ","), strings.Join(flatten(batches), ","))

	assert.Empty(t, toBatches[string](nil))
}

func flatten(batches [][]string) []string {
	var out []string
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"graph-db-migrater/sdk/apply"
	"graph-db-migrater/sdk/audit"
	"graph-db-migrater/sdk/config"
	"graph-db-migrater/sdk/diff"
	"graph-db-migrater/sdk/errs"
	"graph-db-migrater/sdk/extractor"
	"graph-db-migrater/sdk/graphstore"
	"graph-db-migrater/sdk/plan"
)

var log = logrus.WithField("component", "migration-service")

// MigrationIn is a request to record the drift between a source
// database and its graph namespaces.
type MigrationIn struct {
	Name       string `json:"name"`
	ConnString string `json:"conn_string"`
	DBSource   string `json:"db_source"`

	// ObjectName restricts the sync to one table. ObjectDBPath is its
	// dotted db_source.schema.name path, used to anchor the namespace
	// of a table that no longer exists in the source.
	ObjectName   string `json:"object_name,omitempty"`
	ObjectDBPath string `json:"object_db_path,omitempty"`
}

func (in MigrationIn) validate() error {
	if in.Name == "" || in.ConnString == "" || in.DBSource == "" {
		return fmt.Errorf("%w: name, conn_string and db_source are required",
			errs.ErrInvalidMigrationRequest)
	}
	return nil
}

// Service owns the metadata pipeline: extract, diff, persist, apply.
type Service struct {
	cfg     *config.Settings
	audit   *audit.Store
	graph   *graphstore.Store
	applier *apply.Applier
}

// NewService wires the pipeline over its backing stores.
func NewService(cfg *config.Settings, auditStore *audit.Store, graph *graphstore.Store) *Service {
	return &Service{
		cfg:     cfg,
		audit:   auditStore,
		graph:   graph,
		applier: apply.New(graph),
	}
}

// AddResult reports a recorded migration: its guid and the source
// table count echoed on the result queue.
type AddResult struct {
	GUID       string
	TableCount int
}

// Add snapshots the source and the graph, computes the diff per
// namespace and persists it as a new migration record. An empty diff
// still produces a record so callers can observe that the sync ran.
func (s *Service) Add(ctx context.Context, in MigrationIn) (*AddResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.graph.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	ext, err := extractor.New(in.ConnString, in.DBSource)
	if err != nil {
		return nil, err
	}
	defer ext.Close()

	sourceTables, err := s.listSource(ctx, ext, in)
	if err != nil {
		return nil, err
	}
	count, err := ext.CountTables(ctx)
	if err != nil {
		return nil, err
	}

	diffs := make(map[string][]diff.TableDiff)
	for _, ns := range sortedNamespaces(sourceTables) {
		d, err := s.diffNamespace(ctx, ext, in, ns, sourceTables[ns])
		if err != nil {
			return nil, err
		}
		if len(d) > 0 {
			diffs[ns] = d
		}
	}

	guid := uuid.NewString()
	m := audit.NewMigration(in.Name, guid, in.DBSource, diffs)
	if err := s.audit.Save(ctx, m); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"guid": guid, "namespaces": len(diffs)}).
		Info("migration recorded")
	return &AddResult{GUID: guid, TableCount: count}, nil
}

func (s *Service) listSource(ctx context.Context, ext extractor.Extractor, in MigrationIn) (extractor.TableSet, error) {
	if in.ObjectName == "" {
		return ext.ListTables(ctx)
	}
	return ext.ListSingleTable(ctx, in.ObjectName, in.ObjectDBPath)
}

// diffNamespace compares the source and graph snapshots of one
// namespace. In single-object mode the graph side is narrowed to the
// same table so unrelated graph nodes never read as deletions.
func (s *Service) diffNamespace(
	ctx context.Context, ext extractor.Extractor, in MigrationIn, ns string, names map[string]struct{},
) ([]diff.TableDiff, error) {
	var (
		graphNames map[string]struct{}
		err        error
	)
	if in.ObjectName != "" {
		graphNames, err = s.graph.ListSingleTable(ctx, ns, in.ObjectName)
	} else {
		graphNames, err = s.graph.ListTables(ctx, ns)
	}
	if err != nil {
		return nil, err
	}

	sourceRows, err := ext.Describe(ctx, ns, setToSlice(names))
	if err != nil {
		return nil, err
	}
	graphRows, err := s.graph.Describe(ctx, ns, dbPaths(ns, in.DBSource, graphNames))
	if err != nil {
		return nil, err
	}

	return diff.Compute(diff.BuildSnapshot(sourceRows), diff.BuildSnapshot(graphRows)), nil
}

// Apply classifies the most recent migration of a db_source and
// replays it onto the graph. With an empty dbSource the globally
// latest record is applied.
func (s *Service) Apply(ctx context.Context, dbSource string, pattern plan.Pattern) (string, error) {
	var (
		m   *audit.Migration
		err error
	)
	if dbSource != "" {
		m, err = s.audit.LatestFor(ctx, dbSource)
	} else {
		m, err = s.audit.Latest(ctx)
	}
	if err != nil {
		return "", err
	}

	cp, err := pattern.Compile()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrInvalidMigrationRequest, err)
	}
	p := plan.Format(m, cp)

	if err := s.graph.EnsureConnection(ctx); err != nil {
		return "", err
	}
	if err := s.applier.Apply(ctx, p, cp); err != nil {
		return "", err
	}
	log.WithField("guid", m.GUID).Info("migration applied")
	return m.GUID, nil
}

// Get returns the read view of a migration record; an empty guid
// selects the latest one.
func (s *Service) Get(ctx context.Context, guid string) (*audit.MigrationOut, error) {
	var (
		m   *audit.Migration
		err error
	)
	if guid != "" {
		m, err = s.audit.ByGUID(ctx, guid)
	} else {
		m, err = s.audit.Latest(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := audit.Format(m)
	return &out, nil
}

func sortedNamespaces(set extractor.TableSet) []string {
	names := make([]string, 0, len(set))
	for ns := range set {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

func setToSlice(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// dbPaths rebuilds the schema-qualified paths the graph stores in the
// db property of every node.
func dbPaths(ns, dbSource string, names map[string]struct{}) []string {
	schema := strings.TrimPrefix(ns, dbSource+".")
	paths := make([]string, 0, len(names))
	for name := range names {
		paths = append(paths, schema+"."+name)
	}
	sort.Strings(paths)
	return paths
}

// Package graphstore talks to Apache AGE over a single postgres
// connection. One graph exists per source namespace and is created on
// demand; mutating statements are serialized since AGE graph DDL and
// cypher writes share the session.
package graphstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"graph-db-migrater/sdk/cypher"
	"graph-db-migrater/sdk/diff"
	"graph-db-migrater/sdk/errs"
)

var log = logrus.WithField("component", "graphstore")

// Store is a serialized AGE session.
type Store struct {
	mu         sync.Mutex
	conn       *pgx.Conn
	connString string

	// graphs caches namespaces already known to exist.
	graphs map[string]struct{}
}

// Open connects to the AGE-enabled postgres instance and prepares the
// session for cypher execution.
func Open(ctx context.Context, connString string) (*Store, error) {
	s := &Store{connString: connString, graphs: make(map[string]struct{})}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) connect(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, s.connString)
	if err != nil {
		return errs.GraphUnavailable(fmt.Errorf("connect: %w", err))
	}
	for _, stmt := range []string{
		`LOAD 'age'`,
		`SET search_path = ag_catalog, "$user", public`,
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			conn.Close(ctx)
			return errs.GraphUnavailable(fmt.Errorf("session setup: %w", err))
		}
	}
	s.conn = conn
	return nil
}

// EnsureConnection pings the session and reconnects once when the
// connection has gone away.
func (s *Store) EnsureConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		if err := s.conn.Ping(ctx); err == nil {
			return nil
		}
		log.Warn("graph connection lost, reconnecting")
		_ = s.conn.Close(ctx)
		s.conn = nil
	}
	return s.connect(ctx)
}

// Close tears the session down.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	return err
}

// ensureGraph creates the namespace graph when it does not exist yet.
// Caller holds the lock.
func (s *Store) ensureGraph(ctx context.Context, ns string) error {
	if _, ok := s.graphs[ns]; ok {
		return nil
	}
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`SELECT * FROM ag_catalog.create_graph(%s)`, sqlQuote(ns)))
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return errs.GraphUnavailable(fmt.Errorf("create graph %s: %w", ns, err))
	}
	s.graphs[ns] = struct{}{}
	return nil
}

// ListTables returns the node names present in the namespace graph.
// A namespace seen for the first time yields an empty set.
func (s *Store) ListTables(ctx context.Context, ns string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureGraph(ctx, ns); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, wrap(ns, cypher.ListNodes, "name agtype"))
	if err != nil {
		return nil, errs.GraphUnavailable(fmt.Errorf("list graph tables: %w", err))
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.GraphUnavailable(err)
		}
		names[agString(name)] = struct{}{}
	}
	return names, rows.Err()
}

// ListSingleTable narrows ListTables to at most the named table.
func (s *Store) ListSingleTable(ctx context.Context, ns, name string) (map[string]struct{}, error) {
	all, err := s.ListTables(ctx, ns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	if _, ok := all[name]; ok {
		out[name] = struct{}{}
	}
	return out, nil
}

// Describe returns the attribute fields of the named tables as column
// rows matching the source extractor's shape.
func (s *Store) Describe(ctx context.Context, ns string, tables []string) ([]diff.ColumnRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureGraph(ctx, ns); err != nil {
		return nil, err
	}

	query := wrap(ns, cypher.DescribeNodes(tables),
		"db agtype, name agtype, field_db agtype, field_type agtype")
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, errs.GraphUnavailable(fmt.Errorf("describe graph tables: %w", err))
	}
	defer rows.Close()

	var out []diff.ColumnRow
	for rows.Next() {
		var db, name, fieldDB, fieldType string
		if err := rows.Scan(&db, &name, &fieldDB, &fieldType); err != nil {
			return nil, errs.GraphUnavailable(err)
		}
		out = append(out, diff.ColumnRow{
			DB:    agString(db),
			Name:  agString(name),
			Field: agString(fieldDB),
			Type:  agString(fieldType),
		})
	}
	return out, rows.Err()
}

// ExecBatch applies the statements to the namespace graph, each in
// its own committed transaction. A failing statement rolls back and
// aborts the rest; earlier commits stand, and a later migration
// re-diffs from the partially mutated graph and converges.
func (s *Store) ExecBatch(ctx context.Context, ns string, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureGraph(ctx, ns); err != nil {
		return err
	}

	for _, stmt := range wrapStatements(ns, stmts) {
		if err := s.execOne(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) execOne(ctx context.Context, stmt string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return errs.GraphUnavailable(fmt.Errorf("begin: %w", err))
	}
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return errs.GraphUnavailable(fmt.Errorf("apply statement: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.GraphUnavailable(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// wrapStatements wraps every mutation independently so each gets its
// own transaction boundary.
func wrapStatements(ns string, stmts []string) []string {
	wrapped := make([]string, len(stmts))
	for i, stmt := range stmts {
		wrapped[i] = wrap(ns, stmt, "v agtype")
	}
	return wrapped
}

// wrap embeds a cypher statement into the AGE SQL shim. The dollar
// tag is extended until it does not occur in the body, so no inlined
// name can terminate the SQL literal early.
func wrap(graph, stmt, cols string) string {
	tag := "$cy$"
	for i := 0; strings.Contains(stmt, tag); i++ {
		tag = fmt.Sprintf("$cy%d$", i)
	}
	return fmt.Sprintf("SELECT * FROM cypher(%s, %s%s%s) AS (%s)",
		sqlQuote(graph), tag, stmt, tag, cols)
}

// sqlQuote renders s as a SQL string literal. Quotes are doubled, the
// standard_conforming_strings escape rule.
func sqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// agString strips the double quotes agtype puts around scalar
// strings.
func agString(s string) string {
	return strings.Trim(s, `"`)
}

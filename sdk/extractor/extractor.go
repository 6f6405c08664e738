// Package extractor discovers schema metadata from heterogeneous
// source databases. Implementations are selected by the scheme prefix
// of the connection string and normalize native column types to a
// fixed canonical set.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"graph-db-migrater/sdk/diff"
	"graph-db-migrater/sdk/errs"
)

// Canonical system types. Unknown native types map to the empty
// string, meaning "unspecified".
const (
	TypeBool     = "bool"
	TypeStr      = "str"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeDate     = "date"
	TypeDatetime = "datetime"
	TypeJSON     = "json"
	TypeXML      = "xml"
	TypeList     = "list"
	TypeBinary   = "b64binary"
)

// TableSet maps a namespace (db_source.schema) to the set of base
// table names discovered in it.
type TableSet map[string]map[string]struct{}

// Extractor is the capability set every metadata backend exposes.
type Extractor interface {
	// ListTables discovers all namespaces and their base tables,
	// excluding system schemas.
	ListTables(ctx context.Context) (TableSet, error)

	// ListSingleTable restricts discovery to one table. When dbPath
	// (dotted source.schema.name) is given and the table is absent,
	// the namespace is still present with an empty set so the diff
	// produces a deletion.
	ListSingleTable(ctx context.Context, name, dbPath string) (TableSet, error)

	// Describe returns column rows for the given tables of one
	// namespace, ordered by table path.
	Describe(ctx context.Context, ns string, tables []string) ([]diff.ColumnRow, error)

	// CountTables counts all discoverable base tables.
	CountTables(ctx context.Context) (int, error)

	// Close releases the backend connection.
	Close()
}

// Factory builds an extractor for a connection string. dbSource is the
// opaque source identifier namespaces are prefixed with.
type Factory func(connString, dbSource string) (Extractor, error)

var backends = map[string]Factory{
	"postgresql":  newPostgres,
	"postgres":    newPostgres,
	"mongodb":     newMongo,
	"mongodb+srv": newMongo,
}

// New selects a backend by the scheme prefix of connString.
func New(connString, dbSource string) (Extractor, error) {
	scheme, _, ok := strings.Cut(connString, "://")
	if !ok {
		return nil, fmt.Errorf("%w: connection string has no scheme", errs.ErrInvalidMigrationRequest)
	}
	factory, ok := backends[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnsupportedBackend, scheme)
	}
	return factory(connString, dbSource)
}

// Namespace joins the source identifier with a schema name.
func Namespace(dbSource, schema string) string {
	return dbSource + "." + schema
}

// SplitDBPath splits a dotted source.schema.name path into namespace
// and table name. The name may itself contain no dots; everything
// before the last dot belongs to the namespace.
func SplitDBPath(dbPath string) (ns, name string, ok bool) {
	idx := strings.LastIndexByte(dbPath, '.')
	if idx <= 0 || idx == len(dbPath)-1 {
		return "", "", false
	}
	return dbPath[:idx], dbPath[idx+1:], true
}

package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"graph-db-migrater/sdk/diff"
	"graph-db-migrater/sdk/errs"
)

const listTablesSQL = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_type = 'BASE TABLE'
  AND table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY table_schema, table_name`

const describeSQL = `
SELECT tabs.table_name, cols.column_name, cols.data_type
FROM information_schema.columns AS cols
JOIN information_schema.tables AS tabs
  ON tabs.table_schema = cols.table_schema AND tabs.table_name = cols.table_name
WHERE tabs.table_schema = $1 AND tabs.table_name = ANY($2)
ORDER BY tabs.table_name`

type postgresExtractor struct {
	pool     *pgxpool.Pool
	dbSource string
}

func newPostgres(connString, dbSource string) (Extractor, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, errs.SourceUnavailable(err)
	}
	return &postgresExtractor{pool: pool, dbSource: dbSource}, nil
}

func (e *postgresExtractor) ListTables(ctx context.Context) (TableSet, error) {
	rows, err := e.pool.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, errs.SourceUnavailable(err)
	}
	defer rows.Close()

	set := make(TableSet)
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		ns := Namespace(e.dbSource, schema)
		if set[ns] == nil {
			set[ns] = make(map[string]struct{})
		}
		set[ns][name] = struct{}{}
	}
	return set, rows.Err()
}

func (e *postgresExtractor) ListSingleTable(ctx context.Context, name, dbPath string) (TableSet, error) {
	all, err := e.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	set := make(TableSet)
	for ns, names := range all {
		if _, ok := names[name]; ok {
			set[ns] = map[string]struct{}{name: {}}
		}
	}
	// Anchor the namespace of a missing table so the diff can emit a
	// deletion for it.
	if ns, wanted, ok := SplitDBPath(dbPath); ok && wanted == name {
		if set[ns] == nil {
			set[ns] = make(map[string]struct{})
		}
	}
	return set, nil
}

func (e *postgresExtractor) Describe(ctx context.Context, ns string, tables []string) ([]diff.ColumnRow, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	_, schema, ok := strings.Cut(ns, ".")
	if !ok {
		return nil, fmt.Errorf("namespace %q is not db_source.schema", ns)
	}

	rows, err := e.pool.Query(ctx, describeSQL, schema, tables)
	if err != nil {
		return nil, errs.SourceUnavailable(err)
	}
	defer rows.Close()

	var records []diff.ColumnRow
	for rows.Next() {
		var table, column, nativeType string
		if err := rows.Scan(&table, &column, &nativeType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		records = append(records, diff.ColumnRow{
			DB:    schema + "." + table,
			Name:  table,
			Field: column,
			Type:  pgType(nativeType),
		})
	}
	return records, rows.Err()
}

func (e *postgresExtractor) CountTables(ctx context.Context) (int, error) {
	var count int
	err := e.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')`,
	).Scan(&count)
	if err != nil {
		return 0, errs.SourceUnavailable(err)
	}
	return count, nil
}

func (e *postgresExtractor) Close() { e.pool.Close() }

// pgType maps a Postgres data type to the canonical system type.
func pgType(native string) string {
	switch native {
	case "boolean":
		return TypeBool
	case "character varying", "character", "text", "uuid", "name":
		return TypeStr
	case "smallint", "integer", "bigint":
		return TypeInt
	case "numeric", "real", "double precision", "money":
		return TypeFloat
	case "date":
		return TypeDate
	case "timestamp without time zone", "timestamp with time zone",
		"time without time zone", "time with time zone":
		return TypeDatetime
	case "json", "jsonb":
		return TypeJSON
	case "xml":
		return TypeXML
	case "ARRAY":
		return TypeList
	case "bytea":
		return TypeBinary
	default:
		return ""
	}
}

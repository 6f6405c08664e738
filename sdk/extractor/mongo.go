package extractor

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"graph-db-migrater/sdk/diff"
	"graph-db-migrater/sdk/errs"
)

// mongoExtractor treats each database as a schema and each collection
// as a table. Field types are sampled from the newest document of the
// collection, since collections carry no declared schema.
type mongoExtractor struct {
	client   *mongo.Client
	dbSource string
}

var systemDatabases = map[string]struct{}{
	"admin":  {},
	"config": {},
	"local":  {},
}

func newMongo(connString, dbSource string) (Extractor, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(connString))
	if err != nil {
		return nil, errs.SourceUnavailable(err)
	}
	return &mongoExtractor{client: client, dbSource: dbSource}, nil
}

func (e *mongoExtractor) ListTables(ctx context.Context) (TableSet, error) {
	names, err := e.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, errs.SourceUnavailable(err)
	}

	set := make(TableSet)
	for _, dbName := range names {
		if _, ok := systemDatabases[dbName]; ok {
			continue
		}
		collections, err := e.client.Database(dbName).ListCollectionNames(ctx, bson.D{})
		if err != nil {
			return nil, errs.SourceUnavailable(err)
		}
		ns := Namespace(e.dbSource, dbName)
		set[ns] = make(map[string]struct{}, len(collections))
		for _, coll := range collections {
			set[ns][coll] = struct{}{}
		}
	}
	return set, nil
}

func (e *mongoExtractor) ListSingleTable(ctx context.Context, name, dbPath string) (TableSet, error) {
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
	if ns, wanted, ok := SplitDBPath(dbPath); ok && wanted == name {
		if set[ns] == nil {
			set[ns] = make(map[string]struct{})
		}
	}
	return set, nil
}

func (e *mongoExtractor) Describe(ctx context.Context, ns string, tables []string) ([]diff.ColumnRow, error) {
	_, dbName, ok := strings.Cut(ns, ".")
	if !ok {
		return nil, fmt.Errorf("namespace %q is not db_source.schema", ns)
	}
	db := e.client.Database(dbName)

	var records []diff.ColumnRow
	for _, table := range tables {
		opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
		var doc bson.Raw
		err := db.Collection(table).FindOne(ctx, bson.D{}, opts).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			continue
		}
		if err != nil {
			return nil, errs.SourceUnavailable(err)
		}

		elements, err := doc.Elements()
		if err != nil {
			return nil, errs.SourceUnavailable(err)
		}
		for _, el := range elements {
			records = append(records, diff.ColumnRow{
				DB:    dbName + "." + table,
				Name:  table,
				Field: el.Key(),
				Type:  bsonType(el.Value().Type),
			})
		}
	}
	return records, nil
}

func (e *mongoExtractor) CountTables(ctx context.Context) (int, error) {
	set, err := e.ListTables(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, names := range set {
		count += len(names)
	}
	return count, nil
}

func (e *mongoExtractor) Close() {
	_ = e.client.Disconnect(context.Background())
}

// bsonType maps a sampled BSON value type to the canonical system
// type.
func bsonType(t bsontype.Type) string {
	switch t {
	case bson.TypeBoolean:
		return TypeBool
	case bson.TypeString, bson.TypeObjectID:
		return TypeStr
	case bson.TypeInt32, bson.TypeInt64:
		return TypeInt
	case bson.TypeDouble, bson.TypeDecimal128:
		return TypeFloat
	case bson.TypeDateTime, bson.TypeTimestamp:
		return TypeDatetime
	case bson.TypeEmbeddedDocument:
		return TypeJSON
	case bson.TypeArray:
		return TypeList
	case bson.TypeBinary:
		return TypeBinary
	default:
		return ""
	}
}

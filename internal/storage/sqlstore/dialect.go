package sqlstore

import (
	"cameo/internal/storage"
)

// Dialect is everything that differs between SQL backends. The Workspace
// engine builds every statement through it.
type Dialect interface {
	// Name is the backend kind, used as the error prefix.
	Name() string

	// Quote quotes an identifier.
	Quote(ident string) string

	// Placeholder returns the n-th (1-based) bind parameter marker.
	Placeholder(n int) string

	// MaxParams bounds the bind parameters of one statement.
	MaxParams() int

	// ColumnDef renders the column definition for f, including the identity
	// definition for FieldOID.
	ColumnDef(f storage.Field) string

	// CreateTableSQL renders CREATE TABLE. With ifMissing the statement is a
	// no-op for an existing table.
	CreateTableSQL(table string, defs []string, ifMissing bool) string

	// AddColumnSQL renders ALTER TABLE ... ADD for one column definition.
	AddColumnSQL(table, def string) string

	// InsertDefaultSQL inserts one row with every column defaulted.
	InsertDefaultSQL(table string) string

	// Bind renders the value expression for v in a column of type f.Type.
	// next is the first free placeholder number; used reports how many
	// placeholders the expression consumed.
	Bind(f storage.Field, v any, next int) (expr string, args []any, used int)
}

// Catalog table names. They are created in every workspace and never listed
// as user tables.
const (
	itemsTable  = "gdb_items"
	fieldsTable = "gdb_fields"
	relsTable   = "gdb_relationships"
)

var (
	nameField  = storage.Field{Name: "name", Type: storage.FieldText, Length: 128}
	shortField = func(n string) storage.Field { return storage.Field{Name: n, Type: storage.FieldText, Length: 128} }
	intField   = func(n string) storage.Field { return storage.Field{Name: n, Type: storage.FieldInteger} }
)

func catalogSpecs() map[string][]storage.Field {
	return map[string][]storage.Field{
		itemsTable: {
			nameField,
			shortField("kind"),
			intField("srid"),
		},
		fieldsTable: {
			shortField("table_name"),
			shortField("field_name"),
			shortField("field_type"),
			intField("field_length"),
			intField("ordinal"),
		},
		relsTable: {
			nameField,
			shortField("origin"),
			shortField("destination"),
			shortField("origin_key"),
			shortField("destination_key"),
			shortField("forward_label"),
			shortField("backward_label"),
			shortField("cardinality"),
		},
	}
}

// catalogOrder fixes catalog creation order for deterministic DDL.
var catalogOrder = []string{itemsTable, fieldsTable, relsTable}

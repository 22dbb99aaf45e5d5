package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"cameo/internal/storage"
	"cameo/internal/storage/sqlstore"
)

func init() {
	storage.Register("mssql", Open)
}

// Open connects through database/sql with the "sqlserver" driver and
// validates connectivity via PingContext.
//
// Geometry is stored as GEOMETRY built with geometry::Point, dates as
// DATETIME2 and text as NVARCHAR(n) (NVARCHAR(MAX) above 4000).
func Open(ctx context.Context, cfg storage.Config) (storage.Workspace, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	ws, err := sqlstore.Open(ctx, sqlstore.DB(raw), Dialect{}, storage.RedactDSN("mssql", cfg.DSN))
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return ws, nil
}

// Dialect renders T-SQL.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) Quote(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// MaxParams stays below SQL Server's hard limit of 2100 parameters.
func (Dialect) MaxParams() int { return 2000 }

func (d Dialect) ColumnDef(f storage.Field) string {
	return d.Quote(f.Name) + " " + columnType(f)
}

func columnType(f storage.Field) string {
	switch f.Type {
	case storage.FieldOID:
		return "BIGINT IDENTITY(1,1) PRIMARY KEY"
	case storage.FieldText:
		if f.Length > 0 && f.Length <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", f.Length)
		}
		return "NVARCHAR(MAX)"
	case storage.FieldDate:
		return "DATETIME2"
	case storage.FieldInteger:
		return "BIGINT"
	case storage.FieldBlob:
		return "VARBINARY(MAX)"
	case storage.FieldGeometry:
		return "GEOMETRY"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (d Dialect) CreateTableSQL(table string, defs []string, ifMissing bool) string {
	if ifMissing {
		return wrapCreateIfMissing(table, d.Quote(table), strings.Join(defs, ", "))
	}
	return "CREATE TABLE " + d.Quote(table) + " (" + strings.Join(defs, ", ") + ");"
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(name, quoted, defs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(name, "'", "''"), quoted, defs,
	)
}

func (d Dialect) AddColumnSQL(table, def string) string {
	return "ALTER TABLE " + d.Quote(table) + " ADD " + def + ";"
}

func (d Dialect) InsertDefaultSQL(table string) string {
	return "INSERT INTO " + d.Quote(table) + " DEFAULT VALUES;"
}

func (d Dialect) Bind(f storage.Field, v any, next int) (string, []any, int) {
	if f.Type == storage.FieldGeometry {
		p, ok := v.(storage.Point)
		if !ok {
			return "NULL", nil, 0
		}
		return fmt.Sprintf("geometry::Point(%s, %s, %d)", d.Placeholder(next), d.Placeholder(next+1), storage.DefaultSRID),
			[]any{p.X, p.Y}, 2
	}
	if f.Type == storage.FieldBlob && v == nil {
		// An untyped NULL parameter is sent as NVARCHAR, which does not
		// convert implicitly to VARBINARY.
		return "NULL", nil, 0
	}
	return d.Placeholder(next), []any{v}, 1
}

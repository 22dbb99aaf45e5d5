// Package mysql is the MySQL 8 workspace backend.
//
// MySQL caps a row at 65535 bytes across all VARCHAR columns, and the wide
// CAMEO tables would blow through that with VARCHAR(1500) columns. Text wider
// than 255 characters is therefore stored as TEXT/MEDIUMTEXT and the declared
// width lives only in the catalog.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"cameo/internal/storage"
	"cameo/internal/storage/sqlstore"
)

func init() {
	storage.Register("mysql", Open)
}

// Open parses cfg.DSN, forces parseTime, and connects.
func Open(ctx context.Context, cfg storage.Config) (storage.Workspace, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse dsn: %w", err)
	}
	mc.ParseTime = true

	conn, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}

	label := "mysql"
	if mc.Addr != "" {
		label = "mysql://" + mc.Addr + "/" + mc.DBName
	}
	ws, err := sqlstore.Open(ctx, sqlstore.DB(db), Dialect{}, label)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ws, nil
}

// Dialect renders MySQL SQL.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Quote(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MaxParams() int { return 65535 }

func (d Dialect) ColumnDef(f storage.Field) string {
	return d.Quote(f.Name) + " " + columnType(f)
}

func columnType(f storage.Field) string {
	switch f.Type {
	case storage.FieldOID:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	case storage.FieldText:
		switch {
		case f.Length > 0 && f.Length <= 255:
			return fmt.Sprintf("VARCHAR(%d)", f.Length)
		case f.Length > 0 && f.Length <= 16383:
			return "TEXT"
		case f.Length > 0:
			return "MEDIUMTEXT"
		default:
			return "LONGTEXT"
		}
	case storage.FieldDate:
		return "DATETIME(6)"
	case storage.FieldInteger:
		return "BIGINT"
	case storage.FieldBlob:
		return "LONGBLOB"
	case storage.FieldGeometry:
		return fmt.Sprintf("POINT SRID %d", storage.DefaultSRID)
	default:
		return "LONGTEXT"
	}
}

func (d Dialect) CreateTableSQL(table string, defs []string, ifMissing bool) string {
	guard := ""
	if ifMissing {
		guard = "IF NOT EXISTS "
	}
	return "CREATE TABLE " + guard + d.Quote(table) + " (" + strings.Join(defs, ", ") + ")"
}

func (d Dialect) AddColumnSQL(table, def string) string {
	return "ALTER TABLE " + d.Quote(table) + " ADD COLUMN " + def
}

func (d Dialect) InsertDefaultSQL(table string) string {
	return "INSERT INTO " + d.Quote(table) + " () VALUES ()"
}

func (Dialect) Bind(f storage.Field, v any, next int) (string, []any, int) {
	if f.Type == storage.FieldGeometry {
		p, ok := v.(storage.Point)
		if !ok {
			return "NULL", nil, 0
		}
		return fmt.Sprintf("ST_GeomFromText(?, %d, 'axis-order=long-lat')", storage.DefaultSRID), []any{p.WKT()}, 1
	}
	return "?", []any{v}, 1
}

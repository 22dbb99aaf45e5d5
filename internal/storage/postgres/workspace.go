package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"cameo/internal/storage"
	"cameo/internal/storage/sqlstore"
)

func init() {
	storage.Register("postgres", Open)
}

// Open connects a pgx pool and returns a workspace on it.
//
// Geometry is stored in the native POINT type, dates as TIMESTAMP and text
// as VARCHAR(n), so the inferred widths are enforced by the server.
func Open(ctx context.Context, cfg storage.Config) (storage.Workspace, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	ws, err := sqlstore.Open(ctx, poolConn{pool}, Dialect{}, storage.RedactDSN("postgres", cfg.DSN))
	if err != nil {
		pool.Close()
		return nil, err
	}
	return ws, nil
}

// poolConn adapts *pgxpool.Pool to sqlstore.Conn. pgx.Rows already has the
// shape sqlstore.Rows wants.
type poolConn struct {
	pool *pgxpool.Pool
}

func (c poolConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c poolConn) Query(ctx context.Context, query string, args ...any) (sqlstore.Rows, error) {
	return c.pool.Query(ctx, query, args...)
}

func (c poolConn) Close() error {
	c.pool.Close()
	return nil
}

// Dialect renders Postgres SQL.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Dialect) MaxParams() int { return 65535 }

func (d Dialect) ColumnDef(f storage.Field) string {
	return d.Quote(f.Name) + " " + columnType(f)
}

func columnType(f storage.Field) string {
	switch f.Type {
	case storage.FieldOID:
		return "BIGSERIAL PRIMARY KEY"
	case storage.FieldText:
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length)
		}
		return "TEXT"
	case storage.FieldDate:
		return "TIMESTAMP"
	case storage.FieldInteger:
		return "BIGINT"
	case storage.FieldBlob:
		return "BYTEA"
	case storage.FieldGeometry:
		return "POINT"
	default:
		return "TEXT"
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
	return "INSERT INTO " + d.Quote(table) + " DEFAULT VALUES"
}

func (d Dialect) Bind(f storage.Field, v any, next int) (string, []any, int) {
	if f.Type == storage.FieldGeometry {
		p, ok := v.(storage.Point)
		if !ok {
			return "NULL", nil, 0
		}
		return fmt.Sprintf("point(%s::float8, %s::float8)", d.Placeholder(next), d.Placeholder(next+1)), []any{p.X, p.Y}, 2
	}
	return d.Placeholder(next), []any{v}, 1
}

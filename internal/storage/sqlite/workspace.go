// Package sqlite is the default file-based workspace backend.
//
// Key design points vs the server backends:
//   - SQLite has no native date or geometry types. Dates are stored as
//     RFC3339Nano strings and points as WKT text, both for reliable
//     round-trips and easy debugging with the sqlite3 shell.
//   - Declared VARCHAR(n) lengths are kept in the DDL (TEXT affinity) so the
//     inferred widths stay visible, even though SQLite does not enforce them.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cameo/internal/storage"
	"cameo/internal/storage/sqlstore"
)

// Extension is the file extension of workspace files.
const Extension = ".sqlite"

func init() {
	storage.Register("sqlite", Open)
}

// Open opens (creating if needed) the workspace file at cfg.DSN.
func Open(ctx context.Context, cfg storage.Config) (storage.Workspace, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: empty workspace path")
	}
	if dir := filepath.Dir(cfg.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create workspace dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	ws, err := sqlstore.Open(ctx, sqlstore.DB(db), Dialect{}, cfg.DSN)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ws, nil
}

// ResolvePath returns the workspace file for name inside dir. If that file
// already exists, a unique sibling (<name>0, <name>1, ...) is chosen and
// renamed is true.
func ResolvePath(dir, name string) (path string, renamed bool) {
	name = strings.TrimSuffix(name, Extension)
	exists := func(n string) bool {
		_, err := os.Stat(filepath.Join(dir, n+Extension))
		return err == nil
	}
	unique := storage.UniqueName(name, exists)
	return filepath.Join(dir, unique+Extension), unique != name
}

// Dialect renders SQLite SQL.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func (Dialect) Placeholder(int) string { return "?" }

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER for builds since 3.32.
func (Dialect) MaxParams() int { return 32766 }

func (d Dialect) ColumnDef(f storage.Field) string {
	return d.Quote(f.Name) + " " + columnType(f)
}

func columnType(f storage.Field) string {
	switch f.Type {
	case storage.FieldOID:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case storage.FieldText:
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length)
		}
		return "TEXT"
	case storage.FieldDate:
		return "TEXT"
	case storage.FieldInteger:
		return "INTEGER"
	case storage.FieldBlob:
		return "BLOB"
	case storage.FieldGeometry:
		return "TEXT"
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

func (Dialect) Bind(f storage.Field, v any, next int) (string, []any, int) {
	switch x := v.(type) {
	case time.Time:
		return "?", []any{formatTime(x)}, 1
	case storage.Point:
		return "?", []any{x.WKT()}, 1
	default:
		return "?", []any{v}, 1
	}
}

// formatTime is the single place dates are rendered for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

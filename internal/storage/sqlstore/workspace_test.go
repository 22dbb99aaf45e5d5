package sqlstore

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"cameo/internal/storage"
)

// numberedDialect is a minimal Postgres-like dialect for statement tests.
type numberedDialect struct{ max int }

func (numberedDialect) Name() string             { return "fake" }
func (numberedDialect) Quote(s string) string    { return `"` + s + `"` }
func (numberedDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (d numberedDialect) MaxParams() int         { return d.max }
func (numberedDialect) ColumnDef(f storage.Field) string {
	return `"` + f.Name + `" ` + f.Type.String()
}
func (numberedDialect) CreateTableSQL(t string, defs []string, ifMissing bool) string {
	if ifMissing {
		return "CREATE TABLE IF NOT EXISTS " + t + " (" + strings.Join(defs, ", ") + ")"
	}
	return "CREATE TABLE " + t + " (" + strings.Join(defs, ", ") + ")"
}
func (numberedDialect) AddColumnSQL(t, def string) string {
	return "ALTER TABLE " + t + " ADD " + def
}

func (numberedDialect) InsertDefaultSQL(t string) string {
	return "INSERT INTO " + t + " DEFAULT VALUES"
}
func (numberedDialect) Bind(f storage.Field, v any, next int) (string, []any, int) {
	if p, ok := v.(storage.Point); ok {
		return "point($" + strconv.Itoa(next) + ", $" + strconv.Itoa(next+1) + ")", []any{p.X, p.Y}, 2
	}
	return "$" + strconv.Itoa(next), []any{v}, 1
}

func TestBuildInserts_BatchesByParamLimit(t *testing.T) {
	t.Parallel()

	fields := []storage.Field{
		{Name: "A", Type: storage.FieldText, Length: 10},
		{Name: "SHAPE", Type: storage.FieldGeometry},
	}
	rows := [][]any{
		{"r1", storage.Point{X: 1, Y: 2}},
		{"r2", storage.Point{X: 3, Y: 4}},
		{"r3", nil},
	}

	// 3 params per point row: two rows fit in 6, the third starts a new statement.
	got := buildInserts(numberedDialect{max: 6}, "T", fields, rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %+v", len(got), got)
	}
	if got[0].rows != 2 || got[1].rows != 1 {
		t.Fatalf("unexpected row split: %d/%d", got[0].rows, got[1].rows)
	}
	want0 := `INSERT INTO "T" ("A", "SHAPE") VALUES ($1, point($2, $3)), ($4, point($5, $6))`
	if got[0].sql != want0 {
		t.Fatalf("stmt0:\n got %s\nwant %s", got[0].sql, want0)
	}
	if !strings.HasSuffix(got[1].sql, "VALUES ($1, $2)") {
		t.Fatalf("second statement must renumber placeholders: %s", got[1].sql)
	}
	if len(got[0].args) != 6 || got[0].args[1] != float64(1) {
		t.Fatalf("unexpected args: %#v", got[0].args)
	}
}

func TestBuildInserts_ConformsValues(t *testing.T) {
	t.Parallel()

	fields := []storage.Field{{Name: "Name", Type: storage.FieldText, Length: 3}}
	got := buildInserts(numberedDialect{max: 100}, "T", fields, [][]any{{"abcdef"}})
	if len(got) != 1 || got[0].args[0] != "abc" {
		t.Fatalf("expected truncated arg, got %+v", got)
	}
}

type recordingConn struct {
	execs []string
}

func (c *recordingConn) Exec(ctx context.Context, q string, args ...any) (int64, error) {
	c.execs = append(c.execs, q)
	return 0, nil
}
func (c *recordingConn) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	return nil, nil
}
func (c *recordingConn) Close() error { return nil }

func TestOpen_CreatesCatalog(t *testing.T) {
	t.Parallel()

	c := &recordingConn{}
	w, err := Open(context.Background(), c, numberedDialect{max: 10}, "db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if w.Path() != "db" {
		t.Fatalf("Path=%q", w.Path())
	}
	if len(c.execs) != 3 {
		t.Fatalf("expected 3 catalog statements, got %d", len(c.execs))
	}
	for i, name := range catalogOrder {
		if !strings.HasPrefix(c.execs[i], "CREATE TABLE IF NOT EXISTS "+name) {
			t.Fatalf("stmt %d = %s", i, c.execs[i])
		}
	}
}

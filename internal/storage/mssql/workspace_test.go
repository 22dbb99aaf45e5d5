package mssql

import (
	"strings"
	"testing"

	"cameo/internal/storage"
)

func TestColumnType_TextWidths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length int
		want   string
	}{
		{1500, "NVARCHAR(1500)"},
		{4000, "NVARCHAR(4000)"},
		{5000, "NVARCHAR(MAX)"},
		{0, "NVARCHAR(MAX)"},
	}
	for _, tt := range tests {
		if got := columnType(storage.Field{Type: storage.FieldText, Length: tt.length}); got != tt.want {
			t.Fatalf("length %d: got %s want %s", tt.length, got, tt.want)
		}
	}
}

func TestCreateTableSQL_GuardedCatalog(t *testing.T) {
	t.Parallel()

	got := Dialect{}.CreateTableSQL("gdb_items", []string{"[name] NVARCHAR(128)"}, true)
	want := "IF OBJECT_ID(N'gdb_items', N'U') IS NULL BEGIN CREATE TABLE [gdb_items] ([name] NVARCHAR(128)); END;"
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestBind_Geometry(t *testing.T) {
	t.Parallel()

	expr, args, used := Dialect{}.Bind(storage.Field{Type: storage.FieldGeometry}, storage.Point{X: 1.5, Y: 2}, 7)
	if expr != "geometry::Point(@p7, @p8, 4326)" || used != 2 || len(args) != 2 {
		t.Fatalf("expr=%s args=%v used=%d", expr, args, used)
	}
	if !strings.HasPrefix(Dialect{}.Quote("a]b"), "[a]]b") {
		t.Fatalf("bad quoting")
	}
}

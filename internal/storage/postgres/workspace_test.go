package postgres

import (
	"strings"
	"testing"

	"cameo/internal/storage"
)

func TestDialect_ColumnDefs(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	tests := []struct {
		field storage.Field
		want  string
	}{
		{storage.Field{Name: "OBJECTID", Type: storage.FieldOID}, `"OBJECTID" BIGSERIAL PRIMARY KEY`},
		{storage.Field{Name: "FacilityName", Type: storage.FieldText, Length: 1500}, `"FacilityName" VARCHAR(1500)`},
		{storage.Field{Name: "Notes", Type: storage.FieldText}, `"Notes" TEXT`},
		{storage.Field{Name: "DateModified", Type: storage.FieldDate}, `"DateModified" TIMESTAMP`},
		{storage.Field{Name: "SHAPE", Type: storage.FieldGeometry}, `"SHAPE" POINT`},
		{storage.Field{Name: "DATA", Type: storage.FieldBlob}, `"DATA" BYTEA`},
	}
	for _, tt := range tests {
		if got := d.ColumnDef(tt.field); got != tt.want {
			t.Fatalf("ColumnDef(%s)=%q want %q", tt.field.Name, got, tt.want)
		}
	}
}

func TestDialect_BindPoint(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	shape := storage.Field{Name: "SHAPE", Type: storage.FieldGeometry}

	expr, args, used := d.Bind(shape, storage.Point{X: -75, Y: 40}, 3)
	if expr != "point($3::float8, $4::float8)" || used != 2 {
		t.Fatalf("expr=%q used=%d", expr, used)
	}
	if len(args) != 2 || args[0] != -75.0 || args[1] != 40.0 {
		t.Fatalf("args=%v", args)
	}

	expr, args, used = d.Bind(shape, nil, 3)
	if expr != "NULL" || len(args) != 0 || used != 0 {
		t.Fatalf("nil geometry: expr=%q args=%v used=%d", expr, args, used)
	}
}

func TestDialect_CreateTableSQL(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	got := d.CreateTableSQL("Facilities", []string{`"OBJECTID" BIGSERIAL PRIMARY KEY`}, true)
	if !strings.HasPrefix(got, `CREATE TABLE IF NOT EXISTS "Facilities" (`) {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(d.CreateTableSQL("T", nil, false), "IF NOT EXISTS") {
		t.Fatalf("unguarded create must not contain IF NOT EXISTS")
	}
}

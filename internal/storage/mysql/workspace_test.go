package mysql

import (
	"testing"

	"cameo/internal/storage"
)

func TestColumnType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field storage.Field
		want  string
	}{
		{storage.Field{Type: storage.FieldText, Length: 250}, "VARCHAR(250)"},
		{storage.Field{Type: storage.FieldText, Length: 1500}, "TEXT"},
		{storage.Field{Type: storage.FieldText, Length: 20000}, "MEDIUMTEXT"},
		{storage.Field{Type: storage.FieldText}, "LONGTEXT"},
		{storage.Field{Type: storage.FieldDate}, "DATETIME(6)"},
		{storage.Field{Type: storage.FieldGeometry}, "POINT SRID 4326"},
		{storage.Field{Type: storage.FieldOID}, "BIGINT AUTO_INCREMENT PRIMARY KEY"},
	}
	for _, tt := range tests {
		if got := columnType(tt.field); got != tt.want {
			t.Fatalf("%s/%d: got %s want %s", tt.field.Type, tt.field.Length, got, tt.want)
		}
	}
}

func TestBind_PointAsWKT(t *testing.T) {
	t.Parallel()

	expr, args, used := Dialect{}.Bind(storage.Field{Type: storage.FieldGeometry}, storage.Point{X: -75, Y: 40}, 1)
	if expr != "ST_GeomFromText(?, 4326, 'axis-order=long-lat')" || used != 1 {
		t.Fatalf("expr=%s used=%d", expr, used)
	}
	if len(args) != 1 || args[0] != "POINT (-75 40)" {
		t.Fatalf("args=%v", args)
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()
	if got := (Dialect{}).Quote("we`ird"); got != "`we``ird`" {
		t.Fatalf("Quote=%s", got)
	}
}

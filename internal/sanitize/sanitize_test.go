package sanitize

import (
	"testing"
	"time"

	"cameo/internal/inference"
	"cameo/internal/storage"
)

func schemaOf(cols ...inference.ColumnDescriptor) inference.Schema { return inference.Schema(cols) }

func text(name string) inference.ColumnDescriptor {
	return inference.ColumnDescriptor{Name: name, Type: inference.TypeText, Length: 1000}
}

func date(name string) inference.ColumnDescriptor {
	return inference.ColumnDescriptor{Name: name, Type: inference.TypeDate, Length: 1000}
}

func TestRow_DropStripAndDates(t *testing.T) {
	t.Parallel()

	s := New(schemaOf(text("ID"), text("Name"), date("Modified")), []int{1}, nil)
	rec := []string{"1", "blank-header", "Café ™ Co", "3/7/14"}
	orig := append([]string(nil), rec...)

	res := s.Row(rec)
	if res.Mismatch != MismatchNone || res.Cells != 3 {
		t.Fatalf("mismatch=%s cells=%d", res.Mismatch, res.Cells)
	}
	if res.Values[0] != "1" || res.Values[1] != "Caf  Co" {
		t.Fatalf("values=%#v", res.Values)
	}
	d, ok := res.Values[2].(time.Time)
	if !ok || !d.Equal(time.Date(2014, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date=%#v", res.Values[2])
	}
	for i := range rec {
		if rec[i] != orig[i] {
			t.Fatalf("caller record modified at %d: %q", i, rec[i])
		}
	}
}

func TestRow_EmptyRecordUntouched(t *testing.T) {
	t.Parallel()

	s := New(schemaOf(text("A")), []int{0}, nil)
	rec := []string{}
	res := s.Row(rec)
	if rec == nil || len(rec) != 0 {
		t.Fatalf("record changed: %#v", rec)
	}
	if res.Mismatch != MismatchShort || len(res.Values) != 1 || res.Values[0] != nil {
		t.Fatalf("res=%+v", res)
	}
}

func TestRow_BadDateBecomesNil(t *testing.T) {
	t.Parallel()

	s := New(schemaOf(date("Modified")), nil, nil)
	for _, v := range []string{"", "soon", "13/45/2014"} {
		if res := s.Row([]string{v}); res.Values[0] != nil {
			t.Fatalf("Row(%q)=%#v want nil", v, res.Values[0])
		}
	}
}

func TestRow_Mismatch(t *testing.T) {
	t.Parallel()

	s := New(schemaOf(text("A"), text("B")), nil, nil)

	long := s.Row([]string{"a", "b", "c", "d"})
	if long.Mismatch != MismatchLong || len(long.Values) != 2 || long.Values[1] != "b" {
		t.Fatalf("long=%+v", long)
	}

	short := s.Row([]string{"a"})
	if short.Mismatch != MismatchShort || len(short.Values) != 2 || short.Values[1] != nil {
		t.Fatalf("short=%+v", short)
	}
}

func TestRow_Spatial(t *testing.T) {
	t.Parallel()

	schema := schemaOf(text("FacilityRecordID"), text("FacilityName"), text("Latitude"), text("Longitude"))
	s := New(schema, nil, &Spatial{Lat: "Latitude", Lon: "Longitude"})
	if !s.Header(schema.Names()) {
		t.Fatalf("Header did not locate coordinates")
	}

	tests := []struct {
		name       string
		rec        []string
		want       storage.Point
		defaulted  bool
		wantLatVal any
	}{
		{"valid", []string{"1", "Acme Co", "40.0", "-75.0"}, storage.Point{X: -75, Y: 40}, false, "40.0"},
		{"both empty", []string{"2", "Beta LLC", "", ""}, storage.Point{}, true, "0"},
		{"one bad", []string{"3", "C", "north", "-75"}, storage.Point{}, true, "0"},
		{"nan", []string{"4", "D", "NaN", "1"}, storage.Point{}, true, "0"},
		{"inf", []string{"6", "F", "10", "+Inf"}, storage.Point{}, true, "0"},
		{"short row", []string{"5", "E"}, storage.Point{}, true, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			res := s.Row(tt.rec)
			if len(res.Values) != 5 {
				t.Fatalf("expected 4 values + point, got %d", len(res.Values))
			}
			if got := res.Values[4].(storage.Point); got != tt.want {
				t.Fatalf("point=%+v want %+v", got, tt.want)
			}
			if res.DefaultedPoint != tt.defaulted {
				t.Fatalf("defaulted=%v", res.DefaultedPoint)
			}
			if res.Values[2] != tt.wantLatVal {
				t.Fatalf("lat cell=%#v want %#v", res.Values[2], tt.wantLatVal)
			}
		})
	}
}

func TestHeader_MissingColumns(t *testing.T) {
	t.Parallel()

	s := New(schemaOf(text("A")), nil, &Spatial{Lat: "Lat", Lon: "Lon"})
	if s.Header([]string{"A"}) {
		t.Fatalf("expected coordinates not found")
	}
	res := s.Row([]string{"x"})
	if res.Values[1] != (storage.Point{}) || !res.DefaultedPoint {
		t.Fatalf("expected default point, got %+v", res)
	}
}

func TestStripNonASCII(t *testing.T) {
	t.Parallel()

	if s, changed := StripNonASCII("plain"); changed || s != "plain" {
		t.Fatalf("plain changed")
	}
	if s, changed := StripNonASCII("naïve—text"); !changed || s != "navetext" {
		t.Fatalf("got %q changed=%v", s, changed)
	}
}

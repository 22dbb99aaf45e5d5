package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cameo/internal/storage"
)

func TestWorkspace_CreateInsertAddField(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	w := New("test")

	err := w.CreateTable(ctx, storage.TableSpec{
		Name: "Facilities",
		Kind: storage.KindFeature,
		SRID: 4326,
		Fields: []storage.Field{
			{Name: "FacilityRecordID", Type: storage.FieldText, Length: 10},
		},
	})
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if ok, _ := w.Exists(ctx, "facilities"); !ok {
		t.Fatalf("Exists should be case-insensitive")
	}
	if err := w.CreateTable(ctx, storage.TableSpec{Name: "FACILITIES"}); err == nil {
		t.Fatalf("expected duplicate table error")
	}

	n, err := w.InsertRows(ctx, "Facilities", []string{"FacilityRecordID", "SHAPE"}, [][]any{
		{"FAC1", storage.Point{X: -75, Y: 40}},
		{"FAC2-TOO-LONG-ID", nil},
	})
	if err != nil || n != 2 {
		t.Fatalf("InsertRows n=%d err=%v", n, err)
	}

	if err := w.AddField(ctx, "Facilities", storage.Field{Name: "Notes", Type: storage.FieldText, Length: 20}); err != nil {
		t.Fatalf("AddField: %v", err)
	}
	if err := w.AddField(ctx, "Facilities", storage.Field{Name: "notes", Type: storage.FieldText}); err == nil {
		t.Fatalf("expected duplicate field error")
	}

	cols, rows, err := w.Rows("Facilities")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	want := []string{"OBJECTID", "SHAPE", "FacilityRecordID", "Notes"}
	if len(cols) != len(want) {
		t.Fatalf("cols=%v want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("cols=%v want %v", cols, want)
		}
	}
	if rows[0][0] != int64(1) || rows[1][0] != int64(2) {
		t.Fatalf("unexpected OBJECTIDs: %v %v", rows[0][0], rows[1][0])
	}
	if rows[1][2] != "FAC2-TOO-L" {
		t.Fatalf("text should be conformed to length 10, got %#v", rows[1][2])
	}
	if rows[0][3] != nil {
		t.Fatalf("added field should be nil for existing rows")
	}
}

func TestWorkspace_InsertRejectsUnknownColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	w := New("")
	if err := w.CreateTable(ctx, storage.TableSpec{Name: "T"}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := w.InsertRows(ctx, "T", []string{"missing"}, [][]any{{"x"}}); err == nil {
		t.Fatalf("expected unknown column error")
	}
	if _, err := w.InsertRows(ctx, "T", []string{"OBJECTID"}, [][]any{{int64(9)}}); err == nil {
		t.Fatalf("expected OBJECTID insert to be rejected")
	}
}

func TestWorkspace_Relationships(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	w := New("")
	for _, n := range []string{"Facilities", "Phone"} {
		if err := w.CreateTable(ctx, storage.TableSpec{Name: n}); err != nil {
			t.Fatalf("CreateTable: %v", err)
		}
	}
	rel := storage.Relationship{Name: "Facilities_Phone", Origin: "Facilities", Destination: "Phone"}
	if err := w.CreateRelationship(ctx, rel); err != nil {
		t.Fatalf("CreateRelationship: %v", err)
	}
	if err := w.CreateRelationship(ctx, rel); err == nil {
		t.Fatalf("expected duplicate relationship error")
	}
	if err := w.CreateRelationship(ctx, storage.Relationship{Name: "x", Origin: "Facilities", Destination: "Nope"}); err == nil {
		t.Fatalf("expected missing table error")
	}

	w.Drop("Phone")
	rels, _ := w.ListRelationships(ctx)
	if len(rels) != 0 {
		t.Fatalf("Drop should remove relationships, got %v", rels)
	}
}

func TestWorkspace_Attachments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	w := New("")

	if err := w.CreateTable(ctx, storage.TableSpec{
		Name:   "Facilities",
		Fields: []storage.Field{{Name: "FacilityRecordID", Type: storage.FieldText, Length: 20}},
	}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := w.InsertRows(ctx, "Facilities", []string{"FacilityRecordID"}, [][]any{{"A"}, {"B"}, {"A"}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	if err := w.EnableAttachments(ctx, "Facilities"); err != nil {
		t.Fatalf("EnableAttachments: %v", err)
	}
	if err := w.EnableAttachments(ctx, "Facilities"); err != nil {
		t.Fatalf("EnableAttachments should be idempotent: %v", err)
	}

	dir := t.TempDir()
	p := filepath.Join(dir, "plan.pdf")
	if err := os.WriteFile(p, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	res, err := w.AddAttachments(ctx, "Facilities", "FacilityRecordID", []storage.Attachment{
		{Key: "A", Path: p},
		{Key: "Z", Path: p},
	})
	if err != nil {
		t.Fatalf("AddAttachments: %v", err)
	}
	if res.Files != 2 || res.Attached != 2 || res.Unmatched != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	_, rows, err := w.Rows("Facilities__ATTACH")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 attachment rows, got %d", len(rows))
	}
	if rows[0][1] != int64(1) || rows[1][1] != int64(3) {
		t.Fatalf("attachments bound to wrong rows: %v %v", rows[0][1], rows[1][1])
	}

	rels, _ := w.ListRelationships(ctx)
	if len(rels) != 1 || rels[0].Name != "Facilities__ATTACHREL" {
		t.Fatalf("unexpected relationships: %+v", rels)
	}
}

func TestOpen_Registered(t *testing.T) {
	t.Parallel()
	ws, err := storage.Open(context.Background(), storage.Config{Kind: "memory", DSN: "scratch"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()
	if ws.Path() != "scratch" {
		t.Fatalf("Path=%q", ws.Path())
	}
}

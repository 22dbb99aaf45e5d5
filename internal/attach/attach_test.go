package attach

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cameo/internal/config"
	"cameo/internal/storage"
	"cameo/internal/storage/memory"
)

func write(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestBindings(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	write(t, filepath.Join(root, "FAC2", "plan.html"), "<html><head><title>  Site\n plan </title></head><body/></html>")
	write(t, filepath.Join(root, "FAC1", "photos", "gate"), "\x89PNG\r\n\x1a\n....")
	write(t, filepath.Join(root, "FAC1", "notes.txt"), "hello")
	write(t, filepath.Join(root, "stray.txt"), "no key")

	got, err := Bindings(root)
	if err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bindings, got %+v", got)
	}
	if got[0].Key != "FAC1" || got[0].Name != "notes.txt" || !strings.HasPrefix(got[0].ContentType, "text/plain") {
		t.Fatalf("binding0=%+v", got[0])
	}
	if got[1].Key != "FAC1" || got[1].ContentType != "image/png" {
		t.Fatalf("binding1=%+v", got[1])
	}
	if got[2].Key != "FAC2" || got[2].Title != "Site plan" {
		t.Fatalf("binding2=%+v", got[2])
	}
}

func TestLink_AttachesAndRemovesRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ws := memory.New("")
	if err := ws.CreateTable(ctx, storage.TableSpec{
		Name:   "Facilities",
		Fields: []storage.Field{{Name: "FacilityRecordID", Type: storage.FieldText, Length: 20}},
	}); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := ws.InsertRows(ctx, "Facilities", []string{"FacilityRecordID"}, [][]any{{"FAC1"}, {"FAC2"}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	root := filepath.Join(t.TempDir(), "SitePlansTemp")
	write(t, filepath.Join(root, "FAC1", "a.txt"), "a")
	write(t, filepath.Join(root, "CONTACT9", "b.txt"), "b")

	tables := []config.AttachmentTable{
		{Table: "Facilities", JoinField: "FacilityRecordID"},
		{Table: "Contacts", JoinField: "ContactRecordID"},
	}
	rep, err := (&Linker{}).Link(ctx, ws, root, tables)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if rep.Bindings != 2 || len(rep.Tables) != 1 || rep.Tables[0].Attached != 1 {
		t.Fatalf("report %+v", rep)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0] != "Contacts" {
		t.Fatalf("skipped=%v", rep.Skipped)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("attachment root should be removed, stat err=%v", err)
	}
	if ok, _ := ws.Exists(ctx, "Facilities__ATTACH"); !ok {
		t.Fatalf("attachment table missing")
	}
}

func TestLink_MissingRootIsWarning(t *testing.T) {
	t.Parallel()
	rep, err := (&Linker{}).Link(context.Background(), memory.New(""), filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil || !rep.RootMissing {
		t.Fatalf("rep=%+v err=%v", rep, err)
	}
}

package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// makeZip writes entries in order; names ending in "/" are directories.
func makeZip(t *testing.T, path string, entries [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		if err != nil {
			t.Fatalf("zip entry %s: %v", e[0], err)
		}
		if _, err := w.Write([]byte(e[1])); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("file close: %v", err)
	}
}

func TestExtract_NextToArchive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "export.zip")
	makeZip(t, src, [][2]string{
		{"CAMEO/", ""},
		{"CAMEO/Facilities.mer", "FacilityRecordID\nF1\n"},
		{"CAMEO/SitePlansTemp/F1/plan.txt", "plan"},
	})

	got, err := Extract(src, "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Root != dir || got.Dir != filepath.Join(dir, "CAMEO") || got.Entries != 2 {
		t.Fatalf("Extracted=%+v", got)
	}
	b, err := os.ReadFile(filepath.Join(dir, "CAMEO", "SitePlansTemp", "F1", "plan.txt"))
	if err != nil || string(b) != "plan" {
		t.Fatalf("nested file: %q %v", b, err)
	}
}

func TestExtract_FlatArchiveUsesDest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "flat.zip")
	makeZip(t, src, [][2]string{{"Chemicals.mer", "a\n1\n"}})

	dest := filepath.Join(dir, "work")
	got, err := Extract(src, dest)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.Dir != dest {
		t.Fatalf("Dir=%q, want %q", got.Dir, dest)
	}
}

func TestExtract_RejectsEscapingEntries(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"../evil.mer", "CAMEO/../../evil.mer", `..\evil.mer`} {
		dir := t.TempDir()
		src := filepath.Join(dir, "bad.zip")
		makeZip(t, src, [][2]string{{name, "x"}})
		if _, err := Extract(src, filepath.Join(dir, "out")); err == nil {
			t.Fatalf("entry %q should be rejected", name)
		}
	}
}

func TestExtract_NotAZip(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "x.zip")
	if err := os.WriteFile(src, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Extract(src, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, n := range []string{"b.mer", "A.MER", "c.csv"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "d.mer"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Find(dir, ".mer")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := []string{filepath.Join(dir, "A.MER"), filepath.Join(dir, "b.mer")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Find=%v, want %v", got, want)
	}
}

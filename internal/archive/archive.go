// Package archive unpacks CAMEO export zips and finds the export files
// inside them.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Extracted describes an unpacked archive.
type Extracted struct {
	// Root is where entries were written.
	Root string
	// Dir is the folder that holds the archive's first entry. Exports are a
	// single top-level folder, so this is where the data files live.
	Dir string
	// Entries counts files written.
	Entries int
}

// Extract unpacks the zip at src into dest. An empty dest means the
// archive's own folder. Existing files are overwritten.
//
// Errors:
//   - the archive cannot be opened or read;
//   - an entry would land outside dest (absolute path or "..").
func Extract(src, dest string) (Extracted, error) {
	if dest == "" {
		dest = filepath.Dir(src)
	}
	out := Extracted{Root: dest, Dir: dest}

	zr, err := zip.OpenReader(src)
	if err != nil {
		return out, fmt.Errorf("archive: open %s: %w", src, err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return out, fmt.Errorf("archive: create %s: %w", dest, err)
	}

	for i, f := range zr.File {
		target, err := entryPath(dest, f.Name)
		if err != nil {
			return out, fmt.Errorf("archive: %s: %w", src, err)
		}
		if i == 0 {
			// "CAMEO/" and "CAMEO/Facilities.mer" both give "CAMEO".
			out.Dir = filepath.Join(dest, filepath.FromSlash(path.Dir(slashed(f.Name))))
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return out, fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return out, fmt.Errorf("archive: extract %s: %w", f.Name, err)
		}
		out.Entries++
	}
	return out, nil
}

// entryPath maps a zip entry name onto dest, refusing names that escape it.
func entryPath(dest, name string) (string, error) {
	s := slashed(name)
	if s == "" || strings.HasPrefix(s, "/") || filepath.IsAbs(name) || (len(s) > 1 && s[1] == ':') {
		return "", fmt.Errorf("illegal entry name %q", name)
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return "", fmt.Errorf("illegal entry name %q", name)
		}
	}
	return filepath.Join(dest, filepath.FromSlash(path.Clean(s))), nil
}

// slashed normalises Windows separators some zip tools write.
func slashed(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Find lists the files directly in dir whose extension matches ext
// (case-insensitive), sorted by name.
func Find(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

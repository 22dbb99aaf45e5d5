// Package csv reads the delimited export files. A Source can be opened any
// number of times, which the two-pass loader relies on.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"cameo/internal/config"
)

// Source is one delimited file on disk.
//
// Recognized options:
//   - comma (rune, default ','): field delimiter
//   - lazy_quotes (bool, default false): tolerate stray quotes
//   - trim_space (bool, default false): trim cells
//   - encoding (string, default "utf-8"): utf-8, windows-1252/cp1252,
//     latin1/iso-8859-1. A UTF-8 or UTF-16 byte order mark always wins.
type Source struct {
	Path    string
	Options config.Options
}

// Name is the file's base name without its extension.
func (s Source) Name() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open starts a fresh pass over the file.
func (s Source) Open() (*Reader, error) {
	dec, err := decoder(s.Options.String("encoding", "utf-8"))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", s.Path, err)
	}

	cr := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(dec)))
	cr.Comma = s.Options.Rune("comma", ',')
	cr.LazyQuotes = s.Options.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1

	return &Reader{
		path: s.Path,
		f:    f,
		cr:   cr,
		trim: s.Options.Bool("trim_space", false),
	}, nil
}

func decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}

// Reader yields records of one pass. Records are fresh slices the caller
// may keep.
type Reader struct {
	path string
	f    *os.File
	cr   *csv.Reader
	trim bool
	line int
}

// Read returns the next record, or io.EOF.
func (r *Reader) Read() ([]string, error) {
	rec, err := r.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("csv: %s: %w", r.path, err)
	}
	r.line++
	if r.trim {
		for i, v := range rec {
			rec[i] = strings.TrimSpace(v)
		}
	}
	return rec, nil
}

// Record is the number of records read so far, header included.
func (r *Reader) Record() int { return r.line }

func (r *Reader) Close() error { return r.f.Close() }

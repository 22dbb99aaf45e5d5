// Package sanitize turns raw delimited records into typed row values.
package sanitize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"cameo/internal/classify"
	"cameo/internal/inference"
	"cameo/internal/storage"
)

// Mismatch says how a record's width differed from the schema.
type Mismatch int

const (
	MismatchNone Mismatch = iota
	// MismatchLong: excess cells were cut from the right.
	MismatchLong
	// MismatchShort: missing trailing cells were left empty.
	MismatchShort
)

func (m Mismatch) String() string {
	switch m {
	case MismatchNone:
		return "none"
	case MismatchLong:
		return "long"
	case MismatchShort:
		return "short"
	default:
		return fmt.Sprintf("Mismatch(%d)", int(m))
	}
}

// Spatial names the coordinate columns a point is built from.
type Spatial struct {
	Lat string
	Lon string
}

// Result is one sanitized record.
type Result struct {
	// Values has one entry per schema column: string for Text, time.Time or
	// nil for Date. Spatial sanitizers append a storage.Point.
	Values []any
	// Mismatch and Cells describe the record after removed ordinals were
	// dropped.
	Mismatch Mismatch
	Cells    int
	// DefaultedPoint is true when the point fell back to (0, 0).
	DefaultedPoint bool
}

// Sanitizer applies the per-record rules for one file.
//
// Rules, in order:
//  1. cells at removed ordinals are dropped
//  2. characters with a code point >= 128 are stripped
//  3. Date column values that do not parse become nil
//  4. spatial: when either coordinate is empty or not a finite number both
//     default to 0 (the coordinate cells are rewritten to "0"), and a point
//     (lon, lat) is appended
//  5. the record is cut or padded to the schema width
//
// The caller's record is never modified.
type Sanitizer struct {
	schema  inference.Schema
	removed []int
	spatial *Spatial

	latIdx, lonIdx int
	located        bool
}

// New returns a Sanitizer. schema holds the surviving columns in order;
// removed holds the raw-record ordinals to drop. spatial may be nil.
func New(schema inference.Schema, removed []int, spatial *Spatial) *Sanitizer {
	r := append([]int(nil), removed...)
	sort.Ints(r)
	return &Sanitizer{schema: schema, removed: r, spatial: spatial, latIdx: -1, lonIdx: -1}
}

// Header locates the coordinate columns in the (pruned) header. It only does
// work on its first call. It reports whether both columns were found; when
// they are not, every point defaults to (0, 0).
func (s *Sanitizer) Header(header []string) bool {
	if s.spatial == nil {
		return false
	}
	if !s.located {
		s.latIdx = find(header, s.spatial.Lat)
		s.lonIdx = find(header, s.spatial.Lon)
		s.located = true
	}
	return s.latIdx >= 0 && s.lonIdx >= 0
}

func find(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// Drop removes the removed ordinals from record. copied is false when
// nothing needed dropping and record itself is returned.
func (s *Sanitizer) Drop(record []string) (cells []string, copied bool) {
	if len(s.removed) == 0 {
		return record, false
	}
	out := make([]string, 0, len(record))
	j := 0
	for i, v := range record {
		for j < len(s.removed) && s.removed[j] < i {
			j++
		}
		if j < len(s.removed) && s.removed[j] == i {
			continue
		}
		out = append(out, v)
	}
	return out, true
}

// Row sanitizes one data record.
func (s *Sanitizer) Row(record []string) Result {
	cells, owned := s.Drop(record)

	// Copy on first write; later edits go to the copy.
	set := func(i int, v string) {
		if !owned {
			cells = append([]string(nil), cells...)
			owned = true
		}
		cells[i] = v
	}

	width := len(s.schema)
	for i, v := range cells {
		if i >= width {
			break
		}
		if stripped, changed := StripNonASCII(v); changed {
			set(i, stripped)
		}
	}

	res := Result{Cells: len(cells)}

	var pt storage.Point
	if s.spatial != nil {
		lat, okLat := coord(cells, s.latIdx)
		lon, okLon := coord(cells, s.lonIdx)
		if !okLat || !okLon {
			lat, lon = 0, 0
			res.DefaultedPoint = true
			if s.latIdx >= 0 && s.latIdx < len(cells) {
				set(s.latIdx, "0")
			}
			if s.lonIdx >= 0 && s.lonIdx < len(cells) {
				set(s.lonIdx, "0")
			}
		}
		pt = storage.Point{X: lon, Y: lat}
	}

	switch {
	case len(cells) > width:
		res.Mismatch = MismatchLong
	case len(cells) < width:
		res.Mismatch = MismatchShort
	}

	n := width
	if s.spatial != nil {
		n++
	}
	res.Values = make([]any, width, n)
	for i, c := range s.schema {
		if i >= len(cells) {
			continue
		}
		res.Values[i] = typed(c.Type, cells[i])
	}
	if s.spatial != nil {
		res.Values = append(res.Values, pt)
	}
	return res
}

func typed(t inference.Type, v string) any {
	switch t {
	case inference.TypeDate:
		if d, ok := classify.ParseDate(v); ok {
			return d
		}
		return nil
	case inference.TypeText:
		return v
	default:
		return v
	}
}

func coord(cells []string, i int) (float64, bool) {
	if i < 0 || i >= len(cells) || cells[i] == "" {
		return 0, false
	}
	f, ok := classify.ParseFloat(cells[i])
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// StripNonASCII removes every rune >= 128. changed is false when s had none.
func StripNonASCII(s string) (string, bool) {
	i := 0
	for ; i < len(s); i++ {
		if s[i] >= 0x80 {
			break
		}
	}
	if i == len(s) {
		return s, false
	}
	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:i])
	for _, r := range s[i:] {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	return b.String(), true
}

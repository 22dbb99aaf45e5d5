// Package inference scans a delimited file once and derives a safe output
// schema: one descriptor per header cell with a bucketed length and a
// Text/Date type decided by the column's first non-empty value.
package inference

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"cameo/internal/classify"
)

// Type is the closed set of column types the inferencer can produce.
type Type int

const (
	TypeText Type = iota
	TypeDate
)

func (t Type) String() string {
	switch t {
	case TypeText:
		return "Text"
	case TypeDate:
		return "Date"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ColumnDescriptor describes one source column.
//
// Once TypeLocked is true, Type never changes. Length only grows.
type ColumnDescriptor struct {
	Ordinal    int
	Name       string
	Length     int
	Type       Type
	TypeLocked bool
}

// Schema is the ordered descriptor list for one source file.
type Schema []ColumnDescriptor

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// RowSource yields raw records; io.EOF ends the stream.
// *encoding/csv.Reader satisfies it.
type RowSource interface {
	Read() ([]string, error)
}

// Stats summarizes an inference pass.
type Stats struct {
	Rows       int
	Mismatched int
}

// Inferencer accumulates a schema one row at a time.
type Inferencer struct {
	policy LengthPolicy
	schema Schema
	stats  Stats
}

// New returns an Inferencer whose schema is seeded from header.
func New(header []string, policy LengthPolicy) *Inferencer {
	s := make(Schema, len(header))
	for i, h := range header {
		s[i] = ColumnDescriptor{
			Ordinal: i,
			Name:    h,
			Length:  policy.Baseline,
			Type:    TypeText,
		}
	}
	return &Inferencer{policy: policy, schema: s}
}

// Observe folds one data row into the schema. Cells beyond the schema's width
// are ignored; short rows only update the columns they have.
func (in *Inferencer) Observe(row []string) {
	in.stats.Rows++
	if len(row) != len(in.schema) {
		in.stats.Mismatched++
	}

	n := len(row)
	if n > len(in.schema) {
		n = len(in.schema)
	}
	for i := 0; i < n; i++ {
		v := row[i]
		c := &in.schema[i]

		c.Length = in.policy.Grow(c.Length, utf8.RuneCountInString(v))

		if !c.TypeLocked {
			isDate, attempted := classify.IsDate(v)
			if isDate {
				c.Type = TypeDate
			}
			c.TypeLocked = attempted
		}
	}
}

// Schema returns a copy of the current schema.
func (in *Inferencer) Schema() Schema {
	return append(Schema(nil), in.schema...)
}

// Stats returns counters for the rows observed so far.
func (in *Inferencer) Stats() Stats { return in.stats }

// Infer consumes src fully. The first record is the header. An empty source
// yields an empty schema and no error.
func Infer(src RowSource, policy LengthPolicy) (Schema, Stats, error) {
	header, err := src.Read()
	if errors.Is(err, io.EOF) {
		return nil, Stats{}, nil
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("inference: read header: %w", err)
	}

	in := New(header, policy)
	for {
		rec, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, in.stats, fmt.Errorf("inference: read row %d: %w", in.stats.Rows+2, err)
		}
		in.Observe(rec)
	}
	return in.Schema(), in.stats, nil
}

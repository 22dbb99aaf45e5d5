// Package materialize loads one delimited file into a workspace table.
//
// A file is read twice. The first pass infers the schema; the second
// sanitizes every record into an in-memory scratch table. The scratch table is
// then copied into the destination (fresh table) or appended to it
// (accumulating across archives), and released.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"cameo/internal/inference"
	"cameo/internal/sanitize"
	"cameo/internal/storage"
	"cameo/internal/storage/memory"
)

// Logger is the minimal logging interface used here. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configures one Materialize call.
type Options struct {
	// Policy buckets text column lengths. Zero value means the wide ladder.
	Policy inference.LengthPolicy
	// Spatial, when set, makes the table a feature table whose point is
	// built from the named coordinate columns.
	Spatial *sanitize.Spatial
	SRID    int
	// BatchSize is the number of rows per insert call (default 1000).
	BatchSize int
	Logger    Logger
}

// Outcome describes what Materialize did.
type Outcome struct {
	Table string
	Kind  storage.TableKind
	// Created is true for a fresh table, false when rows were appended to an
	// existing one.
	Created     bool
	Empty       bool
	Rows        int64
	AddedFields []string
	// Removed lists raw ordinals dropped because their header was blank.
	Removed         []int
	Mismatched      int
	DefaultedPoints int
	Truncated       int
	Duration        time.Duration
}

// Warnings is the number of recovered problems worth reporting.
func (o Outcome) Warnings() int {
	return len(o.Removed) + o.Mismatched + o.DefaultedPoints + o.Truncated
}

// Materialize loads src into dest.
//
// Errors:
//   - any read or storage failure, wrapped with the source and table names.
//     Rows already committed to dest stay there.
func Materialize(ctx context.Context, src Source, dest storage.Workspace, opts Options) (Outcome, error) {
	m := &run{src: src, dest: dest, opts: opts, logf: logger(opts.Logger)}
	if m.opts.Policy.Baseline == 0 {
		m.opts.Policy = inference.WideLadder
	}
	if m.opts.BatchSize <= 0 {
		m.opts.BatchSize = 1000
	}
	if m.opts.SRID == 0 {
		m.opts.SRID = storage.DefaultSRID
	}

	start := time.Now()
	out, err := m.do(ctx)
	out.Duration = time.Since(start)
	if err != nil {
		m.logf("ERROR stage=load source=%s table=%s error=%v", src.Name(), out.Table, err)
		return out, fmt.Errorf("materialize %s: %w", src.Name(), err)
	}
	m.logf("stage=load source=%s table=%s kind=%s created=%t rows=%d added_fields=%d warnings=%d duration=%s",
		src.Name(), out.Table, out.Kind, out.Created, out.Rows, len(out.AddedFields), out.Warnings(),
		out.Duration.Truncate(time.Millisecond))
	return out, nil
}

func logger(l Logger) func(format string, v ...any) {
	if l == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return l.Printf
}

type run struct {
	src  Source
	dest storage.Workspace
	opts Options
	logf func(format string, v ...any)
}

// plan is the pruned schema of one file.
type plan struct {
	table   string
	kind    storage.TableKind
	header  []string // raw names of the surviving columns
	schema  inference.Schema
	fields  []storage.Field
	removed []int
}

func (m *run) do(ctx context.Context) (Outcome, error) {
	out := Outcome{}

	// Pass 1.
	schema, stats, err := m.infer()
	if err != nil {
		return out, err
	}

	table := storage.ValidateTableName(m.src.Name())
	if table == "" {
		return out, fmt.Errorf("no valid table name for %q", m.src.Name())
	}
	out.Table = table
	out.Kind = storage.KindTable
	if m.opts.Spatial != nil {
		out.Kind = storage.KindFeature
	}

	if len(schema) == 0 {
		out.Empty = true
		m.logf("WARN stage=load source=%s table=%s empty file skipped", m.src.Name(), table)
		return out, nil
	}
	if stats.Mismatched > 0 {
		m.logf("stage=infer source=%s rows=%d mismatched=%d", m.src.Name(), stats.Rows, stats.Mismatched)
	}

	p := m.prune(table, out.Kind, schema)
	out.Removed = p.removed

	exists, err := m.dest.Exists(ctx, table)
	if err != nil {
		return out, err
	}
	out.Created = !exists

	scratch := memory.New("scratch:" + table)
	defer func() {
		scratch.Drop(table)
		scratch.Close()
	}()

	spec := storage.TableSpec{Name: table, Kind: p.kind, SRID: m.opts.SRID, Fields: p.fields}
	if err := scratch.CreateTable(ctx, spec); err != nil {
		return out, err
	}

	if exists {
		added, err := m.growDestination(ctx, p)
		if err != nil {
			return out, err
		}
		out.AddedFields = added
	}

	// Pass 2.
	if err := m.load(ctx, scratch, p, &out); err != nil {
		return out, err
	}

	if exists {
		n, truncated, err := m.appendTo(ctx, scratch, p)
		out.Rows, out.Truncated = n, truncated
		return out, err
	}

	if err := m.dest.CreateTable(ctx, spec); err != nil {
		return out, err
	}
	n, _, err := m.appendTo(ctx, scratch, p)
	out.Rows = n
	return out, err
}

func (m *run) infer() (inference.Schema, inference.Stats, error) {
	recs, err := m.src.Open()
	if err != nil {
		return nil, inference.Stats{}, err
	}
	defer recs.Close()
	return inference.Infer(recs, m.opts.Policy)
}

// prune drops blank-named columns and renames clashing ones. OBJECTID and,
// for feature tables, SHAPE are reserved.
func (m *run) prune(table string, kind storage.TableKind, schema inference.Schema) plan {
	p := plan{table: table, kind: kind}

	used := map[string]bool{strings.ToUpper(storage.OIDField): true}
	if kind == storage.KindFeature {
		used[strings.ToUpper(storage.ShapeField)] = true
	}

	for _, c := range schema {
		name := storage.ValidateFieldName(c.Name)
		if name == "" {
			p.removed = append(p.removed, c.Ordinal)
			m.logf("WARN stage=load source=%s table=%s column=%d blank header, column dropped", m.src.Name(), table, c.Ordinal)
			continue
		}
		if used[strings.ToUpper(name)] {
			base := name
			for i := 1; used[strings.ToUpper(name)]; i++ {
				name = truncate(base, storage.MaxNameLength-len(strconv.Itoa(i))-1) + "_" + strconv.Itoa(i)
			}
			m.logf("WARN stage=load source=%s table=%s column=%d header %q renamed to %s", m.src.Name(), table, c.Ordinal, c.Name, name)
		}
		used[strings.ToUpper(name)] = true

		p.header = append(p.header, c.Name)
		c.Name = name
		p.schema = append(p.schema, c)
		p.fields = append(p.fields, fieldFor(c))
	}
	return p
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func fieldFor(c inference.ColumnDescriptor) storage.Field {
	switch c.Type {
	case inference.TypeDate:
		return storage.Field{Name: c.Name, Type: storage.FieldDate}
	case inference.TypeText:
		return storage.Field{Name: c.Name, Type: storage.FieldText, Length: c.Length}
	default:
		return storage.Field{Name: c.Name, Type: storage.FieldText, Length: c.Length}
	}
}

// growDestination adds the fields the new schema has and the existing table
// lacks. Existing fields are never altered; OBJECTID is never touched.
func (m *run) growDestination(ctx context.Context, p plan) ([]string, error) {
	have, err := m.dest.ListFields(ctx, p.table)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(have))
	hasShape := false
	for _, f := range have {
		present[strings.ToUpper(f.Name)] = true
		if f.Type == storage.FieldGeometry {
			hasShape = true
		}
	}
	if p.kind == storage.KindFeature && !hasShape {
		m.logf("WARN stage=load table=%s existing table has no geometry; points are dropped", p.table)
	}

	var added []string
	for _, f := range p.fields {
		if storage.SameName(f.Name, storage.OIDField) || present[strings.ToUpper(f.Name)] {
			continue
		}
		if err := m.dest.AddField(ctx, p.table, f); err != nil {
			return added, err
		}
		added = append(added, f.Name)
		m.logf("stage=load table=%s field=%s type=%s length=%d added", p.table, f.Name, f.Type, f.Length)
	}
	return added, nil
}

// load streams pass 2 through the sanitizer into scratch.
func (m *run) load(ctx context.Context, scratch *memory.Workspace, p plan, out *Outcome) error {
	recs, err := m.src.Open()
	if err != nil {
		return err
	}
	defer recs.Close()

	if _, err := recs.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	san := sanitize.New(p.schema, p.removed, m.opts.Spatial)
	if m.opts.Spatial != nil && !san.Header(p.header) {
		m.logf("WARN stage=load source=%s table=%s coordinate columns %s/%s not found; points default to (0,0)",
			m.src.Name(), p.table, m.opts.Spatial.Lat, m.opts.Spatial.Lon)
	}

	columns := p.schema.Names()
	if m.opts.Spatial != nil {
		columns = append(columns, storage.ShapeField)
	}

	batch := make([][]any, 0, m.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := scratch.InsertRows(ctx, p.table, columns, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	// Line 1 is the header.
	for line := 2; ; line++ {
		rec, err := recs.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		res := san.Row(rec)
		if res.Mismatch != sanitize.MismatchNone {
			out.Mismatched++
			m.logf("WARN stage=load source=%s line=%d cells=%d columns=%d mismatch=%s",
				m.src.Name(), line, res.Cells, len(p.schema), res.Mismatch)
		}
		if res.DefaultedPoint {
			out.DefaultedPoints++
		}

		batch = append(batch, res.Values)
		if len(batch) >= m.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// appendTo copies scratch rows into the destination table. Values are
// conformed to the destination's field types; scratch columns the
// destination lacks are dropped.
func (m *run) appendTo(ctx context.Context, scratch *memory.Workspace, p plan) (int64, int, error) {
	cols, rows, err := scratch.Rows(p.table)
	if err != nil {
		return 0, 0, err
	}
	destFields, err := m.dest.ListFields(ctx, p.table)
	if err != nil {
		return 0, 0, err
	}

	var (
		srcIdx  []int
		targets []storage.Field
		names   []string
	)
	for i, c := range cols {
		if storage.SameName(c, storage.OIDField) {
			continue
		}
		for _, f := range destFields {
			if storage.SameName(f.Name, c) {
				srcIdx = append(srcIdx, i)
				targets = append(targets, f)
				names = append(names, f.Name)
				break
			}
		}
	}

	truncatedBy := map[string]int{}
	truncated := 0
	var total int64
	batch := make([][]any, 0, m.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := m.dest.InsertRows(ctx, p.table, names, batch)
		total += n
		if err != nil {
			return err
		}
		releaseRows(batch)
		batch = batch[:0]
		return nil
	}

	for _, r := range rows {
		vals := getRow(len(srcIdx))
		for j, i := range srcIdx {
			v, cut := storage.Conform(targets[j], r[i])
			if cut {
				truncated++
				truncatedBy[targets[j].Name]++
			}
			vals[j] = v
		}
		batch = append(batch, vals)
		if len(batch) >= m.opts.BatchSize {
			if err := flush(); err != nil {
				return total, truncated, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, truncated, err
	}

	for name, n := range truncatedBy {
		m.logf("WARN stage=load table=%s field=%s values_truncated=%d", p.table, name, n)
	}
	return total, truncated, nil
}

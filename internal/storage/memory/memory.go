// Package memory is an in-process Workspace. The materializer uses it for
// scratch tables; tests use it as the destination.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cameo/internal/storage"
)

func init() {
	storage.Register("memory", func(ctx context.Context, cfg storage.Config) (storage.Workspace, error) {
		return New(cfg.DSN), nil
	})
}

type table struct {
	info   storage.TableInfo
	fields []storage.Field
	rows   [][]any
	nextID int64
}

func (t *table) index(name string) int {
	for i, f := range t.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Workspace keeps tables as slices of rows. Row values are conformed to the
// column type on insert, like a typed store would.
type Workspace struct {
	mu     sync.Mutex
	name   string
	order  []string
	tables map[string]*table
	rels   []storage.Relationship
	closed bool
}

var _ storage.Workspace = (*Workspace)(nil)

// New returns an empty workspace labelled name.
func New(name string) *Workspace {
	if name == "" {
		name = "memory"
	}
	return &Workspace{name: name, tables: map[string]*table{}}
}

func key(name string) string { return strings.ToUpper(name) }

func (w *Workspace) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *Workspace) Path() string { return w.name }

func (w *Workspace) Exists(ctx context.Context, name string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.tables[key(name)]
	return ok, nil
}

func (w *Workspace) ListTables(ctx context.Context) ([]storage.TableInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]storage.TableInfo, 0, len(w.order))
	for _, k := range w.order {
		out = append(out, w.tables[k].info)
	}
	return out, nil
}

func (w *Workspace) ListFields(ctx context.Context, name string) ([]storage.Field, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, err := w.lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]storage.Field(nil), t.fields...), nil
}

func (w *Workspace) lookup(name string) (*table, error) {
	if w.closed {
		return nil, fmt.Errorf("memory: workspace %s is closed", w.name)
	}
	t, ok := w.tables[key(name)]
	if !ok {
		return nil, fmt.Errorf("memory: table %s does not exist", name)
	}
	return t, nil
}

func (w *Workspace) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createLocked(spec)
}

func (w *Workspace) createLocked(spec storage.TableSpec) error {
	if w.closed {
		return fmt.Errorf("memory: workspace %s is closed", w.name)
	}
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("memory: table name is empty")
	}
	k := key(spec.Name)
	if _, ok := w.tables[k]; ok {
		return fmt.Errorf("memory: table %s already exists", spec.Name)
	}

	t := &table{
		info:   storage.TableInfo{Name: spec.Name, Kind: spec.Kind, SRID: spec.SRID},
		fields: []storage.Field{{Name: storage.OIDField, Type: storage.FieldOID}},
	}
	if spec.Kind == storage.KindFeature {
		t.fields = append(t.fields, storage.Field{Name: storage.ShapeField, Type: storage.FieldGeometry})
	}
	for _, f := range spec.Fields {
		if t.index(f.Name) >= 0 {
			return fmt.Errorf("memory: table %s: duplicate field %s", spec.Name, f.Name)
		}
		t.fields = append(t.fields, f)
	}
	w.tables[k] = t
	w.order = append(w.order, k)
	return nil
}

func (w *Workspace) AddField(ctx context.Context, name string, f storage.Field) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, err := w.lookup(name)
	if err != nil {
		return err
	}
	if t.index(f.Name) >= 0 {
		return fmt.Errorf("memory: table %s: field %s already exists", name, f.Name)
	}
	t.fields = append(t.fields, f)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], nil)
	}
	return nil
}

func (w *Workspace) InsertRows(ctx context.Context, name string, columns []string, rows [][]any) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, err := w.lookup(name)
	if err != nil {
		return 0, err
	}
	return t.insert(name, columns, rows)
}

func (t *table) insert(name string, columns []string, rows [][]any) (int64, error) {
	pos := make([]int, len(columns))
	for i, c := range columns {
		j := t.index(c)
		if j < 0 {
			return 0, fmt.Errorf("memory: table %s: unknown column %s", name, c)
		}
		if t.fields[j].Type == storage.FieldOID {
			return 0, fmt.Errorf("memory: table %s: %s is assigned by the workspace", name, c)
		}
		pos[i] = j
	}

	for ri, r := range rows {
		if len(r) != len(columns) {
			return 0, fmt.Errorf("memory: table %s: row %d has %d values for %d columns", name, ri, len(r), len(columns))
		}
		t.nextID++
		out := make([]any, len(t.fields))
		out[0] = t.nextID
		for i, v := range r {
			out[pos[i]], _ = storage.Conform(t.fields[pos[i]], v)
		}
		t.rows = append(t.rows, out)
	}
	return int64(len(rows)), nil
}

func (w *Workspace) CreateRelationship(ctx context.Context, rel storage.Relationship) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.relateLocked(rel)
}

func (w *Workspace) relateLocked(rel storage.Relationship) error {
	for _, name := range []string{rel.Origin, rel.Destination} {
		if _, err := w.lookup(name); err != nil {
			return fmt.Errorf("memory: relationship %s: %w", rel.Name, err)
		}
	}
	for _, r := range w.rels {
		if strings.EqualFold(r.Name, rel.Name) {
			return fmt.Errorf("memory: relationship %s already exists", rel.Name)
		}
	}
	w.rels = append(w.rels, rel)
	return nil
}

func (w *Workspace) ListRelationships(ctx context.Context) ([]storage.Relationship, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]storage.Relationship(nil), w.rels...), nil
}

func (w *Workspace) EnableAttachments(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, err := w.lookup(name)
	if err != nil {
		return err
	}
	at := storage.AttachTableName(t.info.Name)
	if _, ok := w.tables[key(at)]; ok {
		return nil
	}
	if err := w.createLocked(storage.TableSpec{Name: at, Kind: storage.KindAttachment, Fields: storage.AttachTableFields()}); err != nil {
		return err
	}
	return w.relateLocked(storage.AttachRelationship(t.info.Name))
}

func (w *Workspace) AddAttachments(ctx context.Context, name, joinField string, files []storage.Attachment) (storage.AttachResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := storage.AttachResult{Files: len(files)}
	t, err := w.lookup(name)
	if err != nil {
		return res, err
	}
	at, err := w.lookup(storage.AttachTableName(t.info.Name))
	if err != nil {
		return res, fmt.Errorf("memory: attachments not enabled on %s: %w", name, err)
	}
	j := t.index(joinField)
	if j < 0 {
		return res, fmt.Errorf("memory: table %s: unknown join field %s", name, joinField)
	}

	for _, a := range files {
		var oids []int64
		for _, r := range t.rows {
			if v, _ := storage.Conform(storage.Field{Type: storage.FieldText}, r[j]); v == a.Key {
				oids = append(oids, r[0].(int64))
			}
		}
		if len(oids) == 0 {
			res.Unmatched++
			continue
		}
		data, err := storage.LoadAttachment(a)
		if err != nil {
			return res, err
		}
		batch := make([][]any, 0, len(oids))
		for _, oid := range oids {
			batch = append(batch, storage.AttachmentRow(oid, a, data))
		}
		if _, err := at.insert(at.info.Name, storage.AttachColumns(), batch); err != nil {
			return res, err
		}
		res.Attached += len(oids)
	}
	return res, nil
}

// Rows returns the table's column names and a copy of its rows, OBJECTID
// first, in insertion order.
func (w *Workspace) Rows(name string) ([]string, [][]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, err := w.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	cols := make([]string, len(t.fields))
	for i, f := range t.fields {
		cols[i] = f.Name
	}
	out := make([][]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]any(nil), r...)
	}
	return cols, out, nil
}

// Drop removes a table and any relationship touching it.
func (w *Workspace) Drop(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := key(name)
	if _, ok := w.tables[k]; !ok {
		return
	}
	delete(w.tables, k)
	for i, o := range w.order {
		if o == k {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	kept := w.rels[:0]
	for _, r := range w.rels {
		if !strings.EqualFold(r.Origin, name) && !strings.EqualFold(r.Destination, name) {
			kept = append(kept, r)
		}
	}
	w.rels = kept
}

// TableNames lists table names sorted, for diagnostics.
func (w *Workspace) TableNames() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tables))
	for _, t := range w.tables {
		out = append(out, t.info.Name)
	}
	sort.Strings(out)
	return out
}

// Package sqlstore implements storage.Workspace over any SQL database. Table
// metadata (kinds, typed fields in creation order, relationships) lives in
// catalog tables so every backend answers ListFields and ListRelationships
// the same way.
package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cameo/internal/storage"
)

// Workspace is a storage.Workspace backed by a Conn and a Dialect.
type Workspace struct {
	conn Conn
	d    Dialect
	path string
}

var _ storage.Workspace = (*Workspace)(nil)

// Open ensures the catalog tables exist and returns the workspace. path is
// what Path reports.
func Open(ctx context.Context, conn Conn, d Dialect, path string) (*Workspace, error) {
	w := &Workspace{conn: conn, d: d, path: path}
	for _, name := range catalogOrder {
		fields := catalogSpecs()[name]
		defs := make([]string, len(fields))
		for i, f := range fields {
			defs[i] = d.ColumnDef(f)
		}
		if _, err := conn.Exec(ctx, d.CreateTableSQL(name, defs, true)); err != nil {
			return nil, fmt.Errorf("%s: create catalog %s: %w", d.Name(), name, err)
		}
	}
	return w, nil
}

func (w *Workspace) Close() { _ = w.conn.Close() }

func (w *Workspace) Path() string { return w.path }

func (w *Workspace) errf(format string, args ...any) error {
	return fmt.Errorf(w.d.Name()+": "+format, args...)
}

// lookup resolves name case-insensitively to the catalog entry.
func (w *Workspace) lookup(ctx context.Context, name string) (storage.TableInfo, bool, error) {
	q := fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE lower(%s) = lower(%s)",
		w.d.Quote("name"), w.d.Quote("kind"), w.d.Quote("srid"),
		w.d.Quote(itemsTable), w.d.Quote("name"), w.d.Placeholder(1))
	infos, err := w.scanTables(ctx, q, name)
	if err != nil {
		return storage.TableInfo{}, false, w.errf("lookup %s: %w", name, err)
	}
	if len(infos) == 0 {
		return storage.TableInfo{}, false, nil
	}
	return infos[0], true, nil
}

func (w *Workspace) mustLookup(ctx context.Context, name string) (storage.TableInfo, error) {
	info, ok, err := w.lookup(ctx, name)
	if err != nil {
		return info, err
	}
	if !ok {
		return info, w.errf("table %s does not exist", name)
	}
	return info, nil
}

func (w *Workspace) scanTables(ctx context.Context, q string, args ...any) ([]storage.TableInfo, error) {
	rows, err := w.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.TableInfo
	for rows.Next() {
		var name, kind string
		var srid int64
		if err := rows.Scan(&name, &kind, &srid); err != nil {
			return nil, err
		}
		k, err := storage.ParseTableKind(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.TableInfo{Name: name, Kind: k, SRID: int(srid)})
	}
	return out, rows.Err()
}

func (w *Workspace) Exists(ctx context.Context, name string) (bool, error) {
	_, ok, err := w.lookup(ctx, name)
	return ok, err
}

func (w *Workspace) ListTables(ctx context.Context) ([]storage.TableInfo, error) {
	q := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		w.d.Quote("name"), w.d.Quote("kind"), w.d.Quote("srid"), w.d.Quote(itemsTable))
	infos, err := w.scanTables(ctx, q)
	if err != nil {
		return nil, w.errf("list tables: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (w *Workspace) ListFields(ctx context.Context, table string) ([]storage.Field, error) {
	info, err := w.mustLookup(ctx, table)
	if err != nil {
		return nil, err
	}
	return w.fields(ctx, info.Name)
}

func (w *Workspace) fields(ctx context.Context, table string) ([]storage.Field, error) {
	q := fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s = %s ORDER BY %s",
		w.d.Quote("field_name"), w.d.Quote("field_type"), w.d.Quote("field_length"),
		w.d.Quote(fieldsTable), w.d.Quote("table_name"), w.d.Placeholder(1), w.d.Quote("ordinal"))
	rows, err := w.conn.Query(ctx, q, table)
	if err != nil {
		return nil, w.errf("list fields %s: %w", table, err)
	}
	defer rows.Close()

	var out []storage.Field
	for rows.Next() {
		var name, typ string
		var length int64
		if err := rows.Scan(&name, &typ, &length); err != nil {
			return nil, w.errf("list fields %s: %w", table, err)
		}
		ft, err := storage.ParseFieldType(typ)
		if err != nil {
			return nil, w.errf("list fields %s: %w", table, err)
		}
		out = append(out, storage.Field{Name: name, Type: ft, Length: int(length)})
	}
	if err := rows.Err(); err != nil {
		return nil, w.errf("list fields %s: %w", table, err)
	}
	return out, nil
}

func (w *Workspace) CreateTable(ctx context.Context, spec storage.TableSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return w.errf("table name is empty")
	}
	if _, ok, err := w.lookup(ctx, spec.Name); err != nil {
		return err
	} else if ok {
		return w.errf("table %s already exists", spec.Name)
	}

	fields := []storage.Field{{Name: storage.OIDField, Type: storage.FieldOID}}
	if spec.Kind == storage.KindFeature {
		fields = append(fields, storage.Field{Name: storage.ShapeField, Type: storage.FieldGeometry})
	}
	for _, f := range spec.Fields {
		for _, have := range fields {
			if storage.SameName(have.Name, f.Name) {
				return w.errf("table %s: duplicate field %s", spec.Name, f.Name)
			}
		}
		fields = append(fields, f)
	}

	defs := make([]string, len(fields))
	for i, f := range fields {
		defs[i] = w.d.ColumnDef(f)
	}
	if _, err := w.conn.Exec(ctx, w.d.CreateTableSQL(spec.Name, defs, false)); err != nil {
		return w.errf("create table %s: %w", spec.Name, err)
	}

	if _, err := w.insert(ctx, itemsTable, catalogSpecs()[itemsTable],
		[][]any{{spec.Name, spec.Kind.String(), int64(spec.SRID)}}); err != nil {
		return w.errf("register table %s: %w", spec.Name, err)
	}
	frows := make([][]any, len(fields))
	for i, f := range fields {
		frows[i] = fieldRow(spec.Name, f, i)
	}
	if _, err := w.insert(ctx, fieldsTable, catalogSpecs()[fieldsTable], frows); err != nil {
		return w.errf("register fields %s: %w", spec.Name, err)
	}
	return nil
}

func fieldRow(table string, f storage.Field, ordinal int) []any {
	return []any{table, f.Name, f.Type.String(), int64(f.Length), int64(ordinal)}
}

func (w *Workspace) AddField(ctx context.Context, table string, f storage.Field) error {
	info, err := w.mustLookup(ctx, table)
	if err != nil {
		return err
	}
	fields, err := w.fields(ctx, info.Name)
	if err != nil {
		return err
	}
	for _, have := range fields {
		if storage.SameName(have.Name, f.Name) {
			return w.errf("table %s: field %s already exists", info.Name, f.Name)
		}
	}
	if _, err := w.conn.Exec(ctx, w.d.AddColumnSQL(info.Name, w.d.ColumnDef(f))); err != nil {
		return w.errf("add field %s.%s: %w", info.Name, f.Name, err)
	}
	if _, err := w.insert(ctx, fieldsTable, catalogSpecs()[fieldsTable],
		[][]any{fieldRow(info.Name, f, len(fields))}); err != nil {
		return w.errf("register field %s.%s: %w", info.Name, f.Name, err)
	}
	return nil
}

// InsertRows inserts rows in multi-row statements bounded by the dialect's
// parameter limit. Values are conformed to each column's type first.
func (w *Workspace) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	info, err := w.mustLookup(ctx, table)
	if err != nil {
		return 0, err
	}
	all, err := w.fields(ctx, info.Name)
	if err != nil {
		return 0, err
	}

	target := make([]storage.Field, len(columns))
	for i, c := range columns {
		found := false
		for _, f := range all {
			if storage.SameName(f.Name, c) {
				if f.Type == storage.FieldOID {
					return 0, w.errf("table %s: %s is assigned by the workspace", info.Name, c)
				}
				target[i] = f
				found = true
				break
			}
		}
		if !found {
			return 0, w.errf("table %s: unknown column %s", info.Name, c)
		}
	}

	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, w.errf("table %s: row %d has %d values for %d columns", info.Name, i, len(r), len(columns))
		}
	}

	n, err := w.insert(ctx, info.Name, target, rows)
	if err != nil {
		return n, w.errf("insert into %s: %w", info.Name, err)
	}
	return n, nil
}

func (w *Workspace) insert(ctx context.Context, table string, fields []storage.Field, rows [][]any) (int64, error) {
	if len(fields) == 0 {
		var n int64
		for range rows {
			if _, err := w.conn.Exec(ctx, w.d.InsertDefaultSQL(table)); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}

	var total int64
	for _, st := range buildInserts(w.d, table, fields, rows) {
		if _, err := w.conn.Exec(ctx, st.sql, st.args...); err != nil {
			return total, err
		}
		total += int64(st.rows)
	}
	return total, nil
}

type statement struct {
	sql  string
	args []any
	rows int
}

// buildInserts renders rows as multi-row INSERT statements. A statement is
// closed before a row would push it past MaxParams; a single row always
// gets its own statement.
func buildInserts(d Dialect, table string, fields []storage.Field, rows [][]any) []statement {
	var head strings.Builder
	head.WriteString("INSERT INTO ")
	head.WriteString(d.Quote(table))
	head.WriteString(" (")
	for i, f := range fields {
		if i > 0 {
			head.WriteString(", ")
		}
		head.WriteString(d.Quote(f.Name))
	}
	head.WriteString(") VALUES ")

	var out []statement
	var b strings.Builder
	var args []any
	n := 0

	flush := func() {
		if n == 0 {
			return
		}
		out = append(out, statement{sql: b.String(), args: args, rows: n})
		b.Reset()
		args = nil
		n = 0
	}

	bind := func(r []any, next int) ([]string, []any) {
		exprs := make([]string, len(fields))
		var a []any
		for i, f := range fields {
			v, _ := storage.Conform(f, r[i])
			expr, args, used := d.Bind(f, v, next)
			exprs[i] = expr
			a = append(a, args...)
			next += used
		}
		return exprs, a
	}

	for _, r := range rows {
		exprs, rowArgs := bind(r, len(args)+1)
		if n > 0 && len(args)+len(rowArgs) > d.MaxParams() {
			flush()
			exprs, rowArgs = bind(r, 1)
		}

		if n == 0 {
			b.WriteString(head.String())
		} else {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(strings.Join(exprs, ", "))
		b.WriteString(")")
		args = append(args, rowArgs...)
		n++
	}
	flush()
	return out
}

func (w *Workspace) CreateRelationship(ctx context.Context, rel storage.Relationship) error {
	origin, err := w.mustLookup(ctx, rel.Origin)
	if err != nil {
		return w.errf("relationship %s: %w", rel.Name, err)
	}
	dest, err := w.mustLookup(ctx, rel.Destination)
	if err != nil {
		return w.errf("relationship %s: %w", rel.Name, err)
	}
	existing, err := w.ListRelationships(ctx)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if storage.SameName(r.Name, rel.Name) {
			return w.errf("relationship %s already exists", rel.Name)
		}
	}

	row := []any{rel.Name, origin.Name, dest.Name, rel.OriginKey, rel.DestinationKey,
		rel.ForwardLabel, rel.BackwardLabel, rel.Cardinality}
	if _, err := w.insert(ctx, relsTable, catalogSpecs()[relsTable], [][]any{row}); err != nil {
		return w.errf("create relationship %s: %w", rel.Name, err)
	}
	return nil
}

func (w *Workspace) ListRelationships(ctx context.Context) ([]storage.Relationship, error) {
	fields := catalogSpecs()[relsTable]
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = w.d.Quote(f.Name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(cols, ", "), w.d.Quote(relsTable), w.d.Quote("name"))
	rows, err := w.conn.Query(ctx, q)
	if err != nil {
		return nil, w.errf("list relationships: %w", err)
	}
	defer rows.Close()

	var out []storage.Relationship
	for rows.Next() {
		var r storage.Relationship
		if err := rows.Scan(&r.Name, &r.Origin, &r.Destination, &r.OriginKey, &r.DestinationKey,
			&r.ForwardLabel, &r.BackwardLabel, &r.Cardinality); err != nil {
			return nil, w.errf("list relationships: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, w.errf("list relationships: %w", err)
	}
	return out, nil
}

func (w *Workspace) EnableAttachments(ctx context.Context, table string) error {
	info, err := w.mustLookup(ctx, table)
	if err != nil {
		return err
	}
	at := storage.AttachTableName(info.Name)
	if ok, err := w.Exists(ctx, at); err != nil || ok {
		return err
	}
	if err := w.CreateTable(ctx, storage.TableSpec{
		Name:   at,
		Kind:   storage.KindAttachment,
		Fields: storage.AttachTableFields(),
	}); err != nil {
		return err
	}
	return w.CreateRelationship(ctx, storage.AttachRelationship(info.Name))
}

func (w *Workspace) AddAttachments(ctx context.Context, table, joinField string, files []storage.Attachment) (storage.AttachResult, error) {
	res := storage.AttachResult{Files: len(files)}

	info, err := w.mustLookup(ctx, table)
	if err != nil {
		return res, err
	}
	at := storage.AttachTableName(info.Name)
	if ok, err := w.Exists(ctx, at); err != nil {
		return res, err
	} else if !ok {
		return res, w.errf("attachments not enabled on %s", info.Name)
	}

	fields, err := w.fields(ctx, info.Name)
	if err != nil {
		return res, err
	}
	var join storage.Field
	found := false
	for _, f := range fields {
		if storage.SameName(f.Name, joinField) {
			join, found = f, true
			break
		}
	}
	if !found {
		return res, w.errf("table %s: unknown join field %s", info.Name, joinField)
	}

	attachFields := storage.AttachTableFields()
	for _, a := range files {
		oids, err := w.matchingOIDs(ctx, info.Name, join, a.Key)
		if err != nil {
			return res, err
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
		if _, err := w.insert(ctx, at, attachFields, batch); err != nil {
			return res, w.errf("attach %s to %s: %w", a.Path, info.Name, err)
		}
		res.Attached += len(oids)
	}
	return res, nil
}

func (w *Workspace) matchingOIDs(ctx context.Context, table string, join storage.Field, key string) ([]int64, error) {
	v, _ := storage.Conform(join, key)
	if v == nil {
		return nil, nil
	}
	expr, args, _ := w.d.Bind(join, v, 1)
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		w.d.Quote(storage.OIDField), w.d.Quote(table), w.d.Quote(join.Name), expr, w.d.Quote(storage.OIDField))
	rows, err := w.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, w.errf("match %s.%s=%s: %w", table, join.Name, key, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var oid int64
		if err := rows.Scan(&oid); err != nil {
			return nil, w.errf("match %s.%s=%s: %w", table, join.Name, key, err)
		}
		out = append(out, oid)
	}
	return out, rows.Err()
}

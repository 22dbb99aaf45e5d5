// Package importer runs a whole CAMEO import: unpack each archive, load
// every export file into the workspace, attach site-plan files, and finally
// relate the tables to each other.
package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cameo/internal/archive"
	"cameo/internal/attach"
	"cameo/internal/config"
	"cameo/internal/inference"
	"cameo/internal/materialize"
	"cameo/internal/metrics"
	csvparser "cameo/internal/parser/csv"
	"cameo/internal/relate"
	"cameo/internal/sanitize"
	"cameo/internal/storage"
)

// Logger is the minimal logging interface used here. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Runner executes imports. The zero value is usable.
type Runner struct {
	Logger Logger

	// extract is swapped in tests.
	extract func(src, dest string) (archive.Extracted, error)
}

// Result summarises a run.
type Result struct {
	Archives      int
	Tables        []materialize.Outcome
	Attachments   []attach.Report
	Relationships relate.Report

	// FeatureClasses and Tables are workspace paths of what the workspace
	// now holds, attachment tables excluded.
	FeatureClasses []string
	PlainTables    []string
	Duration       time.Duration
}

// Warnings totals recovered problems across loaded files.
func (r Result) Warnings() int {
	n := len(r.Relationships.Skipped)
	for _, t := range r.Tables {
		n += t.Warnings()
	}
	return n
}

func (r *Runner) logger() func(format string, v ...any) {
	if r == nil || r.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return r.Logger.Printf
}

// Run imports cfg.Archives into ws in order. Relationships are built once,
// after the last archive.
//
// Errors:
//   - *StageError for the first fatal failure. Work done before it stays in ws.
func (r *Runner) Run(ctx context.Context, cfg config.Import, ws storage.Workspace) (Result, error) {
	logf := r.logger()
	start := time.Now()
	cfg.Defaults()
	prof := *cfg.Profile

	var res Result
	policy, err := prof.Policy()
	if err != nil {
		return res, stageErr(StageLoad, "", err)
	}

	for _, a := range cfg.Archives {
		if err := r.importArchive(ctx, cfg, prof, policy, ws, a, &res); err != nil {
			return res, err
		}
		res.Archives++
	}

	if !cfg.Runtime.SkipRelationships {
		t0 := time.Now()
		rep, err := r.relate(ctx, prof, ws)
		metrics.RecordStep(StageRelate, err, time.Since(t0))
		if err != nil {
			return res, stageErr(StageRelate, ws.Path(), err)
		}
		res.Relationships = rep
		metrics.RecordRelationships("created", len(rep.Created))
		metrics.RecordRelationships("existing", len(rep.Existing))
		metrics.RecordRelationships("skipped", len(rep.Skipped))
	}

	feat, plain, err := Outputs(ctx, ws)
	if err != nil {
		return res, stageErr(StageLoad, ws.Path(), err)
	}
	res.FeatureClasses, res.PlainTables = feat, plain
	res.Duration = time.Since(start)

	logf("stage=done workspace=%s archives=%d files=%d feature_classes=%d tables=%d warnings=%d duration=%s",
		ws.Path(), res.Archives, len(res.Tables), len(feat), len(plain), res.Warnings(),
		res.Duration.Truncate(time.Millisecond))
	return res, nil
}

func (r *Runner) importArchive(ctx context.Context, cfg config.Import, prof config.Profile, policy inference.LengthPolicy, ws storage.Workspace, path string, res *Result) error {
	logf := r.logger()

	extract := r.extract
	if extract == nil {
		extract = archive.Extract
	}
	t0 := time.Now()
	ex, err := extract(path, cfg.Runtime.WorkDir)
	var files []string
	if err == nil {
		files, err = archive.Find(ex.Dir, prof.FileExtension)
	}
	metrics.RecordStep(StageExtract, err, time.Since(t0))
	if err != nil {
		return stageErr(StageExtract, path, err)
	}
	logf("stage=extract archive=%s dir=%s entries=%d files=%d", path, ex.Dir, ex.Entries, len(files))

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stageErr(StageLoad, f, err)
		}
		out, err := r.load(ctx, cfg, prof, policy, ws, f)
		metrics.RecordStep(StageLoad, err, out.Duration)
		if err != nil {
			return stageErr(StageLoad, f, err)
		}
		res.Tables = append(res.Tables, out)
		metrics.RecordRows(out.Table, "loaded", int(out.Rows))
		metrics.RecordRows(out.Table, "mismatched", out.Mismatched)
		metrics.RecordRows(out.Table, "truncated", out.Truncated)
		metrics.RecordRows(out.Table, "defaulted_point", out.DefaultedPoints)

		if !cfg.Runtime.KeepExtracted {
			if err := os.Remove(f); err != nil {
				logf("WARN stage=load file=%s cleanup failed: %v", f, err)
			}
		}
	}

	if cfg.Runtime.SkipAttachments {
		return nil
	}
	root := filepath.Join(ex.Dir, prof.AttachmentDir)
	t0 = time.Now()
	linker := &attach.Linker{Logger: r.Logger, KeepRoot: cfg.Runtime.KeepExtracted}
	rep, err := linker.Link(ctx, ws, root, prof.AttachmentTables)
	metrics.RecordStep(StageAttach, err, time.Since(t0))
	if err != nil {
		return stageErr(StageAttach, root, err)
	}
	res.Attachments = append(res.Attachments, rep)
	for _, t := range rep.Tables {
		metrics.RecordAttachments(t.Table, "attached", t.Attached)
		metrics.RecordAttachments(t.Table, "unmatched", t.Unmatched)
	}
	return nil
}

func (r *Runner) load(ctx context.Context, cfg config.Import, prof config.Profile, policy inference.LengthPolicy, ws storage.Workspace, file string) (materialize.Outcome, error) {
	src := csvparser.Source{Path: file, Options: prof.Parser}
	opts := materialize.Options{
		Policy:    policy,
		SRID:      prof.SRID,
		BatchSize: cfg.Runtime.BatchSize,
		Logger:    r.Logger,
	}
	if sp, ok := prof.Spatial(src.Name()); ok {
		opts.Spatial = &sanitize.Spatial{Lat: sp.Lat, Lon: sp.Lon}
	}
	return materialize.Materialize(ctx, materialize.CSV(src), ws, opts)
}

func (r *Runner) relate(ctx context.Context, prof config.Profile, ws storage.Workspace) (relate.Report, error) {
	edges, err := relate.Edges(prof.Relationships)
	if err != nil {
		return relate.Report{}, err
	}
	b := &relate.Builder{Logger: r.Logger}
	return b.Build(ctx, ws, edges)
}

// Outputs lists the workspace's tables as "<workspace>/<table>" paths:
// feature classes sorted descending and plain tables ascending. Attachment
// tables are left out.
func Outputs(ctx context.Context, ws storage.Workspace) (featureClasses, tables []string, err error) {
	infos, err := ws.ListTables(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list tables: %w", err)
	}
	base := strings.TrimSuffix(ws.Path(), "/")
	for _, ti := range infos {
		if storage.IsAttachmentTable(ti.Name) {
			continue
		}
		p := base + "/" + ti.Name
		if ti.Kind == storage.KindFeature {
			featureClasses = append(featureClasses, p)
		} else {
			tables = append(tables, p)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(featureClasses)))
	sort.Strings(tables)
	return featureClasses, tables, nil
}

// Join renders an output list the way the tool prints it.
func Join(paths []string) string { return strings.Join(paths, ";") }

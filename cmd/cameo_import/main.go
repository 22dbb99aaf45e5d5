// Command cameo_import loads CAMEO export archives into a workspace.
//
//	cameo_import -archive export.zip -out-dir ./out -name CAMEO
//	cameo_import -config import.yaml -v
//
// On success it prints two lines: the ';'-joined feature class paths, then
// the ';'-joined table paths.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"cameo/internal/config"
	"cameo/internal/importer"
	"cameo/internal/metrics"
	"cameo/internal/metrics/datadog"
	"cameo/internal/storage"
	"cameo/internal/storage/sqlite"

	// register every workspace kind; the config picks one.
	_ "cameo/internal/storage/all"
)

type runner interface {
	Run(ctx context.Context, cfg config.Import, ws storage.Workspace) (importer.Result, error)
}

type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Package-level seams for initMetrics.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b metrics.Backend) { metrics.SetBackend(b) }
	logPrintf         = log.Printf
)

type appDeps struct {
	loadConfig    func(path string) (config.Import, error)
	loadProfile   func(path string) (config.Profile, error)
	openWorkspace func(ctx context.Context, cfg storage.Config) (storage.Workspace, error)
	initMetrics   func(ctx context.Context, job, backend string) (func(), error)
	newRunner     func(logger *log.Logger) runner
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:    config.Load,
		loadProfile:   config.LoadProfile,
		openWorkspace: storage.Open,
		initMetrics:   initMetrics,
		newRunner:     func(l *log.Logger) runner { return &importer.Runner{Logger: l} },
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type flags struct {
	cfgPath        string
	profilePath    string
	archives       stringList
	kind           string
	dsn            string
	outDir         string
	name           string
	workDir        string
	keepExtracted  bool
	skipRel        bool
	skipAttach     bool
	metricsBackend string
	validate       bool
	verbose        bool
}

// runMain returns the process exit code: 0 ok, 1 failure, 2 usage.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	var f flags
	fs := flag.NewFlagSet("cameo_import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.cfgPath, "config", "", "import config (.json, .yaml)")
	fs.StringVar(&f.profilePath, "profile", "", "profile file overriding the built-in CAMEO declarations")
	fs.Var(&f.archives, "archive", "export zip to import (repeatable; replaces config archives)")
	fs.StringVar(&f.kind, "kind", "", "workspace kind (sqlite, postgres, mssql, mysql, memory)")
	fs.StringVar(&f.dsn, "dsn", "", "workspace DSN; for sqlite an empty DSN means <out-dir>/<name>.sqlite")
	fs.StringVar(&f.outDir, "out-dir", "", "output folder for file workspaces")
	fs.StringVar(&f.name, "name", "", "output workspace name")
	fs.StringVar(&f.workDir, "work-dir", "", "extract archives here instead of next to them")
	fs.BoolVar(&f.keepExtracted, "keep-extracted", false, "keep extracted export files")
	fs.BoolVar(&f.skipRel, "skip-relationships", false, "do not build relationships")
	fs.BoolVar(&f.skipAttach, "skip-attachments", false, "do not attach site plan files")
	fs.StringVar(&f.metricsBackend, "metrics-backend", os.Getenv("METRICS_BACKEND"), "metrics backend (datadog, none)")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&f.verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(f.cfgPath) == "" && len(f.archives) == 0 {
		fmt.Fprintln(stderr, "usage: cameo_import -archive export.zip [-out-dir dir -name CAMEO] | -config import.yaml")
		return 2
	}

	cfg, err := buildConfig(f, deps)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 1
	}
	if f.validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	logger := log.New(stderr, "", log.LstdFlags)

	if cfg.Storage.Kind == "sqlite" && cfg.Storage.DSN == "" {
		path, renamed := sqlite.ResolvePath(cfg.Storage.OutDir, cfg.Storage.Name)
		if renamed {
			logger.Printf("WARN workspace %s already exists; writing %s", cfg.Storage.Name+sqlite.Extension, path)
		}
		cfg.Storage.DSN = path
	}

	cleanup, err := deps.initMetrics(ctx, cfg.Job, f.metricsBackend)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	ws, err := deps.openWorkspace(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	if err != nil {
		fmt.Fprintf(stderr, "open workspace: %v\n", err)
		return 1
	}
	defer ws.Close()

	if f.verbose {
		logger.Printf("import: job=%s archives=%d storage=%s workspace=%s profile=%s",
			cfg.Job, len(cfg.Archives), cfg.Storage.Kind, storage.RedactDSN(cfg.Storage.Kind, cfg.Storage.DSN), cfg.Profile.Name)
	}

	start := time.Now()
	res, err := deps.newRunner(logger).Run(ctx, cfg, ws)
	if err != nil {
		var se *importer.StageError
		if errors.As(err, &se) {
			fmt.Fprintf(stderr, "stage=%s path=%s error=%v\n", se.Stage, se.Path, se.Err)
		} else {
			fmt.Fprintf(stderr, "run: %v\n", err)
		}
		return 1
	}

	fmt.Fprintln(stdout, importer.Join(res.FeatureClasses))
	fmt.Fprintln(stdout, importer.Join(res.PlainTables))
	if f.verbose {
		logger.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

// buildConfig merges the config file, the profile file and flag overrides.
func buildConfig(f flags, deps appDeps) (config.Import, error) {
	var cfg config.Import
	if path := strings.TrimSpace(f.cfgPath); path != "" {
		c, err := deps.loadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		cfg = c
	}
	if f.profilePath != "" {
		p, err := deps.loadProfile(f.profilePath)
		if err != nil {
			return cfg, fmt.Errorf("read profile: %w", err)
		}
		cfg.Profile = &p
	}

	if len(f.archives) > 0 {
		cfg.Archives = append([]string(nil), f.archives...)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Storage.Kind, f.kind)
	set(&cfg.Storage.DSN, os.ExpandEnv(f.dsn))
	set(&cfg.Storage.OutDir, f.outDir)
	set(&cfg.Storage.Name, f.name)
	set(&cfg.Runtime.WorkDir, f.workDir)
	cfg.Runtime.KeepExtracted = cfg.Runtime.KeepExtracted || f.keepExtracted
	cfg.Runtime.SkipRelationships = cfg.Runtime.SkipRelationships || f.skipRel
	cfg.Runtime.SkipAttachments = cfg.Runtime.SkipAttachments || f.skipAttach

	cfg.Defaults()
	return cfg, nil
}

// initMetrics installs the named backend. The returned cleanup is never nil
// and flushes whatever the backend buffered.
func initMetrics(ctx context.Context, job, backend string) (func(), error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "none", "noop":
		return func() {}, nil
	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName: job,
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			return func() {}, err
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil
	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q", backend)
	}
}

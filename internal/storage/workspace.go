package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a destination workspace.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//     For sqlite it is a file path.
type Config struct {
	Kind string
	DSN  string
}

// Workspace is the destination store: named tables and feature tables with
// typed fixed-length columns, relationships and attachments.
//
// IMPORTANT: This interface is intentionally narrow. It carries exactly the
// operations the importer needs; each backend implements them with its own
// SQL dialect. A single process owns a workspace for the run; implementations
// are not required to be safe for concurrent writers.
type Workspace interface {
	// Close releases backend resources. Call once.
	Close()

	// Path identifies the workspace in output lists (file path or DSN label).
	Path() string

	// Exists reports whether a table (any kind) with this name exists.
	// Names compare case-insensitively.
	Exists(ctx context.Context, name string) (bool, error)

	// ListTables returns every table, including attachment tables.
	ListTables(ctx context.Context) ([]TableInfo, error)

	// ListFields returns the table's columns in creation order, starting with
	// the OBJECTID identity.
	ListFields(ctx context.Context, table string) ([]Field, error)

	// CreateTable creates a plain or feature table. It fails if the table exists.
	CreateTable(ctx context.Context, spec TableSpec) error

	// AddField appends a column to an existing table.
	AddField(ctx context.Context, table string, f Field) error

	// InsertRows inserts rows ordered by columns. Values are nil, string,
	// int64, time.Time, []byte or Point. Implementations must not keep rows
	// after returning.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// CreateRelationship registers a relationship between two existing tables.
	CreateRelationship(ctx context.Context, rel Relationship) error

	// ListRelationships returns every registered relationship.
	ListRelationships(ctx context.Context) ([]Relationship, error)

	// EnableAttachments creates the table's attachment companion. Calling it
	// again for the same table is a no-op.
	EnableAttachments(ctx context.Context, table string) error

	// AddAttachments stores each file against every row of table whose
	// joinField equals the attachment's Key.
	AddAttachments(ctx context.Context, table, joinField string, files []Attachment) (AttachResult, error)
}

// ---- factories ----

type factory func(ctx context.Context, cfg Config) (Workspace, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a workspace backend under a kind (e.g. "sqlite", "postgres").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered. Registering
//     twice fails fast instead of silently picking one backend.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Workspace using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Workspace, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

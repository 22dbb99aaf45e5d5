// Package relate registers the declared parent/child relationships between
// imported tables.
package relate

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"cameo/internal/storage"
)

// Logger is the minimal logging interface used here. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// Link is one {table: keyColumn} entry of a relationship block.
type Link map[string]string

// Block declares one parent and its children. The first link restates the
// parent itself with its key column; every following link is a child.
//
//	table: Facilities
//	links:
//	  - Facilities: FacilityRecordID
//	  - Phone: ParentRecordID
type Block struct {
	Table string `json:"table" yaml:"table"`
	Links []Link `json:"links" yaml:"links"`
}

func (l Link) single() (table, key string, ok bool) {
	if len(l) != 1 {
		return "", "", false
	}
	for t, k := range l {
		table, key = strings.TrimSpace(t), strings.TrimSpace(k)
	}
	return table, key, table != "" && key != ""
}

// Edges validates blocks and flattens them into typed edges, in declaration
// order.
//
// Errors:
//   - a block with no links
//   - a link that is not exactly one non-empty {table: key} pair
//   - a first link that does not restate the block's own table
func Edges(blocks []Block) ([]storage.RelationshipEdge, error) {
	var out []storage.RelationshipEdge
	for bi, b := range blocks {
		if len(b.Links) == 0 {
			return nil, fmt.Errorf("relate: block %d (%s): no links", bi, b.Table)
		}
		parent, parentKey, ok := b.Links[0].single()
		if !ok {
			return nil, fmt.Errorf("relate: block %d (%s): first link must be a single {table: key} pair", bi, b.Table)
		}
		if !storage.SameName(parent, b.Table) {
			return nil, fmt.Errorf("relate: block %d: first link names %s, want the block's own table %s", bi, parent, b.Table)
		}
		for li, l := range b.Links[1:] {
			child, childKey, ok := l.single()
			if !ok {
				return nil, fmt.Errorf("relate: block %d (%s) link %d: must be a single {table: key} pair", bi, b.Table, li+1)
			}
			out = append(out, storage.RelationshipEdge{
				ParentTable: parent,
				ParentKey:   parentKey,
				ChildTable:  child,
				ChildKey:    childKey,
			})
		}
	}
	return out, nil
}

// Skipped is an edge that was not created because an endpoint is missing.
type Skipped struct {
	Edge    storage.RelationshipEdge
	Missing []string
}

// Report is what Build did.
type Report struct {
	Created  []string
	Existing []string
	Skipped  []Skipped
}

// Builder creates relationships in a workspace.
type Builder struct {
	Logger Logger
}

func (b *Builder) logger() func(format string, v ...any) {
	if b == nil || b.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return b.Logger.Printf
}

// Build registers a one-to-many relationship for every edge whose parent and
// child tables both exist. Edges with a missing endpoint are reported and
// skipped; relationships already present (from an earlier run into the same
// workspace) are left alone.
//
// Errors:
//   - storage failures while checking tables or creating a relationship.
func (b *Builder) Build(ctx context.Context, ws storage.Workspace, edges []storage.RelationshipEdge) (Report, error) {
	logf := b.logger()
	start := time.Now()
	var rep Report

	have := map[string]bool{}
	existing, err := ws.ListRelationships(ctx)
	if err != nil {
		return rep, fmt.Errorf("relate: list relationships: %w", err)
	}
	for _, r := range existing {
		have[strings.ToUpper(r.Name)] = true
	}

	exists := map[string]bool{}
	tableExists := func(name string) (bool, error) {
		k := strings.ToUpper(name)
		if v, ok := exists[k]; ok {
			return v, nil
		}
		ok, err := ws.Exists(ctx, name)
		if err != nil {
			return false, fmt.Errorf("relate: check table %s: %w", name, err)
		}
		exists[k] = ok
		return ok, nil
	}

	for _, e := range edges {
		var missing []string
		for _, t := range []string{e.ParentTable, e.ChildTable} {
			ok, err := tableExists(t)
			if err != nil {
				return rep, err
			}
			if !ok {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			rep.Skipped = append(rep.Skipped, Skipped{Edge: e, Missing: missing})
			logf("WARN stage=relate relationship=%s skipped missing=%s", e.Name(), strings.Join(missing, ","))
			continue
		}

		name := e.Name()
		if have[strings.ToUpper(name)] {
			rep.Existing = append(rep.Existing, name)
			continue
		}

		rel := storage.Relationship{
			Name:           name,
			Origin:         e.ParentTable,
			Destination:    e.ChildTable,
			OriginKey:      e.ParentKey,
			DestinationKey: e.ChildKey,
			ForwardLabel:   e.ChildTable,
			BackwardLabel:  "Parent",
			Cardinality:    storage.OneToMany,
		}
		if err := ws.CreateRelationship(ctx, rel); err != nil {
			return rep, fmt.Errorf("relate: create %s (%s.%s -> %s.%s): %w",
				name, e.ParentTable, e.ParentKey, e.ChildTable, e.ChildKey, err)
		}
		have[strings.ToUpper(name)] = true
		rep.Created = append(rep.Created, name)
		logf("stage=relate relationship=%s created", name)
	}

	logf("stage=relate ok created=%d existing=%d skipped=%d duration=%s",
		len(rep.Created), len(rep.Existing), len(rep.Skipped), time.Since(start).Truncate(time.Millisecond))
	return rep, nil
}

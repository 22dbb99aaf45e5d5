package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"cameo/internal/relate"
	"cameo/internal/storage"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Validate checks c and returns every issue found. A run must not start if
// any issue has SeverityError. Call Defaults (or Load) first.
func Validate(c Import) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if len(c.Archives) == 0 {
		add(SeverityError, "archives", "at least one archive is required")
	}
	for i, a := range c.Archives {
		if strings.TrimSpace(a) == "" {
			add(SeverityError, fmt.Sprintf("archives[%d]", i), "empty path")
		} else if !strings.EqualFold(filepath.Ext(a), ".zip") {
			add(SeverityWarning, fmt.Sprintf("archives[%d]", i), "%s does not end in .zip", a)
		}
	}

	switch c.Storage.Kind {
	case "":
		add(SeverityError, "storage.kind", "required")
	case "sqlite":
		if c.Storage.DSN == "" && c.Storage.Name == "" {
			add(SeverityError, "storage.name", "required when storage.dsn is empty")
		}
	default:
		known := false
		for _, k := range storage.Kinds() {
			if k == c.Storage.Kind {
				known = true
			}
		}
		if !known {
			add(SeverityError, "storage.kind", "unsupported kind %q (registered: %v)", c.Storage.Kind, storage.Kinds())
		}
		if c.Storage.DSN == "" && c.Storage.Kind != "memory" {
			add(SeverityError, "storage.dsn", "required for kind %s", c.Storage.Kind)
		}
	}

	if c.Runtime.BatchSize < 0 {
		add(SeverityError, "runtime.batch_size", "must be >= 0")
	}
	if c.Runtime.SkipRelationships && c.Runtime.SkipAttachments {
		add(SeverityWarning, "runtime", "relationships and attachments are both skipped; tables only")
	}

	if c.Profile == nil {
		add(SeverityError, "profile", "missing")
		return out
	}
	out = append(out, validateProfile(*c.Profile)...)
	return out
}

func validateProfile(p Profile) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !strings.HasPrefix(p.FileExtension, ".") {
		add(SeverityError, "profile.file_extension", "must start with '.' (got %q)", p.FileExtension)
	}
	if p.SRID <= 0 {
		add(SeverityError, "profile.srid", "must be > 0")
	}
	if pol, err := p.Policy(); err != nil {
		add(SeverityError, "profile.length_policy", "%v", err)
	} else if err := pol.Validate(); err != nil {
		add(SeverityError, "profile.length_policy", "%v", err)
	}

	for i, s := range p.SpatialTables {
		path := fmt.Sprintf("profile.spatial_tables[%d]", i)
		if s.Table == "" || s.Lat == "" || s.Lon == "" {
			add(SeverityError, path, "table, lat and lon are required")
		}
	}
	for i, a := range p.AttachmentTables {
		path := fmt.Sprintf("profile.attachment_tables[%d]", i)
		if a.Table == "" || a.JoinField == "" {
			add(SeverityError, path, "table and join_field are required")
		}
	}
	if len(p.AttachmentTables) > 0 && p.AttachmentDir == "" {
		add(SeverityError, "profile.attachment_dir", "required when attachment_tables are declared")
	}

	if _, err := relate.Edges(p.Relationships); err != nil {
		add(SeverityError, "profile.relationships", "%v", err)
	}

	enc := strings.ToLower(p.Parser.String("encoding", "utf-8"))
	switch enc {
	case "utf-8", "utf8", "windows-1252", "cp1252", "latin1", "iso-8859-1":
	default:
		add(SeverityError, "profile.parser.encoding", "unsupported encoding %q", enc)
	}
	return out
}

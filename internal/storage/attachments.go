package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AttachColumns is the insert column order for attachment rows.
func AttachColumns() []string {
	fields := AttachTableFields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// AttachRelationship is the relationship EnableAttachments registers between
// table and its attachment table.
func AttachRelationship(table string) Relationship {
	return Relationship{
		Name:           table + AttachRelSuffix,
		Origin:         table,
		Destination:    AttachTableName(table),
		OriginKey:      OIDField,
		DestinationKey: AttachRelField,
		ForwardLabel:   "attachments",
		BackwardLabel:  "object",
		Cardinality:    OneToMany,
	}
}

// LoadAttachment reads a's file and returns it as the payload of an
// attachment row. Rows built from it only differ in REL_OBJECTID, so callers
// read each file once and stamp it per matching row with AttachmentRow.
func LoadAttachment(a Attachment) ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: read attachment %s: %w", a.Path, err)
	}
	return data, nil
}

// AttachmentRow builds one attachment table row in AttachColumns order.
func AttachmentRow(relOID int64, a Attachment, data []byte) []any {
	name := a.Name
	if name == "" {
		name = filepath.Base(a.Path)
	}
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	var title any
	if a.Title != "" {
		title = a.Title
	}
	return []any{
		relOID,
		ct,
		name,
		title,
		int64(len(data)),
		data,
		NewGlobalID(),
	}
}

// NewGlobalID returns a brace-wrapped upper-case UUID, 38 characters long.
func NewGlobalID() string {
	return "{" + strings.ToUpper(uuid.NewString()) + "}"
}

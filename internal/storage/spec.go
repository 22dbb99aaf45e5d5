// Shared workspace types. They live here so that the materializer, the
// relationship and attachment steps, and every backend can import them without
// circular deps.
package storage

import (
	"fmt"
	"strconv"
)

// FieldType is the closed set of column types a workspace stores.
type FieldType int

const (
	FieldOID FieldType = iota
	FieldText
	FieldDate
	FieldInteger
	FieldBlob
	FieldGeometry
)

func (t FieldType) String() string {
	switch t {
	case FieldOID:
		return "OID"
	case FieldText:
		return "Text"
	case FieldDate:
		return "Date"
	case FieldInteger:
		return "Integer"
	case FieldBlob:
		return "Blob"
	case FieldGeometry:
		return "Geometry"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseFieldType is the inverse of FieldType.String.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "OID":
		return FieldOID, nil
	case "Text":
		return FieldText, nil
	case "Date":
		return FieldDate, nil
	case "Integer":
		return FieldInteger, nil
	case "Blob":
		return FieldBlob, nil
	case "Geometry":
		return FieldGeometry, nil
	default:
		return 0, fmt.Errorf("storage: unknown field type %q", s)
	}
}

// Reserved column names every workspace table carries.
const (
	OIDField   = "OBJECTID"
	ShapeField = "SHAPE"
)

// Field is a typed, named, fixed-length column. Length is only meaningful for
// FieldText.
type Field struct {
	Name   string
	Type   FieldType
	Length int
}

// TableKind distinguishes plain tables from geometry-bearing ones.
type TableKind int

const (
	KindTable TableKind = iota
	KindFeature
	KindAttachment
)

func (k TableKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindFeature:
		return "feature"
	case KindAttachment:
		return "attachment"
	default:
		return fmt.Sprintf("TableKind(%d)", int(k))
	}
}

// ParseTableKind is the inverse of TableKind.String.
func ParseTableKind(s string) (TableKind, error) {
	switch s {
	case "table":
		return KindTable, nil
	case "feature":
		return KindFeature, nil
	case "attachment":
		return KindAttachment, nil
	default:
		return 0, fmt.Errorf("storage: unknown table kind %q", s)
	}
}

// TableSpec describes a table to create. The OBJECTID identity column is
// implicit; feature tables also get a SHAPE point column.
type TableSpec struct {
	Name   string
	Kind   TableKind
	SRID   int
	Fields []Field
}

// TableInfo is what ListTables reports.
type TableInfo struct {
	Name string
	Kind TableKind
	SRID int
}

// DefaultSRID is WGS 84, the reference system of CAMEO coordinates.
const DefaultSRID = 4326

// Point is a 2-D point; X is longitude and Y latitude for SRID 4326.
type Point struct {
	X float64
	Y float64
}

// WKT renders p as well-known text.
func (p Point) WKT() string {
	return "POINT (" + strconv.FormatFloat(p.X, 'f', -1, 64) + " " + strconv.FormatFloat(p.Y, 'f', -1, 64) + ")"
}

// RelationshipEdge is one declared parent -> child link.
type RelationshipEdge struct {
	ParentTable string
	ParentKey   string
	ChildTable  string
	ChildKey    string
}

// Name is the relationship name a workspace registers for the edge.
func (e RelationshipEdge) Name() string { return e.ParentTable + "_" + e.ChildTable }

// Relationship is a registered one-to-many link.
type Relationship struct {
	Name           string
	Origin         string
	Destination    string
	OriginKey      string
	DestinationKey string
	ForwardLabel   string
	BackwardLabel  string
	Cardinality    string
}

// Cardinality values.
const (
	OneToMany = "ONE_TO_MANY"
)

// Attachment binds one file to the rows whose join column equals Key.
type Attachment struct {
	Key         string
	Path        string
	Name        string
	ContentType string
	Title       string
}

// AttachResult summarizes an AddAttachments call.
type AttachResult struct {
	Files     int
	Attached  int
	Unmatched int
}

// Attachment table layout.
const (
	AttachSuffix    = "__ATTACH"
	AttachRelSuffix = "__ATTACHREL"
	AttachRelField  = "REL_OBJECTID"
)

// AttachTableName is the companion table holding attachments for table.
func AttachTableName(table string) string { return table + AttachSuffix }

// AttachTableFields is the layout of every attachment table (OBJECTID is the
// implicit identity, used as ATTACHMENTID).
func AttachTableFields() []Field {
	return []Field{
		{Name: AttachRelField, Type: FieldInteger},
		{Name: "CONTENT_TYPE", Type: FieldText, Length: 150},
		{Name: "ATT_NAME", Type: FieldText, Length: 250},
		{Name: "ATT_TITLE", Type: FieldText, Length: 500},
		{Name: "DATA_SIZE", Type: FieldInteger},
		{Name: "DATA", Type: FieldBlob},
		{Name: "GLOBALID", Type: FieldText, Length: 38},
	}
}

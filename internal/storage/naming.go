package storage

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest table or field name any backend accepts
// unchanged (MySQL's 64 character limit is the tightest).
const MaxNameLength = 64

// ValidateFieldName turns an arbitrary header into a safe column name.
//
// Rules:
//   - characters outside [A-Za-z0-9_] become '_'
//   - a leading digit gets an "F" prefix
//   - names are cut to MaxNameLength characters
//   - a blank (empty or whitespace-only) name stays "", which callers treat as
//     "no column"
func ValidateFieldName(s string) string {
	return validateName(s, 'F')
}

// ValidateTableName is ValidateFieldName for table names ("T" prefix).
func ValidateTableName(s string) string {
	return validateName(s, 'T')
}

func validateName(s string, prefix byte) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = string(prefix) + out
	}
	return truncateName(out)
}

// truncateName enforces MaxNameLength while preserving UTF-8 validity.
func truncateName(s string) string {
	if len(s) <= MaxNameLength {
		return s
	}
	cut := MaxNameLength
	for cut > 0 && !utf8.ValidString(s[:cut]) {
		cut--
	}
	return s[:cut]
}

// IsBlankName reports whether a header cell carries no usable name.
func IsBlankName(s string) bool { return strings.TrimSpace(s) == "" }

// IsAttachmentTable reports whether name is an attachment companion table.
func IsAttachmentTable(name string) bool {
	return strings.HasSuffix(strings.ToUpper(name), AttachSuffix)
}

// SameName compares table or field names the way workspaces do.
func SameName(a, b string) bool { return strings.EqualFold(a, b) }

// UniqueName returns base if it is free, otherwise base0, base1, ... up to
// the first name exists reports as free.
func UniqueName(base string, exists func(string) bool) string {
	if !exists(base) {
		return base
	}
	for i := 0; ; i++ {
		name := base + strconv.Itoa(i)
		if !exists(name) {
			return name
		}
	}
}

// RedactDSN renders a DSN as a label safe for logs and output lists:
// scheme, host and path only. Non-URL DSNs collapse to the kind.
func RedactDSN(kind, dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return kind
	}
	return kind + "://" + u.Host + u.Path
}

package storage

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cameo/internal/classify"
)

// DateLayout is how dates render when they land in a text column.
const DateLayout = "2006-01-02"

// Conform converts v to the Go type a column of type f stores. Values that
// cannot be represented become nil. truncated reports text cut to f.Length.
//
// Accepted outputs per type:
//   - FieldText: string
//   - FieldDate: time.Time
//   - FieldInteger, FieldOID: int64
//   - FieldBlob: []byte
//   - FieldGeometry: Point
func Conform(f Field, v any) (out any, truncated bool) {
	if v == nil {
		return nil, false
	}
	switch f.Type {
	case FieldText:
		s, ok := textOf(v)
		if !ok {
			return nil, false
		}
		return truncateRunes(s, f.Length)
	case FieldDate:
		switch x := v.(type) {
		case time.Time:
			return x, false
		case string:
			if d, ok := classify.ParseDate(x); ok {
				return d, false
			}
			if d, err := time.Parse(DateLayout, strings.TrimSpace(x)); err == nil {
				return d, false
			}
		}
		return nil, false
	case FieldInteger, FieldOID:
		switch x := v.(type) {
		case int64:
			return x, false
		case int:
			return int64(x), false
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n, false
			}
		}
		return nil, false
	case FieldBlob:
		switch x := v.(type) {
		case []byte:
			return x, false
		case string:
			return []byte(x), false
		}
		return nil, false
	case FieldGeometry:
		if p, ok := v.(Point); ok {
			return p, false
		}
		return nil, false
	default:
		return nil, false
	}
}

func textOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case time.Time:
		return x.Format(DateLayout), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case Point:
		return x.WKT(), true
	case []byte:
		return string(x), true
	default:
		return "", false
	}
}

func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

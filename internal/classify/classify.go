// Package classify decides what a raw delimited cell looks like.
//
// The functions are pure and allocation-light; they are called once per cell
// during schema inference and again per Date cell during loading.
package classify

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. The 2-digit year layout goes first so that
// "1/2/14" resolves to 2014 rather than the year 14.
var dateLayouts = []string{
	"1/2/06",
	"1/2/2006",
}

// IsDate reports whether value is a supported month/day/year date.
//
// wasNonEmpty is true whenever a classification was attempted (value != ""),
// including when the value turned out not to be a date. Callers use it to lock
// a column's type on the first non-empty value.
func IsDate(value string) (isDate bool, wasNonEmpty bool) {
	if value == "" {
		return false, false
	}
	_, ok := parseDate(value)
	return ok, true
}

// ParseDate parses value with the same rules as IsDate.
func ParseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	return parseDate(value)
}

func parseDate(value string) (time.Time, bool) {
	if strings.Count(value, "/") != 2 {
		return time.Time{}, false
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsFloat reports whether value parses as a decimal number.
// Surrounding whitespace is tolerated; thousands separators are not.
func IsFloat(value string) bool {
	_, ok := ParseFloat(value)
	return ok
}

// ParseFloat is IsFloat returning the parsed value.
func ParseFloat(value string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

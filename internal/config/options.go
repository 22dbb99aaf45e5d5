package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options is a free-form option bag (parser settings and the like). Values
// come from JSON or YAML, so numbers may arrive as float64 or int and
// booleans as strings; the getters accept all of those.
type Options map[string]any

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// Bool returns key as a bool, or def when absent or unparseable.
func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// Int returns key as an int, or def.
func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// String returns key as a string, or def.
func (o Options) String(key, def string) string {
	switch v := o.Any(key).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Rune returns the first rune of a string option, or def. "\t" and "tab"
// both mean a tab.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok || s == "" {
		return def
	}
	if s == `\t` || strings.EqualFold(s, "tab") {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// StringMap returns key as a map[string]string. Non-string values are
// formatted with fmt.Sprint.
func (o Options) StringMap(key string) map[string]string {
	out := map[string]string{}
	switch v := o.Any(key).(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, s := range v {
			out[k] = fmt.Sprint(s)
		}
	}
	return out
}

// Package strings holds the string helpers modules share: boot-time
// assertions for module names and route prefixes, and caps for logged
// payloads and stored text
package strings

import std "strings"

// IfEmpty returns def when in is empty, otherwise in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// MustString returns s when it has non-whitespace content and panics
// otherwise. name identifies what was missing in the panic message
func MustString(s, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// MustPrefix normalizes a mount path like /beers or /admin to a single
// leading slash with no trailing slash. The bare root is never a valid
// module prefix, so it panics
func MustPrefix(s string) string {
	s = "/" + std.Trim(std.TrimSpace(s), " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}

// Truncate caps s at max bytes, appending a marker so log readers know the
// payload continues. Used when logging raw queue bodies
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}

// ClampRunes caps s at max runes with no marker. Storage caps count
// characters, not bytes, so this never splits a multibyte rune
func ClampRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

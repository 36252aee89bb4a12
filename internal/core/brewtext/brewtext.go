// Package brewtext provides deterministic text processing for merchant beer
// descriptions: HTML stripping, Unicode normalization, ABV extraction, and
// content hashing. Everything here is pure CPU work safe for concurrent use
// Pipeline order for Normalize
// 1 Control-byte sanitize and UTF-8 repair
// 2 Unicode NFKC normalization
// 3 Remove zero-width and format characters
// 4 Width fold fullwidth to ASCII
// 5 Collapse whitespace runs and trim
package brewtext

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// pool of fresh transformer chains; order mirrors the documented pipeline.
// Case and accents are preserved: descriptions are display text, not
// detector input
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)), // strip format chars ZWJ ZWNJ FEFF etc
			width.Fold,                         // map fullwidth forms to ASCII
		)
	},
}

// Normalize returns the normalized form of s following the pipeline above
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = sanitize(s)
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	return collapseSpaces(ns)
}

// sanitize drops NUL, ASCII controls except \n \r \t, DEL, and C1 controls.
// Fast path returns s unchanged when no cleaning is needed
func sanitize(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			clean = false
			break
		}
		if b == 0x7F {
			clean = false
			break
		}
	}
	if clean && !strings.ContainsFunc(s, func(r rune) bool { return r >= 0x80 && r <= 0x9F }) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7F:
			// drop
		case r >= 0x80 && r <= 0x9F:
			// drop C1 controls
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}

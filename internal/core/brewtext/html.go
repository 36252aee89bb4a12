package brewtext

import (
	"html"
	"regexp"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup from a merchant description: tags become spaces,
// entities are decoded, whitespace runs collapse. Tags are stripped before
// entity decoding so literal &lt;b&gt; text survives as "<b>"
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return collapseSpaces(s)
}

// CleanFallback is the deterministic cleaning path used when no language
// model is available or its output is rejected: strip markup, then normalize
func CleanFallback(s string) string {
	return Normalize(StripHTML(s))
}

package service

import (
	"strings"
	"unicode/utf8"

	"taplist/internal/core/brewtext"
	cleandom "taplist/internal/services/cleanup/domain"
)

// knownPreambles are model narrations stripped before validation
var knownPreambles = []string{
	"here is the cleaned text:",
	"here is the cleaned description:",
	"here's the cleaned text:",
	"here's the cleaned description:",
	"cleaned text:",
	"cleaned description:",
	"sure, here is the cleaned text:",
}

// Length window for adopting a model rewrite, relative to the original
const (
	minLengthRatio = 0.7
	maxLengthRatio = 1.1
)

// CleanDescriptionSafely validates model output against the original
// description. The ABV is extracted exactly once, from the original; the
// model text is adopted only when it survives the preamble strip, keeps an
// ABV the original had, and stays inside the length window. Every rejection
// keeps the original verbatim, so re-running a discarded cleanup always
// produces the same outcome
func CleanDescriptionSafely(original, aiText string) cleandom.CleanOutcome {
	out := cleandom.CleanOutcome{Cleaned: original, UsedOriginal: true}
	if abv, ok := brewtext.ExtractABV(original); ok {
		v := abv
		out.ExtractedABV = &v
	}

	candidate := stripPreamble(strings.TrimSpace(aiText))
	if candidate == "" || original == "" {
		return out
	}
	if out.ExtractedABV != nil {
		if _, ok := brewtext.ExtractABV(candidate); !ok {
			return out
		}
	}
	ratio := float64(utf8.RuneCountInString(candidate)) / float64(utf8.RuneCountInString(original))
	if ratio < minLengthRatio || ratio > maxLengthRatio {
		return out
	}

	out.Cleaned = candidate
	out.UsedOriginal = false
	return out
}

// stripPreamble removes one known narration prefix and the whitespace after it
func stripPreamble(s string) string {
	for _, p := range knownPreambles {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

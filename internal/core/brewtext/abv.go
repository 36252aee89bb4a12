package brewtext

import (
	"regexp"
	"sort"
	"strconv"
)

// MaxABV is the highest alcohol-by-volume accepted as a plausible beer
// reading. Values above it are treated as noise (years, IBUs, marketing copy)
const MaxABV = 70.0

// Candidate patterns, each capturing the numeric part. A value is only a
// candidate when the surrounding text marks it as a percentage or labels it
// ABV; bare numbers never match
var (
	rePercent   = regexp.MustCompile(`\b(\d{1,3}(?:\.\d+)?)\s*%`)
	reABVPrefix = regexp.MustCompile(`(?i)\babv\.?:?\s*(\d{1,3}(?:\.\d+)?)\b`)
	reABVSuffix = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)\s*%?\s*abv\b`)
)

type abvCandidate struct {
	pos int
	val float64
}

// ExtractABV scans text for an alcohol-by-volume reading and returns the
// first plausible one in text order. Markup is stripped first so values
// inside attributes or entities are read the same way a human would see
// them. Candidates outside [0, MaxABV] are skipped, which lets a later
// in-range reading win ("Rated 90% ... 5.5% ABV" yields 5.5)
func ExtractABV(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	plain := StripHTML(text)
	if plain == "" {
		return 0, false
	}

	var cands []abvCandidate
	for _, re := range []*regexp.Regexp{rePercent, reABVPrefix, reABVSuffix} {
		for _, m := range re.FindAllStringSubmatchIndex(plain, -1) {
			// m[2]:m[3] is the first capture group
			if m[2] < 0 {
				continue
			}
			raw := plain[m[2]:m[3]]
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v > 100 {
				continue
			}
			cands = append(cands, abvCandidate{pos: m[2], val: v})
		}
	}
	if len(cands) == 0 {
		return 0, false
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].pos < cands[j].pos })
	for _, c := range cands {
		if c.val >= 0 && c.val <= MaxABV {
			return c.val, true
		}
	}
	return 0, false
}

var reNumberToken = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// ParseABVAnswer reads a model's reply to an ABV question: the first numeric
// token, accepted when within [0, MaxABV]. "unknown" or prose without a
// number yields false
func ParseABVAnswer(s string) (float64, bool) {
	m := reNumberToken.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v < 0 || v > MaxABV {
		return 0, false
	}
	return v, true
}

// Package parse implements the command-extraction engine for doula.
//
// The engine turns a free-form utterance about a health-tracking event
// into a typed field set without an LLM or external API:
// - Appointment commands ("schedule a checkup tomorrow at 10am in city clinic")
// - Symptom logging ("log symptom nausea for week 12 note worse in morning")
// - Weight logging ("log my weight as 62.5 kg")
//
// Every extractor is an ordered cascade of rules evaluated first-match-wins,
// followed by field-specific post-processing. Extraction is deterministic:
// the same utterance always yields the same fields.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// rule is a single extraction pattern. Group 1 holds the field value;
// rules that carry embedded sub-captures document their group layout at
// the table that defines them.
type rule struct {
	re   *regexp.Regexp
	name string
}

// Normalize case-folds and trims an utterance. ASCII folding is enough:
// the deployed pattern vocabulary is ASCII English. Normalize is
// idempotent.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// firstMatch evaluates rules strictly in list order and returns the
// trimmed primary capture of the first rule that matches. Order encodes
// priority: later rules are fallbacks for earlier, more specific ones.
func firstMatch(rules []rule, text string) (string, bool) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if len(m) >= 2 {
			v := strings.TrimSpace(m[1])
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// firstSubmatch is firstMatch for rules with embedded sub-captures: it
// returns every capture group of the first matching rule.
func firstSubmatch(rules []rule, text string) ([]string, bool) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(text)
		if len(m) >= 2 && strings.TrimSpace(m[1]) != "" {
			return m, true
		}
	}
	return nil, false
}

// firstMatchSpan is firstMatch plus the [start,end) byte span of the
// primary capture. The location disambiguator needs the span to truncate
// the working text past a rejected match.
func firstMatchSpan(rules []rule, text string) (value string, end int, ok bool) {
	for _, r := range rules {
		idx := r.re.FindStringSubmatchIndex(text)
		if len(idx) >= 4 && idx[2] >= 0 {
			v := strings.TrimSpace(text[idx[2]:idx[3]])
			if v != "" {
				return v, idx[3], true
			}
		}
	}
	return "", 0, false
}

var (
	weekScanRE = regexp.MustCompile(`(?:for\s+week|week)\s+(\d+)`)
	noteScanRE = regexp.MustCompile(`\b(?:note|comment)\s+(.+)$`)
)

// scanWeek finds a "week N" / "for week N" mention anywhere in the text.
// Returns 0 when absent; week numbers are always positive.
func scanWeek(text string) int {
	m := weekScanRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// scanNote finds a trailing "note ..." / "comment ..." mention.
func scanNote(text string) string {
	m := noteScanRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// containsAny reports whether text contains any of the given substrings.
func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

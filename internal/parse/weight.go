package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedWeight holds the fields extracted from a weight logging command.
// Weight 0 and week 0 mean absent.
type ParsedWeight struct {
	Weight float64
	Week   int
	Note   string
}

// weightRules is the weight cascade. Group layout: 1 = numeric weight,
// 2 = optional week number. Unit suffixes are recognized but the value is
// stored as-is regardless of unit; mixed-unit records are a known
// limitation.
var weightRules = []rule{
	{
		re:   regexp.MustCompile(`(?:log|record|add|my\s+weight\s+as|weight\s+is|weight)\s*(\d+(?:\.\d+)?)\s*(?:kg|kilos?|kgs|lbs?|pounds?)?`),
		name: "verb_led",
	},
	{
		re:   regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:kg|kilos?|kgs|lbs?|pounds?)(?:\s+for\s+week\s+(\d+))?`),
		name: "bare_unit",
	},
}

var weightNoteRE = regexp.MustCompile(`\b(?:note|comment|felt|feel|feeling)\b\s+(.+)$`)

// ExtractWeight parses a weight logging command. Input must already be
// normalized. Week and note fall back to independent scans, identical to
// the symptom extractor.
func ExtractWeight(text string) ParsedWeight {
	var p ParsedWeight

	if m, ok := firstSubmatch(weightRules, text); ok {
		if w, err := strconv.ParseFloat(m[1], 64); err == nil && w > 0 {
			p.Weight = w
		}
		if len(m) > 2 && m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
				p.Week = n
			}
		}
	}

	if p.Week == 0 {
		p.Week = scanWeek(text)
	}
	if m := weightNoteRE.FindStringSubmatch(text); len(m) >= 2 {
		p.Note = strings.TrimSpace(m[1])
	}
	return p
}

package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedSymptom holds the fields extracted from a symptom logging
// command. Week 0 and empty strings mean absent.
type ParsedSymptom struct {
	Symptom string
	Week    int
	Note    string
}

// symptomRules is the symptom cascade. Group layout for both rules:
// 1 = symptom description, 2 = optional week number, 3 = optional note.
// The noun-led rule comes first so "log symptom nausea" captures "nausea"
// rather than "symptom nausea"; the verb-led rule is the broad fallback.
var symptomRules = []rule{
	{
		re:   regexp.MustCompile(`symptoms?\s+(.+?)(?:\s+for\s+week\s+(\d+)|\s+week\s+(\d+))?(?:\s+note\s+(.+))?$`),
		name: "noun_led",
	},
	{
		re:   regexp.MustCompile(`(?:log|record|add|suffering\s+from|had|have|felt|feel|feeling)\s+(.+?)(?:\s+for\s+week\s+(\d+)|\s+since\s+.*|\s+on\s+.*)?(?:\s+note\s+(.+))?$`),
		name: "verb_led",
	},
}

// genericSymptomWords are command nouns and articles that carry no
// symptom information on their own ("log symptom", "add my symptoms").
var genericSymptomWords = map[string]bool{
	"symptom":  true,
	"symptoms": true,
	"a":        true,
	"an":       true,
	"the":      true,
	"my":       true,
}

// ExtractSymptom parses a symptom logging command. Input must already be
// normalized. Week and note fall back to independent scans of the full
// text when the cascade's embedded sub-captures come up empty.
func ExtractSymptom(text string) ParsedSymptom {
	var p ParsedSymptom

	if m, ok := firstSubmatch(symptomRules, text); ok {
		p.Symptom = strings.TrimSpace(m[1])
		if isGenericSymptom(p.Symptom) {
			p.Symptom = ""
		}
		for _, g := range m[2:] {
			if g == "" {
				continue
			}
			if n, err := strconv.Atoi(g); err == nil && n > 0 && p.Week == 0 {
				p.Week = n
			} else if p.Note == "" && !isNumeric(g) {
				p.Note = strings.TrimSpace(g)
			}
		}
	}

	if p.Week == 0 {
		p.Week = scanWeek(text)
	}
	if p.Note == "" {
		p.Note = scanNote(text)
	}
	return p
}

func isGenericSymptom(symptom string) bool {
	for _, w := range strings.Fields(symptom) {
		if !genericSymptomWords[w] {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

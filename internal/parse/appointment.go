package parse

import (
	"regexp"
	"strings"
)

// ParsedAppointment holds the raw fields extracted from an appointment
// command before canonicalization. Empty string means the field is absent.
type ParsedAppointment struct {
	Title    string
	DateRaw  string
	TimeRaw  string
	Location string
}

// titleRules is the title cascade: action-verb-led phrase, then noun-led
// phrase, then a bare keyword-category match as last resort.
var titleRules = []rule{
	{
		re: regexp.MustCompile(`(?:make|book|schedule|create|set|arrange|fix)\s+(?:(?:a|an|the)\s+)?(?:appointment\s+for\s+)?(.+?)(?:\s+on\s+|\s+at\s+|\s+in\s+|\s*$)`),
		name: "verb_led",
	},
	{
		re:   regexp.MustCompile(`(?:appointment|meeting|visit)\s+(?:for|to)\s+(.+?)(?:\s+on\s+|\s+at\s+|\s+in\s+|\s*$)`),
		name: "noun_led",
	},
	{
		re:   regexp.MustCompile(`(?:make|book|schedule|create|set|arrange|fix)\s+.*?\b(appointment|meeting|visit|checkup|scan|ultrasound|doctor|gynecologist|sonography)\b`),
		name: "keyword_category",
	},
}

// genericTitles are nouns that name the command itself rather than the
// appointment. A capture consisting of nothing else carries no
// information and is treated as absent.
var genericTitles = map[string]bool{
	"appointment": true,
	"meeting":     true,
	"visit":       true,
	"a":           true,
	"an":          true,
	"the":         true,
}

// appointmentTypes is the known-type vocabulary scanned as a literal
// substring match when every title rule misses.
var appointmentTypes = []string{
	"ultrasound", "checkup", "doctor", "prenatal", "blood test", "scan", "sonography",
}

// dateRules is the date cascade: preposition-led keyword expressions,
// preposition-led numeric forms, then bare tokens anywhere in the text.
var dateRules = []rule{
	{
		re:   regexp.MustCompile(`(?:on|for|at)\s+(today|tomorrow|next\s+week|monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|wed|thu|thurs|fri|sat|sun)\b`),
		name: "preposition_keyword",
	},
	{
		re:   regexp.MustCompile(`(?:on|for|at)\s+(\d{1,2}/\d{1,2}(?:/\d{4})?|\d{4}-\d{2}-\d{2})`),
		name: "preposition_numeric",
	},
	{
		re:   regexp.MustCompile(`\b(today|tomorrow|next\s+week|monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tue|wed|thu|thurs|fri|sat|sun|\d{1,2}/\d{1,2}(?:/\d{4})?|\d{4}-\d{2}-\d{2})\b`),
		name: "bare_token",
	},
}

// timeRules is the time cascade: preposition-led expressions then bare ones.
var timeRules = []rule{
	{
		re:   regexp.MustCompile(`(?:at|for)\s+(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm)|morning|afternoon|evening|night)\b`),
		name: "preposition_time",
	},
	{
		re:   regexp.MustCompile(`\b(\d{1,2}:\d{2}\s*(?:am|pm)?|\d{1,2}\s*(?:am|pm)|morning|afternoon|evening|night)\b`),
		name: "bare_time",
	},
}

// ExtractAppointment parses an appointment command into its raw fields.
// Input must already be normalized.
func ExtractAppointment(text string) ParsedAppointment {
	return ParsedAppointment{
		Title:    extractTitle(text),
		DateRaw:  extractDate(text),
		TimeRaw:  extractTime(text),
		Location: extractLocation(text),
	}
}

func extractTitle(text string) string {
	title, ok := firstMatch(titleRules, text)
	if ok && !isGenericTitle(title) {
		return title
	}

	// Last resort: synthesize a title from the known-type vocabulary.
	for _, typ := range appointmentTypes {
		if strings.Contains(text, typ) {
			return capitalizeWords(typ) + " Appointment"
		}
	}
	return ""
}

// isGenericTitle reports whether a captured title is only command nouns
// and articles ("appointment", "the meeting").
func isGenericTitle(title string) bool {
	for _, w := range strings.Fields(title) {
		if !genericTitles[w] {
			return false
		}
	}
	return true
}

func extractDate(text string) string {
	v, _ := firstMatch(dateRules, text)
	return v
}

func extractTime(text string) string {
	v, _ := firstMatch(timeRules, text)
	return v
}

// capitalizeWords upper-cases the first letter of each ASCII word.
func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

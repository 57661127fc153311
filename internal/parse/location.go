package parse

import (
	"regexp"
	"strings"
)

// locationRules is the location cascade: a generic preposition-led phrase
// and a facility-noun-led phrase. The generic phrase is greedy and may
// capture a temporal token; extractLocation resolves that.
var locationRules = []rule{
	{
		re:   regexp.MustCompile(`(?:\bin\s+|\bat\s+|\blocation\s+)(.+?)(?:\s+on\s+|\s+at\s+|\s+in\s+|\s+for\s+|\s+today\b|\s+tomorrow\b|\s*$)`),
		name: "preposition_phrase",
	},
	{
		re:   regexp.MustCompile(`(?:hospital|clinic|office|center|chamber|facility|ward)\s+(.+?)(?:\s+on\s+|\s+at\s+|\s*$)`),
		name: "facility_phrase",
	},
}

// locationRejectWords is the fixed rejection vocabulary: a location
// capture containing any of these is a temporal false positive.
var locationRejectWords = []string{
	"today", "tomorrow", "morning", "afternoon", "evening", "night",
	"next week", "am", "pm",
}

// extractLocation runs the location disambiguation loop.
//
// Scan: evaluate the cascade against the current working text and take
// the first capture. Reject-and-retry: a capture containing rejection
// vocabulary is a false positive; truncate the working text to everything
// past the capture span and rescan from the top of the cascade. Accept: a
// clean capture is the location. Exhausted: no rule matches, location is
// absent.
//
// Each retry strictly shrinks the working text, so the loop terminates;
// the iteration cap is defense against pathological input, not a
// functional bound.
func extractLocation(text string) string {
	remaining := text
	maxScans := len(strings.Fields(text)) + 1

	for i := 0; i < maxScans; i++ {
		capture, end, ok := firstMatchSpan(locationRules, remaining)
		if !ok {
			return ""
		}
		if containsAny(capture, locationRejectWords) {
			remaining = strings.TrimSpace(remaining[end:])
			continue
		}
		return capture
	}
	return ""
}

package parse

import (
	"strings"
	"testing"
)

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		// Preposition-led phrase.
		{"make appointment at apollo hospital on friday", "apollo hospital"},
		{"schedule checkup location room 4b", "room 4b"},
		// Facility-noun-led phrase.
		{"clinic greenview on monday", "greenview"},
		// Temporal capture is rejected and the scan resumes past it.
		{"schedule a checkup tomorrow at 10am in city clinic", "city clinic"},
		{"book scan at 9am at sunrise clinic", "sunrise clinic"},
		// Only temporal candidates: location is absent.
		{"visit in the morning", ""},
		{"schedule checkup tomorrow", ""},
		{"log symptom nausea", ""},
	}
	for _, tt := range tests {
		if got := extractLocation(tt.in); got != tt.want {
			t.Errorf("extractLocation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// The disambiguator must never return a value drawn from the rejection
// vocabulary, whatever the input shape.
func TestExtractLocationNeverTemporal(t *testing.T) {
	inputs := []string{
		"schedule a checkup tomorrow at 10am in city clinic",
		"book at 9am at 10pm at night",
		"make appointment in the morning in the evening",
		"at today at tomorrow at next week",
		"in am in pm",
	}
	for _, in := range inputs {
		got := extractLocation(in)
		if got == "" {
			continue
		}
		for _, w := range locationRejectWords {
			if strings.Contains(got, w) {
				t.Errorf("extractLocation(%q) = %q, contains rejected token %q", in, got, w)
			}
		}
	}
}

// Termination: the loop is bounded by token count even for adversarial
// repetitions of preposition + temporal token.
func TestExtractLocationTerminates(t *testing.T) {
	in := strings.TrimSpace(strings.Repeat("at 9am ", 200))
	if got := extractLocation(in); got != "" {
		t.Errorf("extractLocation = %q, want absent", got)
	}
}

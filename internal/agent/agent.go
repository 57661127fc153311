// Package agent routes chat utterances to the right record family,
// extracts structured fields, and produces user-facing reply strings.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lunahealth/doula/internal/parse"
	"github.com/lunahealth/doula/internal/store"
)

// WeightPoint is one historical weight reading.
type WeightPoint struct {
	Week   int
	Weight float64
}

// UserContext carries the caller's current pregnancy state. All fields
// are optional; a nil UserContext is tolerated everywhere.
type UserContext struct {
	CurrentWeek   int
	Weight        float64
	WeightHistory []WeightPoint
}

// Agent turns utterances into store writes and reply strings.
type Agent struct {
	store store.Store
	now   func() time.Time
}

// New creates an agent backed by the given store.
func New(st store.Store) *Agent {
	return &Agent{store: st, now: time.Now}
}

// Appointment creation verbs. "log", "record" and "add" are shared with
// the symptom family and handled after it.
var appointmentVerbs = []string{
	"make", "schedule", "book", "create", "set", "arrange", "fix",
}

var logTriggers = []string{"log", "record", "add"}

// Handle routes an utterance. Weight wins when the weight keyword and a
// digit are both present, then symptom, then appointment; log/record/add
// without a better match default to symptom logging; anything else is a
// read-only listing of whichever record family the query names.
func (a *Agent) Handle(ctx context.Context, query string, uc *UserContext) string {
	if strings.TrimSpace(query) == "" {
		return "Invalid query. Please provide a valid string."
	}

	lower := parse.Normalize(query)

	switch {
	case strings.Contains(lower, "weight") && containsDigit(lower):
		return a.logWeight(ctx, lower, uc)
	case strings.Contains(lower, "symptom"):
		// A bare mention of symptoms without a logging verb or an
		// extractable description reads the log instead of writing it.
		if containsAny(lower, logTriggers) || parse.ExtractSymptom(lower).Symptom != "" {
			return a.logSymptom(ctx, lower, uc)
		}
		return a.listSymptoms(ctx, uc)
	case containsAny(lower, appointmentVerbs):
		return a.createAppointment(ctx, query, lower)
	case strings.Contains(lower, "appointment"):
		// "appointment" without a creation verb only creates when the
		// utterance actually describes one; otherwise it is a listing.
		if parse.ExtractAppointment(lower).Title != "" {
			return a.createAppointment(ctx, query, lower)
		}
		return a.listAppointments(ctx, uc)
	case strings.Contains(lower, "weight"):
		// Weight mentioned but no number to log: show the records.
		return a.listWeights(ctx, uc)
	case containsAny(lower, logTriggers):
		return a.logSymptom(ctx, lower, uc)
	default:
		return a.listAppointments(ctx, uc)
	}
}

func (a *Agent) createAppointment(ctx context.Context, query, lower string) string {
	parsed := parse.ExtractAppointment(lower)
	if parsed.Title == "" {
		return "❌ Could not understand the appointment details. Please specify what type of appointment you want to schedule."
	}

	date, ok := parse.NormalizeDate(parsed.DateRaw, a.now())
	if !ok {
		// Unresolvable or missing dates default to tomorrow.
		date = a.now().AddDate(0, 0, 1).Format("2006-01-02")
	}
	timeOfDay := parse.NormalizeTime(parsed.TimeRaw)

	appt := &store.Appointment{
		Title:    parsed.Title,
		Content:  "Appointment created via chat: " + query,
		Date:     date,
		Time:     timeOfDay,
		Location: parsed.Location,
	}
	if _, err := a.store.CreateAppointment(ctx, appt); err != nil {
		return "❌ Failed to create appointment. Please try again."
	}
	return fmt.Sprintf("✅ Appointment '%s' has been scheduled for %s at %s", parsed.Title, date, timeOfDay)
}

func (a *Agent) logSymptom(ctx context.Context, lower string, uc *UserContext) string {
	parsed := parse.ExtractSymptom(lower)
	if parsed.Symptom == "" {
		return "❌ Could not understand the symptom description. Please specify what symptom you're experiencing."
	}

	entry := &store.SymptomEntry{
		Week:    defaultWeek(parsed.Week, uc),
		Symptom: parsed.Symptom,
		Note:    defaultNote(parsed.Note),
	}
	if _, err := a.store.CreateSymptomEntry(ctx, entry); err != nil {
		return "❌ Failed to log symptom. Please try again."
	}
	return fmt.Sprintf("✅ Symptom '%s' has been logged for week %d", entry.Symptom, entry.Week)
}

func (a *Agent) logWeight(ctx context.Context, lower string, uc *UserContext) string {
	parsed := parse.ExtractWeight(lower)
	if parsed.Weight == 0 {
		return "❌ Could not understand the weight value. Please specify your weight in kg."
	}

	entry := &store.WeightEntry{
		Week:   defaultWeek(parsed.Week, uc),
		Weight: parsed.Weight,
		Note:   defaultNote(parsed.Note),
	}
	if _, err := a.store.CreateWeightEntry(ctx, entry); err != nil {
		return "❌ Failed to log weight. Please try again."
	}
	return fmt.Sprintf("✅ Weight of %gkg has been logged for week %d", entry.Weight, entry.Week)
}

func (a *Agent) listAppointments(ctx context.Context, uc *UserContext) string {
	rows, err := a.store.ListAppointments(ctx)
	if err != nil {
		return fmt.Sprintf("Error retrieving appointments: %v", err)
	}
	if len(rows) == 0 {
		return "No appointments found."
	}

	var parts []string
	if uc != nil {
		parts = append(parts, fmt.Sprintf("Current Status: You are in week %d of pregnancy.", uc.CurrentWeek), "")
	}
	parts = append(parts, "Your Appointments:")
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("• %s on %s at %s (%s)", r.Title, r.Date, r.Time, r.Status))
	}
	return strings.Join(parts, "\n")
}

func (a *Agent) listSymptoms(ctx context.Context, uc *UserContext) string {
	rows, err := a.store.ListSymptoms(ctx)
	if err != nil {
		return fmt.Sprintf("Error retrieving symptoms: %v", err)
	}
	if len(rows) == 0 {
		return "No symptoms found."
	}

	var parts []string
	if uc != nil {
		parts = append(parts, fmt.Sprintf("Current Status: You are in week %d of pregnancy.", uc.CurrentWeek), "")
	}
	parts = append(parts, "Your Symptom Tracking:")
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("• Week %d: %s - %s", r.Week, r.Symptom, r.Note))
	}
	return strings.Join(parts, "\n")
}

func (a *Agent) listWeights(ctx context.Context, uc *UserContext) string {
	rows, err := a.store.ListWeights(ctx)
	if err != nil {
		return fmt.Sprintf("Error retrieving weight records: %v", err)
	}
	if len(rows) == 0 {
		return "No weight records available."
	}

	var parts []string
	if uc != nil {
		parts = append(parts, fmt.Sprintf("Current Status: You are in week %d with a weight of %g kg.", uc.CurrentWeek, uc.Weight))
		if line := weightTrend(uc.WeightHistory); line != "" {
			parts = append(parts, line)
		}
	}
	parts = append(parts, "", "Weight Records:")
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("Week %d: %gkg - %s", r.Week, r.Weight, r.Note))
	}
	return strings.Join(parts, "\n")
}

// weightTrend summarizes the change between the last two readings.
func weightTrend(history []WeightPoint) string {
	if len(history) < 2 {
		return ""
	}
	change := history[len(history)-1].Weight - history[len(history)-2].Weight
	switch {
	case change > 0:
		return fmt.Sprintf("Weight trend: You've gained %.1f kg recently.", change)
	case change < 0:
		return fmt.Sprintf("Weight trend: You've lost %.1f kg recently.", -change)
	default:
		return "Weight trend: Your weight has been stable recently."
	}
}

// defaultWeek resolves the week for a log entry: explicit week, then the
// user's current week, then week 1.
func defaultWeek(parsed int, uc *UserContext) int {
	if parsed > 0 {
		return parsed
	}
	if uc != nil && uc.CurrentWeek > 0 {
		return uc.CurrentWeek
	}
	return 1
}

func defaultNote(note string) string {
	if note == "" {
		return "Logged via chat"
	}
	return note
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func containsDigit(text string) bool {
	for _, r := range text {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

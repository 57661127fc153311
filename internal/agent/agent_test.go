package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lunahealth/doula/internal/store"
)

var testNow = time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)

func newTestAgent(t *testing.T) (*Agent, store.Store) {
	t.Helper()
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	a := New(st)
	a.now = func() time.Time { return testNow }
	return a, st
}

func TestHandleInvalidQuery(t *testing.T) {
	a, _ := newTestAgent(t)
	want := "Invalid query. Please provide a valid string."
	for _, q := range []string{"", "   ", "\t\n"} {
		if got := a.Handle(context.Background(), q, nil); got != want {
			t.Errorf("Handle(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestHandleCreatesAppointment(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	got := a.Handle(ctx, "book appointment for ultrasound on 9/2 at 2pm in city clinic", nil)
	want := "✅ Appointment 'ultrasound' has been scheduled for 2026-09-02 at 14:00"
	if got != want {
		t.Fatalf("Handle = %q, want %q", got, want)
	}

	rows, err := st.ListAppointments(ctx)
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stored %d appointments, want 1", len(rows))
	}
	appt := rows[0]
	if appt.Location != "city clinic" {
		t.Errorf("Location = %q, want city clinic", appt.Location)
	}
	if appt.Status != store.StatusPending {
		t.Errorf("Status = %q, want %q", appt.Status, store.StatusPending)
	}
	if !strings.HasPrefix(appt.Content, "Appointment created via chat: ") {
		t.Errorf("Content = %q", appt.Content)
	}
}

func TestHandleAppointmentDefaultsToTomorrow(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	got := a.Handle(ctx, "schedule a blood test", nil)
	want := "✅ Appointment 'blood test' has been scheduled for 2026-08-29 at 09:00"
	if got != want {
		t.Fatalf("Handle = %q, want %q", got, want)
	}

	rows, _ := st.ListAppointments(ctx)
	if len(rows) != 1 || rows[0].Location != "TBD" {
		t.Errorf("rows = %+v, want one appointment at TBD", rows)
	}
}

func TestHandleRejectsBareAppointment(t *testing.T) {
	a, _ := newTestAgent(t)
	got := a.Handle(context.Background(), "book appointment", nil)
	want := "❌ Could not understand the appointment details. Please specify what type of appointment you want to schedule."
	if got != want {
		t.Errorf("Handle = %q, want %q", got, want)
	}
}

func TestHandleLogsSymptom(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	got := a.Handle(ctx, "log symptom nausea for week 12 note worse in morning", nil)
	want := "✅ Symptom 'nausea' has been logged for week 12"
	if got != want {
		t.Fatalf("Handle = %q, want %q", got, want)
	}

	rows, err := st.ListSymptoms(ctx)
	if err != nil {
		t.Fatalf("ListSymptoms: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stored %d symptoms, want 1", len(rows))
	}
	if rows[0].Symptom != "nausea" || rows[0].Week != 12 || rows[0].Note != "worse in morning" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestHandleSymptomWeekDefaults(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	// User context supplies the week when the utterance has none.
	got := a.Handle(ctx, "log headache", &UserContext{CurrentWeek: 16})
	if got != "✅ Symptom 'headache' has been logged for week 16" {
		t.Errorf("Handle = %q", got)
	}

	// Without context, week falls back to 1.
	got = a.Handle(ctx, "record cramps", nil)
	if got != "✅ Symptom 'cramps' has been logged for week 1" {
		t.Errorf("Handle = %q", got)
	}

	rows, _ := st.ListSymptoms(ctx)
	for _, r := range rows {
		if r.Note != "Logged via chat" {
			t.Errorf("note = %q, want default", r.Note)
		}
	}
}

func TestHandleRejectsUnparseableSymptom(t *testing.T) {
	a, _ := newTestAgent(t)
	got := a.Handle(context.Background(), "log symptom", nil)
	want := "❌ Could not understand the symptom description. Please specify what symptom you're experiencing."
	if got != want {
		t.Errorf("Handle = %q, want %q", got, want)
	}
}

func TestHandleLogsWeight(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	got := a.Handle(ctx, "log my weight as 62.5 kg", &UserContext{CurrentWeek: 18})
	want := "✅ Weight of 62.5kg has been logged for week 18"
	if got != want {
		t.Fatalf("Handle = %q, want %q", got, want)
	}

	rows, err := st.ListWeights(ctx)
	if err != nil {
		t.Fatalf("ListWeights: %v", err)
	}
	if len(rows) != 1 || rows[0].Weight != 62.5 || rows[0].Week != 18 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestHandleRejectsWeightWithoutValue(t *testing.T) {
	a, _ := newTestAgent(t)
	// Digit present but not attached to a weight amount.
	got := a.Handle(context.Background(), "weight for week 12", nil)
	want := "❌ Could not understand the weight value. Please specify your weight in kg."
	if got != want {
		t.Errorf("Handle = %q, want %q", got, want)
	}
}

func TestHandleListsAppointments(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	if got := a.Handle(ctx, "what's coming up", nil); got != "No appointments found." {
		t.Errorf("empty listing = %q", got)
	}

	st.CreateAppointment(ctx, &store.Appointment{Title: "ultrasound", Date: "2026-09-02", Time: "14:00"})
	st.CreateAppointment(ctx, &store.Appointment{Title: "checkup", Date: "2026-09-01", Time: "09:00"})

	got := a.Handle(ctx, "what's coming up", &UserContext{CurrentWeek: 20})
	if !strings.HasPrefix(got, "Current Status: You are in week 20 of pregnancy.") {
		t.Errorf("missing status line: %q", got)
	}
	if !strings.Contains(got, "Your Appointments:") {
		t.Errorf("missing header: %q", got)
	}
	// Ordered by date: checkup first.
	checkupIdx := strings.Index(got, "• checkup on 2026-09-01 at 09:00 (pending)")
	ultrasoundIdx := strings.Index(got, "• ultrasound on 2026-09-02 at 14:00 (pending)")
	if checkupIdx == -1 || ultrasoundIdx == -1 || checkupIdx > ultrasoundIdx {
		t.Errorf("bad listing order:\n%s", got)
	}
}

func TestHandleListsSymptoms(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	if got := a.Handle(ctx, "symptoms", nil); got != "No symptoms found." {
		t.Errorf("empty listing = %q", got)
	}

	st.CreateSymptomEntry(ctx, &store.SymptomEntry{Week: 12, Symptom: "nausea", Note: "worse in morning"})

	got := a.Handle(ctx, "symptoms", nil)
	if !strings.Contains(got, "Your Symptom Tracking:") || !strings.Contains(got, "• Week 12: nausea - worse in morning") {
		t.Errorf("listing = %q", got)
	}
}

func TestHandleListsWeightsWithTrend(t *testing.T) {
	a, st := newTestAgent(t)
	ctx := context.Background()

	if got := a.Handle(ctx, "show my weight", nil); got != "No weight records available." {
		t.Errorf("empty listing = %q", got)
	}

	st.CreateWeightEntry(ctx, &store.WeightEntry{Week: 18, Weight: 62.5, Note: "Logged via chat"})
	st.CreateWeightEntry(ctx, &store.WeightEntry{Week: 20, Weight: 64.2, Note: "Logged via chat"})

	uc := &UserContext{
		CurrentWeek: 20,
		Weight:      64.2,
		WeightHistory: []WeightPoint{
			{Week: 18, Weight: 62.5},
			{Week: 20, Weight: 64.2},
		},
	}
	got := a.Handle(ctx, "show my weight", uc)
	if !strings.Contains(got, "Current Status: You are in week 20 with a weight of 64.2 kg.") {
		t.Errorf("missing status line: %q", got)
	}
	if !strings.Contains(got, "Weight trend: You've gained 1.7 kg recently.") {
		t.Errorf("missing trend line: %q", got)
	}
	if !strings.Contains(got, "Week 18: 62.5kg - Logged via chat") {
		t.Errorf("missing record line: %q", got)
	}
}

func TestWeightTrend(t *testing.T) {
	if got := weightTrend(nil); got != "" {
		t.Errorf("no history: %q", got)
	}
	if got := weightTrend([]WeightPoint{{18, 62.5}}); got != "" {
		t.Errorf("single point: %q", got)
	}
	if got := weightTrend([]WeightPoint{{18, 64}, {20, 62.5}}); got != "Weight trend: You've lost 1.5 kg recently." {
		t.Errorf("loss: %q", got)
	}
	if got := weightTrend([]WeightPoint{{18, 62}, {20, 62}}); got != "Weight trend: Your weight has been stable recently." {
		t.Errorf("stable: %q", got)
	}
}

// failingStore errors on every write.
type failingStore struct {
	store.Store
}

func (failingStore) CreateAppointment(context.Context, *store.Appointment) (int64, error) {
	return 0, errors.New("disk full")
}
func (failingStore) CreateSymptomEntry(context.Context, *store.SymptomEntry) (int64, error) {
	return 0, errors.New("disk full")
}
func (failingStore) CreateWeightEntry(context.Context, *store.WeightEntry) (int64, error) {
	return 0, errors.New("disk full")
}

func TestHandleStorageFailures(t *testing.T) {
	a := New(failingStore{})
	a.now = func() time.Time { return testNow }
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"schedule a checkup tomorrow", "❌ Failed to create appointment. Please try again."},
		{"log symptom nausea for week 12", "❌ Failed to log symptom. Please try again."},
		{"log my weight as 62.5 kg", "❌ Failed to log weight. Please try again."},
	}
	for _, tt := range tests {
		if got := a.Handle(ctx, tt.query, nil); got != tt.want {
			t.Errorf("Handle(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

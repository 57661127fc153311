package store

import (
	"context"
	"math"
	"testing"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)
	ss := s.(*SQLiteStore)

	tables := []string{"appointments", "weekly_symptoms", "weekly_weight",
		"guidelines", "guideline_embeddings", "meta"}
	for _, table := range tables {
		var name string
		err := ss.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestCreateAndListAppointments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	later := &Appointment{Title: "Ultrasound", Date: "2026-09-10", Time: "14:00", Location: "city clinic"}
	earlier := &Appointment{Title: "Checkup", Date: "2026-09-01", Time: "09:00"}

	if _, err := s.CreateAppointment(ctx, later); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if _, err := s.CreateAppointment(ctx, earlier); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	// Empty location and status get their defaults.
	if earlier.Location != "TBD" {
		t.Errorf("Location = %q, want TBD", earlier.Location)
	}
	if earlier.Status != StatusPending {
		t.Errorf("Status = %q, want %q", earlier.Status, StatusPending)
	}

	got, err := s.ListAppointments(ctx)
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d appointments, want 2", len(got))
	}
	// Ordered by date.
	if got[0].Title != "Checkup" || got[1].Title != "Ultrasound" {
		t.Errorf("order = %q, %q; want Checkup, Ultrasound", got[0].Title, got[1].Title)
	}
}

func TestCreateAndListSymptoms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*SymptomEntry{
		{Week: 14, Symptom: "heartburn", Note: "after meals"},
		{Week: 12, Symptom: "nausea", Note: "worse in morning"},
	} {
		if _, err := s.CreateSymptomEntry(ctx, e); err != nil {
			t.Fatalf("CreateSymptomEntry: %v", err)
		}
	}

	got, err := s.ListSymptoms(ctx)
	if err != nil {
		t.Fatalf("ListSymptoms: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Week != 12 || got[1].Week != 14 {
		t.Errorf("weeks = %d, %d; want 12, 14", got[0].Week, got[1].Week)
	}
}

func TestCreateAndListWeights(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateWeightEntry(ctx, &WeightEntry{Week: 20, Weight: 64.2}); err != nil {
		t.Fatalf("CreateWeightEntry: %v", err)
	}
	if _, err := s.CreateWeightEntry(ctx, &WeightEntry{Week: 18, Weight: 62.5, Note: "stable"}); err != nil {
		t.Fatalf("CreateWeightEntry: %v", err)
	}

	got, err := s.ListWeights(ctx)
	if err != nil {
		t.Fatalf("ListWeights: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Weight != 62.5 || got[1].Weight != 64.2 {
		t.Errorf("weights = %v, %v; want 62.5, 64.2", got[0].Weight, got[1].Weight)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetMeta(ctx, "guidelines_hash")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if got != "" {
		t.Errorf("unset meta = %q, want empty", got)
	}

	if err := s.SetMeta(ctx, "guidelines_hash", "abc"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := s.SetMeta(ctx, "guidelines_hash", "def"); err != nil {
		t.Fatalf("SetMeta overwrite: %v", err)
	}

	got, err = s.GetMeta(ctx, "guidelines_hash")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if got != "def" {
		t.Errorf("meta = %q, want def", got)
	}
}

func TestReplaceGuidelinesAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gs := []*Guideline{
		{WeekRange: "1-4", Title: "First month", Content: "folic acid"},
		{WeekRange: "5-8", Title: "Second month", Content: "morning sickness"},
	}
	if err := s.ReplaceGuidelines(ctx, gs); err != nil {
		t.Fatalf("ReplaceGuidelines: %v", err)
	}
	for _, g := range gs {
		if g.ID == 0 {
			t.Fatalf("guideline %q not assigned an id", g.Title)
		}
	}

	if err := s.AddGuidelineEmbedding(ctx, gs[0].ID, []float32{1, 0, 0}); err != nil {
		t.Fatalf("AddGuidelineEmbedding: %v", err)
	}
	if err := s.AddGuidelineEmbedding(ctx, gs[1].ID, []float32{0, 1, 0}); err != nil {
		t.Fatalf("AddGuidelineEmbedding: %v", err)
	}

	results, err := s.SearchGuidelines(ctx, []float32{0.9, 0.1, 0}, 5, 0.1)
	if err != nil {
		t.Fatalf("SearchGuidelines: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Guideline.Title != "First month" {
		t.Errorf("top result = %q, want First month", results[0].Guideline.Title)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("results not ordered by score: %v <= %v", results[0].Score, results[1].Score)
	}

	// Replacing again clears old rows and embeddings.
	if err := s.ReplaceGuidelines(ctx, []*Guideline{{WeekRange: "9-12", Title: "Third month", Content: "energy returns"}}); err != nil {
		t.Fatalf("ReplaceGuidelines (second): %v", err)
	}
	all, err := s.ListGuidelines(ctx)
	if err != nil {
		t.Fatalf("ListGuidelines: %v", err)
	}
	if len(all) != 1 || all[0].Title != "Third month" {
		t.Fatalf("after replace: %d guidelines, want just Third month", len(all))
	}
	results, err = s.SearchGuidelines(ctx, []float32{1, 0, 0}, 5, 0)
	if err != nil {
		t.Fatalf("SearchGuidelines after replace: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("stale embeddings survived replace: %d results", len(results))
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75, 0}
	out := bytesToFloat32(float32ToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	if got := cosineSimilarity(a, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: %v, want 1", got)
	}
	if got := cosineSimilarity(a, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: %v, want 0", got)
	}
	if got := cosineSimilarity(a, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched lengths: %v, want 0", got)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateAppointment(ctx, &Appointment{Title: "Checkup", Date: "2026-09-01", Time: "09:00"}); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if _, err := s.CreateWeightEntry(ctx, &WeightEntry{Week: 10, Weight: 60}); err != nil {
		t.Fatalf("CreateWeightEntry: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.AppointmentCount != 1 || st.WeightCount != 1 || st.SymptomCount != 0 {
		t.Errorf("stats = %+v", st)
	}
}

package guide

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lunahealth/doula/internal/store"
)

// keywordEmbedder maps texts onto axis-aligned vectors by keyword so
// similarity is predictable without a real model.
type keywordEmbedder struct {
	keywords []string
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, len(e.keywords)+1)
	lower := strings.ToLower(text)
	hit := false
	for i, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			vector[i] = 1
			hit = true
		}
	}
	if !hit {
		vector[len(e.keywords)] = 1
	}
	return vector, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEmbedder) Dimensions() int { return len(e.keywords) + 1 }

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	embedder := &keywordEmbedder{keywords: []string{"folic", "nausea", "ultrasound"}}
	return NewService(st, embedder), st
}

func writeGuidelines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guidelines.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing guidelines: %v", err)
	}
	return path
}

const sampleGuidelines = `[
  {"week_range": "1-4", "title": "Folic acid", "content": "Take folic acid daily.", "source": "WHO"},
  {"week_range": "5-8", "title": "Morning sickness", "content": "Nausea is common; eat small meals.", "source": "NHS"},
  {"week_range": "18-22", "title": "Anomaly scan", "content": "Schedule the ultrasound anomaly scan.", "source": "NHS"}
]`

func TestRefreshIngestsAndGates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	path := writeGuidelines(t, sampleGuidelines)

	n, err := svc.Refresh(ctx, path)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 3 {
		t.Errorf("ingested %d, want 3", n)
	}

	all, err := st.ListGuidelines(ctx)
	if err != nil {
		t.Fatalf("ListGuidelines: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("stored %d guidelines, want 3", len(all))
	}

	// Unchanged file is a no-op.
	n, err = svc.Refresh(ctx, path)
	if err != nil {
		t.Fatalf("Refresh (second): %v", err)
	}
	if n != 0 {
		t.Errorf("re-ingested %d guidelines from unchanged file", n)
	}
}

func TestRefreshReplacesOnChange(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	path := writeGuidelines(t, sampleGuidelines)
	if _, err := svc.Refresh(ctx, path); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	updated := `[{"week_range": "1-40", "title": "Hydration", "content": "Drink plenty of water.", "source": "WHO"}]`
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewriting guidelines: %v", err)
	}

	n, err := svc.Refresh(ctx, path)
	if err != nil {
		t.Fatalf("Refresh (changed): %v", err)
	}
	if n != 1 {
		t.Errorf("ingested %d, want 1", n)
	}

	all, err := st.ListGuidelines(ctx)
	if err != nil {
		t.Fatalf("ListGuidelines: %v", err)
	}
	if len(all) != 1 || all[0].Title != "Hydration" {
		t.Errorf("after replace: %+v", all)
	}
}

func TestRefreshRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := svc.Refresh(ctx, writeGuidelines(t, "{not json")); err == nil {
		t.Error("expected error for malformed json")
	}
	if _, err := svc.Refresh(ctx, writeGuidelines(t, "[]")); err == nil {
		t.Error("expected error for empty guideline set")
	}
	if _, err := svc.Refresh(ctx, writeGuidelines(t, `[{"week_range": "1-4"}]`)); err == nil {
		t.Error("expected error for guideline missing title and content")
	}
}

func TestSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx, writeGuidelines(t, sampleGuidelines)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	results, err := svc.Search(ctx, "feeling nausea all day", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].Guideline.Title != "Morning sickness" {
		t.Errorf("top result = %q, want Morning sickness", results[0].Guideline.Title)
	}

	if _, err := svc.Search(ctx, "", 3); err == nil {
		t.Error("expected error for empty query")
	}
}

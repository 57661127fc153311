// Package guide loads pregnancy guidelines from a JSON file, embeds
// them, and answers semantic queries against the embedded set.
package guide

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lunahealth/doula/internal/embed"
	"github.com/lunahealth/doula/internal/store"
)

// metaHashKey is where the store remembers the hash of the last
// ingested guidelines file.
const metaHashKey = "guidelines_hash"

// DefaultSearchLimit caps results when the caller does not say otherwise.
const DefaultSearchLimit = 5

// fileGuideline mirrors one entry of the guidelines JSON file.
type fileGuideline struct {
	WeekRange string `json:"week_range"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Source    string `json:"source"`
}

// Service ties guideline storage to an embedding provider.
type Service struct {
	store    store.Store
	embedder embed.Embedder
}

// NewService creates a guideline service.
func NewService(st store.Store, embedder embed.Embedder) *Service {
	return &Service{store: st, embedder: embedder}
}

// Refresh ingests the guidelines file at path unless the stored copy is
// already current. A changed file replaces all guidelines and re-embeds
// them. Returns the number of guidelines ingested (0 when up to date).
func (s *Service) Refresh(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading guidelines file: %w", err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	stored, err := s.store.GetMeta(ctx, metaHashKey)
	if err != nil {
		return 0, fmt.Errorf("checking guidelines hash: %w", err)
	}
	if stored == hash {
		return 0, nil
	}

	var entries []fileGuideline
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parsing guidelines file: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("guidelines file %s has no entries", path)
	}

	guidelines := make([]*store.Guideline, len(entries))
	texts := make([]string, len(entries))
	for i, e := range entries {
		if e.Title == "" || e.Content == "" {
			return 0, fmt.Errorf("guideline %d missing title or content", i)
		}
		guidelines[i] = &store.Guideline{
			WeekRange: e.WeekRange,
			Title:     e.Title,
			Content:   e.Content,
			Source:    e.Source,
		}
		texts[i] = embeddingText(e)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding guidelines: %w", err)
	}
	if len(vectors) != len(guidelines) {
		return 0, fmt.Errorf("embedded %d of %d guidelines", len(vectors), len(guidelines))
	}

	if err := s.store.ReplaceGuidelines(ctx, guidelines); err != nil {
		return 0, fmt.Errorf("replacing guidelines: %w", err)
	}
	for i, g := range guidelines {
		if err := s.store.AddGuidelineEmbedding(ctx, g.ID, vectors[i]); err != nil {
			return 0, fmt.Errorf("storing embedding for %q: %w", g.Title, err)
		}
	}

	if err := s.store.SetMeta(ctx, metaHashKey, hash); err != nil {
		return 0, fmt.Errorf("recording guidelines hash: %w", err)
	}
	return len(guidelines), nil
}

// Search embeds the query and returns the closest guidelines.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*store.ScoredGuideline, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.store.SearchGuidelines(ctx, vector, limit, 0)
}

// embeddingText is what gets embedded for a guideline. Week range and
// title are folded in so queries like "week 12 advice" land on the
// right rows.
func embeddingText(g fileGuideline) string {
	return fmt.Sprintf("Weeks %s: %s. %s", g.WeekRange, g.Title, g.Content)
}

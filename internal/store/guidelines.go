package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// ReplaceGuidelines deletes all guidelines (embeddings cascade) and
// inserts the given set in one transaction. IDs are assigned on insert.
func (s *SQLiteStore) ReplaceGuidelines(ctx context.Context, gs []*Guideline) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM guideline_embeddings"); err != nil {
		return fmt.Errorf("clearing guideline embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM guidelines"); err != nil {
		return fmt.Errorf("clearing guidelines: %w", err)
	}

	for _, g := range gs {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO guidelines (week_range, title, content, source) VALUES (?, ?, ?, ?)",
			g.WeekRange, g.Title, g.Content, g.Source,
		)
		if err != nil {
			return fmt.Errorf("inserting guideline %q: %w", g.Title, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting last insert id: %w", err)
		}
		g.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing guidelines: %w", err)
	}
	return nil
}

// ListGuidelines returns all guidelines ordered by id (load order).
func (s *SQLiteStore) ListGuidelines(ctx context.Context) ([]*Guideline, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, week_range, title, content, COALESCE(source, '') FROM guidelines ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("listing guidelines: %w", err)
	}
	defer rows.Close()

	var out []*Guideline
	for rows.Next() {
		g := &Guideline{}
		if err := rows.Scan(&g.ID, &g.WeekRange, &g.Title, &g.Content, &g.Source); err != nil {
			return nil, fmt.Errorf("scanning guideline: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AddGuidelineEmbedding stores an embedding vector for a guideline.
// Replaces any existing embedding for the same guideline.
func (s *SQLiteStore) AddGuidelineEmbedding(ctx context.Context, guidelineID int64, vector []float32) error {
	blob := float32ToBytes(vector)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guideline_embeddings (guideline_id, vector, dimensions) VALUES (?, ?, ?)
		 ON CONFLICT(guideline_id) DO UPDATE SET vector = excluded.vector, dimensions = excluded.dimensions`,
		guidelineID, blob, len(vector),
	)
	if err != nil {
		return fmt.Errorf("storing embedding for guideline %d: %w", guidelineID, err)
	}
	return nil
}

// SearchGuidelines performs brute-force cosine similarity search across
// all guideline embeddings. Returns top-K results above minSimilarity.
// The guideline set is small (dozens of rows), so a linear scan is fine.
func (s *SQLiteStore) SearchGuidelines(ctx context.Context, query []float32, limit int, minSimilarity float64) ([]*ScoredGuideline, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.week_range, g.title, g.content, COALESCE(g.source, ''), e.vector
		 FROM guideline_embeddings e
		 JOIN guidelines g ON e.guideline_id = g.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying guideline embeddings: %w", err)
	}
	defer rows.Close()

	var scored []*ScoredGuideline
	for rows.Next() {
		g := Guideline{}
		var blob []byte
		if err := rows.Scan(&g.ID, &g.WeekRange, &g.Title, &g.Content, &g.Source, &blob); err != nil {
			return nil, fmt.Errorf("scanning guideline embedding: %w", err)
		}
		sim := cosineSimilarity(query, bytesToFloat32(blob))
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, &ScoredGuideline{Guideline: g, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// float32ToBytes encodes a vector as little-endian float32 bytes.
func float32ToBytes(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 decodes a little-endian float32 byte blob.
func bytesToFloat32(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

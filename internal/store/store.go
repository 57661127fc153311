// Package store provides the SQLite storage layer for doula.
//
// All tracking data lives in a single SQLite database file:
// - Appointments created from chat commands
// - Weekly symptom and weight logs
// - Pregnancy guidelines with their embedding vectors for semantic search
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.doula/doula.db"

// StatusPending is the status assigned to newly created appointments.
const StatusPending = "pending"

// Appointment is a scheduled appointment record.
type Appointment struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Date      string    `json:"date"` // ISO-8601 calendar date
	Time      string    `json:"time"` // 24-hour HH:MM
	Location  string    `json:"location"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SymptomEntry is one row of the weekly symptom log.
type SymptomEntry struct {
	ID        int64     `json:"id"`
	Week      int       `json:"week"`
	Symptom   string    `json:"symptom"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WeightEntry is one row of the weekly weight log. Weight is stored as
// captured; units are not converted.
type WeightEntry struct {
	ID        int64     `json:"id"`
	Week      int       `json:"week"`
	Weight    float64   `json:"weight"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Guideline is a pregnancy guideline document.
type Guideline struct {
	ID        int64  `json:"id"`
	WeekRange string `json:"week_range"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Source    string `json:"source,omitempty"`
}

// ScoredGuideline is a guideline with its similarity score.
type ScoredGuideline struct {
	Guideline Guideline `json:"guideline"`
	Score     float64   `json:"score"`
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	AppointmentCount int64 `json:"appointments"`
	SymptomCount     int64 `json:"symptoms"`
	WeightCount      int64 `json:"weights"`
	GuidelineCount   int64 `json:"guidelines"`
	EmbeddingCount   int64 `json:"embeddings"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface the intent router and the
// guidelines sidecar depend on.
type Store interface {
	// Chat-created records
	CreateAppointment(ctx context.Context, a *Appointment) (int64, error)
	CreateSymptomEntry(ctx context.Context, e *SymptomEntry) (int64, error)
	CreateWeightEntry(ctx context.Context, e *WeightEntry) (int64, error)

	// Ordered listings
	ListAppointments(ctx context.Context) ([]*Appointment, error)
	ListSymptoms(ctx context.Context) ([]*SymptomEntry, error)
	ListWeights(ctx context.Context) ([]*WeightEntry, error)

	// Guidelines + embeddings
	ReplaceGuidelines(ctx context.Context, gs []*Guideline) error
	ListGuidelines(ctx context.Context) ([]*Guideline, error)
	AddGuidelineEmbedding(ctx context.Context, guidelineID int64, vector []float32) error
	SearchGuidelines(ctx context.Context, query []float32, limit int, minSimilarity float64) ([]*ScoredGuideline, error)

	// Metadata key/value (refresh hash gate lives here)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns row counts for every table.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	st := &StoreStats{}
	counts := []struct {
		table string
		dst   *int64
	}{
		{"appointments", &st.AppointmentCount},
		{"weekly_symptoms", &st.SymptomCount},
		{"weekly_weight", &st.WeightCount},
		{"guidelines", &st.GuidelineCount},
		{"guideline_embeddings", &st.EmbeddingCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}

// GetMeta returns the value for a meta key, or "" when unset.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts a meta key/value pair.
func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting meta %q: %w", key, err)
	}
	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

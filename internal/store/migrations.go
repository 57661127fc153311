package store

import "fmt"

// migrate creates all tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			title                TEXT NOT NULL,
			content              TEXT,
			appointment_date     TEXT NOT NULL,
			appointment_time     TEXT NOT NULL,
			appointment_location TEXT NOT NULL DEFAULT 'TBD',
			appointment_status   TEXT NOT NULL DEFAULT 'pending',
			created_at           DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_symptoms (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			week_number INTEGER NOT NULL,
			symptom     TEXT NOT NULL,
			note        TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS weekly_weight (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			week_number INTEGER NOT NULL,
			weight      REAL NOT NULL,
			note        TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS guidelines (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			week_range TEXT NOT NULL,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			source     TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS guideline_embeddings (
			guideline_id INTEGER PRIMARY KEY,
			vector       BLOB NOT NULL,
			dimensions   INTEGER NOT NULL,
			FOREIGN KEY (guideline_id) REFERENCES guidelines(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_symptoms_week ON weekly_symptoms(week_number)`,
		`CREATE INDEX IF NOT EXISTS idx_weight_week ON weekly_weight(week_number)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

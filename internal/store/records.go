package store

import (
	"context"
	"fmt"
	"time"
)

// CreateAppointment inserts a new appointment.
func (s *SQLiteStore) CreateAppointment(ctx context.Context, a *Appointment) (int64, error) {
	now := time.Now().UTC()
	if a.Status == "" {
		a.Status = StatusPending
	}
	if a.Location == "" {
		a.Location = "TBD"
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (title, content, appointment_date, appointment_time, appointment_location, appointment_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Title, a.Content, a.Date, a.Time, a.Location, a.Status, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	return id, nil
}

// ListAppointments returns all appointments ordered by date, then time.
func (s *SQLiteStore) ListAppointments(ctx context.Context) ([]*Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, COALESCE(content, ''), appointment_date, appointment_time, appointment_location, appointment_status, created_at
		 FROM appointments ORDER BY appointment_date, appointment_time`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a := &Appointment{}
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Date, &a.Time, &a.Location, &a.Status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateSymptomEntry inserts a new weekly symptom log row.
func (s *SQLiteStore) CreateSymptomEntry(ctx context.Context, e *SymptomEntry) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO weekly_symptoms (week_number, symptom, note, created_at) VALUES (?, ?, ?, ?)",
		e.Week, e.Symptom, e.Note, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting symptom entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return id, nil
}

// ListSymptoms returns the symptom log ordered by week.
func (s *SQLiteStore) ListSymptoms(ctx context.Context) ([]*SymptomEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, week_number, symptom, COALESCE(note, ''), created_at FROM weekly_symptoms ORDER BY week_number",
	)
	if err != nil {
		return nil, fmt.Errorf("listing symptoms: %w", err)
	}
	defer rows.Close()

	var out []*SymptomEntry
	for rows.Next() {
		e := &SymptomEntry{}
		if err := rows.Scan(&e.ID, &e.Week, &e.Symptom, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning symptom entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateWeightEntry inserts a new weekly weight log row.
func (s *SQLiteStore) CreateWeightEntry(ctx context.Context, e *WeightEntry) (int64, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO weekly_weight (week_number, weight, note, created_at) VALUES (?, ?, ?, ?)",
		e.Week, e.Weight, e.Note, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting weight entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return id, nil
}

// ListWeights returns the weight log ordered by week.
func (s *SQLiteStore) ListWeights(ctx context.Context) ([]*WeightEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, week_number, weight, COALESCE(note, ''), created_at FROM weekly_weight ORDER BY week_number",
	)
	if err != nil {
		return nil, fmt.Errorf("listing weights: %w", err)
	}
	defer rows.Close()

	var out []*WeightEntry
	for rows.Next() {
		e := &WeightEntry{}
		if err := rows.Scan(&e.ID, &e.Week, &e.Weight, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning weight entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

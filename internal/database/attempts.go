package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Attempt is one audited import request. It intentionally carries no
// product contents.
type Attempt struct {
	ID          string        `json:"id"`
	Retailer    string        `json:"retailer"`
	Outcome     string        `json:"outcome"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	RecordCount int           `json:"record_count"`
	Duration    time.Duration `json:"duration_ms"`
	CreatedAt   time.Time     `json:"created_at"`
}

// RecordAttempt writes one audit row. Safe to call on a nil receiver.
func (db *DB) RecordAttempt(ctx context.Context, a Attempt) error {
	if db == nil {
		return nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := db.pool.Exec(ctx, `
		INSERT INTO import_attempts (id, retailer, outcome, error_kind, record_count, duration_ms)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		a.ID, a.Retailer, a.Outcome, a.ErrorKind, a.RecordCount, a.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// AttemptStats summarizes recent attempts per retailer.
type AttemptStats struct {
	Retailer      string  `json:"retailer"`
	Total         int     `json:"total"`
	Succeeded     int     `json:"succeeded"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// StatsSince aggregates attempts created after the cutoff.
func (db *DB) StatsSince(ctx context.Context, cutoff time.Time) ([]AttemptStats, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx, `
		SELECT retailer,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE outcome = 'success'),
		       AVG(duration_ms)
		FROM import_attempts
		WHERE created_at > $1
		GROUP BY retailer
		ORDER BY retailer`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt stats: %w", err)
	}
	defer rows.Close()

	var stats []AttemptStats
	for rows.Next() {
		var s AttemptStats
		if err := rows.Scan(&s.Retailer, &s.Total, &s.Succeeded, &s.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan attempt stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

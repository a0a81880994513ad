package db

import (
	"database/sql"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Sync directions recorded in the ledger.
const (
	DirectionPull = "pull"
	DirectionPush = "push"
)

// Repository handles data access
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// PeriodRecord represents a row in the remote_periods table
type PeriodRecord struct {
	Day       civil.Date
	RemoteID  string
	PageURL   string
	Modified  time.Time // zero when unknown
	Direction string
	SyncedAt  time.Time
}

// RecordPeriod inserts or replaces the ledger row for rec.Day.
func (r *Repository) RecordPeriod(rec PeriodRecord) error {
	query := `INSERT INTO remote_periods (day, remote_id, page_url, modified, direction, synced_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day) DO UPDATE SET
			remote_id = excluded.remote_id,
			page_url = excluded.page_url,
			modified = excluded.modified,
			direction = excluded.direction,
			synced_at = CURRENT_TIMESTAMP`
	var modified sql.NullTime
	if !rec.Modified.IsZero() {
		modified = sql.NullTime{Time: rec.Modified.UTC(), Valid: true}
	}
	_, err := r.db.Exec(query, rec.Day.String(), rec.RemoteID, rec.PageURL, modified, rec.Direction)
	if err != nil {
		return fmt.Errorf("failed to record period %s: %w", rec.Day, err)
	}
	return nil
}

// GetPeriodByRemoteID returns the row for a remote id, or nil if none.
func (r *Repository) GetPeriodByRemoteID(remoteID string) (*PeriodRecord, error) {
	query := `SELECT day, remote_id, page_url, modified, direction, synced_at
		FROM remote_periods WHERE remote_id = ? ORDER BY day DESC LIMIT 1`
	return r.scanPeriod(r.db.QueryRow(query, remoteID))
}

// GetPeriodByDay returns the row for a period starting on day, or nil if none.
func (r *Repository) GetPeriodByDay(day civil.Date) (*PeriodRecord, error) {
	query := `SELECT day, remote_id, page_url, modified, direction, synced_at
		FROM remote_periods WHERE day = ?`
	return r.scanPeriod(r.db.QueryRow(query, day.String()))
}

func (r *Repository) scanPeriod(row *sql.Row) (*PeriodRecord, error) {
	var (
		rec      PeriodRecord
		day      string
		pageURL  sql.NullString
		modified sql.NullTime
	)
	err := row.Scan(&day, &rec.RemoteID, &pageURL, &modified, &rec.Direction, &rec.SyncedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	rec.Day, err = civil.ParseDate(day)
	if err != nil {
		return nil, fmt.Errorf("corrupt ledger day %q: %w", day, err)
	}
	rec.PageURL = pageURL.String
	if modified.Valid {
		rec.Modified = modified.Time
	}
	return &rec, nil
}

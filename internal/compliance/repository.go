package compliance

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/regwatch/regwatch/internal/listing"
)

// Repository stores reports as dated, append-only snapshots so the
// compliance rate can be tracked over time.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save appends a report snapshot.
func (r *Repository) Save(report *Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO compliance_reports (city, report_json, generated_at) VALUES (?, ?, ?)`,
		report.City, string(payload), report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot for a city, or nil when none
// exists.
func (r *Repository) Latest(city string) (*Report, error) {
	var payload string
	err := r.db.QueryRow(`
		SELECT report_json FROM compliance_reports
		WHERE city = ?
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`,
		listing.NormalizeCity(city)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest report: %w", err)
	}

	var report Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

// History returns snapshot summaries for a city, newest first.
func (r *Repository) History(city string, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT report_json FROM compliance_reports
		WHERE city = ?
		ORDER BY generated_at DESC, id DESC
		LIMIT ?`,
		listing.NormalizeCity(city), limit)
	if err != nil {
		return nil, fmt.Errorf("loading report history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []*Report
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var report Report
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		reports = append(reports, &report)
	}
	return reports, rows.Err()
}

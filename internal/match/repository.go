package match

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/regwatch/regwatch/internal/listing"
)

var (
	// ErrAlreadyReviewed is returned when a status update targets a match
	// that has left the pending state.
	ErrAlreadyReviewed = errors.New("match has already been reviewed")

	// ErrConfirmedExists is returned when confirming a match for a listing
	// that already has a confirmed match.
	ErrConfirmedExists = errors.New("listing already has a confirmed match")
)

const selectColumns = `id, scraped_listing_id, registered_property_id, match_type,
	match_score, match_factors, status, created_at, updated_at, reviewed_by`

// Repository handles match result persistence.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveResults replaces the pending results for a listing with a fresh
// batch. Reviewed rows survive a re-run: their score, tier and factors
// are refreshed when the pairing recurs, but their status is never
// touched by the matcher.
func (r *Repository) SaveResults(listingID int64, results []*Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`DELETE FROM match_results WHERE scraped_listing_id = ? AND status = 'pending'`,
		listingID,
	); err != nil {
		return fmt.Errorf("clearing pending matches: %w", err)
	}

	now := time.Now().UTC()
	for _, res := range results {
		factorsJSON, err := json.Marshal(res.Factors)
		if err != nil {
			return fmt.Errorf("encoding match factors: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO match_results
				(scraped_listing_id, registered_property_id, match_type,
				 match_score, match_factors, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (scraped_listing_id, registered_property_id) DO UPDATE SET
				match_type    = excluded.match_type,
				match_score   = excluded.match_score,
				match_factors = excluded.match_factors,
				updated_at    = excluded.updated_at`,
			listingID, res.RegisteredPropertyID, res.MatchType,
			res.Score, string(factorsJSON), StatusPending, now, now,
		); err != nil {
			return fmt.Errorf("saving match for property %d: %w", res.RegisteredPropertyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing matches: %w", err)
	}
	return nil
}

// GetByID retrieves a match result by its ID.
func (r *Repository) GetByID(id int64) (*Result, error) {
	row := r.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM match_results WHERE id = ?`, selectColumns), id)
	res, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("match %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting match %d: %w", id, err)
	}
	return res, nil
}

// ListByListing returns every match for a listing, best score first.
func (r *Repository) ListByListing(listingID int64) ([]*Result, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM match_results
		WHERE scraped_listing_id = ?
		ORDER BY match_score DESC, registered_property_id ASC`, selectColumns),
		listingID)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// UpdateStatus applies a reviewer's verdict to a pending match. A match
// may leave pending exactly once, and a listing may carry at most one
// confirmed match.
func (r *Repository) UpdateStatus(id int64, status Status, reviewer string) (*Result, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRow(
		fmt.Sprintf(`SELECT %s FROM match_results WHERE id = ?`, selectColumns), id)
	res, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("match %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting match %d: %w", id, err)
	}

	if res.Status != StatusPending {
		return nil, fmt.Errorf("match %d is %s: %w", id, res.Status, ErrAlreadyReviewed)
	}

	if status == StatusConfirmed {
		var confirmed int
		err := tx.QueryRow(`
			SELECT COUNT(*) FROM match_results
			WHERE scraped_listing_id = ? AND status = 'confirmed'`,
			res.ScrapedListingID).Scan(&confirmed)
		if err != nil {
			return nil, fmt.Errorf("checking confirmed matches: %w", err)
		}
		if confirmed > 0 {
			return nil, fmt.Errorf("listing %d: %w", res.ScrapedListingID, ErrConfirmedExists)
		}
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`UPDATE match_results SET status = ?, reviewed_by = ?, updated_at = ? WHERE id = ?`,
		status, reviewer, now, id,
	); err != nil {
		return nil, fmt.Errorf("updating match %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status update: %w", err)
	}

	res.Status = status
	res.ReviewedBy = reviewer
	res.UpdatedAt = now
	return res, nil
}

// BestByCity returns, for every active listing in a city, its
// highest-scoring match that has not been verified as a different
// property. Listings with no surviving match are absent from the map.
func (r *Repository) BestByCity(city string) (map[int64]*Result, error) {
	rows, err := r.db.Query(`
		SELECT m.id, m.scraped_listing_id, m.registered_property_id, m.match_type,
			m.match_score, m.match_factors, m.status, m.created_at, m.updated_at, m.reviewed_by
		FROM match_results m
		JOIN scraped_listings l ON l.id = m.scraped_listing_id
		WHERE l.city = ? AND l.is_active = 1 AND m.status != 'verified_different'
		ORDER BY m.scraped_listing_id ASC, m.match_score DESC, m.registered_property_id ASC`,
		listing.NormalizeCity(city))
	if err != nil {
		return nil, fmt.Errorf("querying best matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	best := make(map[int64]*Result)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if _, seen := best[res.ScrapedListingID]; !seen {
			best[res.ScrapedListingID] = res
		}
	}
	return best, rows.Err()
}

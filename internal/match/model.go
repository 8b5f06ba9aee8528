// Package match links scraped listings to registered properties by
// scoring weighted signals: address text, coordinates, host vs owner
// name, property type and room count.
package match

import (
	"database/sql"
	"encoding/json"
	"time"
)

// MatchType tiers the composite score.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchProbable MatchType = "probable"
	MatchPossible MatchType = "possible"
	MatchNone     MatchType = "no_match"
)

// Status is the human-review state of a match. The matcher only ever
// writes pending; everything else is set by a reviewer.
type Status string

const (
	StatusPending           Status = "pending"
	StatusConfirmed         Status = "confirmed"
	StatusVerifiedDifferent Status = "verified_different"
	StatusDismissed         Status = "dismissed"
)

// ValidReviewStatus returns true if s is a state a reviewer may set.
func ValidReviewStatus(s string) bool {
	switch Status(s) {
	case StatusConfirmed, StatusVerifiedDifferent, StatusDismissed:
		return true
	}
	return false
}

// Factors records the per-signal scores behind a composite score, for
// reviewers. A nil pointer means the signal was unavailable and was
// excluded from the weighted average.
type Factors struct {
	Address        *float64 `json:"address,omitempty"`
	Coordinate     *float64 `json:"coordinate,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Host           *float64 `json:"host,omitempty"`
	TypeMatch      *bool    `json:"type_match,omitempty"`
	BedroomsMatch  *bool    `json:"bedrooms_match,omitempty"`
}

// Result is one scored pairing of a scraped listing and a registered
// property.
type Result struct {
	ID                   int64     `json:"id"`
	ScrapedListingID     int64     `json:"scraped_listing_id"`
	RegisteredPropertyID int64     `json:"registered_property_id"`
	MatchType            MatchType `json:"match_type"`
	Score                float64   `json:"match_score"`
	Factors              Factors   `json:"match_factors"`
	Status               Status    `json:"status"`
	ReviewedBy           string    `json:"reviewed_by,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// scanResult scans a match result from a database row.
func scanResult(row interface{ Scan(...interface{}) error }) (*Result, error) {
	var r Result
	var factorsJSON string
	var reviewedBy sql.NullString

	err := row.Scan(
		&r.ID, &r.ScrapedListingID, &r.RegisteredPropertyID, &r.MatchType,
		&r.Score, &factorsJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt, &reviewedBy,
	)
	if err != nil {
		return nil, err
	}

	if reviewedBy.Valid {
		r.ReviewedBy = reviewedBy.String
	}
	if err := json.Unmarshal([]byte(factorsJSON), &r.Factors); err != nil {
		r.Factors = Factors{}
	}

	return &r, nil
}

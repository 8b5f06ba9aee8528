// Package compliance aggregates matching results into city-level
// reports: how much of the short-term rental market is registered, who
// looks suspicious, and what the unregistered tail costs in tax.
package compliance

import (
	"time"

	"github.com/regwatch/regwatch/internal/listing"
)

// Flag names a suspicion heuristic that fired for a listing.
type Flag string

const (
	FlagNoRegistryMatch    Flag = "no_registry_match"
	FlagMultipleProperties Flag = "multiple_properties"
	FlagHighVolume         Flag = "high_volume"
	FlagPriceOutlierLow    Flag = "price_outlier_low"
	FlagPriceOutlierHigh   Flag = "price_outlier_high"
	FlagNewWithReviews     Flag = "new_with_reviews"
)

// Severity buckets a flagged listing by how many heuristics fired.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityFor maps a flag count to a severity bucket.
func severityFor(flagCount int) Severity {
	switch {
	case flagCount >= 4:
		return SeverityCritical
	case flagCount == 3:
		return SeverityHigh
	case flagCount == 2:
		return SeverityMedium
	}
	return SeverityLow
}

// FlaggedListing is one suspicious listing surfaced in a report.
type FlaggedListing struct {
	ListingID int64            `json:"listing_id"`
	Platform  listing.Platform `json:"platform"`
	Title     string           `json:"title"`
	URL       string           `json:"url,omitempty"`
	HostName  string           `json:"host_name,omitempty"`
	City      string           `json:"city"`
	Flags     []Flag           `json:"flags"`
	Severity  Severity         `json:"severity"`
}

// PlatformBreakdown counts one platform's share of a city report.
type PlatformBreakdown struct {
	Total      int64 `json:"total"`
	Registered int64 `json:"registered"`
}

// NeighborhoodBreakdown counts one neighborhood's share of a city
// report. Listings without a neighborhood are not broken out.
type NeighborhoodBreakdown struct {
	Neighborhood string `json:"neighborhood"`
	Total        int64  `json:"total"`
	Registered   int64  `json:"registered"`
}

// Report is a point-in-time compliance snapshot for one city.
type Report struct {
	City        string    `json:"city"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalListings int64 `json:"total_listings"`
	Registered    int64 `json:"registered"`
	Unregistered  int64 `json:"unregistered"`

	// Fraction of listings whose best match is exact or probable.
	// A city with no listings is trivially compliant.
	ComplianceRate float64 `json:"compliance_rate"`

	MatchExact    int64 `json:"match_exact"`
	MatchProbable int64 `json:"match_probable"`
	MatchPossible int64 `json:"match_possible"`
	MatchNone     int64 `json:"match_none"`

	EstimatedTaxLossXOF float64 `json:"estimated_tax_loss_xof"`

	// Mean 0-100 completeness score across active listings. Low values
	// mean the scrape missed detail fields and the numbers above are
	// thinner than they look.
	AvgQualityScore float64 `json:"avg_quality_score"`

	ByPlatform     map[listing.Platform]*PlatformBreakdown `json:"by_platform"`
	ByNeighborhood []*NeighborhoodBreakdown                 `json:"by_neighborhood,omitempty"`
	Flagged        []*FlaggedListing                        `json:"flagged"`

	// Plain-language next steps, most urgent first.
	Recommendations []string `json:"recommendations"`
}

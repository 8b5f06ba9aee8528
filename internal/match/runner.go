package match

import (
	"fmt"
	"log/slog"

	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/registry"
)

// candidateBoxDegrees pads the bounding box used to prefilter registry
// candidates around a listing's coordinates. Roughly 10 km at Senegal's
// latitude, wide enough that geocoding slop never excludes the true
// property.
const candidateBoxDegrees = 0.1

// Runner executes the matcher against stored data: it picks registry
// candidates for a listing, scores them and persists the results.
type Runner struct {
	matcher    *Matcher
	listings   *listing.Repository
	properties *registry.Repository
	results    *Repository
}

func NewRunner(matcher *Matcher, listings *listing.Repository, properties *registry.Repository, results *Repository) *Runner {
	return &Runner{
		matcher:    matcher,
		listings:   listings,
		properties: properties,
		results:    results,
	}
}

// MatchListing matches one listing against the registry and stores the
// outcome. A listing with no usable signal stores an empty result set,
// clearing any pending rows from earlier runs.
func (r *Runner) MatchListing(listingID int64) ([]*Result, error) {
	l, err := r.listings.GetByID(listingID)
	if err != nil {
		return nil, err
	}

	var box *registry.BoundingBox
	if l.Latitude != nil && l.Longitude != nil {
		box = &registry.BoundingBox{
			MinLat: *l.Latitude - candidateBoxDegrees,
			MaxLat: *l.Latitude + candidateBoxDegrees,
			MinLng: *l.Longitude - candidateBoxDegrees,
			MaxLng: *l.Longitude + candidateBoxDegrees,
		}
	}

	candidates, err := r.properties.ListByCity(l.City, box)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	results := r.matcher.Match(l, candidates)
	if err := r.results.SaveResults(listingID, results); err != nil {
		return nil, err
	}
	return results, nil
}

// CityStats summarizes a city-wide matching run.
type CityStats struct {
	Listings  int `json:"listings"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// MatchCity matches every active listing in a city. Listings without
// usable signal land in the unmatched count like any other no-match.
func (r *Runner) MatchCity(city string) (*CityStats, error) {
	active, err := r.listings.List(listing.ListOptions{City: city, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}

	stats := &CityStats{Listings: len(active)}
	for _, l := range active {
		results, err := r.MatchListing(l.ID)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
	}

	slog.Info("city matching complete", "city", city,
		"listings", stats.Listings, "matched", stats.Matched,
		"unmatched", stats.Unmatched)
	return stats, nil
}

package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/regwatch/regwatch/internal/listing"
)

// Adapter fetches listings from one platform. Implementations must
// honor context cancellation and classify their failures: transient
// platform trouble is an AdapterError (the orchestrator retries it),
// anything else fails the job outright.
type Adapter interface {
	Platform() listing.Platform
	Scrape(ctx context.Context, params TargetParams) ([]*listing.Listing, error)
}

// AdapterError is a transient platform failure worth retrying: blocked
// requests, timeouts, markup changes, a crashed scraper process.
type AdapterError struct {
	Platform listing.Platform
	Reason   string
	Err      error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s adapter: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s adapter: %s", e.Platform, e.Reason)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// ValidationError rejects a single scraped record. The orchestrator
// counts it as skipped and moves on; it never fails the job.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s %s", e.Field, e.Reason)
}

// validateRecord checks a scraped record carries its natural key and a
// plausible shape before it reaches storage.
func validateRecord(l *listing.Listing) error {
	if !listing.ValidPlatform(string(l.Platform)) {
		return &ValidationError{Field: "platform", Reason: fmt.Sprintf("unknown value %q", l.Platform)}
	}
	if strings.TrimSpace(l.PlatformID) == "" {
		return &ValidationError{Field: "platform_id", Reason: "is required"}
	}
	if l.PricePerNight != nil && *l.PricePerNight < 0 {
		return &ValidationError{Field: "price_per_night", Reason: "is negative"}
	}
	if l.Latitude != nil && (*l.Latitude < -90 || *l.Latitude > 90) {
		return &ValidationError{Field: "latitude", Reason: "out of range"}
	}
	if l.Longitude != nil && (*l.Longitude < -180 || *l.Longitude > 180) {
		return &ValidationError{Field: "longitude", Reason: "out of range"}
	}
	return nil
}

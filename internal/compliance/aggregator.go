package compliance

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/regwatch/regwatch/internal/config"
	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/match"
)

// Aggregator builds compliance reports from stored listings and match
// results.
type Aggregator struct {
	cfg      config.ComplianceConfig
	listings *listing.Repository
	matches  *match.Repository
}

func NewAggregator(cfg config.ComplianceConfig, listings *listing.Repository, matches *match.Repository) *Aggregator {
	return &Aggregator{cfg: cfg, listings: listings, matches: matches}
}

// GenerateReport computes a snapshot for a city over its active
// listings.
func (a *Aggregator) GenerateReport(city string, now time.Time) (*Report, error) {
	active, err := a.listings.List(listing.ListOptions{City: city, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}
	best, err := a.matches.BestByCity(city)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}

	report := &Report{
		City:        listing.NormalizeCity(city),
		GeneratedAt: now.UTC(),
		ByPlatform:  make(map[listing.Platform]*PlatformBreakdown),
		Flagged:     []*FlaggedListing{},
	}
	report.TotalListings = int64(len(active))

	hostCounts := countByHost(active)
	mean, stddev := priceStats(active)

	neighborhoods := make(map[string]*NeighborhoodBreakdown)
	var qualitySum int64

	for _, l := range active {
		bp := report.ByPlatform[l.Platform]
		if bp == nil {
			bp = &PlatformBreakdown{}
			report.ByPlatform[l.Platform] = bp
		}
		bp.Total++

		registered := false
		switch tierOf(best[l.ID]) {
		case match.MatchExact:
			report.MatchExact++
			registered = true
		case match.MatchProbable:
			report.MatchProbable++
			registered = true
		case match.MatchPossible:
			report.MatchPossible++
		default:
			report.MatchNone++
		}

		if registered {
			report.Registered++
			bp.Registered++
		}

		qualitySum += int64(l.QualityScore())
		if l.Neighborhood != "" {
			nb := neighborhoods[l.Neighborhood]
			if nb == nil {
				nb = &NeighborhoodBreakdown{Neighborhood: l.Neighborhood}
				neighborhoods[l.Neighborhood] = nb
			}
			nb.Total++
			if registered {
				nb.Registered++
			}
		}

		flags := a.flagsFor(l, registered, hostCounts, mean, stddev, now)
		if surfaced(flags) {
			report.Flagged = append(report.Flagged, &FlaggedListing{
				ListingID: l.ID,
				Platform:  l.Platform,
				Title:     l.Title,
				URL:       l.URL,
				HostName:  hostNameOf(l),
				City:      l.City,
				Flags:     flags,
				Severity:  severityFor(len(flags)),
			})
		}
	}

	report.Unregistered = report.TotalListings - report.Registered
	if report.TotalListings == 0 {
		report.ComplianceRate = 1.0
	} else {
		report.ComplianceRate = float64(report.Registered) / float64(report.TotalListings)
	}
	report.EstimatedTaxLossXOF = float64(report.Unregistered) *
		a.cfg.TaxPerNightXOF * a.cfg.OccupiedNightsPerYear * a.cfg.AvgGuestsPerStay
	if report.TotalListings > 0 {
		report.AvgQualityScore = float64(qualitySum) / float64(report.TotalListings)
	}

	for _, nb := range neighborhoods {
		report.ByNeighborhood = append(report.ByNeighborhood, nb)
	}
	sort.Slice(report.ByNeighborhood, func(i, j int) bool {
		if report.ByNeighborhood[i].Total != report.ByNeighborhood[j].Total {
			return report.ByNeighborhood[i].Total > report.ByNeighborhood[j].Total
		}
		return report.ByNeighborhood[i].Neighborhood < report.ByNeighborhood[j].Neighborhood
	})

	// Worst offenders first, then stable by listing ID.
	sort.SliceStable(report.Flagged, func(i, j int) bool {
		if len(report.Flagged[i].Flags) != len(report.Flagged[j].Flags) {
			return len(report.Flagged[i].Flags) > len(report.Flagged[j].Flags)
		}
		return report.Flagged[i].ListingID < report.Flagged[j].ListingID
	})

	report.Recommendations = a.recommendations(report, hostCounts)

	slog.Info("compliance report generated",
		"city", report.City, "listings", report.TotalListings,
		"rate", report.ComplianceRate, "flagged", len(report.Flagged))
	return report, nil
}

func tierOf(r *match.Result) match.MatchType {
	if r == nil {
		return match.MatchNone
	}
	return r.MatchType
}

// flagsFor runs every suspicion heuristic against a listing.
func (a *Aggregator) flagsFor(l *listing.Listing, registered bool, hostCounts map[string]int, mean, stddev float64, now time.Time) []Flag {
	var flags []Flag

	if !registered {
		flags = append(flags, FlagNoRegistryMatch)
	}

	if host := hostKey(l); host != "" {
		n := hostCounts[host]
		if n >= a.cfg.HostVolumeFlag {
			flags = append(flags, FlagMultipleProperties)
		}
		if n >= a.cfg.HostVolumeHigh {
			flags = append(flags, FlagHighVolume)
		}
	}

	if l.PricePerNight != nil && stddev > 0 {
		z := (*l.PricePerNight - mean) / stddev
		if z > a.cfg.PriceZThreshold {
			flags = append(flags, FlagPriceOutlierHigh)
		} else if z < -a.cfg.PriceZThreshold {
			flags = append(flags, FlagPriceOutlierLow)
		}
	}

	if now.Sub(l.FirstSeenAt) < a.cfg.NoveltyWindow && l.ReviewCount > int64(a.cfg.NoveltyReviewFloor) {
		flags = append(flags, FlagNewWithReviews)
	}

	return flags
}

// recommendations turns the report's numbers into next steps for an
// investigator, most urgent first.
func (a *Aggregator) recommendations(r *Report, hostCounts map[string]int) []string {
	recs := []string{}
	if r.TotalListings == 0 {
		return recs
	}

	if r.ComplianceRate < 0.5 {
		recs = append(recs, fmt.Sprintf(
			"Only %.0f%% of active listings in %s match a registered property; prioritize a registration campaign.",
			r.ComplianceRate*100, r.City))
	}
	if r.Unregistered > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d unregistered listing(s) represent an estimated %.0f XOF in annual tourist tax.",
			r.Unregistered, r.EstimatedTaxLossXOF))
	}

	highVolume := 0
	for _, n := range hostCounts {
		if n >= a.cfg.HostVolumeHigh {
			highVolume++
		}
	}
	if highVolume > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d host(s) operate %d or more listings each; audit them for undeclared commercial activity.",
			highVolume, a.cfg.HostVolumeHigh))
	}

	if r.MatchPossible > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d listing(s) have only a possible registry match; manual review could confirm them.",
			r.MatchPossible))
	}
	if r.AvgQualityScore < 50 {
		recs = append(recs,
			"Scraped data completeness is low; re-scrape with detail pages before enforcement action.")
	}
	return recs
}

// surfaced filters which flagged listings appear in the report. A lone
// no_registry_match is already covered by the unregistered count, so it
// isn't worth a line of its own.
func surfaced(flags []Flag) bool {
	if len(flags) > 1 {
		return true
	}
	return len(flags) == 1 && flags[0] != FlagNoRegistryMatch
}

// hostKey is the identity hosts are counted under: platform host ID
// when present, otherwise the normalized display name.
func hostKey(l *listing.Listing) string {
	if l.HostID != "" {
		return string(l.Platform) + ":" + l.HostID
	}
	if l.HostName != nil {
		if name := strings.ToLower(strings.TrimSpace(*l.HostName)); name != "" {
			return name
		}
	}
	return ""
}

func hostNameOf(l *listing.Listing) string {
	if l.HostName != nil {
		return *l.HostName
	}
	return ""
}

func countByHost(listings []*listing.Listing) map[string]int {
	counts := make(map[string]int)
	for _, l := range listings {
		if key := hostKey(l); key != "" {
			counts[key]++
		}
	}
	return counts
}

// priceStats returns the mean and population standard deviation of the
// known nightly prices.
func priceStats(listings []*listing.Listing) (mean, stddev float64) {
	var prices []float64
	for _, l := range listings {
		if l.PricePerNight != nil && *l.PricePerNight > 0 {
			prices = append(prices, *l.PricePerNight)
		}
	}
	if len(prices) < 2 {
		return 0, 0
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	mean = sum / float64(len(prices))

	var sq float64
	for _, p := range prices {
		sq += (p - mean) * (p - mean)
	}
	stddev = math.Sqrt(sq / float64(len(prices)))
	return mean, stddev
}

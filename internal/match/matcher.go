package match

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/regwatch/regwatch/internal/config"
	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/registry"
)

// Matcher scores scraped listings against registry candidates. It is
// pure computation over its inputs, so a Matcher is safe for concurrent
// use.
type Matcher struct {
	cfg config.MatchConfig
}

func New(cfg config.MatchConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// govTypeTerms maps the normalized listing vocabulary to terms that may
// appear in the government's free-text taxonomy, post-normalization.
var govTypeTerms = map[listing.PropertyType][]string{
	listing.TypeApartment:  {"appartement", "apartment", "residence", "flat"},
	listing.TypeHouse:      {"maison", "house"},
	listing.TypeRoom:       {"chambre", "room"},
	listing.TypeVilla:      {"villa"},
	listing.TypeStudio:     {"studio"},
	listing.TypeGuesthouse: {"auberge", "guest house", "guesthouse", "pension", "campement"},
	listing.TypeHotel:      {"hotel"},
}

// Score computes the weighted composite score of one listing/property
// pair along with the per-signal breakdown. Signals missing on either
// side are excluded and the weights renormalized over what is present;
// a pair with no shared signal scores 0.
func (m *Matcher) Score(l *listing.Listing, p *registry.Property) (float64, Factors) {
	var f Factors
	weightSum := 0.0
	scoreSum := 0.0

	if addr, ok := addressSimilarity(l, p); ok {
		f.Address = &addr
		scoreSum += m.cfg.AddressWeight * addr
		weightSum += m.cfg.AddressWeight
	}

	if l.Latitude != nil && l.Longitude != nil && p.Latitude != nil && p.Longitude != nil {
		meters := HaversineMeters(*l.Latitude, *l.Longitude, *p.Latitude, *p.Longitude)
		coord := math.Exp2(-meters / m.cfg.HalfDistanceMeters)
		f.DistanceMeters = &meters
		f.Coordinate = &coord
		scoreSum += m.cfg.CoordWeight * coord
		weightSum += m.cfg.CoordWeight
	}

	if l.HostName != nil && *l.HostName != "" && p.OwnerName != "" {
		host := TextSimilarity(*l.HostName, p.OwnerName)
		f.Host = &host
		scoreSum += m.cfg.HostWeight * host
		weightSum += m.cfg.HostWeight
	}

	if l.PropertyType != "" && l.PropertyType != listing.TypeOther && p.PropertyType != "" {
		same := typeMatches(l.PropertyType, p.PropertyType)
		f.TypeMatch = &same
		if same {
			scoreSum += m.cfg.TypeWeight
		}
		weightSum += m.cfg.TypeWeight
	}

	if l.Bedrooms != nil && p.TotalRooms != nil {
		same := *l.Bedrooms == *p.TotalRooms
		f.BedroomsMatch = &same
		if same {
			scoreSum += m.cfg.BedroomsWeight
		}
		weightSum += m.cfg.BedroomsWeight
	}

	if weightSum == 0 {
		return 0, f
	}
	return scoreSum / weightSum, f
}

// addressSimilarity compares whatever name/address text both sides
// carry, taking the best pairing. Listings rarely publish street
// addresses, so the title is a first-class signal here.
func addressSimilarity(l *listing.Listing, p *registry.Property) (float64, bool) {
	listingTexts := nonEmpty(l.LocationText, l.Title)
	propertyTexts := nonEmpty(p.Address, p.Name)
	if len(listingTexts) == 0 || len(propertyTexts) == 0 {
		return 0, false
	}

	best := 0.0
	for _, lt := range listingTexts {
		for _, pt := range propertyTexts {
			if sim := TextSimilarity(lt, pt); sim > best {
				best = sim
			}
		}
	}
	return best, true
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func typeMatches(lt listing.PropertyType, govType string) bool {
	normalized := NormalizeText(govType)
	for _, term := range govTypeTerms[lt] {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}

// Tier maps a composite score to its match type using the configured
// inclusive cut points.
func (m *Matcher) Tier(score float64) MatchType {
	switch {
	case score >= m.cfg.ExactMin:
		return MatchExact
	case score >= m.cfg.ProbableMin:
		return MatchProbable
	case score >= m.cfg.PossibleMin:
		return MatchPossible
	}
	return MatchNone
}

// Match scores a listing against every candidate and returns the top
// results above the score floor, best first. Ties break on property ID
// so repeated runs over the same data produce the same ordering. The
// returned results carry status pending; persisting them is the
// repository's job.
//
// A listing with no scorable signal at all returns an empty set: with
// nothing to compare, no candidate can clear the floor, and missing
// data is an ordinary no-match outcome rather than an error.
func (m *Matcher) Match(l *listing.Listing, candidates []*registry.Property) []*Result {
	if !hasSignal(l) {
		slog.Debug("listing has no matchable signal", "listing", l.ID)
		return []*Result{}
	}

	results := make([]*Result, 0, len(candidates))
	for _, p := range candidates {
		score, factors := m.Score(l, p)
		if score <= m.cfg.ScoreFloor {
			continue
		}
		results = append(results, &Result{
			ScrapedListingID:     l.ID,
			RegisteredPropertyID: p.ID,
			MatchType:            m.Tier(score),
			Score:                score,
			Factors:              factors,
			Status:               StatusPending,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].RegisteredPropertyID < results[j].RegisteredPropertyID
	})

	if m.cfg.TopN > 0 && len(results) > m.cfg.TopN {
		results = results[:m.cfg.TopN]
	}
	return results
}

func hasSignal(l *listing.Listing) bool {
	if strings.TrimSpace(l.Title) != "" || strings.TrimSpace(l.LocationText) != "" {
		return true
	}
	if l.Latitude != nil && l.Longitude != nil {
		return true
	}
	if l.HostName != nil && strings.TrimSpace(*l.HostName) != "" {
		return true
	}
	return false
}

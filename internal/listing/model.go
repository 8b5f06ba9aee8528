// Package listing provides the scraped-listing domain model and data access.
package listing

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Platform identifies the marketplace a listing was observed on.
type Platform string

const (
	PlatformAirbnb     Platform = "airbnb"
	PlatformBooking    Platform = "booking"
	PlatformExpatDakar Platform = "expat_dakar"
	PlatformJumia      Platform = "jumia_house"
)

// ValidPlatform returns true if p is a known platform identifier.
func ValidPlatform(p string) bool {
	switch Platform(p) {
	case PlatformAirbnb, PlatformBooking, PlatformExpatDakar, PlatformJumia:
		return true
	}
	return false
}

// PropertyType is the normalized accommodation type vocabulary.
type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypeRoom       PropertyType = "room"
	TypeVilla      PropertyType = "villa"
	TypeStudio     PropertyType = "studio"
	TypeGuesthouse PropertyType = "guesthouse"
	TypeHotel      PropertyType = "hotel"
	TypeOther      PropertyType = "other"
)

// propertyTypeAliases maps platform vocabulary (English and French) to the
// normalized type. Unknown values fall through to TypeOther.
var propertyTypeAliases = map[string]PropertyType{
	"apartment":         TypeApartment,
	"appartement":       TypeApartment,
	"flat":              TypeApartment,
	"condo":             TypeApartment,
	"entire rental unit": TypeApartment,
	"house":             TypeHouse,
	"maison":            TypeHouse,
	"entire home":       TypeHouse,
	"room":              TypeRoom,
	"private room":      TypeRoom,
	"shared room":       TypeRoom,
	"chambre":           TypeRoom,
	"villa":             TypeVilla,
	"studio":            TypeStudio,
	"guesthouse":        TypeGuesthouse,
	"guest house":       TypeGuesthouse,
	"auberge":           TypeGuesthouse,
	"hotel":             TypeHotel,
	"hôtel":             TypeHotel,
	"boutique hotel":    TypeHotel,
}

// NormalizePropertyType maps a platform's free-text type to the normalized
// vocabulary.
func NormalizePropertyType(raw string) PropertyType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := propertyTypeAliases[key]; ok {
		return t
	}
	// Platform strings are often sentences ("Apartment in Ouakam")
	for alias, t := range propertyTypeAliases {
		if strings.Contains(key, alias) {
			return t
		}
	}
	return TypeOther
}

// cityAliases normalizes the spellings the platforms use for Senegalese
// cities.
var cityAliases = map[string]string{
	"dakar":       "Dakar",
	"thies":       "Thiès",
	"thiès":       "Thiès",
	"saint-louis": "Saint-Louis",
	"saint louis": "Saint-Louis",
	"mbour":       "Mbour",
	"saly":        "Saly",
	"rufisque":    "Rufisque",
	"ziguinchor":  "Ziguinchor",
	"cap skirring": "Cap Skirring",
}

// NormalizeCity returns the canonical spelling for a city name, defaulting
// to the trimmed input when unknown.
func NormalizeCity(city string) string {
	trimmed := strings.TrimSpace(city)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := cityAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// Listing is one observed accommodation advertisement on one platform.
// (platform, platform_id) is the natural key.
type Listing struct {
	ID            int64        `json:"id"`
	Platform      Platform     `json:"platform"`
	PlatformID    string       `json:"platform_id"`
	URL           string       `json:"url"`
	Title         string       `json:"title"`
	LocationText  string       `json:"location_text"`
	City          string       `json:"city"`
	Neighborhood  string       `json:"neighborhood"`
	Latitude      *float64     `json:"latitude,omitempty"`
	Longitude     *float64     `json:"longitude,omitempty"`
	HostName      *string      `json:"host_name,omitempty"`
	HostID        string       `json:"host_id,omitempty"`
	PricePerNight *float64     `json:"price_per_night,omitempty"`
	PropertyType  PropertyType `json:"property_type"`
	Bedrooms      *int64       `json:"bedrooms,omitempty"`
	Photos        []string     `json:"photos"`
	Rating        *float64     `json:"rating,omitempty"`
	ReviewCount   int64        `json:"review_count"`
	FirstSeenAt   time.Time    `json:"first_seen_at"`
	LastSeenAt    time.Time    `json:"last_seen_at"`
	IsActive      bool         `json:"is_active"`
}

// QualityScore is a 0-100 completeness score over the fields investigators
// care about. Coordinates matter most since they drive matching.
func (l *Listing) QualityScore() int {
	score := 0
	if l.Title != "" {
		score += 10
	}
	if l.URL != "" {
		score += 5
	}
	if l.PricePerNight != nil && *l.PricePerNight > 0 {
		score += 15
	}
	if len(l.Photos) > 0 {
		score += 10
	}
	if l.LocationText != "" {
		score += 10
	}
	if l.Latitude != nil {
		score += 15
	}
	if l.Longitude != nil {
		score += 15
	}
	if l.HostName != nil && *l.HostName != "" {
		score += 10
	}
	if l.Bedrooms != nil {
		score += 5
	}
	if l.Rating != nil {
		score += 5
	}
	return score
}

// scanListing scans a listing from a database row.
func scanListing(row interface{ Scan(...interface{}) error }) (*Listing, error) {
	var l Listing
	var lat, lng, price, rating sql.NullFloat64
	var hostName sql.NullString
	var bedrooms sql.NullInt64
	var photosJSON string
	var isActive int

	err := row.Scan(
		&l.ID, &l.Platform, &l.PlatformID, &l.URL, &l.Title, &l.LocationText,
		&l.City, &l.Neighborhood, &lat, &lng, &hostName, &l.HostID, &price,
		&l.PropertyType, &bedrooms, &photosJSON, &rating, &l.ReviewCount,
		&l.FirstSeenAt, &l.LastSeenAt, &isActive,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		l.Latitude = &lat.Float64
	}
	if lng.Valid {
		l.Longitude = &lng.Float64
	}
	if hostName.Valid {
		l.HostName = &hostName.String
	}
	if price.Valid {
		l.PricePerNight = &price.Float64
	}
	if bedrooms.Valid {
		l.Bedrooms = &bedrooms.Int64
	}
	if rating.Valid {
		l.Rating = &rating.Float64
	}
	l.IsActive = isActive != 0

	if err := json.Unmarshal([]byte(photosJSON), &l.Photos); err != nil {
		l.Photos = nil
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}

	return &l, nil
}

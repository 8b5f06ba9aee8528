package listing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository provides data access for scraped listings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a listing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, platform, platform_id, url, title, location_text, city, neighborhood,
	latitude, longitude, host_name, host_id, price_per_night, property_type, bedrooms,
	photos, rating, review_count, first_seen_at, last_seen_at, is_active`

const upsertSQL = `INSERT INTO scraped_listings
	(platform, platform_id, url, title, location_text, city, neighborhood,
	 latitude, longitude, host_name, host_id, price_per_night, property_type,
	 bedrooms, photos, rating, review_count, first_seen_at, last_seen_at, is_active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	ON CONFLICT (platform, platform_id) DO UPDATE SET
		url             = excluded.url,
		title           = excluded.title,
		location_text   = excluded.location_text,
		city            = excluded.city,
		neighborhood    = excluded.neighborhood,
		latitude        = COALESCE(excluded.latitude, latitude),
		longitude       = COALESCE(excluded.longitude, longitude),
		host_name       = COALESCE(excluded.host_name, host_name),
		host_id         = excluded.host_id,
		price_per_night = COALESCE(excluded.price_per_night, price_per_night),
		property_type   = excluded.property_type,
		bedrooms        = COALESCE(excluded.bedrooms, bedrooms),
		photos          = excluded.photos,
		rating          = COALESCE(excluded.rating, rating),
		review_count    = excluded.review_count,
		last_seen_at    = excluded.last_seen_at,
		is_active       = 1
	RETURNING first_seen_at`

// Upsert inserts the listing or, when its (platform, platform_id) key is
// already known, updates the mutable fields and last_seen_at. The write is a
// single conditional statement so concurrent jobs for different platforms
// cannot lose updates. Returns true when a new row was created.
func (r *Repository) Upsert(l *Listing, now time.Time) (bool, error) {
	if l.Platform == "" || l.PlatformID == "" {
		return false, fmt.Errorf("listing missing natural key (platform=%q, platform_id=%q)", l.Platform, l.PlatformID)
	}

	photos := l.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return false, fmt.Errorf("encoding photos: %w", err)
	}

	now = now.UTC().Truncate(time.Millisecond)

	var firstSeen time.Time
	err = r.db.QueryRow(upsertSQL,
		l.Platform, l.PlatformID, l.URL, l.Title, l.LocationText,
		NormalizeCity(l.City), l.Neighborhood,
		l.Latitude, l.Longitude, l.HostName, l.HostID, l.PricePerNight,
		l.PropertyType, l.Bedrooms, string(photosJSON), l.Rating, l.ReviewCount,
		now, now,
	).Scan(&firstSeen)
	if err != nil {
		return false, fmt.Errorf("upserting listing %s/%s: %w", l.Platform, l.PlatformID, err)
	}

	// A freshly inserted row carries the first_seen_at we just wrote;
	// an updated row keeps its original one.
	return firstSeen.Equal(now), nil
}

// GetByID returns a listing by its ID.
func (r *Repository) GetByID(id int64) (*Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM scraped_listings WHERE id = ?", selectColumns)
	row := r.db.QueryRow(query, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("listing %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %d: %w", id, err)
	}

	return l, nil
}

// GetByKey returns a listing by its natural key.
func (r *Repository) GetByKey(platform Platform, platformID string) (*Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM scraped_listings WHERE platform = ? AND platform_id = ?", selectColumns)
	row := r.db.QueryRow(query, platform, platformID)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("listing %s/%s not found", platform, platformID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %s/%s: %w", platform, platformID, err)
	}

	return l, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	City       string
	Platform   Platform // empty = all
	ActiveOnly bool
}

// List returns listings matching the options, newest-seen first.
func (r *Repository) List(opts ListOptions) ([]*Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM scraped_listings", selectColumns)
	var args []interface{}
	var conditions []string

	if opts.City != "" {
		conditions = append(conditions, "city = ?")
		args = append(args, NormalizeCity(opts.City))
	}
	if opts.Platform != "" {
		conditions = append(conditions, "platform = ?")
		args = append(args, opts.Platform)
	}
	if opts.ActiveOnly {
		conditions = append(conditions, "is_active = 1")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY last_seen_at DESC, id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing scraped listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	return listings, nil
}

// MarkStale deactivates listings on a platform not re-observed since the
// cutoff. Running it twice produces the same state as running it once.
func (r *Repository) MarkStale(platform Platform, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(
		`UPDATE scraped_listings SET is_active = 0
			WHERE platform = ? AND last_seen_at < ? AND is_active = 1`,
		platform, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("marking stale listings: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return n, nil
}

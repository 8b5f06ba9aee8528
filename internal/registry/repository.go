package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/regwatch/regwatch/internal/listing"
)

// Repository provides access to registered properties.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a registry repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, name, address, city, neighborhood, latitude, longitude, property_type, total_rooms, owner_name`

// GetByID returns a registered property by its ID.
func (r *Repository) GetByID(id int64) (*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM registered_properties WHERE id = ?", selectColumns)
	row := r.db.QueryRow(query, id)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("registered property %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying registered property %d: %w", id, err)
	}

	return p, nil
}

// BoundingBox is a coarse geographic filter for candidate selection.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// ListByCity returns registered properties in a city, optionally restricted
// to a bounding box. Properties without coordinates always pass the box
// filter — they can still match on text signals.
func (r *Repository) ListByCity(city string, box *BoundingBox) ([]*Property, error) {
	query := fmt.Sprintf("SELECT %s FROM registered_properties WHERE city = ?", selectColumns)
	args := []interface{}{listing.NormalizeCity(city)}

	if box != nil {
		query += ` AND (latitude IS NULL OR longitude IS NULL OR
			(latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?))`
		args = append(args, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing registered properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var props []*Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registered property: %w", err)
		}
		props = append(props, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registered properties: %w", err)
	}

	return props, nil
}

// importRecord is the shape of one registry entry in an import file. The
// owner may come either flattened or as a first/last pair, depending on
// which export the ministry produced.
type importRecord struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	PropertyType string   `json:"property_type"`
	TotalRooms   *int64   `json:"total_rooms"`
	OwnerName    string   `json:"owner_name"`
	OwnerFirst   string   `json:"owner_first_name"`
	OwnerLast    string   `json:"owner_last_name"`
}

// Import loads a JSON array of registry records, replacing the current
// registry contents. The swap happens in one transaction so readers never
// observe a half-loaded registry.
func (r *Repository) Import(src io.Reader) (int, error) {
	var records []importRecord
	if err := json.NewDecoder(src).Decode(&records); err != nil {
		return 0, fmt.Errorf("decoding registry records: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning registry import: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec("DELETE FROM registered_properties"); err != nil {
		return 0, fmt.Errorf("clearing registry: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO registered_properties
		(name, address, city, neighborhood, latitude, longitude, property_type, total_rooms, owner_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing registry insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	count := 0
	for i, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			return 0, fmt.Errorf("record %d: name is required", i)
		}
		owner := rec.OwnerName
		if owner == "" {
			owner = strings.TrimSpace(rec.OwnerFirst + " " + rec.OwnerLast)
		}
		_, err := stmt.Exec(
			rec.Name, rec.Address, listing.NormalizeCity(rec.City), rec.Neighborhood,
			rec.Latitude, rec.Longitude, rec.PropertyType, rec.TotalRooms, owner,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting record %d (%s): %w", i, rec.Name, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing registry import: %w", err)
	}

	return count, nil
}

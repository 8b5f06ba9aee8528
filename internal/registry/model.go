// Package registry provides read access to the government registry of
// licensed accommodation properties. The registry is collaborator data:
// this system imports and reads it, it never edits individual records.
package registry

import "database/sql"

// Property is one licensed accommodation record from the registry.
type Property struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	Neighborhood string   `json:"neighborhood"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	// Free text in the government's own taxonomy ("Hôtel 3 étoiles",
	// "Résidence meublée"...).
	PropertyType string `json:"property_type"`
	TotalRooms   *int64 `json:"total_rooms,omitempty"`
	OwnerName    string `json:"owner_name"`
}

// scanProperty scans a registered property from a database row.
func scanProperty(row interface{ Scan(...interface{}) error }) (*Property, error) {
	var p Property
	var lat, lng sql.NullFloat64
	var rooms sql.NullInt64

	err := row.Scan(
		&p.ID, &p.Name, &p.Address, &p.City, &p.Neighborhood,
		&lat, &lng, &p.PropertyType, &rooms, &p.OwnerName,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lng.Valid {
		p.Longitude = &lng.Float64
	}
	if rooms.Valid {
		p.TotalRooms = &rooms.Int64
	}

	return &p, nil
}

package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS scraped_listings (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		platform        TEXT    NOT NULL,
		platform_id     TEXT    NOT NULL,
		url             TEXT    NOT NULL DEFAULT '',
		title           TEXT    NOT NULL DEFAULT '',
		location_text   TEXT    NOT NULL DEFAULT '',
		city            TEXT    NOT NULL DEFAULT '',
		neighborhood    TEXT    NOT NULL DEFAULT '',
		latitude        REAL,
		longitude       REAL,
		host_name       TEXT,
		price_per_night REAL,
		property_type   TEXT    NOT NULL DEFAULT 'other',
		bedrooms        INTEGER,
		photos          TEXT    NOT NULL DEFAULT '[]',
		rating          REAL,
		review_count    INTEGER NOT NULL DEFAULT 0,
		first_seen_at   DATETIME NOT NULL,
		last_seen_at    DATETIME NOT NULL,
		is_active       INTEGER NOT NULL DEFAULT 1,
		UNIQUE (platform, platform_id)
	)`,
	`CREATE TABLE IF NOT EXISTS registered_properties (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT    NOT NULL,
		address       TEXT    NOT NULL DEFAULT '',
		city          TEXT    NOT NULL DEFAULT '',
		neighborhood  TEXT    NOT NULL DEFAULT '',
		latitude      REAL,
		longitude     REAL,
		property_type TEXT    NOT NULL DEFAULT '',
		total_rooms   INTEGER,
		owner_name    TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_jobs (
		id                TEXT     PRIMARY KEY,
		platform          TEXT     NOT NULL,
		job_type          TEXT     NOT NULL,
		target_params     TEXT     NOT NULL DEFAULT '{}',
		status            TEXT     NOT NULL DEFAULT 'pending',
		started_at        DATETIME,
		completed_at      DATETIME,
		listings_found    INTEGER  NOT NULL DEFAULT 0,
		listings_new      INTEGER  NOT NULL DEFAULT 0,
		listings_updated  INTEGER  NOT NULL DEFAULT 0,
		listings_skipped  INTEGER  NOT NULL DEFAULT 0,
		error_message     TEXT     NOT NULL DEFAULT '',
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS match_results (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		scraped_listing_id     INTEGER NOT NULL REFERENCES scraped_listings(id) ON DELETE CASCADE,
		registered_property_id INTEGER NOT NULL REFERENCES registered_properties(id) ON DELETE CASCADE,
		match_type             TEXT    NOT NULL,
		match_score            REAL    NOT NULL,
		match_factors          TEXT    NOT NULL DEFAULT '{}',
		status                 TEXT    NOT NULL DEFAULT 'pending',
		created_at             DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at             DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (scraped_listing_id, registered_property_id)
	)`,
	`CREATE TABLE IF NOT EXISTS compliance_reports (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		city         TEXT     NOT NULL,
		report_json  TEXT     NOT NULL,
		generated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_city_active ON scraped_listings(city, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_last_seen ON scraped_listings(platform, last_seen_at)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_listing ON match_results(scraped_listing_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_platform_status ON scrape_jobs(platform, status)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	// Column additions (idempotent — checks if column exists first)
	columnMigrations := []struct {
		table, column, definition string
	}{
		{"scraped_listings", "host_id", "TEXT NOT NULL DEFAULT ''"},
		{"match_results", "reviewed_by", "TEXT NOT NULL DEFAULT ''"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			fmt.Printf("warning: closing rows: %v\n", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return nil // column already exists
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating columns: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

package match

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/regwatch/regwatch/internal/db"
	"github.com/regwatch/regwatch/internal/listing"
)

func testRepo(t *testing.T) (*sql.DB, *Repository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})
	return d, NewRepository(d)
}

// seedListing inserts an active scraped listing and returns its ID.
func seedListing(t *testing.T, d *sql.DB, platformID, city string) int64 {
	t.Helper()
	listings := listing.NewRepository(d)
	l := &listing.Listing{
		Platform:     listing.PlatformAirbnb,
		PlatformID:   platformID,
		Title:        "Hotel Teranga",
		City:         city,
		PropertyType: listing.TypeHotel,
	}
	if _, err := listings.Upsert(l, time.Now()); err != nil {
		t.Fatalf("seeding listing: %v", err)
	}
	saved, err := listings.GetByKey(listing.PlatformAirbnb, platformID)
	if err != nil {
		t.Fatalf("reading seeded listing: %v", err)
	}
	return saved.ID
}

// seedProperty inserts a registered property and returns its ID.
func seedProperty(t *testing.T, d *sql.DB, name string) int64 {
	t.Helper()
	res, err := d.Exec(`
		INSERT INTO registered_properties (name, address, city, owner_name)
		VALUES (?, '', 'Dakar', 'Amadou Diallo')`, name)
	if err != nil {
		t.Fatalf("seeding property: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("property id: %v", err)
	}
	return id
}

func pendingResult(listingID, propertyID int64, score float64) *Result {
	addr := score
	return &Result{
		ScrapedListingID:     listingID,
		RegisteredPropertyID: propertyID,
		MatchType:            MatchProbable,
		Score:                score,
		Factors:              Factors{Address: &addr},
		Status:               StatusPending,
	}
}

func TestSaveResultsAndListByListing(t *testing.T) {
	d, repo := testRepo(t)
	lid := seedListing(t, d, "111", "Dakar")
	p1 := seedProperty(t, d, "Hotel Teranga")
	p2 := seedProperty(t, d, "Hotel Savana")

	err := repo.SaveResults(lid, []*Result{
		pendingResult(lid, p1, 0.9),
		pendingResult(lid, p2, 0.5),
	})
	if err != nil {
		t.Fatalf("save results: %v", err)
	}

	results, err := repo.ListByListing(lid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].RegisteredPropertyID != p1 {
		t.Error("results should order best score first")
	}
	if results[0].Status != StatusPending {
		t.Errorf("status = %s, want pending", results[0].Status)
	}
	if results[0].Factors.Address == nil || *results[0].Factors.Address != 0.9 {
		t.Error("factors should round-trip through storage")
	}
}

func TestSaveResultsReplacesPending(t *testing.T) {
	d, repo := testRepo(t)
	lid := seedListing(t, d, "111", "Dakar")
	p1 := seedProperty(t, d, "Hotel Teranga")
	p2 := seedProperty(t, d, "Hotel Savana")

	if err := repo.SaveResults(lid, []*Result{pendingResult(lid, p1, 0.9)}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	// Second run no longer produces p1, only p2.
	if err := repo.SaveResults(lid, []*Result{pendingResult(lid, p2, 0.6)}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	results, err := repo.ListByListing(lid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 1 || results[0].RegisteredPropertyID != p2 {
		t.Errorf("pending results should be replaced by the new batch")
	}
}

func TestSaveResultsPreservesReviewedStatus(t *testing.T) {
	d, repo := testRepo(t)
	lid := seedListing(t, d, "111", "Dakar")
	p1 := seedProperty(t, d, "Hotel Teranga")

	if err := repo.SaveResults(lid, []*Result{pendingResult(lid, p1, 0.7)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	results, _ := repo.ListByListing(lid)
	if _, err := repo.UpdateStatus(results[0].ID, StatusConfirmed, "inspector1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Re-run with a new score for the same pairing.
	if err := repo.SaveResults(lid, []*Result{pendingResult(lid, p1, 0.95)}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	results, err := repo.ListByListing(lid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Status != StatusConfirmed {
		t.Errorf("status = %s, review verdict must survive a re-run", results[0].Status)
	}
	if results[0].Score != 0.95 {
		t.Errorf("score = %v, should refresh on re-run", results[0].Score)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	d, repo := testRepo(t)
	lid := seedListing(t, d, "111", "Dakar")
	p1 := seedProperty(t, d, "Hotel Teranga")

	if err := repo.SaveResults(lid, []*Result{pendingResult(lid, p1, 0.7)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	results, _ := repo.ListByListing(lid)
	id := results[0].ID

	updated, err := repo.UpdateStatus(id, StatusDismissed, "inspector1")
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if updated.Status != StatusDismissed || updated.ReviewedBy != "inspector1" {
		t.Errorf("got %s by %q", updated.Status, updated.ReviewedBy)
	}

	// A reviewed match cannot change again.
	if _, err := repo.UpdateStatus(id, StatusConfirmed, "inspector2"); !errors.Is(err, ErrAlreadyReviewed) {
		t.Errorf("second review err = %v, want ErrAlreadyReviewed", err)
	}
}

func TestUpdateStatusSingleConfirmedPerListing(t *testing.T) {
	d, repo := testRepo(t)
	lid := seedListing(t, d, "111", "Dakar")
	p1 := seedProperty(t, d, "Hotel Teranga")
	p2 := seedProperty(t, d, "Hotel Savana")

	err := repo.SaveResults(lid, []*Result{
		pendingResult(lid, p1, 0.9),
		pendingResult(lid, p2, 0.8),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	results, _ := repo.ListByListing(lid)

	if _, err := repo.UpdateStatus(results[0].ID, StatusConfirmed, "inspector1"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := repo.UpdateStatus(results[1].ID, StatusConfirmed, "inspector1"); !errors.Is(err, ErrConfirmedExists) {
		t.Errorf("second confirm err = %v, want ErrConfirmedExists", err)
	}
}

func TestBestByCity(t *testing.T) {
	d, repo := testRepo(t)
	dakar := seedListing(t, d, "111", "Dakar")
	saly := seedListing(t, d, "222", "Saly")
	p1 := seedProperty(t, d, "Hotel Teranga")
	p2 := seedProperty(t, d, "Hotel Savana")

	if err := repo.SaveResults(dakar, []*Result{
		pendingResult(dakar, p1, 0.9),
		pendingResult(dakar, p2, 0.6),
	}); err != nil {
		t.Fatalf("save dakar: %v", err)
	}
	if err := repo.SaveResults(saly, []*Result{pendingResult(saly, p2, 0.7)}); err != nil {
		t.Fatalf("save saly: %v", err)
	}

	best, err := repo.BestByCity("Dakar")
	if err != nil {
		t.Fatalf("best by city: %v", err)
	}
	if len(best) != 1 {
		t.Fatalf("got %d listings, want 1", len(best))
	}
	if best[dakar].RegisteredPropertyID != p1 {
		t.Errorf("best match = property %d, want %d", best[dakar].RegisteredPropertyID, p1)
	}
}

func TestBestByCityExcludesVerifiedDifferent(t *testing.T) {
	d, repo := testRepo(t)
	lid := seedListing(t, d, "111", "Dakar")
	p1 := seedProperty(t, d, "Hotel Teranga")
	p2 := seedProperty(t, d, "Hotel Savana")

	if err := repo.SaveResults(lid, []*Result{
		pendingResult(lid, p1, 0.9),
		pendingResult(lid, p2, 0.6),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	results, _ := repo.ListByListing(lid)

	// The top match turns out to be a different property. The next best
	// takes over.
	if _, err := repo.UpdateStatus(results[0].ID, StatusVerifiedDifferent, "inspector1"); err != nil {
		t.Fatalf("verify different: %v", err)
	}

	best, err := repo.BestByCity("Dakar")
	if err != nil {
		t.Fatalf("best by city: %v", err)
	}
	if best[lid] == nil || best[lid].RegisteredPropertyID != p2 {
		t.Error("verified_different match should be excluded from best")
	}
}

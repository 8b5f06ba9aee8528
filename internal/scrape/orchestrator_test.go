package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/regwatch/regwatch/internal/config"
	"github.com/regwatch/regwatch/internal/listing"
)

func testConfig() *config.Config {
	return &config.Config{
		JobTimeout:     5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		StaleAfter:     14 * 24 * time.Hour,
	}
}

// fakeAdapter scripts adapter behavior for orchestrator tests.
type fakeAdapter struct {
	platform  listing.Platform
	results   []*listing.Listing
	failures  int // AdapterErrors to return before succeeding
	hardErr   error
	calls     int
	blockedOn chan struct{} // if set, Scrape waits for it to close
}

func (f *fakeAdapter) Platform() listing.Platform { return f.platform }

func (f *fakeAdapter) Scrape(ctx context.Context, params TargetParams) ([]*listing.Listing, error) {
	f.calls++
	if f.blockedOn != nil {
		select {
		case <-f.blockedOn:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.hardErr != nil {
		return nil, f.hardErr
	}
	if f.calls <= f.failures {
		return nil, &AdapterError{Platform: f.platform, Reason: "blocked by platform"}
	}
	return f.results, nil
}

func scrapedRecord(platformID string) *listing.Listing {
	return &listing.Listing{
		Platform:     listing.PlatformAirbnb,
		PlatformID:   platformID,
		Title:        "Appartement Ouakam " + platformID,
		City:         "Dakar",
		PropertyType: listing.TypeApartment,
	}
}

func testOrchestrator(t *testing.T, adapter Adapter) (*Orchestrator, *Repository, *listing.Repository) {
	t.Helper()
	d := testDB(t)
	jobs := NewRepository(d)
	listings := listing.NewRepository(d)
	o := NewOrchestrator(testConfig(), jobs, listings)
	if adapter != nil {
		o.Register(adapter)
	}
	return o, jobs, listings
}

func TestRunJobTalliesCounts(t *testing.T) {
	adapter := &fakeAdapter{
		platform: listing.PlatformAirbnb,
		results: []*listing.Listing{
			scrapedRecord("111"),
			scrapedRecord("222"),
			{Platform: listing.PlatformAirbnb, PlatformID: ""}, // invalid, skipped
		},
	}
	o, jobs, listings := testOrchestrator(t, adapter)

	// Pre-seed one record so the run counts it as updated.
	if _, err := listings.Upsert(scrapedRecord("111"), time.Now()); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	job, err := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{City: "Dakar"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := o.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run job: %v", err)
	}

	saved, err := jobs.GetByID(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if saved.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", saved.Status)
	}
	if saved.ListingsFound != 3 {
		t.Errorf("found = %d, want 3", saved.ListingsFound)
	}
	if saved.ListingsNew != 1 {
		t.Errorf("new = %d, want 1", saved.ListingsNew)
	}
	if saved.ListingsUpdated != 1 {
		t.Errorf("updated = %d, want 1", saved.ListingsUpdated)
	}
	if saved.ListingsSkipped != 1 {
		t.Errorf("skipped = %d, want 1", saved.ListingsSkipped)
	}
}

func TestRunJobDedupesRepeatedRecords(t *testing.T) {
	// The same listing appearing twice in one payload must not count as
	// new twice.
	adapter := &fakeAdapter{
		platform: listing.PlatformAirbnb,
		results: []*listing.Listing{
			scrapedRecord("111"),
			scrapedRecord("222"),
			scrapedRecord("111"),
		},
	}
	o, jobs, _ := testOrchestrator(t, adapter)

	job, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{City: "Dakar"})
	if err := o.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run job: %v", err)
	}

	saved, err := jobs.GetByID(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if saved.ListingsFound != 3 {
		t.Errorf("found = %d, want 3", saved.ListingsFound)
	}
	if saved.ListingsNew != 2 {
		t.Errorf("new = %d, want 2", saved.ListingsNew)
	}
	if saved.ListingsUpdated != 0 {
		t.Errorf("updated = %d, want 0", saved.ListingsUpdated)
	}
	if saved.ListingsSkipped != 1 {
		t.Errorf("skipped = %d, want 1 (the repeat)", saved.ListingsSkipped)
	}
}

func TestRunJobRetriesAdapterErrors(t *testing.T) {
	adapter := &fakeAdapter{
		platform: listing.PlatformAirbnb,
		failures: 2,
		results:  []*listing.Listing{scrapedRecord("111")},
	}
	o, jobs, _ := testOrchestrator(t, adapter)

	job, _ := o.CreateJob(listing.PlatformAirbnb, JobIncremental, TargetParams{})
	if err := o.RunJob(context.Background(), job.ID); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if adapter.calls != 3 {
		t.Errorf("adapter called %d times, want 3", adapter.calls)
	}

	saved, _ := jobs.GetByID(job.ID)
	if saved.Status != StatusCompleted {
		t.Errorf("status = %s, want completed after retries", saved.Status)
	}
}

func TestRunJobFailsAfterMaxRetries(t *testing.T) {
	adapter := &fakeAdapter{platform: listing.PlatformAirbnb, failures: 99}
	o, jobs, _ := testOrchestrator(t, adapter)

	job, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})
	err := o.RunJob(context.Background(), job.ID)
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if adapter.calls != 3 {
		t.Errorf("adapter called %d times, want 3", adapter.calls)
	}

	saved, _ := jobs.GetByID(job.ID)
	if saved.Status != StatusFailed {
		t.Errorf("status = %s, want failed", saved.Status)
	}
	if saved.ErrorMessage == "" {
		t.Error("failed job should record an error message")
	}
}

func TestRunJobDoesNotRetryHardErrors(t *testing.T) {
	adapter := &fakeAdapter{
		platform: listing.PlatformAirbnb,
		hardErr:  errors.New("misconfigured adapter"),
	}
	o, jobs, _ := testOrchestrator(t, adapter)

	job, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})
	if err := o.RunJob(context.Background(), job.ID); err == nil {
		t.Fatal("expected run to fail")
	}
	if adapter.calls != 1 {
		t.Errorf("adapter called %d times, want 1 (no retry)", adapter.calls)
	}

	saved, _ := jobs.GetByID(job.ID)
	if saved.Status != StatusFailed {
		t.Errorf("status = %s, want failed", saved.Status)
	}
}

func TestRunJobPlatformBusy(t *testing.T) {
	release := make(chan struct{})
	adapter := &fakeAdapter{
		platform:  listing.PlatformAirbnb,
		blockedOn: release,
		results:   []*listing.Listing{scrapedRecord("111")},
	}
	o, jobs, _ := testOrchestrator(t, adapter)

	first, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})
	second, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})

	done := make(chan error, 1)
	go func() { done <- o.RunJob(context.Background(), first.ID) }()

	// Wait until the first job holds the platform.
	deadline := time.After(2 * time.Second)
	for {
		saved, err := jobs.GetByID(first.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if saved.Status == StatusRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first job never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := o.RunJob(context.Background(), second.ID); !errors.Is(err, ErrPlatformBusy) {
		t.Errorf("second run err = %v, want ErrPlatformBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// The platform frees up once the first job settles.
	third, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})
	if err := o.RunJob(context.Background(), third.ID); err != nil {
		t.Errorf("run after release: %v", err)
	}
}

func TestRunJobCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	adapter := &fakeAdapter{platform: listing.PlatformAirbnb, blockedOn: release}
	o, jobs, _ := testOrchestrator(t, adapter)

	job, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.RunJob(ctx, job.ID) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; err == nil {
		t.Fatal("cancelled run should return an error")
	}
	saved, _ := jobs.GetByID(job.ID)
	if saved.Status != StatusFailed {
		t.Errorf("status = %s, want failed after cancellation", saved.Status)
	}
}

func TestRunJobUnknownPlatform(t *testing.T) {
	o, _, _ := testOrchestrator(t, nil)

	job, _ := o.CreateJob(listing.PlatformBooking, JobFullScan, TargetParams{})
	if err := o.RunJob(context.Background(), job.ID); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("err = %v, want ErrUnknownPlatform", err)
	}
}

func TestRecoverInterruptedJobs(t *testing.T) {
	o, jobs, _ := testOrchestrator(t, nil)

	// A job left running by a crashed process: started but never
	// settled.
	orphan, _ := o.CreateJob(listing.PlatformAirbnb, JobFullScan, TargetParams{})
	loaded, _ := jobs.GetByID(orphan.ID)
	if err := jobs.Start(loaded); err != nil {
		t.Fatalf("start: %v", err)
	}
	untouched, _ := o.CreateJob(listing.PlatformBooking, JobFullScan, TargetParams{})

	n, err := o.RecoverInterrupted()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered %d jobs, want 1", n)
	}

	saved, _ := jobs.GetByID(orphan.ID)
	if saved.Status != StatusFailed {
		t.Errorf("status = %s, want failed", saved.Status)
	}
	if saved.ErrorMessage == "" {
		t.Error("recovered job should record why it failed")
	}
	if saved.CompletedAt == nil {
		t.Error("recovered job should carry a completion time")
	}

	pending, _ := jobs.GetByID(untouched.ID)
	if pending.Status != StatusPending {
		t.Errorf("pending job status = %s, want untouched", pending.Status)
	}

	// Nothing left to sweep on the next boot.
	n, err = o.RecoverInterrupted()
	if err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep recovered %d jobs, want 0", n)
	}
}

func TestMarkStaleListings(t *testing.T) {
	o, _, listings := testOrchestrator(t, nil)

	old := time.Now().Add(-30 * 24 * time.Hour)
	if _, err := listings.Upsert(scrapedRecord("old"), old); err != nil {
		t.Fatalf("seeding old: %v", err)
	}
	if _, err := listings.Upsert(scrapedRecord("fresh"), time.Now()); err != nil {
		t.Fatalf("seeding fresh: %v", err)
	}

	n, err := o.MarkStaleListings(listing.PlatformAirbnb)
	if err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if n != 1 {
		t.Errorf("marked %d, want 1", n)
	}

	// Idempotent.
	n, err = o.MarkStaleListings(listing.PlatformAirbnb)
	if err != nil {
		t.Fatalf("second mark stale: %v", err)
	}
	if n != 0 {
		t.Errorf("second run marked %d, want 0", n)
	}
}

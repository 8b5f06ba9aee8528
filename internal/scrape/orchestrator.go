package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/regwatch/regwatch/internal/config"
	"github.com/regwatch/regwatch/internal/listing"
)

// ErrPlatformBusy is returned when a run is requested for a platform
// that already has a job in flight.
var ErrPlatformBusy = errors.New("platform already has a running job")

// ErrUnknownPlatform is returned when no adapter is registered for a
// job's platform.
var ErrUnknownPlatform = errors.New("no adapter registered for platform")

// Orchestrator runs scrape jobs: it drives the adapter, upserts what
// comes back and settles the job record exactly once.
type Orchestrator struct {
	cfg      *config.Config
	jobs     *Repository
	listings *listing.Repository
	adapters map[listing.Platform]Adapter

	mu      sync.Mutex
	running map[listing.Platform]bool
}

func NewOrchestrator(cfg *config.Config, jobs *Repository, listings *listing.Repository) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		jobs:     jobs,
		listings: listings,
		adapters: make(map[listing.Platform]Adapter),
		running:  make(map[listing.Platform]bool),
	}
}

// Register installs an adapter for its platform, replacing any previous
// one.
func (o *Orchestrator) Register(a Adapter) {
	o.adapters[a.Platform()] = a
}

// CreateJob persists a new pending job.
func (o *Orchestrator) CreateJob(platform listing.Platform, jobType JobType, params TargetParams) (*Job, error) {
	job := &Job{Platform: platform, Type: jobType, Params: params}
	if err := o.jobs.Create(job); err != nil {
		return nil, err
	}
	slog.Info("scrape job created", "job", job.ID, "platform", platform, "type", jobType)
	return job, nil
}

// RunJob executes a pending job to completion. Only one job per
// platform runs at a time; a second caller gets ErrPlatformBusy. The
// job record reaches a terminal state exactly once, and counters
// accumulated before a failure are preserved.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(jobID)
	if err != nil {
		return err
	}

	adapter, ok := o.adapters[job.Platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlatform, job.Platform)
	}

	if err := o.acquire(job.Platform); err != nil {
		return err
	}
	defer o.release(job.Platform)

	if err := o.jobs.Start(job); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	log := slog.With("job", job.ID, "platform", job.Platform)
	log.Info("scrape job running", "type", job.Type, "city", job.Params.City)

	records, err := o.scrapeWithRetry(runCtx, adapter, job.Params)
	if err != nil {
		log.Error("scrape failed", "error", err)
		if ferr := o.jobs.Fail(job, err.Error()); ferr != nil {
			return ferr
		}
		return err
	}

	job.ListingsFound = int64(len(records))
	now := time.Now().UTC()

	// Adapters may emit the same listing twice in one payload (a page
	// boundary shifting mid-scrape, say). Only the first occurrence
	// counts; a repeat would tally as new a second time because both
	// upserts share the run's timestamp.
	seen := make(map[string]bool, len(records))

	for _, record := range records {
		if verr := validateRecord(record); verr != nil {
			job.ListingsSkipped++
			log.Warn("skipping invalid record", "platform_id", record.PlatformID, "error", verr)
			continue
		}
		key := string(record.Platform) + ":" + record.PlatformID
		if seen[key] {
			job.ListingsSkipped++
			log.Warn("skipping duplicate record", "platform_id", record.PlatformID)
			continue
		}
		seen[key] = true

		created, uerr := o.listings.Upsert(record, now)
		if uerr != nil {
			log.Error("storage failure", "platform_id", record.PlatformID, "error", uerr)
			if ferr := o.jobs.Fail(job, uerr.Error()); ferr != nil {
				return ferr
			}
			return uerr
		}
		if created {
			job.ListingsNew++
		} else {
			job.ListingsUpdated++
		}
	}

	if err := o.jobs.Complete(job); err != nil {
		return err
	}
	log.Info("scrape job completed",
		"found", job.ListingsFound, "new", job.ListingsNew,
		"updated", job.ListingsUpdated, "skipped", job.ListingsSkipped)
	return nil
}

// scrapeWithRetry retries transient adapter failures with exponential
// backoff. Non-adapter errors and context cancellation are not retried.
func (o *Orchestrator) scrapeWithRetry(ctx context.Context, adapter Adapter, params TargetParams) ([]*listing.Listing, error) {
	delay := o.cfg.RetryBaseDelay
	attempts := o.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		records, err := adapter.Scrape(ctx, params)
		if err == nil {
			return records, nil
		}
		lastErr = err

		var aerr *AdapterError
		if !errors.As(err, &aerr) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		slog.Warn("adapter failed, retrying",
			"platform", adapter.Platform(), "attempt", attempt,
			"max_attempts", attempts, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("scrape failed after %d attempts: %w", attempts, lastErr)
}

// RecoverInterrupted settles jobs a previous process left running.
// Call it once at startup, before accepting new runs.
func (o *Orchestrator) RecoverInterrupted() (int64, error) {
	n, err := o.jobs.FailInterrupted()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Warn("failed jobs interrupted by a previous shutdown", "count", n)
	}
	return n, nil
}

// MarkStaleListings deactivates listings on a platform that have not
// been observed since the configured staleness window. Safe to run
// repeatedly.
func (o *Orchestrator) MarkStaleListings(platform listing.Platform) (int64, error) {
	cutoff := time.Now().UTC().Add(-o.cfg.StaleAfter)
	n, err := o.listings.MarkStale(platform, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("marked stale listings", "platform", platform, "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (o *Orchestrator) acquire(p listing.Platform) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[p] {
		return fmt.Errorf("%s: %w", p, ErrPlatformBusy)
	}
	o.running[p] = true
	return nil
}

func (o *Orchestrator) release(p listing.Platform) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, p)
}

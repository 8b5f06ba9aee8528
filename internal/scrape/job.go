// Package scrape orchestrates listing collection: job lifecycle,
// platform adapters and the run loop that feeds scraped listings into
// storage.
package scrape

import (
	"fmt"
	"time"

	"github.com/regwatch/regwatch/internal/listing"
)

// JobType selects how much of a platform a job covers.
type JobType string

const (
	JobFullScan    JobType = "full_scan"
	JobIncremental JobType = "incremental"
	JobTargeted    JobType = "targeted"
)

// ValidJobType returns true if t is a known job type.
func ValidJobType(t string) bool {
	switch JobType(t) {
	case JobFullScan, JobIncremental, JobTargeted:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a scrape job. Transitions only
// move forward: pending → running → completed or failed.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// TargetParams narrows what a job scrapes. Zero values mean
// unconstrained.
type TargetParams struct {
	City         string  `json:"city,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	MinPrice     float64 `json:"min_price,omitempty"`
	MaxPrice     float64 `json:"max_price,omitempty"`
	MaxPages     int     `json:"max_pages,omitempty"`
}

// Job is one scrape run against one platform.
type Job struct {
	ID              string           `json:"id"`
	Platform        listing.Platform `json:"platform"`
	Type            JobType          `json:"job_type"`
	Params          TargetParams     `json:"target_params"`
	Status          JobStatus        `json:"status"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	ListingsFound   int64            `json:"listings_found"`
	ListingsNew     int64            `json:"listings_new"`
	ListingsUpdated int64            `json:"listings_updated"`
	ListingsSkipped int64            `json:"listings_skipped"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// validTransitions encodes the forward-only state machine.
var validTransitions = map[JobStatus][]JobStatus{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// canTransition reports whether a job may move from its current status
// to the target.
func canTransition(from, to JobStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// transition mutates the job status after validating the move.
func (j *Job) transition(to JobStatus) error {
	if !canTransition(j.Status, to) {
		return fmt.Errorf("invalid job transition %s -> %s", j.Status, to)
	}
	j.Status = to
	return nil
}

package scrape

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/regwatch/regwatch/internal/listing"
)

const jobColumns = `id, platform, job_type, target_params, status, started_at,
	completed_at, listings_found, listings_new, listings_updated,
	listings_skipped, error_message, created_at`

// Repository handles scrape job persistence.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new pending job and assigns it an ID.
func (r *Repository) Create(job *Job) error {
	if !listing.ValidPlatform(string(job.Platform)) {
		return fmt.Errorf("unknown platform %q", job.Platform)
	}
	if !ValidJobType(string(job.Type)) {
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("encoding target params: %w", err)
	}

	job.ID = uuid.NewString()
	job.Status = StatusPending
	job.CreatedAt = time.Now().UTC()

	_, err = r.db.Exec(`
		INSERT INTO scrape_jobs (id, platform, job_type, target_params, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Platform, job.Type, string(paramsJSON), job.Status, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *Repository) GetByID(id string) (*Job, error) {
	row := r.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM scrape_jobs WHERE id = ?`, jobColumns), id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	return job, nil
}

// ListOptions filters job listings.
type ListOptions struct {
	Platform listing.Platform
	Status   JobStatus
	Limit    int
}

// List returns jobs newest first.
func (r *Repository) List(opts ListOptions) ([]*Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM scrape_jobs WHERE 1=1`, jobColumns)
	var args []interface{}

	if opts.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, opts.Platform)
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Start moves a pending job to running and records the start time.
func (r *Repository) Start(job *Job) error {
	if err := job.transition(StatusRunning); err != nil {
		return err
	}
	now := time.Now().UTC()
	job.StartedAt = &now
	_, err := r.db.Exec(
		`UPDATE scrape_jobs SET status = ?, started_at = ? WHERE id = ?`,
		job.Status, now, job.ID)
	if err != nil {
		return fmt.Errorf("starting job %s: %w", job.ID, err)
	}
	return nil
}

// Complete moves a running job to completed, persisting its counters.
func (r *Repository) Complete(job *Job) error {
	if err := job.transition(StatusCompleted); err != nil {
		return err
	}
	return r.finish(job)
}

// Fail moves a running job to failed. Counters accumulated before the
// failure are kept.
func (r *Repository) Fail(job *Job, msg string) error {
	if err := job.transition(StatusFailed); err != nil {
		return err
	}
	job.ErrorMessage = msg
	return r.finish(job)
}

// FailInterrupted fails every job still recorded as running. Run at
// startup: a running row with no process behind it means a previous
// run died mid-job and nothing else will ever settle it.
func (r *Repository) FailInterrupted() (int64, error) {
	result, err := r.db.Exec(`
		UPDATE scrape_jobs
		SET status = ?, completed_at = ?, error_message = ?
		WHERE status = ?`,
		StatusFailed, time.Now().UTC(), "interrupted: process exited mid-run", StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failing interrupted jobs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting interrupted jobs: %w", err)
	}
	return n, nil
}

func (r *Repository) finish(job *Job) error {
	now := time.Now().UTC()
	job.CompletedAt = &now
	_, err := r.db.Exec(`
		UPDATE scrape_jobs
		SET status = ?, completed_at = ?, listings_found = ?, listings_new = ?,
			listings_updated = ?, listings_skipped = ?, error_message = ?
		WHERE id = ?`,
		job.Status, now, job.ListingsFound, job.ListingsNew,
		job.ListingsUpdated, job.ListingsSkipped, job.ErrorMessage, job.ID)
	if err != nil {
		return fmt.Errorf("finishing job %s: %w", job.ID, err)
	}
	return nil
}

// scanJob scans a job from a database row.
func scanJob(row interface{ Scan(...interface{}) error }) (*Job, error) {
	var j Job
	var paramsJSON string
	var started, completed sql.NullTime

	err := row.Scan(
		&j.ID, &j.Platform, &j.Type, &paramsJSON, &j.Status, &started,
		&completed, &j.ListingsFound, &j.ListingsNew, &j.ListingsUpdated,
		&j.ListingsSkipped, &j.ErrorMessage, &j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if started.Valid {
		j.StartedAt = &started.Time
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	if err := json.Unmarshal([]byte(paramsJSON), &j.Params); err != nil {
		j.Params = TargetParams{}
	}

	return &j, nil
}

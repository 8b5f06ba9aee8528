package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/match"
	"github.com/regwatch/regwatch/internal/scrape"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// handleJobs routes /api/jobs — list or create.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.apiListJobs(w, r)
	case http.MethodPost:
		s.apiCreateJob(w, r)
	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) apiListJobs(w http.ResponseWriter, r *http.Request) {
	opts := scrape.ListOptions{Limit: 50}
	if p := r.URL.Query().Get("platform"); p != "" {
		if !listing.ValidPlatform(p) {
			apiError(w, "unknown platform", http.StatusBadRequest)
			return
		}
		opts.Platform = listing.Platform(p)
	}
	if st := r.URL.Query().Get("status"); st != "" {
		opts.Status = scrape.JobStatus(st)
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			apiError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		opts.Limit = limit
	}

	jobs, err := s.jobs.List(opts)
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*scrape.Job{}
	}
	apiJSON(w, jobs, http.StatusOK)
}

func (s *Server) apiCreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Platform     string              `json:"platform"`
		JobType      string              `json:"job_type"`
		TargetParams scrape.TargetParams `json:"target_params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !listing.ValidPlatform(req.Platform) {
		apiError(w, "unknown platform", http.StatusBadRequest)
		return
	}
	if req.JobType == "" {
		req.JobType = string(scrape.JobFullScan)
	}
	if !scrape.ValidJobType(req.JobType) {
		apiError(w, "unknown job type", http.StatusBadRequest)
		return
	}

	job, err := s.orchestrator.CreateJob(
		listing.Platform(req.Platform), scrape.JobType(req.JobType), req.TargetParams)
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	apiJSON(w, job, http.StatusCreated)
}

// handleJobByID routes /api/jobs/{id} and /api/jobs/{id}/run.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")

	if strings.HasSuffix(path, "/run") {
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiRunJob(w, strings.TrimSuffix(path, "/run"))
		return
	}

	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	job, err := s.jobs.GetByID(path)
	if err != nil {
		apiError(w, "job not found", http.StatusNotFound)
		return
	}
	apiJSON(w, job, http.StatusOK)
}

// apiRunJob starts a job in the background. A platform with a job
// already in flight answers 409.
func (s *Server) apiRunJob(w http.ResponseWriter, id string) {
	job, err := s.jobs.GetByID(id)
	if err != nil {
		apiError(w, "job not found", http.StatusNotFound)
		return
	}
	if job.Status != scrape.StatusPending {
		apiError(w, "job is not pending", http.StatusConflict)
		return
	}

	done := make(chan error, 1)
	go func() { done <- s.orchestrator.RunJob(context.Background(), job.ID) }()

	// Give the run a moment to claim the platform so a busy conflict is
	// reported synchronously.
	select {
	case err := <-done:
		if errors.Is(err, scrape.ErrPlatformBusy) {
			apiError(w, err.Error(), http.StatusConflict)
			return
		}
		// Terminal already; re-read for the final counters.
	case <-time.After(100 * time.Millisecond):
	}

	job, err = s.jobs.GetByID(id)
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	apiJSON(w, job, http.StatusAccepted)
}

// handleListings routes /api/listings.
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	opts := listing.ListOptions{
		City:       r.URL.Query().Get("city"),
		ActiveOnly: r.URL.Query().Get("active") != "false",
	}
	if p := r.URL.Query().Get("platform"); p != "" {
		if !listing.ValidPlatform(p) {
			apiError(w, "unknown platform", http.StatusBadRequest)
			return
		}
		opts.Platform = listing.Platform(p)
	}

	listings, err := s.listings.List(opts)
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if listings == nil {
		listings = []*listing.Listing{}
	}
	apiJSON(w, listings, http.StatusOK)
}

// handleListingByID routes /api/listings/{id}, its /matches view and
// the /match action.
func (s *Server) handleListingByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/listings/")

	if strings.HasSuffix(path, "/match") {
		id, err := strconv.ParseInt(strings.TrimSuffix(path, "/match"), 10, 64)
		if err != nil {
			apiError(w, "invalid listing ID", http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodPost {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiMatchListing(w, id)
		return
	}

	if strings.HasSuffix(path, "/matches") {
		id, err := strconv.ParseInt(strings.TrimSuffix(path, "/matches"), 10, 64)
		if err != nil {
			apiError(w, "invalid listing ID", http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodGet {
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.apiListMatches(w, id)
		return
	}

	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		apiError(w, "invalid listing ID", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	l, err := s.listings.GetByID(id)
	if err != nil {
		apiError(w, "listing not found", http.StatusNotFound)
		return
	}
	apiJSON(w, l, http.StatusOK)
}

func (s *Server) apiMatchListing(w http.ResponseWriter, id int64) {
	results, err := s.runner.MatchListing(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			apiError(w, err.Error(), http.StatusNotFound)
			return
		}
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []*match.Result{}
	}
	apiJSON(w, results, http.StatusOK)
}

func (s *Server) apiListMatches(w http.ResponseWriter, id int64) {
	results, err := s.matches.ListByListing(id)
	if err != nil {
		apiError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []*match.Result{}
	}
	apiJSON(w, results, http.StatusOK)
}

// handleMatchByID routes /api/matches/{id}/status.
func (s *Server) handleMatchByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/matches/")
	if !strings.HasSuffix(path, "/status") {
		apiError(w, "not found", http.StatusNotFound)
		return
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(path, "/status"), 10, 64)
	if err != nil {
		apiError(w, "invalid match ID", http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Status     string `json:"status"`
		ReviewedBy string `json:"reviewed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !match.ValidReviewStatus(req.Status) {
		apiError(w, "status must be confirmed, verified_different or dismissed", http.StatusBadRequest)
		return
	}

	result, err := s.matches.UpdateStatus(id, match.Status(req.Status), req.ReviewedBy)
	if err != nil {
		switch {
		case errors.Is(err, match.ErrAlreadyReviewed), errors.Is(err, match.ErrConfirmedExists):
			apiError(w, err.Error(), http.StatusConflict)
		case strings.Contains(err.Error(), "not found"):
			apiError(w, err.Error(), http.StatusNotFound)
		default:
			apiError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	apiJSON(w, result, http.StatusOK)
}

// handleReport routes /api/report — GET returns the latest snapshot for
// a city, POST generates and stores a fresh one.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		apiError(w, "city is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		report, err := s.reports.Latest(city)
		if err != nil {
			apiError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if report == nil {
			apiError(w, "no report for city", http.StatusNotFound)
			return
		}
		apiJSON(w, report, http.StatusOK)

	case http.MethodPost:
		report, err := s.aggregator.GenerateReport(city, time.Now())
		if err != nil {
			apiError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := s.reports.Save(report); err != nil {
			slog.Error("saving report snapshot", "city", city, "error", err)
			apiError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		apiJSON(w, report, http.StatusCreated)

	default:
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

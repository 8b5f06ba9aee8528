// Package web exposes the engine over HTTP: job control, listing
// browsing, match review and compliance reports.
package web

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/regwatch/regwatch/internal/compliance"
	"github.com/regwatch/regwatch/internal/config"
	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/logging"
	"github.com/regwatch/regwatch/internal/match"
	"github.com/regwatch/regwatch/internal/registry"
	"github.com/regwatch/regwatch/internal/scrape"
)

// Server is the HTTP API server.
type Server struct {
	cfg          *config.Config
	listings     *listing.Repository
	properties   *registry.Repository
	jobs         *scrape.Repository
	matches      *match.Repository
	reports      *compliance.Repository
	orchestrator *scrape.Orchestrator
	runner       *match.Runner
	aggregator   *compliance.Aggregator
	mux          *http.ServeMux
}

// NewServer wires every component over one database handle and
// registers the API routes.
func NewServer(cfg *config.Config, db *sql.DB) *Server {
	listings := listing.NewRepository(db)
	properties := registry.NewRepository(db)
	jobs := scrape.NewRepository(db)
	matches := match.NewRepository(db)
	matcher := match.New(cfg.Match)

	orchestrator := scrape.NewOrchestrator(cfg, jobs, listings)
	orchestrator.Register(scrape.NewAirbnbAdapter(cfg.AdapterRateLimit))
	for _, p := range []listing.Platform{
		listing.PlatformBooking, listing.PlatformExpatDakar, listing.PlatformJumia,
	} {
		orchestrator.Register(scrape.NewSubprocessAdapter(cfg.ScraperCommand, p))
	}

	s := &Server{
		cfg:          cfg,
		listings:     listings,
		properties:   properties,
		jobs:         jobs,
		matches:      matches,
		reports:      compliance.NewRepository(db),
		orchestrator: orchestrator,
		runner:       match.NewRunner(matcher, listings, properties, matches),
		aggregator:   compliance.NewAggregator(cfg.Compliance, listings, matches),
		mux:          http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleJobByID)
	s.mux.HandleFunc("/api/listings", s.handleListings)
	s.mux.HandleFunc("/api/listings/", s.handleListingByID)
	s.mux.HandleFunc("/api/matches/", s.handleMatchByID)
	s.mux.HandleFunc("/api/report", s.handleReport)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe sweeps jobs orphaned by a previous shutdown, then
// starts the HTTP server with request logging.
func (s *Server) ListenAndServe(port int) error {
	if _, err := s.orchestrator.RecoverInterrupted(); err != nil {
		return fmt.Errorf("recovering interrupted jobs: %w", err)
	}
	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("Listening on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, logging.RequestLogger(s))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

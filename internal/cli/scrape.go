package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	var (
		platform string
		jobType  string
		city     string
		pages    int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Create and run a scrape job",
		Long:  "Create a scrape job for a platform and run it to completion.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), platform, jobType, city, pages)
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "airbnb", "platform to scrape (airbnb|booking|expat_dakar|jumia_house)")
	cmd.Flags().StringVar(&jobType, "type", "full_scan", "job type (full_scan|incremental|targeted)")
	cmd.Flags().StringVar(&city, "city", "", "restrict the scrape to one city")
	cmd.Flags().IntVar(&pages, "pages", 0, "maximum result pages to fetch")

	return cmd
}

func runScrape(ctx context.Context, platform, jobType, city string, pages int) error {
	if !listing.ValidPlatform(platform) {
		return fmt.Errorf("unknown platform %q", platform)
	}
	if !scrape.ValidJobType(jobType) {
		return fmt.Errorf("unknown job type %q", jobType)
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	cfg := loadConfig()
	jobs := scrape.NewRepository(database)
	listings := listing.NewRepository(database)

	orchestrator := scrape.NewOrchestrator(cfg, jobs, listings)
	orchestrator.Register(scrape.NewAirbnbAdapter(cfg.AdapterRateLimit))
	for _, p := range []listing.Platform{
		listing.PlatformBooking, listing.PlatformExpatDakar, listing.PlatformJumia,
	} {
		orchestrator.Register(scrape.NewSubprocessAdapter(cfg.ScraperCommand, p))
	}

	if _, err := orchestrator.RecoverInterrupted(); err != nil {
		return err
	}

	job, err := orchestrator.CreateJob(
		listing.Platform(platform), scrape.JobType(jobType),
		scrape.TargetParams{City: city, MaxPages: pages})
	if err != nil {
		return err
	}

	runErr := orchestrator.RunJob(ctx, job.ID)

	// The job record carries the outcome either way.
	job, err = jobs.GetByID(job.ID)
	if err != nil {
		return err
	}
	if isJSON() {
		if perr := printJSON(job); perr != nil {
			return perr
		}
	} else {
		printJobDetail(job)
	}
	return runErr
}

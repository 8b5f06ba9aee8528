package cli

import (
	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/scrape"
)

func newJobsCmd() *cobra.Command {
	var (
		platform string
		status   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "jobs [id]",
		Short: "List scrape jobs or show one",
		Long:  "List scrape jobs newest first, or show the details of one job by ID.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runJobShow(args[0])
			}
			return runJobList(platform, status, limit)
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|running|completed|failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs to list")

	return cmd
}

func runJobList(platform, status string, limit int) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	repo := scrape.NewRepository(database)
	jobs, err := repo.List(scrape.ListOptions{
		Platform: listing.Platform(platform),
		Status:   scrape.JobStatus(status),
		Limit:    limit,
	})
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(jobs)
	}
	return printJobTable(jobs)
}

func runJobShow(id string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	job, err := scrape.NewRepository(database).GetByID(id)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(job)
	}
	printJobDetail(job)
	return nil
}

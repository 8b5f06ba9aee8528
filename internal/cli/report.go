package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/compliance"
	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/match"
)

func newReportCmd() *cobra.Command {
	var (
		city     string
		generate bool
		history  int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show or generate a compliance report",
		Long:  "Show the latest compliance snapshot for a city. With --generate, compute a fresh snapshot from current data and store it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(city, generate, history)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city to report on (required)")
	cmd.Flags().BoolVar(&generate, "generate", false, "compute and store a fresh snapshot")
	cmd.Flags().IntVar(&history, "history", 0, "show the last N snapshots instead of the latest")
	_ = cmd.MarkFlagRequired("city")

	return cmd
}

func runReport(city string, generate bool, history int) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	reports := compliance.NewRepository(database)

	if history > 0 {
		snapshots, err := reports.History(city, history)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(snapshots)
		}
		for _, r := range snapshots {
			fmt.Printf("%s  %d listings, %.1f%% compliant\n",
				r.GeneratedAt.Format("2006-01-02 15:04"), r.TotalListings, r.ComplianceRate*100)
		}
		return nil
	}

	var report *compliance.Report
	if generate {
		cfg := loadConfig()
		aggregator := compliance.NewAggregator(cfg.Compliance,
			listing.NewRepository(database), match.NewRepository(database))
		report, err = aggregator.GenerateReport(city, time.Now())
		if err != nil {
			return err
		}
		if err := reports.Save(report); err != nil {
			return err
		}
	} else {
		report, err = reports.Latest(city)
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("no report for %s, run with --generate first", city)
		}
	}

	if isJSON() {
		return printJSON(report)
	}
	printReport(report)
	return nil
}

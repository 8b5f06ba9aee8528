package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/match"
	"github.com/regwatch/regwatch/internal/registry"
)

func newMatchCmd() *cobra.Command {
	var (
		city      string
		listingID int64
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match listings against the registry",
		Long:  "Score scraped listings against registered properties and store the results for review. Matches either one listing (--listing) or every active listing in a city (--city).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (city == "") == (listingID == 0) {
				return fmt.Errorf("exactly one of --city or --listing is required")
			}
			return runMatch(city, listingID)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "match every active listing in this city")
	cmd.Flags().Int64Var(&listingID, "listing", 0, "match a single listing by ID")

	return cmd
}

func runMatch(city string, listingID int64) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	cfg := loadConfig()
	runner := match.NewRunner(
		match.New(cfg.Match),
		listing.NewRepository(database),
		registry.NewRepository(database),
		match.NewRepository(database),
	)

	if listingID != 0 {
		results, err := runner.MatchListing(listingID)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(results)
		}
		return printMatchTable(results)
	}

	stats, err := runner.MatchCity(city)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(stats)
	}
	fmt.Printf("Matched %s: %d listings (%d matched, %d unmatched)\n",
		city, stats.Listings, stats.Matched, stats.Unmatched)
	return nil
}

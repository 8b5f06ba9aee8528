package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/listing"
)

func newListingsCmd() *cobra.Command {
	var (
		city     string
		platform string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "listings",
		Short: "List scraped listings",
		Long:  "List stored listings, optionally filtered by city and platform. Inactive listings are hidden unless --all is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListings(city, platform, all)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "filter by city")
	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform")
	cmd.Flags().BoolVar(&all, "all", false, "include inactive listings")

	return cmd
}

func runListings(city, platform string, all bool) error {
	if platform != "" && !listing.ValidPlatform(platform) {
		return fmt.Errorf("unknown platform %q", platform)
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	repo := listing.NewRepository(database)
	listings, err := repo.List(listing.ListOptions{
		City:       city,
		Platform:   listing.Platform(platform),
		ActiveOnly: !all,
	})
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(listings)
	}
	return printListingTable(listings)
}

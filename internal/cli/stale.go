package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/listing"
	"github.com/regwatch/regwatch/internal/scrape"
)

func newStaleCmd() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "stale",
		Short: "Deactivate listings not seen recently",
		Long:  "Mark listings inactive when they have not been observed within the staleness window (STALE_AFTER). Safe to run repeatedly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStale(platform)
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "platform to sweep (required)")
	_ = cmd.MarkFlagRequired("platform")

	return cmd
}

func runStale(platform string) error {
	if !listing.ValidPlatform(platform) {
		return fmt.Errorf("unknown platform %q", platform)
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	cfg := loadConfig()
	orchestrator := scrape.NewOrchestrator(cfg,
		scrape.NewRepository(database), listing.NewRepository(database))

	n, err := orchestrator.MarkStaleListings(listing.Platform(platform))
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(map[string]int64{"marked_stale": n})
	}
	fmt.Printf("Marked %d listings stale on %s\n", n, platform)
	return nil
}

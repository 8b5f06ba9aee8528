// Package cli defines the cobra command tree for regwatch.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/config"
	"github.com/regwatch/regwatch/internal/db"
	"github.com/regwatch/regwatch/internal/logging"
)

var (
	flagFormat string
	flagDB     string
	flagDev    bool
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rw",
		Short: "Reconcile short-term rental listings against the tourism registry",
		Long: "regwatch scrapes rental listings from booking platforms, matches them " +
			"against the government registry of licensed accommodations, and reports " +
			"how compliant each city's market is.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(flagDev)
		},
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.regwatch/regwatch.db)")
	root.PersistentFlags().BoolVar(&flagDev, "dev", false, "verbose human-readable logging")

	root.AddCommand(
		newScrapeCmd(),
		newJobsCmd(),
		newListingsCmd(),
		newStaleCmd(),
		newMatchCmd(),
		newReportCmd(),
		newRegistryCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

// openDB opens the SQLite database using the --db flag or default path.
func openDB() (*sql.DB, error) {
	path := flagDB
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

// loadConfig reads runtime configuration from the environment.
func loadConfig() *config.Config {
	return config.Load()
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}

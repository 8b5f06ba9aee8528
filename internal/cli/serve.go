package cli

import (
	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Start the HTTP API server for job control, match review and reports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")

	return cmd
}

func runServe(port int) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	return web.NewServer(loadConfig(), database).ListenAndServe(port)
}

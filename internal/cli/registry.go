package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/regwatch/regwatch/internal/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the government registry data",
	}
	cmd.AddCommand(newRegistryImportCmd())
	return cmd
}

func newRegistryImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a registry export",
		Long:  "Replace the stored registry with the records in a JSON export file. The import is atomic: a malformed file leaves the existing data untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryImport(args[0])
		},
	}
}

func runRegistryImport(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening registry file: %w", err)
	}
	defer func() { _ = f.Close() }()

	database, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB(database)

	n, err := registry.NewRepository(database).Import(f)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(map[string]int{"imported": n})
	}
	fmt.Printf("Imported %d registered properties\n", n)
	return nil
}

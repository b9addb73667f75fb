package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// importCmd seeds the SQLite store from a snapshot file.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a snapshot file into the SQLite store",
	Long: `Save the profile, cards, bills and income of a snapshot file into the store
at SQLITE_DB_PATH. Cards are upserted by id; bills and income are appended.

Example:
  glidemoney import --snapshot me.yaml`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	a := current
	if a.snapshot == nil {
		return errors.New("--snapshot is required")
	}
	if err := a.snapshot.Import(cmd.Context(), a.store(), a.now); err != nil {
		return fmt.Errorf("import %s: %w", snapshotPath, err)
	}
	fmt.Fprintf(a.out, "Imported snapshot for %s into %s\n", a.snapshot.User(), a.cfg.SQLiteDBPath)
	return nil
}

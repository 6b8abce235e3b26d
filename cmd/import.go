package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/KunlingLio/project-timer/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import records from a JSON export",
	Long: `import writes every record of an export file. Records with the same key
are overwritten. Legacy records are migrated to this device. A file with any
unrecognised key is rejected as a whole.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		return withApp(func(ctx context.Context, a *app) error {
			return runImport(ctx, a, path)
		})
	},
}

func runImport(ctx context.Context, a *app, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("corrupt JSON in %s: %w", path, err)
	}
	if err := a.store.ImportAll(ctx, snap); err != nil {
		return err
	}
	fmt.Printf("Imported %d record(s) from %s (%s).\n", len(snap), path, humanize.Bytes(uint64(len(data))))
	return nil
}

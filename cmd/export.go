package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored record as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runExport)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Write to this file instead of stdout")
}

func runExport(ctx context.Context, a *app) error {
	snap, err := a.store.ExportAll(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}

	if exportOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(exportOut), 0o700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", exportOut, err)
	}
	if err := os.WriteFile(exportOut, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", exportOut, err)
	}
	fmt.Printf("Exported %d record(s) to %s (%s).\n", len(snap), exportOut, humanize.Bytes(uint64(len(data)+1)))
	return nil
}

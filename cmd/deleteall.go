package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var deleteAllYes bool

var deleteAllCmd = &cobra.Command{
	Use:   "delete-all",
	Short: "Delete every stored record of every device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteAllYes {
			fmt.Fprintln(os.Stderr, "Refusing to delete without --yes. Consider \"pt export --out backup.json\" first.")
			os.Exit(1)
		}
		return withApp(runDeleteAll)
	},
}

func init() {
	deleteAllCmd.Flags().BoolVar(&deleteAllYes, "yes", false, "Confirm deletion")
}

func runDeleteAll(ctx context.Context, a *app) error {
	if err := a.store.DeleteAll(ctx); err != nil {
		return err
	}
	fmt.Println("Deleted all records.")
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename [name]",
	Short: "Set the display name of the current project",
	Long:  "rename sets the display name of the current project. Without a name it reverts to the folder name.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, "")
		return withApp(func(ctx context.Context, a *app) error {
			return runRename(ctx, a, name)
		})
	},
}

func runRename(ctx context.Context, a *app, name string) error {
	if err := a.store.Rename(ctx, name); err != nil {
		return err
	}
	current, err := a.store.ProjectName(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Project is now called %q.\n", current)
	return nil
}

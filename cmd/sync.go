package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage which projects are replicated across devices",
}

var syncListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects and their opt-in state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runSyncList)
	},
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable synchronisation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			return runSyncEnabled(ctx, a, true)
		})
	},
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable synchronisation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			return runSyncEnabled(ctx, a, false)
		})
	},
}

var syncSetCmd = &cobra.Command{
	Use:   "set <id> <true|false>",
	Short: "Opt a registered project in or out",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		synced, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: want true or false", args[1])
		}
		id := args[0]
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.publisher.SetSynced(ctx, id, synced); err != nil {
				return err
			}
			fmt.Printf("%s synced=%t\n", id, synced)
			return nil
		})
	},
}

func init() {
	syncCmd.AddCommand(syncListCmd)
	syncCmd.AddCommand(syncEnableCmd)
	syncCmd.AddCommand(syncDisableCmd)
	syncCmd.AddCommand(syncSetCmd)
}

func runSyncList(ctx context.Context, a *app) error {
	settings := a.conf.SyncSettings()
	state := "disabled"
	if settings.Enabled {
		state = "enabled"
	}
	fmt.Printf("Synchronisation %s.\n", state)

	entries := a.publisher.Entries()
	if len(entries) == 0 {
		fmt.Println("No projects registered yet.")
		return nil
	}
	for _, e := range entries {
		mark := " "
		if e.Synced {
			mark = "x"
		}
		fmt.Printf("[%s] %-20s %-16s %s\n", mark, e.ProjectName, e.DeviceName, e.ID)
	}
	return nil
}

func runSyncEnabled(ctx context.Context, a *app, enabled bool) error {
	if err := a.publisher.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Synchronisation %s; %d key(s) published.\n", state, len(a.publisher.Keys()))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KunlingLio/project-timer/internal/history"
	"github.com/KunlingLio/project-timer/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the record of the current project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runStatus)
	},
}

func runStatus(ctx context.Context, a *app) error {
	rec, err := a.store.Get(ctx)
	if err != nil {
		return err
	}
	today := timecalc.DateKey(time.Now())

	fmt.Printf("Project: %s\n", rec.Name())
	fmt.Printf("  Folder: %s\n", rec.MatchInfo.FolderName)
	if p := rec.MatchInfo.Parent(); p != "" {
		fmt.Printf("  Parent: %s\n", p)
	}
	if r := rec.MatchInfo.Remote(); r != "" {
		fmt.Printf("  Remote: %s\n", r)
	}
	fmt.Printf("  Key: %s\n", rec.Key())
	fmt.Printf("Device: %s (%s)\n", a.device.Hostname(), a.device.DeviceID())
	fmt.Printf("Today: %s\n", timecalc.FormatSeconds(history.OnDate(rec.History, today)))
	fmt.Printf("Total: %s\n", timecalc.FormatSeconds(history.Total(rec.History)))

	settings := a.conf.SyncSettings()
	synced := "no"
	if entry, ok := settings.Projects[rec.SyncID()]; ok && entry.Synced {
		synced = "yes"
	}
	if !settings.Enabled {
		synced += " (sync disabled)"
	}
	fmt.Printf("Synced: %s\n", synced)
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KunlingLio/project-timer/internal/workspace"
)

var (
	flagWorkspace string
	flagConfig    string
)

var rootCmd = &cobra.Command{
	Use:   "pt",
	Short: "Project Timer – per-project time tracking across devices",
	Long: `pt records how long you actively work on each project, per day, language
and file. Records are matched to the open folder by git remote, parent path
and folder name, and can be replicated between devices.
Data lives in ~/.pt/.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "Project folder (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: ~/.pt/config.yaml)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(deleteAllCmd)
	rootCmd.AddCommand(syncCmd)
}

// fail prints err and exits: 1 when there is no project to work on, 2 for
// storage and configuration errors.
func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	if errors.Is(err, workspace.ErrNoWorkspaceOpen) {
		os.Exit(1)
	}
	os.Exit(2)
}

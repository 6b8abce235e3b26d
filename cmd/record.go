package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KunlingLio/project-timer/internal/activity"
	"github.com/KunlingLio/project-timer/internal/model"
	"github.com/KunlingLio/project-timer/internal/timecalc"
)

var (
	recordDuration time.Duration
	recordFile     string
	recordLanguage string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Add time to today's entry of the current project",
	Long: `record adds a fixed amount of time to today's entry, for editor hooks
and scripts that track activity themselves. The language is derived from
--file unless given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordDuration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}
		return withApp(runRecord)
	},
}

func init() {
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Time to add, e.g. 90s or 15m")
	recordCmd.Flags().StringVar(&recordFile, "file", "", "File worked on, relative to the workspace")
	recordCmd.Flags().StringVar(&recordLanguage, "language", "", "Language identifier")
}

func runRecord(ctx context.Context, a *app) error {
	rec, err := a.store.Get(ctx)
	if err != nil {
		return err
	}

	file := recordFile
	if filepath.IsAbs(file) && a.root != "" {
		// Absolute paths are never stored; keep them only if inside the workspace.
		if rel, err := filepath.Rel(a.root, file); err == nil && !filepath.IsAbs(rel) && !strings.HasPrefix(rel, "..") {
			file = rel
		} else {
			file = ""
		}
	}
	if file != "" {
		file = filepath.ToSlash(filepath.Clean(file))
	}
	language := recordLanguage
	if language == "" && file != "" {
		language = activity.LanguageOf(file)
	}

	addTime(rec.History, time.Now(), recordDuration.Seconds(), file, language)
	if err := a.store.Set(rec); err != nil {
		return err
	}
	if err := a.store.Flush(ctx); err != nil {
		return err
	}
	fmt.Printf("Recorded %s for project %q.\n", timecalc.FormatSeconds(recordDuration.Seconds()), rec.Name())
	return nil
}

// addTime adds seconds to the entry of now's date in h.
func addTime(h model.History, now time.Time, seconds float64, file, language string) {
	date := timecalc.DateKey(now)
	day, ok := h[date]
	if !ok {
		day = model.NewDailyRecord()
	}
	day.Seconds += seconds
	if language != "" {
		day.Languages[language] += seconds
	}
	if file != "" && file[0] != '/' {
		day.Files[file] += seconds
	}
	h[date] = day
}

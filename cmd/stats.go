package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/KunlingLio/project-timer/internal/history"
	"github.com/KunlingLio/project-timer/internal/model"
	"github.com/KunlingLio/project-timer/internal/timecalc"
)

var (
	statsFormat string
	statsTop    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics of the current project across all devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(runStats)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "md", "Output format: md, csv, json")
	statsCmd.Flags().IntVar(&statsTop, "top", 5, "Number of languages and files to show")
}

type deviceStats struct {
	Device       string  `json:"device"`
	Local        bool    `json:"local"`
	TodaySeconds float64 `json:"today_seconds"`
	TotalSeconds float64 `json:"total_seconds"`
}

type projectStats struct {
	Project      string             `json:"project"`
	Week         string             `json:"week"`
	TodaySeconds float64            `json:"today_seconds"`
	TotalSeconds float64            `json:"total_seconds"`
	WeekSeconds  map[string]float64 `json:"week_seconds"`
	Devices      []deviceStats      `json:"devices"`
	Languages    []history.Share    `json:"languages"`
	Files        []history.Share    `json:"files"`
}

// buildStats aggregates the records of every device. recs[0] is this
// device's record.
func buildStats(recs []model.ProjectRecord, now time.Time, top int) projectStats {
	today := timecalc.DateKey(now)
	hs := make([]model.History, 0, len(recs))
	st := projectStats{
		Project:     recs[0].Name(),
		Week:        timecalc.ISOWeekLabel(now),
		WeekSeconds: map[string]float64{},
	}
	for i, rec := range recs {
		hs = append(hs, rec.History)
		name := rec.DeviceID
		if rec.DeviceName != nil && *rec.DeviceName != "" {
			name = *rec.DeviceName
		}
		st.Devices = append(st.Devices, deviceStats{
			Device:       name,
			Local:        i == 0,
			TodaySeconds: history.OnDate(rec.History, today),
			TotalSeconds: history.Total(rec.History),
		})
	}
	merged := history.MergeAll(hs...)
	st.TodaySeconds = history.OnDate(merged, today)
	st.TotalSeconds = history.Total(merged)
	for _, date := range timecalc.WeekDates(now) {
		st.WeekSeconds[date] = history.OnDate(merged, date)
	}
	st.Languages = firstN(history.Languages(merged), top)
	st.Files = firstN(history.Files(merged), top)
	return st
}

func firstN(s []history.Share, n int) []history.Share {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func runStats(ctx context.Context, a *app) error {
	recs, err := a.store.GetAllForCurrentProject(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	st := buildStats(recs, now, statsTop)

	switch statsFormat {
	case "json":
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding JSON: %w", err)
		}
		fmt.Println(string(data))
	case "csv":
		if err := writeStatsCSV(os.Stdout, st); err != nil {
			return fmt.Errorf("error writing CSV: %w", err)
		}
	default: // md
		fmt.Printf("Project %s – week %s\n", st.Project, st.Week)
		fmt.Println("--------------------------------")
		for _, date := range timecalc.WeekDates(now) {
			fmt.Printf("%-20s%s\n", date, timecalc.FormatSeconds(st.WeekSeconds[date]))
		}
		fmt.Println("--------------------------------")
		fmt.Printf("%-20s%s\n", "Today", timecalc.FormatSeconds(st.TodaySeconds))
		fmt.Printf("%-20s%s\n", "Total", timecalc.FormatSeconds(st.TotalSeconds))

		fmt.Println("\nDevices")
		for _, d := range st.Devices {
			marker := ""
			if d.Local {
				marker = " (this device)"
			}
			fmt.Printf("  %-18s%s today, %s total%s\n", d.Device,
				timecalc.FormatSeconds(d.TodaySeconds), timecalc.FormatSeconds(d.TotalSeconds), marker)
		}
		printShares("Languages", st.Languages)
		printShares("Files", st.Files)
	}
	return nil
}

// writeStatsCSV writes one row per device followed by a row with the
// combined totals. Minutes are rounded down.
func writeStatsCSV(w io.Writer, st projectStats) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"project", "device", "local", "today_minutes", "total_minutes"})
	for _, d := range st.Devices {
		_ = cw.Write([]string{
			st.Project,
			d.Device,
			strconv.FormatBool(d.Local),
			minutes(d.TodaySeconds),
			minutes(d.TotalSeconds),
		})
	}
	_ = cw.Write([]string{st.Project, "all", "", minutes(st.TodaySeconds), minutes(st.TotalSeconds)})
	cw.Flush()
	return cw.Error()
}

func minutes(seconds float64) string {
	return strconv.FormatInt(int64(seconds)/60, 10)
}

func printShares(title string, shares []history.Share) {
	if len(shares) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	for _, s := range shares {
		fmt.Printf("  %-30s%s\n", s.Name, timecalc.FormatSeconds(s.Seconds))
	}
}

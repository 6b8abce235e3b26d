package timecalc

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the layout of history date keys.
const DateLayout = "2006-01-02"

// DateKey returns the history key for the local calendar day of t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatSeconds rounds fractional seconds down and formats them with FormatDuration.
func FormatSeconds(seconds float64) string {
	return FormatDuration(int64(math.Floor(seconds)))
}

// FormatDurationHHMMSS formats seconds as HH:MM:SS.
func FormatDurationHHMMSS(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// WeekRange returns the Monday and Sunday of the ISO week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	// Go's weekday: Sunday=0, Monday=1, ..., Saturday=6
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // treat Sunday as 7 (ISO)
	}
	monday := t.AddDate(0, 0, -(wd - 1))
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
	sunday := monday.AddDate(0, 0, 6)
	sunday = time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, 0, t.Location())
	return monday, sunday
}

// WeekDates returns the seven date keys of the ISO week containing t.
func WeekDates(t time.Time) []string {
	monday, _ := WeekRange(t)
	dates := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		dates = append(dates, DateKey(monday.AddDate(0, 0, i)))
	}
	return dates
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

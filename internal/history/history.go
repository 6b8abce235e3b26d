// Package history merges and summarises per-day activity maps.
package history

import (
	"sort"

	"github.com/KunlingLio/project-timer/internal/model"
)

// Merge returns a new history holding the field-wise sum of a and b. Neither
// input is modified. Merging a history with itself doubles it, so callers must
// feed every source record into a merge chain exactly once.
func Merge(a, b model.History) model.History {
	merged := a.Clone()
	for date, src := range b {
		dst, ok := merged[date]
		if !ok {
			dst = model.NewDailyRecord()
		}
		if dst.Languages == nil {
			dst.Languages = map[string]float64{}
		}
		if dst.Files == nil {
			dst.Files = map[string]float64{}
		}
		dst.Seconds += src.Seconds
		for lang, sec := range src.Languages {
			dst.Languages[lang] += sec
		}
		for file, sec := range src.Files {
			dst.Files[file] += sec
		}
		merged[date] = dst
	}
	return merged
}

// MergeAll folds hs from left to right. It returns an empty history for no input.
func MergeAll(hs ...model.History) model.History {
	out := model.History{}
	for _, h := range hs {
		out = Merge(out, h)
	}
	return out
}

// Total returns the seconds recorded over all dates.
func Total(h model.History) float64 {
	var total float64
	for _, rec := range h {
		total += rec.Seconds
	}
	return total
}

// OnDate returns the seconds recorded on date, or 0.
func OnDate(h model.History, date string) float64 {
	return h[date].Seconds
}

// Share is a named slice of time, such as one language or one file.
type Share struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
}

// Languages returns per-language totals over all dates, largest first.
func Languages(h model.History) []Share {
	return collect(h, func(rec model.DailyRecord) map[string]float64 { return rec.Languages })
}

// Files returns per-file totals over all dates, largest first.
func Files(h model.History) []Share {
	return collect(h, func(rec model.DailyRecord) map[string]float64 { return rec.Files })
}

func collect(h model.History, pick func(model.DailyRecord) map[string]float64) []Share {
	totals := map[string]float64{}
	for _, rec := range h {
		for name, sec := range pick(rec) {
			totals[name] += sec
		}
	}
	shares := make([]Share, 0, len(totals))
	for name, sec := range totals {
		shares = append(shares, Share{Name: name, Seconds: sec})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Seconds != shares[j].Seconds {
			return shares[i].Seconds > shares[j].Seconds
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}

// Dates returns the dates present in h in ascending order.
func Dates(h model.History) []string {
	dates := make([]string, 0, len(h))
	for date := range h {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

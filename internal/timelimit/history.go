package timelimit

import (
	"maps"
	"slices"
	"sort"

	"github.com/btouchard/holdfast/internal/clock"
)

const historyKey = "time_tracking_history"

// DayRecord is the archived usage of one calendar date.
type DayRecord struct {
	Date          string           `json:"date"`
	PerPlatformMs map[string]int64 `json:"perPlatformMs"`
	TotalMs       int64            `json:"totalMs"`
}

// History is the long-term usage ledger, ordered by date.
type History struct {
	Records []DayRecord `json:"records"`
}

// Merge adds perPlatform into the record for date, summing with any totals
// already archived for that date.
func (h *History) Merge(date string, perPlatform map[string]int64) {
	i := sort.Search(len(h.Records), func(i int) bool { return h.Records[i].Date >= date })
	if i == len(h.Records) || h.Records[i].Date != date {
		h.Records = slices.Insert(h.Records, i, DayRecord{Date: date, PerPlatformMs: map[string]int64{}})
	}
	rec := &h.Records[i]
	if rec.PerPlatformMs == nil {
		rec.PerPlatformMs = map[string]int64{}
	}
	for _, p := range slices.Sorted(maps.Keys(perPlatform)) {
		rec.PerPlatformMs[p] += perPlatform[p]
		rec.TotalMs += perPlatform[p]
	}
}

// Prune drops records dated before today minus retentionDays.
func (h *History) Prune(today string, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	cutoff := clock.AddDays(today, -retentionDays)
	h.Records = slices.DeleteFunc(h.Records, func(r DayRecord) bool { return r.Date < cutoff })
}

// Day returns the record for date.
func (h History) Day(date string) (DayRecord, bool) {
	for _, r := range h.Records {
		if r.Date == date {
			return r, true
		}
	}
	return DayRecord{}, false
}

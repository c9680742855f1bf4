// Package stats keeps per-day activity counters that feed the streak goals.
package stats

import (
	"context"
	"maps"
	"slices"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/store"
)

const recordKey = "daily_stats"

// Day holds the counters for one calendar date.
type Day struct {
	FocusMinutes int `json:"focusMinutes"`
	BlockCount   int `json:"blockCount"`
}

// Data is the persisted record: date → counters.
type Data struct {
	Days map[string]Day `json:"days"`
}

// Tracker records focus minutes and blocked accesses.
type Tracker struct {
	doc       *store.Doc[Data]
	clock     clock.Clock
	retention int
}

// New creates a Tracker keeping retentionDays days of counters.
func New(s store.Store, clk clock.Clock, retentionDays int) *Tracker {
	return &Tracker{
		doc:       store.NewDoc(s, recordKey, func() Data { return Data{Days: map[string]Day{}} }),
		clock:     clk,
		retention: retentionDays,
	}
}

// RecordFocus adds completed focus minutes to date.
func (t *Tracker) RecordFocus(ctx context.Context, date string, minutes int) error {
	if minutes <= 0 {
		return nil
	}
	return t.add(ctx, date, func(d *Day) { d.FocusMinutes += minutes })
}

// RecordBlock counts one blocked access today.
func (t *Tracker) RecordBlock(ctx context.Context) error {
	return t.add(ctx, t.clock.Today(), func(d *Day) { d.BlockCount++ })
}

// Day returns the counters for date; absent dates are zero.
func (t *Tracker) Day(ctx context.Context, date string) Day {
	return t.doc.Get(ctx).Days[date]
}

// Dates returns the recorded dates in ascending order.
func (t *Tracker) Dates(ctx context.Context) []string {
	return slices.Sorted(maps.Keys(t.doc.Get(ctx).Days))
}

func (t *Tracker) add(ctx context.Context, date string, fn func(*Day)) error {
	today := t.clock.Today()
	_, err := t.doc.Update(ctx, func(data *Data) error {
		if data.Days == nil {
			data.Days = map[string]Day{}
		}
		day := data.Days[date]
		fn(&day)
		data.Days[date] = day
		prune(data.Days, today, t.retention)
		return nil
	})
	return err
}

func prune(days map[string]Day, today string, retention int) {
	if retention <= 0 {
		return
	}
	cutoff := clock.AddDays(today, -retention)
	for date := range days {
		if date < cutoff {
			delete(days, date)
		}
	}
}

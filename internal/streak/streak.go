// Package streak tracks consecutive successful days against a daily goal.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/stats"
	"github.com/btouchard/holdfast/internal/store"
)

// WakeLabel is the scheduler label for the end-of-day evaluation.
const WakeLabel = "streak_check"

const recordKey = "streak_data"

// Goals a day can be measured against.
const (
	GoalFocusMinutes = "focus_minutes"
	GoalBlockCount   = "block_count"
	GoalNoAccess     = "no_access"
)

// Data is the persisted streak.
type Data struct {
	CurrentStreak      int    `json:"currentStreak"`
	LongestStreak      int    `json:"longestStreak"`
	LastActiveDate     string `json:"lastActiveDate"`
	LastSuccessDate    string `json:"lastSuccessDate"`
	TotalSuccessDays   int    `json:"totalSuccessDays"`
	AchievedMilestones []int  `json:"achievedMilestones"`
}

// DayStats reports the per-day counters.
type DayStats interface {
	Day(ctx context.Context, date string) stats.Day
}

// UsageSource reports the total tracked usage of a date.
type UsageSource interface {
	UsageOn(ctx context.Context, date string) int64
}

// Engine evaluates the streak.
type Engine struct {
	cfg      config.StreakConfig
	doc      *store.Doc[Data]
	clock    clock.Clock
	stats    DayStats
	usage    UsageSource
	notifier notify.Notifier
}

// New creates a streak Engine.
func New(cfg config.StreakConfig, s store.Store, clk clock.Clock, st DayStats, usage UsageSource, n notify.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		doc:      store.NewDoc(s, recordKey, func() Data { return Data{} }),
		clock:    clk,
		stats:    st,
		usage:    usage,
		notifier: n,
	}
}

// Successful reports whether date met the configured goal. A no_access day
// only succeeds once it is over.
func (e *Engine) Successful(ctx context.Context, date string) bool {
	return e.successful(ctx, date, date < e.clock.Today())
}

func (e *Engine) successful(ctx context.Context, date string, complete bool) bool {
	switch e.cfg.Goal {
	case GoalBlockCount:
		return e.stats.Day(ctx, date).BlockCount >= e.cfg.Target
	case GoalNoAccess:
		return complete && e.usage.UsageOn(ctx, date) == 0
	default:
		return e.stats.Day(ctx, date).FocusMinutes >= e.cfg.Target
	}
}

// Evaluate applies one day-boundary check for today. todayOK and
// yesterdayOK are the goal results for today and the day before. It returns
// the updated data and any milestones crossed for the first time.
//
// A successful yesterday that was not yet credited is credited even when
// today has not met the goal, so a day reached late still extends the
// streak. Each success date counts once.
func Evaluate(d Data, today string, todayOK, yesterdayOK bool, milestones []int) (Data, []int) {
	yesterday := clock.AddDays(today, -1)

	switch d.LastActiveDate {
	case today:
		if todayOK {
			credit(&d, today)
		}
	case yesterday:
		if yesterdayOK {
			credit(&d, yesterday)
		} else {
			d.CurrentStreak = 0
		}
		if todayOK {
			credit(&d, today)
		}
	default:
		d.CurrentStreak = 0
		if todayOK {
			credit(&d, today)
		}
	}

	d.LastActiveDate = today
	d.LongestStreak = max(d.LongestStreak, d.CurrentStreak)

	var crossed []int
	for _, m := range slices.Sorted(slices.Values(milestones)) {
		if d.CurrentStreak >= m && !slices.Contains(d.AchievedMilestones, m) {
			d.AchievedMilestones = append(d.AchievedMilestones, m)
			crossed = append(crossed, m)
		}
	}
	slices.Sort(d.AchievedMilestones)
	return d, crossed
}

// credit counts date as a successful day once.
func credit(d *Data, date string) {
	if d.LastSuccessDate == date {
		return
	}
	if d.LastSuccessDate == clock.AddDays(date, -1) {
		d.CurrentStreak++
	} else {
		d.CurrentStreak = 1
	}
	d.LastSuccessDate = date
	d.TotalSuccessDays++
}

// CheckDay evaluates the streak for today. It is idempotent and may be called
// any number of times per day.
func (e *Engine) CheckDay(ctx context.Context) (Data, error) {
	return e.check(ctx, false)
}

// check evaluates the streak. endOfDay treats today as complete.
func (e *Engine) check(ctx context.Context, endOfDay bool) (Data, error) {
	if !e.cfg.Enabled {
		return e.doc.Get(ctx), nil
	}

	today := e.clock.Today()
	todayOK := e.successful(ctx, today, endOfDay)
	yesterdayOK := e.successful(ctx, clock.AddDays(today, -1), true)

	var crossed []int
	var before int
	d, err := e.doc.Update(ctx, func(d *Data) error {
		before = d.CurrentStreak
		*d, crossed = Evaluate(*d, today, todayOK, yesterdayOK, e.cfg.Milestones)
		return nil
	})
	if err != nil {
		return Data{}, err
	}

	if d.CurrentStreak != before {
		slog.Info("streak updated", "from", before, "to", d.CurrentStreak, "longest", d.LongestStreak)
	}
	for _, m := range crossed {
		e.notifier.Notify(notify.Event{
			Type:    "streak.milestone",
			Title:   fmt.Sprintf("%d-day streak!", m),
			Message: fmt.Sprintf("You have met your goal %d days in a row.", d.CurrentStreak),
		})
	}
	return d, nil
}

// Data returns the stored streak without evaluating.
func (e *Engine) Data(ctx context.Context) Data {
	return e.doc.Get(ctx)
}

// HandleWake is the scheduler handler for WakeLabel. A wake-up delivered on
// the day it was due closes that day; a late one only evaluates.
func (e *Engine) HandleWake(ctx context.Context, at time.Time) error {
	now := e.clock.Now()
	_, err := e.check(ctx, clock.DateOf(at.In(now.Location())) == clock.DateOf(now))
	return err
}

// Package timelimit accumulates per-platform daily usage, enforces daily
// limits and archives each day into the usage history.
package timelimit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/store"
)

// WakeLabel is the scheduler label for the daily rollover.
const WakeLabel = "daily_rollover"

const recordKey = "time_limits_state"

// Usage is today's accumulated time on one platform.
type Usage struct {
	Platform     string    `json:"platform"`
	UsedTodayMs  int64     `json:"usedTodayMs"`
	LastActiveAt time.Time `json:"lastActiveAt,omitzero"`
}

// State holds today's usage. LastResetDate is the date the entries belong to.
type State struct {
	Usage         []Usage `json:"usage"`
	LastResetDate string  `json:"lastResetDate"`
}

func (s *State) entry(platform string) *Usage {
	for i := range s.Usage {
		if s.Usage[i].Platform == platform {
			return &s.Usage[i]
		}
	}
	s.Usage = append(s.Usage, Usage{Platform: platform})
	return &s.Usage[len(s.Usage)-1]
}

func (s State) used(platform string) int64 {
	for _, u := range s.Usage {
		if u.Platform == platform {
			return u.UsedTodayMs
		}
	}
	return 0
}

func (s State) totals() map[string]int64 {
	out := make(map[string]int64, len(s.Usage))
	for _, u := range s.Usage {
		if u.UsedTodayMs > 0 {
			out[u.Platform] += u.UsedTodayMs
		}
	}
	return out
}

// Status is the result of a limit check.
type Status struct {
	Platform     string  `json:"platform"`
	HasLimit     bool    `json:"hasLimit"`
	UsedMs       int64   `json:"usedMs"`
	LimitMs      int64   `json:"limitMs"`
	RemainingMs  int64   `json:"remainingMs"`
	PercentUsed  float64 `json:"percentUsed"`
	LimitReached bool    `json:"limitReached"`
	Warn         bool    `json:"warn"`
	Block        bool    `json:"block"`
}

// Engine tracks usage against the configured limits.
type Engine struct {
	cfg      config.TimeLimitsConfig
	state    *store.Doc[State]
	history  *store.Doc[History]
	clock    clock.Clock
	notifier notify.Notifier

	mu sync.Mutex // spans the usage and history records during a rollover
}

// New creates a time-limits Engine.
func New(cfg config.TimeLimitsConfig, s store.Store, clk clock.Clock, n notify.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		state:    store.NewDoc(s, recordKey, func() State { return State{} }),
		history:  store.NewDoc(s, historyKey, func() History { return History{} }),
		clock:    clk,
		notifier: n,
	}
}

// NormalizePlatform lower-cases and trims a platform name.
func NormalizePlatform(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Evaluate computes the limit status for used milliseconds against cfg.
func Evaluate(cfg config.TimeLimitsConfig, platform string, used int64) Status {
	st := Status{Platform: platform, UsedMs: used}
	minutes, ok := cfg.Limits[platform]
	if !cfg.Enabled || !ok || minutes <= 0 {
		return st
	}

	st.HasLimit = true
	st.LimitMs = (time.Duration(minutes) * time.Minute).Milliseconds()
	st.RemainingMs = max(0, st.LimitMs-used)
	st.PercentUsed = float64(used) * 100 / float64(st.LimitMs)
	st.LimitReached = used >= st.LimitMs
	st.Warn = st.PercentUsed >= float64(cfg.WarningThresholdPercent)
	st.Block = st.LimitReached && cfg.BlockWhenLimitReached
	return st
}

// TrackActivity adds durationMs of activity on platform to today's usage.
// It is a no-op while time limits are disabled.
func (e *Engine) TrackActivity(ctx context.Context, platform string, durationMs int64) (Status, error) {
	platform = NormalizePlatform(platform)
	if platform == "" {
		return Status{}, fault.Validation("platform is required")
	}
	if durationMs <= 0 {
		return Status{}, fault.Validation("duration must be positive")
	}
	if !e.cfg.Enabled {
		return Status{Platform: platform}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.roll(ctx); err != nil {
		return Status{}, err
	}

	now := e.clock.Now()
	today := e.clock.Today()
	var before int64
	st, err := e.state.Update(ctx, func(s *State) error {
		if s.LastResetDate != today {
			*s = State{LastResetDate: today}
		}
		u := s.entry(platform)
		before = u.UsedTodayMs
		u.UsedTodayMs += durationMs
		u.LastActiveAt = now
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	prev := Evaluate(e.cfg, platform, before)
	status := Evaluate(e.cfg, platform, st.used(platform))
	e.announce(prev, status)
	return status, nil
}

func (e *Engine) announce(prev, cur Status) {
	switch {
	case cur.LimitReached && !prev.LimitReached:
		slog.Info("daily limit reached", "platform", cur.Platform)
		e.notifier.Notify(notify.Event{
			Type:    "timelimit.limit_reached",
			Title:   "Daily limit reached",
			Message: fmt.Sprintf("You have used all of today's time on %s.", cur.Platform),
		})
	case cur.Warn && !prev.Warn:
		e.notifier.Notify(notify.Event{
			Type:  "timelimit.warning",
			Title: "Approaching daily limit",
			Message: fmt.Sprintf("%.0f%% of today's time on %s used, %s left.",
				cur.PercentUsed, cur.Platform, fault.FormatWait(time.Duration(cur.RemainingMs)*time.Millisecond)),
		})
	}
}

// CheckLimit reports usage against the limit for platform. Platforms without
// a limit, or a disabled engine, yield a neutral status.
func (e *Engine) CheckLimit(ctx context.Context, platform string) Status {
	platform = NormalizePlatform(platform)
	return Evaluate(e.cfg, platform, e.Today(ctx).used(platform))
}

// Today returns today's usage, rolling the previous day over first.
func (e *Engine) Today(ctx context.Context) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roll(ctx); err != nil {
		slog.Warn("usage rollover failed", "error", err)
	}
	today := e.clock.Today()
	st := e.state.Get(ctx)
	if st.LastResetDate != today {
		return State{LastResetDate: today}
	}
	return st
}

// ResetUsage clears one platform, or every platform when platform is empty.
func (e *Engine) ResetUsage(ctx context.Context, platform string) error {
	platform = NormalizePlatform(platform)

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.state.Update(ctx, func(s *State) error {
		if platform == "" {
			s.Usage = nil
			return nil
		}
		s.Usage = slices.DeleteFunc(s.Usage, func(u Usage) bool { return u.Platform == platform })
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("usage reset", "platform", platform)
	return nil
}

// Rollover archives a finished day into the history, clears usage and
// prunes the history. Usage that already belongs to today is left alone, so
// a late or repeated wake-up is equivalent to the roll done on every read.
func (e *Engine) Rollover(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.roll(ctx); err != nil {
		return err
	}
	today := e.clock.Today()
	_, err := e.history.Update(ctx, func(h *History) error {
		h.Prune(today, e.cfg.HistoryRetentionDays)
		return nil
	})
	return err
}

// HandleWake is the scheduler handler for WakeLabel.
func (e *Engine) HandleWake(ctx context.Context, _ time.Time) error {
	return e.Rollover(ctx)
}

// History returns the archived days, oldest first.
func (e *Engine) History(ctx context.Context) []DayRecord {
	return e.history.Get(ctx).Records
}

// UsageOn returns the total milliseconds used on date, taken from today's
// usage or the history.
func (e *Engine) UsageOn(ctx context.Context, date string) int64 {
	if date == e.clock.Today() {
		var total int64
		for _, ms := range e.Today(ctx).totals() {
			total += ms
		}
		return total
	}
	rec, _ := e.history.Get(ctx).Day(date)
	return rec.TotalMs
}

func (e *Engine) roll(ctx context.Context) error {
	today := e.clock.Today()
	st := e.state.Get(ctx)
	if st.LastResetDate == today {
		return nil
	}
	if st.LastResetDate == "" {
		_, err := e.state.Update(ctx, func(s *State) error {
			if s.LastResetDate == "" {
				s.LastResetDate = today
			}
			return nil
		})
		return err
	}
	return e.archive(ctx, st.LastResetDate, st, today)
}

func (e *Engine) archive(ctx context.Context, date string, st State, today string) error {
	totals := st.totals()
	_, err := e.history.Update(ctx, func(h *History) error {
		if len(totals) > 0 {
			h.Merge(date, totals)
		}
		h.Prune(today, e.cfg.HistoryRetentionDays)
		return nil
	})
	if err != nil {
		return err
	}

	_, err = e.state.Update(ctx, func(s *State) error {
		*s = State{LastResetDate: today}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("usage rolled over", "date", date, "platforms", len(totals))
	return nil
}

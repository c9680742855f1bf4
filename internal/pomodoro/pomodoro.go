// Package pomodoro implements the work/break cycle.
package pomodoro

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/store"
)

// WakeLabel is the scheduler label for the end of the current interval.
const WakeLabel = "pomodoro_end"

const recordKey = "pomodoro_state"

// Mode is the interval kind.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeWork      Mode = "work"
	ModeBreak     Mode = "break"
	ModeLongBreak Mode = "longBreak"
)

// ParseMode accepts "" (meaning the pre-selected mode) or a non-idle mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "", ModeWork, ModeBreak, ModeLongBreak:
		return m, nil
	}
	return "", fault.Validation("unknown pomodoro mode %q", s)
}

// State is the persisted cycle. When not running with a non-idle mode, the
// cycle is either paused or parked on the next interval; in both cases
// RemainingMs is what Resume will count down.
type State struct {
	Running      bool      `json:"running"`
	Mode         Mode      `json:"mode"`
	RemainingMs  int64     `json:"remainingMs"`
	SessionCount int       `json:"sessionCount"`
	StartedAt    time.Time `json:"startedAt,omitzero"`
	EndTime      time.Time `json:"endTime,omitzero"`
}

func idle() State { return State{Mode: ModeIdle} }

// Remaining returns the time left in the current interval at now.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.Running {
		return time.Duration(s.RemainingMs) * time.Millisecond
	}
	return max(0, s.EndTime.Sub(now))
}

// Waker registers and cancels wake-ups.
type Waker interface {
	Schedule(ctx context.Context, label string, at time.Time) error
	Cancel(ctx context.Context, label string) error
}

// Recorder receives completed work minutes.
type Recorder interface {
	RecordFocus(ctx context.Context, date string, minutes int) error
}

// Engine runs the pomodoro cycle.
type Engine struct {
	cfg      config.PomodoroConfig
	doc      *store.Doc[State]
	clock    clock.Clock
	waker    Waker
	notifier notify.Notifier
	stats    Recorder
}

// New creates a pomodoro Engine.
func New(cfg config.PomodoroConfig, s store.Store, clk clock.Clock, w Waker, n notify.Notifier, stats Recorder) *Engine {
	return &Engine{
		cfg:      cfg,
		doc:      store.NewDoc(s, recordKey, idle),
		clock:    clk,
		waker:    w,
		notifier: n,
		stats:    stats,
	}
}

// Duration returns the configured length of mode.
func Duration(cfg config.PomodoroConfig, m Mode) time.Duration {
	switch m {
	case ModeBreak:
		return time.Duration(cfg.BreakMinutes) * time.Minute
	case ModeLongBreak:
		return time.Duration(cfg.LongBreakMinutes) * time.Minute
	default:
		return time.Duration(cfg.WorkMinutes) * time.Minute
	}
}

// Advance applies the transition table to the interval in s.Mode, as if it
// had just finished at now. Work increments the session count and leads to a
// break, or a long break once the threshold is reached; leaving a long break
// resets the count. The next interval auto-starts when configured, otherwise
// the cycle parks on it with its full duration loaded.
func Advance(cfg config.PomodoroConfig, s State, now time.Time) State {
	next := ModeWork
	switch s.Mode {
	case ModeWork:
		s.SessionCount++
		next = ModeBreak
		if cfg.SessionsBeforeLongBreak > 0 && s.SessionCount >= cfg.SessionsBeforeLongBreak {
			next = ModeLongBreak
		}
	case ModeLongBreak:
		s.SessionCount = 0
	}

	d := Duration(cfg, next)
	auto := cfg.AutoStartWork
	if next != ModeWork {
		auto = cfg.AutoStartBreaks
	}

	out := State{Mode: next, RemainingMs: d.Milliseconds(), SessionCount: s.SessionCount}
	if auto {
		out.Running = true
		out.StartedAt = now
		out.EndTime = now.Add(d)
	}
	return out
}

// Expire completes a running interval whose end time has passed.
func Expire(cfg config.PomodoroConfig, s State, now time.Time) (State, []notify.Event) {
	if !s.Running || now.Before(s.EndTime) {
		return s, nil
	}
	next := Advance(cfg, s, now)
	return next, []notify.Event{completedEvent(s.Mode, next)}
}

func completedEvent(done Mode, next State) notify.Event {
	title := "Work session complete"
	if done != ModeWork {
		title = "Break over"
	}
	msg := fmt.Sprintf("Next: %s (%s).", next.Mode, fault.FormatWait(time.Duration(next.RemainingMs)*time.Millisecond))
	if !next.Running {
		msg += " Start it when you are ready."
	}
	return notify.Event{Type: "pomodoro.completed", Title: title, Message: msg}
}

// Start begins an interval. An empty mode starts the pre-selected interval,
// or work when the cycle is idle.
func (e *Engine) Start(ctx context.Context, mode Mode) (State, error) {
	if !e.cfg.Enabled {
		return State{}, fault.Denied(fault.ReasonDisabled, 0, "pomodoro is disabled")
	}
	e.expire(ctx)

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if s.Running {
			return fault.InvalidState("a pomodoro interval is already running")
		}
		m := mode
		if m == "" {
			m = s.Mode
		}
		if m == "" || m == ModeIdle {
			m = ModeWork
		}
		d := Duration(e.cfg, m)
		*s = State{
			Running:      true,
			Mode:         m,
			RemainingMs:  d.Milliseconds(),
			SessionCount: s.SessionCount,
			StartedAt:    now,
			EndTime:      now.Add(d),
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}

	if err := e.waker.Schedule(ctx, WakeLabel, st.EndTime); err != nil {
		return st, fault.Store("scheduling pomodoro end", err)
	}
	slog.Info("pomodoro started", "mode", st.Mode, "ends_at", st.EndTime)
	return st, nil
}

// Pause freezes the running interval.
func (e *Engine) Pause(ctx context.Context) (State, error) {
	e.expire(ctx)

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if !s.Running {
			return fault.InvalidState("no pomodoro interval is running")
		}
		s.RemainingMs = max(0, s.EndTime.Sub(now)).Milliseconds()
		s.Running = false
		s.EndTime = time.Time{}
		return nil
	})
	if err != nil {
		return State{}, err
	}

	if err := e.waker.Cancel(ctx, WakeLabel); err != nil {
		slog.Warn("cancelling pomodoro wake-up failed", "error", err)
	}
	slog.Info("pomodoro paused", "mode", st.Mode, "remaining_ms", st.RemainingMs)
	return st, nil
}

// Resume continues a paused or parked interval.
func (e *Engine) Resume(ctx context.Context) (State, error) {
	e.expire(ctx)

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if s.Running {
			return fault.InvalidState("pomodoro is already running")
		}
		if s.Mode == ModeIdle || s.Mode == "" {
			return fault.InvalidState("nothing to resume")
		}
		s.Running = true
		s.StartedAt = now
		s.EndTime = now.Add(time.Duration(s.RemainingMs) * time.Millisecond)
		return nil
	})
	if err != nil {
		return State{}, err
	}

	if err := e.waker.Schedule(ctx, WakeLabel, st.EndTime); err != nil {
		return st, fault.Store("scheduling pomodoro end", err)
	}
	slog.Info("pomodoro resumed", "mode", st.Mode, "ends_at", st.EndTime)
	return st, nil
}

// Stop resets the cycle to idle whatever its mode.
func (e *Engine) Stop(ctx context.Context) (State, error) {
	st, err := e.doc.Update(ctx, func(s *State) error {
		*s = State{Mode: ModeIdle, SessionCount: s.SessionCount}
		return nil
	})
	if err != nil {
		return State{}, err
	}

	if err := e.waker.Cancel(ctx, WakeLabel); err != nil {
		slog.Warn("cancelling pomodoro wake-up failed", "error", err)
	}
	slog.Info("pomodoro stopped")
	return st, nil
}

// Skip moves to the next interval immediately.
func (e *Engine) Skip(ctx context.Context) (State, error) {
	e.expire(ctx)

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if s.Mode == ModeIdle || s.Mode == "" {
			return fault.InvalidState("nothing to skip")
		}
		*s = Advance(e.cfg, *s, now)
		return nil
	})
	if err != nil {
		return State{}, err
	}

	e.rearm(ctx, st)
	slog.Info("pomodoro skipped", "next", st.Mode, "running", st.Running)
	return st, nil
}

// State returns the cycle, completing an overdue interval first.
func (e *Engine) State(ctx context.Context) State {
	return e.expire(ctx)
}

// HandleWake is the scheduler handler for WakeLabel.
func (e *Engine) HandleWake(ctx context.Context, _ time.Time) error {
	e.expire(ctx)
	return nil
}

func (e *Engine) expire(ctx context.Context) State {
	var events []notify.Event
	var finished Mode
	var endedAt time.Time
	now := e.clock.Now()

	st := e.doc.Sweep(ctx, func(s *State) bool {
		next, evs := Expire(e.cfg, *s, now)
		if len(evs) == 0 {
			return false
		}
		finished, endedAt = s.Mode, s.EndTime
		*s, events = next, evs
		return true
	})
	if len(events) == 0 {
		return st
	}

	slog.Info("pomodoro interval completed", "mode", finished, "next", st.Mode)
	if finished == ModeWork && e.stats != nil {
		if err := e.stats.RecordFocus(ctx, clock.DateOf(endedAt), e.cfg.WorkMinutes); err != nil {
			slog.Warn("recording focus minutes failed", "error", err)
		}
	}
	e.rearm(ctx, st)
	for _, ev := range events {
		e.notifier.Notify(ev)
	}
	return st
}

func (e *Engine) rearm(ctx context.Context, st State) {
	var err error
	if st.Running {
		err = e.waker.Schedule(ctx, WakeLabel, st.EndTime)
	} else {
		err = e.waker.Cancel(ctx, WakeLabel)
	}
	if err != nil {
		slog.Warn("updating pomodoro wake-up failed", "error", err)
	}
}

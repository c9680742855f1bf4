// Package focus implements the single deep-focus countdown.
package focus

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

// WakeLabel is the scheduler label for the end of a session.
const WakeLabel = "focus_end"

const recordKey = "focus_state"

// State is the persisted focus session. EndTime is zero when inactive.
type State struct {
	Active          bool      `json:"active"`
	StartedAt       time.Time `json:"startedAt,omitzero"`
	EndTime         time.Time `json:"endTime,omitzero"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Remaining returns the time left at now, zero when inactive.
func (s State) Remaining(now time.Time) time.Duration {
	if !s.Active || !now.Before(s.EndTime) {
		return 0
	}
	return s.EndTime.Sub(now)
}

// Waker registers and cancels wake-ups.
type Waker interface {
	Schedule(ctx context.Context, label string, at time.Time) error
	Cancel(ctx context.Context, label string) error
}

// Recorder receives completed focus minutes.
type Recorder interface {
	RecordFocus(ctx context.Context, date string, minutes int) error
}

// Engine runs focus sessions.
type Engine struct {
	cfg      config.FocusConfig
	doc      *store.Doc[State]
	clock    clock.Clock
	waker    Waker
	notifier notify.Notifier
	stats    Recorder
}

// New creates a focus Engine.
func New(cfg config.FocusConfig, s store.Store, clk clock.Clock, w Waker, n notify.Notifier, stats Recorder) *Engine {
	return &Engine{
		cfg:      cfg,
		doc:      store.NewDoc(s, recordKey, func() State { return State{} }),
		clock:    clk,
		waker:    w,
		notifier: n,
		stats:    stats,
	}
}

// Expire is the read-with-maintenance transition: a session past its end
// time becomes idle and yields a completion event.
func Expire(s State, now time.Time) (State, []notify.Event) {
	if !s.Active || now.Before(s.EndTime) {
		return s, nil
	}
	ev := notify.Event{
		Type:    "focus.completed",
		Title:   "Focus session complete",
		Message: fmt.Sprintf("You stayed focused for %d minutes.", s.DurationMinutes),
	}
	return State{DurationMinutes: s.DurationMinutes}, []notify.Event{ev}
}

// Start begins a session of minutes length. Zero uses the configured default.
func (e *Engine) Start(ctx context.Context, minutes int) (State, error) {
	if !e.cfg.Enabled {
		return State{}, fault.Denied(fault.ReasonDisabled, 0, "focus mode is disabled")
	}
	if minutes == 0 {
		minutes = e.cfg.DefaultMinutes
	}
	if minutes < 1 || (e.cfg.MaxMinutes > 0 && minutes > e.cfg.MaxMinutes) {
		return State{}, fault.Validation("duration must be between 1 and %d minutes", e.cfg.MaxMinutes)
	}

	e.expire(ctx)

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if s.Active {
			return fault.InvalidState("a focus session is already active")
		}
		*s = State{
			Active:          true,
			StartedAt:       now,
			EndTime:         now.Add(time.Duration(minutes) * time.Minute),
			DurationMinutes: minutes,
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}

	if err := e.waker.Schedule(ctx, WakeLabel, st.EndTime); err != nil {
		return st, fault.Store("scheduling focus end", err)
	}

	slog.Info("focus session started", "minutes", minutes, "ends_at", st.EndTime)
	if e.cfg.NotifyOnStart {
		e.notifier.Notify(notify.Event{
			Type:    "focus.started",
			Title:   "Focus session started",
			Message: fmt.Sprintf("%d minutes, ends at %s.", minutes, st.EndTime.Format("15:04")),
		})
	}
	return st, nil
}

// Cancel ends the running session early. Soft-lock must allow it.
func (e *Engine) Cancel(ctx context.Context) error {
	if st := e.expire(ctx); !st.Active {
		return fault.InvalidState("no focus session is active")
	}
	if !e.cfg.SoftLock {
		return fault.Denied(fault.ReasonCancelLocked, 0, "focus sessions cannot be cancelled")
	}

	_, err := e.doc.Update(ctx, func(s *State) error {
		if !s.Active {
			return fault.InvalidState("no focus session is active")
		}
		*s = State{}
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.waker.Cancel(ctx, WakeLabel); err != nil {
		slog.Warn("cancelling focus wake-up failed", "error", err)
	}
	slog.Info("focus session cancelled")
	return nil
}

// Extend pushes the end of the running session by minutes.
func (e *Engine) Extend(ctx context.Context, minutes int) (State, error) {
	if minutes < 1 {
		return State{}, fault.Validation("extension must be at least 1 minute")
	}
	e.expire(ctx)

	st, err := e.doc.Update(ctx, func(s *State) error {
		if !s.Active {
			return fault.InvalidState("no focus session is active")
		}
		s.EndTime = s.EndTime.Add(time.Duration(minutes) * time.Minute)
		s.DurationMinutes += minutes
		return nil
	})
	if err != nil {
		return State{}, err
	}

	if err := e.waker.Schedule(ctx, WakeLabel, st.EndTime); err != nil {
		return st, fault.Store("rescheduling focus end", err)
	}
	slog.Info("focus session extended", "minutes", minutes, "ends_at", st.EndTime)
	return st, nil
}

// State returns the current session, expiring it first if its time is up.
func (e *Engine) State(ctx context.Context) State {
	return e.expire(ctx)
}

// HandleWake is the scheduler handler for WakeLabel. Firing into an idle
// state is a no-op.
func (e *Engine) HandleWake(ctx context.Context, _ time.Time) error {
	e.expire(ctx)
	return nil
}

func (e *Engine) expire(ctx context.Context) State {
	var events []notify.Event
	var completed int
	var endedAt time.Time
	now := e.clock.Now()

	st := e.doc.Sweep(ctx, func(s *State) bool {
		next, evs := Expire(*s, now)
		if len(evs) == 0 {
			return false
		}
		completed, endedAt = s.DurationMinutes, s.EndTime
		*s, events = next, evs
		return true
	})

	if len(events) > 0 {
		slog.Info("focus session completed", "minutes", completed)
		if e.stats != nil {
			if err := e.stats.RecordFocus(ctx, clock.DateOf(endedAt), completed); err != nil {
				slog.Warn("recording focus minutes failed", "error", err)
			}
		}
		for _, ev := range events {
			e.notifier.Notify(ev)
		}
	}
	return st
}

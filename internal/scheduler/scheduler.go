// Package scheduler delivers persisted wake-ups.
//
// A wake-up is a (label, absolute time) pair. Scheduling a label replaces any
// earlier wake-up with the same label. Delivery is at-least-once and may be
// late: alarms are re-armed from the store on Start, and a periodic cron
// sweep fires anything overdue, which covers process suspension and missed
// timers. Handlers must therefore be idempotent.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/store"
)

// Handler runs when a wake-up fires. at is the time it was scheduled for.
type Handler func(ctx context.Context, at time.Time) error

// Scheduler arms in-process timers for persisted alarms.
type Scheduler struct {
	alarms store.AlarmStore
	clock  clock.Clock
	sweep  string

	mu       sync.Mutex
	handlers map[string]Handler
	timers   map[string]*time.Timer
	ctx      context.Context
	cron     *cron.Cron

	fireMu sync.Mutex // one handler at a time
}

// New creates a Scheduler. sweepSpec is a cron spec for the overdue sweep
// (for example "@every 1m"); empty disables the sweep.
func New(alarms store.AlarmStore, clk clock.Clock, sweepSpec string) *Scheduler {
	return &Scheduler{
		alarms:   alarms,
		clock:    clk,
		sweep:    sweepSpec,
		handlers: make(map[string]Handler),
		timers:   make(map[string]*time.Timer),
	}
}

// Handle registers the handler for label. Registration must happen before Start.
func (s *Scheduler) Handle(label string, h Handler) {
	s.mu.Lock()
	s.handlers[label] = h
	s.mu.Unlock()
}

// Start re-arms every persisted alarm and starts the overdue sweep.
// Overdue alarms fire synchronously before Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	alarms, err := s.alarms.ListAlarms(ctx)
	if err != nil {
		return fmt.Errorf("loading alarms: %w", err)
	}

	slog.Info("scheduler starting", "alarms", len(alarms))

	now := s.clock.Now()
	for _, a := range alarms {
		if !a.FireAt.After(now) {
			s.fire(ctx, a.Label, a.FireAt)
			continue
		}
		s.arm(a.Label, a.FireAt)
	}

	if s.sweep != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.sweep, func() { s.Sweep(ctx) }); err != nil {
			return fmt.Errorf("registering sweep %q: %w", s.sweep, err)
		}
		c.Start()
		s.mu.Lock()
		s.cron = c
		s.mu.Unlock()
	}

	return nil
}

// Stop disarms all timers and stops the sweep.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for label, t := range s.timers {
		t.Stop()
		delete(s.timers, label)
	}
	c := s.cron
	s.cron = nil
	s.ctx = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Schedule persists a wake-up for label at the given time, replacing any
// previous one with the same label.
func (s *Scheduler) Schedule(ctx context.Context, label string, at time.Time) error {
	if err := s.alarms.SaveAlarm(ctx, store.Alarm{Label: label, FireAt: at}); err != nil {
		return fmt.Errorf("scheduling %s: %w", label, err)
	}
	s.arm(label, at)

	slog.Debug("wake-up scheduled", "label", label, "at", at)
	return nil
}

// Cancel removes the wake-up for label. Cancelling an unknown label is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, label string) error {
	s.disarm(label)
	if err := s.alarms.DeleteAlarm(ctx, label); err != nil {
		return fmt.Errorf("cancelling %s: %w", label, err)
	}

	slog.Debug("wake-up cancelled", "label", label)
	return nil
}

// Sweep fires every persisted alarm that is due.
func (s *Scheduler) Sweep(ctx context.Context) {
	alarms, err := s.alarms.ListAlarms(ctx)
	if err != nil {
		slog.Warn("scheduler sweep failed", "error", err)
		return
	}

	now := s.clock.Now()
	for _, a := range alarms {
		if a.FireAt.After(now) {
			break // ordered by fire time
		}
		s.fire(ctx, a.Label, a.FireAt)
	}
}

// Pending reports the persisted fire time for label, if any.
func (s *Scheduler) Pending(ctx context.Context, label string) (time.Time, bool) {
	alarms, err := s.alarms.ListAlarms(ctx)
	if err != nil {
		return time.Time{}, false
	}
	for _, a := range alarms {
		if a.Label == label {
			return a.FireAt, true
		}
	}
	return time.Time{}, false
}

func (s *Scheduler) arm(label string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[label]; ok {
		t.Stop()
	}
	if s.ctx == nil {
		return // not started; Start will arm it from the store
	}

	ctx := s.ctx
	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[label] = time.AfterFunc(delay, func() {
		s.fire(ctx, label, at)
	})
}

func (s *Scheduler) disarm(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[label]; ok {
		t.Stop()
		delete(s.timers, label)
	}
}

// fire runs the handler for label and then clears the alarm unless the
// handler (or anyone else) rescheduled it meanwhile.
func (s *Scheduler) fire(ctx context.Context, label string, at time.Time) {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()

	if !s.stillPending(ctx, label, at) {
		return // already delivered by the sweep or a timer
	}

	s.mu.Lock()
	h := s.handlers[label]
	if t, ok := s.timers[label]; ok {
		t.Stop()
		delete(s.timers, label)
	}
	s.mu.Unlock()

	if h == nil {
		slog.Warn("no handler for wake-up, dropping", "label", label)
	} else {
		late := s.clock.Now().Sub(at)
		slog.Debug("wake-up fired", "label", label, "late", late)
		if err := h(ctx, at); err != nil {
			slog.Error("wake-up handler failed", "label", label, "error", err)
		}
	}

	if err := s.alarms.ClearAlarm(ctx, label, at); err != nil {
		slog.Warn("clearing fired alarm failed", "label", label, "error", err)
	}
}

func (s *Scheduler) stillPending(ctx context.Context, label string, at time.Time) bool {
	pending, ok := s.Pending(ctx, label)
	return ok && pending.Equal(at)
}

// Next returns the next activation of a standard 5-field cron spec after t.
func Next(spec string, t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing cron spec %q: %w", spec, err)
	}
	return sched.Next(t), nil
}

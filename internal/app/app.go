// Package app wires the engines to the store, the scheduler and the
// notifiers, and owns startup recovery.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/holdfast/internal/bypass"
	"github.com/btouchard/holdfast/internal/challenge"
	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/commitment"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/focus"
	"github.com/btouchard/holdfast/internal/lockdown"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/pomodoro"
	"github.com/btouchard/holdfast/internal/scheduler"
	"github.com/btouchard/holdfast/internal/stats"
	"github.com/btouchard/holdfast/internal/store"
	"github.com/btouchard/holdfast/internal/streak"
	"github.com/btouchard/holdfast/internal/timelimit"
)

// App holds every engine.
type App struct {
	Focus      *focus.Engine
	Pomodoro   *pomodoro.Engine
	Stats      *stats.Tracker
	TimeLimits *timelimit.Engine
	Streak     *streak.Engine
	Bypass     *bypass.Engine
	Lockdown   *lockdown.Engine
	Commitment *commitment.Engine

	cfg   *config.Config
	clock clock.Clock
	sched *scheduler.Scheduler
}

// New builds the engines on top of s. Wake-ups are persisted in s as well.
func New(cfg *config.Config, s store.Store, clk clock.Clock, n notify.Notifier) *App {
	sched := scheduler.New(s, clk, cfg.Scheduler.SweepSpec)
	gen := challenge.NewGenerator()
	st := stats.New(s, clk, cfg.TimeLimits.HistoryRetentionDays)
	tl := timelimit.New(cfg.TimeLimits, s, clk, n)

	a := &App{
		Focus:      focus.New(cfg.Focus, s, clk, sched, n, st),
		Pomodoro:   pomodoro.New(cfg.Pomodoro, s, clk, sched, n, st),
		Stats:      st,
		TimeLimits: tl,
		Streak:     streak.New(cfg.Streak, s, clk, st, tl, n),
		Bypass:     bypass.New(cfg.Bypass, s, clk, gen),
		Lockdown:   lockdown.New(cfg.Lockdown, s, clk, sched, n),
		Commitment: commitment.New(cfg.CommitmentLock, s, clk, gen, sched, n),
		cfg:        cfg,
		clock:      clk,
		sched:      sched,
	}

	sched.Handle(focus.WakeLabel, a.Focus.HandleWake)
	sched.Handle(pomodoro.WakeLabel, a.Pomodoro.HandleWake)
	sched.Handle(lockdown.WakeLabel, a.Lockdown.HandleWake)
	sched.Handle(commitment.WakeLabel, a.Commitment.HandleWake)
	sched.Handle(timelimit.WakeLabel, a.recurring(timelimit.WakeLabel, cfg.Scheduler.RolloverSpec, a.TimeLimits.HandleWake))
	sched.Handle(streak.WakeLabel, a.recurring(streak.WakeLabel, cfg.Scheduler.StreakCheckSpec, a.Streak.HandleWake))
	return a
}

// Start records any unlock flow lost by the previous run, makes sure the
// daily wake-ups exist and starts the scheduler, which delivers whatever
// fell due while the process was down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Commitment.RecoverInterruptedFlow(ctx); err != nil {
		slog.Warn("recovering interrupted unlock flow failed", "error", err)
	}

	for label, spec := range map[string]string{
		timelimit.WakeLabel: a.cfg.Scheduler.RolloverSpec,
		streak.WakeLabel:    a.cfg.Scheduler.StreakCheckSpec,
	} {
		if _, ok := a.sched.Pending(ctx, label); ok {
			continue
		}
		if err := a.scheduleNext(ctx, label, spec); err != nil {
			return err
		}
	}

	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	// Bring lazily expiring state up to date before serving requests.
	a.Focus.State(ctx)
	a.Pomodoro.State(ctx)
	a.Lockdown.State(ctx)
	return nil
}

// Stop halts the scheduler.
func (a *App) Stop() {
	a.sched.Stop()
}

// Now returns the current time on the app clock.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

// Scheduler exposes the wake-up scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// recurring wraps a handler so that it reschedules itself from spec after
// each run, whether or not the run succeeded.
func (a *App) recurring(label, spec string, run scheduler.Handler) scheduler.Handler {
	return func(ctx context.Context, at time.Time) error {
		err := run(ctx, at)
		if serr := a.scheduleNext(ctx, label, spec); serr != nil {
			slog.Error("rescheduling recurring wake-up failed", "label", label, "error", serr)
		}
		return err
	}
}

func (a *App) scheduleNext(ctx context.Context, label, spec string) error {
	next, err := scheduler.Next(spec, a.clock.Now())
	if err != nil {
		return err
	}
	return a.sched.Schedule(ctx, label, next)
}

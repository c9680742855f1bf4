package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/commitment"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/focus"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/store"
	"github.com/btouchard/holdfast/internal/streak"
	"github.com/btouchard/holdfast/internal/timelimit"
)

func newTestApp(t *testing.T, s store.Store, clk *clock.Manual) *App {
	t.Helper()
	cfg := config.Defaults()
	cfg.Scheduler.SweepSpec = ""
	cfg.TimeLimits.Enabled = true
	cfg.TimeLimits.Limits = map[string]int{"youtube": 30}
	a := New(cfg, s, clk, notify.Discard{})
	t.Cleanup(a.Stop)
	return a
}

func TestStart_SchedulesDailyWakeUps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	a := newTestApp(t, store.NewMemoryStore(), clk)

	require.NoError(t, a.Start(ctx))

	rollover, ok := a.Scheduler().Pending(ctx, timelimit.WakeLabel)
	require.True(t, ok)
	assert.True(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC).Equal(rollover))

	check, ok := a.Scheduler().Pending(ctx, streak.WakeLabel)
	require.True(t, ok)
	assert.True(t, time.Date(2026, 3, 2, 23, 55, 0, 0, time.UTC).Equal(check))
}

func TestStart_AfterDowntime_DeliversOverdueWakeUps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	clk := clock.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	first := newTestApp(t, s, clk)
	require.NoError(t, first.Start(ctx))
	_, err := first.Focus.Start(ctx, 30)
	require.NoError(t, err)
	_, err = first.TimeLimits.TrackActivity(ctx, "youtube", 20*60_000)
	require.NoError(t, err)
	first.Stop()

	// The process is down over midnight.
	clk.Set(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))
	second := newTestApp(t, s, clk)
	require.NoError(t, second.Start(ctx))

	assert.False(t, second.Focus.State(ctx).Active)
	_, pending := second.Scheduler().Pending(ctx, focus.WakeLabel)
	assert.False(t, pending)

	hist := second.TimeLimits.History(ctx)
	require.Len(t, hist, 1)
	assert.Equal(t, "2026-03-02", hist[0].Date)
	assert.Equal(t, 30, second.Stats.Day(ctx, "2026-03-02").FocusMinutes)

	next, ok := second.Scheduler().Pending(ctx, timelimit.WakeLabel)
	require.True(t, ok)
	assert.True(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC).Equal(next))
}

func TestStart_RecordsInterruptedUnlockFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	clk := clock.NewManual(time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC))

	first := newTestApp(t, s, clk)
	_, err := first.Commitment.StartUnlockFlow(ctx)
	require.NoError(t, err)

	second := newTestApp(t, s, clk)
	require.NoError(t, second.Start(ctx))

	hist := second.Commitment.History(ctx)
	require.Len(t, hist, 1)
	assert.Equal(t, commitment.FailureInterrupted, hist[0].FailureReason)
}

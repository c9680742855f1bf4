package timelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/store"
)

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Notify(e notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

const minute = int64(60_000)

func newEngine(t *testing.T, mutate func(*config.TimeLimitsConfig)) (*Engine, *clock.Manual, *fakeNotifier) {
	t.Helper()
	cfg := config.Defaults().TimeLimits
	cfg.Enabled = true
	cfg.Limits = map[string]int{"youtube": 60, "reddit": 30}
	if mutate != nil {
		mutate(&cfg)
	}
	clk := clock.NewManual(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	n := &fakeNotifier{}
	return New(cfg, store.NewMemoryStore(), clk, n), clk, n
}

func TestTrackActivity_AccumulatesPerPlatform(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.TrackActivity(ctx, "YouTube", 10*minute)
	require.NoError(t, err)
	st, err := e.TrackActivity(ctx, "youtube ", 5*minute)
	require.NoError(t, err)
	_, err = e.TrackActivity(ctx, "reddit", minute)
	require.NoError(t, err)

	assert.Equal(t, 15*minute, st.UsedMs)
	assert.Len(t, e.Today(ctx).Usage, 2)
}

func TestTrackActivity_WhenDisabled_IsNoop(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t, func(c *config.TimeLimitsConfig) { c.Enabled = false })
	ctx := context.Background()

	_, err := e.TrackActivity(ctx, "youtube", 10*minute)
	require.NoError(t, err)
	assert.Empty(t, e.Today(ctx).Usage)
}

func TestTrackActivity_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t, nil)

	_, err := e.TrackActivity(context.Background(), " ", minute)
	assert.ErrorIs(t, err, fault.ErrValidation)
	_, err = e.TrackActivity(context.Background(), "youtube", 0)
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestCheckLimit_ReportsWarningAndBlock(t *testing.T) {
	t.Parallel()
	e, _, n := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.TrackActivity(ctx, "reddit", 24*minute)
	require.NoError(t, err)
	st := e.CheckLimit(ctx, "reddit")
	assert.True(t, st.HasLimit)
	assert.True(t, st.Warn)
	assert.False(t, st.LimitReached)
	assert.Equal(t, 6*minute, st.RemainingMs)
	assert.InDelta(t, 80.0, st.PercentUsed, 0.001)

	_, err = e.TrackActivity(ctx, "reddit", 6*minute)
	require.NoError(t, err)
	st = e.CheckLimit(ctx, "reddit")
	assert.True(t, st.LimitReached)
	assert.True(t, st.Block)
	assert.Zero(t, st.RemainingMs)

	assert.Equal(t, []string{"timelimit.warning", "timelimit.limit_reached"}, n.types())
}

func TestCheckLimit_WithoutLimit_IsNeutral(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t, nil)

	st := e.CheckLimit(context.Background(), "twitter")
	assert.False(t, st.HasLimit)
	assert.False(t, st.LimitReached)
}

func TestResetUsage_OneOrAll(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t, nil)
	ctx := context.Background()

	_, _ = e.TrackActivity(ctx, "youtube", minute)
	_, _ = e.TrackActivity(ctx, "reddit", minute)

	require.NoError(t, e.ResetUsage(ctx, "youtube"))
	assert.Zero(t, e.CheckLimit(ctx, "youtube").UsedMs)
	assert.Equal(t, minute, e.CheckLimit(ctx, "reddit").UsedMs)

	require.NoError(t, e.ResetUsage(ctx, ""))
	assert.Empty(t, e.Today(ctx).Usage)
}

func TestRead_AfterDateChange_ResetsAndArchives(t *testing.T) {
	t.Parallel()
	e, clk, _ := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.TrackActivity(ctx, "youtube", 20*minute)
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)

	assert.Zero(t, e.CheckLimit(ctx, "youtube").UsedMs)
	assert.Equal(t, "2026-03-03", e.Today(ctx).LastResetDate)

	hist := e.History(ctx)
	require.Len(t, hist, 1)
	assert.Equal(t, "2026-03-02", hist[0].Date)
	assert.Equal(t, 20*minute, hist[0].TotalMs)
	assert.Equal(t, 20*minute, e.UsageOn(ctx, "2026-03-02"))
}

func TestRollover_OnSameDay_KeepsLiveUsage(t *testing.T) {
	t.Parallel()
	e, _, _ := newEngine(t, nil)
	ctx := context.Background()

	_, _ = e.TrackActivity(ctx, "youtube", 10*minute)
	require.NoError(t, e.Rollover(ctx))
	_, _ = e.TrackActivity(ctx, "youtube", 5*minute)
	require.NoError(t, e.HandleWake(ctx, time.Time{}))
	require.NoError(t, e.Rollover(ctx))

	assert.Equal(t, 15*minute, e.CheckLimit(ctx, "youtube").UsedMs)
	assert.Empty(t, e.History(ctx))
}

func TestHandleWake_WhenLateAfterLazyRoll_KeepsTodaysUsage(t *testing.T) {
	t.Parallel()
	e, clk, _ := newEngine(t, nil)
	ctx := context.Background()

	_, err := e.TrackActivity(ctx, "youtube", 50*minute)
	require.NoError(t, err)
	clk.Set(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))
	_, err = e.TrackActivity(ctx, "youtube", 55*minute)
	require.NoError(t, err)

	require.NoError(t, e.HandleWake(ctx, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)))

	st := e.CheckLimit(ctx, "youtube")
	assert.Equal(t, 55*minute, st.UsedMs)

	_, err = e.TrackActivity(ctx, "youtube", 10*minute)
	require.NoError(t, err)
	st = e.CheckLimit(ctx, "youtube")
	assert.Equal(t, 65*minute, st.UsedMs)
	assert.True(t, st.LimitReached)

	hist := e.History(ctx)
	require.Len(t, hist, 1)
	assert.Equal(t, "2026-03-02", hist[0].Date)
	assert.Equal(t, 50*minute, hist[0].TotalMs)
}

func TestRollover_PrunesOutsideRetention(t *testing.T) {
	t.Parallel()
	e, clk, _ := newEngine(t, func(c *config.TimeLimitsConfig) { c.HistoryRetentionDays = 3 })
	ctx := context.Background()

	for range 6 {
		_, err := e.TrackActivity(ctx, "youtube", minute)
		require.NoError(t, err)
		clk.Advance(24 * time.Hour)
		require.NoError(t, e.Rollover(ctx))
	}

	var dates []string
	for _, r := range e.History(ctx) {
		dates = append(dates, r.Date)
	}
	assert.Equal(t, []string{"2026-03-05", "2026-03-06", "2026-03-07"}, dates)
}

func TestHistory_MergeKeepsDateOrder(t *testing.T) {
	t.Parallel()

	var h History
	h.Merge("2026-03-05", map[string]int64{"a": 1})
	h.Merge("2026-03-01", map[string]int64{"a": 2})
	h.Merge("2026-03-03", map[string]int64{"b": 3})
	h.Merge("2026-03-01", map[string]int64{"b": 4})

	require.Len(t, h.Records, 3)
	assert.Equal(t, "2026-03-01", h.Records[0].Date)
	assert.Equal(t, int64(6), h.Records[0].TotalMs)
	assert.Equal(t, "2026-03-05", h.Records[2].Date)
}

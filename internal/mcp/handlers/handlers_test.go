package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/holdfast/internal/app"
	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/store"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) (*app.App, *clock.Manual) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Scheduler.SweepSpec = ""
	if mutate != nil {
		mutate(cfg)
	}
	clk := clock.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	a := app.New(cfg, store.NewMemoryStore(), clk, notify.Discard{})
	t.Cleanup(a.Stop)
	return a, clk
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	return r.Content[0].(mcp.TextContent).Text
}

// --- Focus tests ---

func TestFocusStatus_WhenIdle_SaysIdle(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, nil)

	result, err := FocusStatus(a.Focus, a.Now)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Focus: idle")
}

func TestFocusStart_StartsSessionWithRemaining(t *testing.T) {
	t.Parallel()
	a, clk := newTestApp(t, nil)
	handler := FocusStart(a.Focus, a.Now)

	result, err := handler(context.Background(), makeReq(map[string]any{"minutes": float64(45)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Duration: 45 min")
	assert.Contains(t, text, "Ends at: 10:45")

	clk.Advance(15 * time.Minute)
	result, err = FocusStatus(a.Focus, a.Now)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Remaining: 30m 0s")
}

func TestFocusStart_WhenActive_ReturnsError(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, nil)
	handler := FocusStart(a.Focus, a.Now)

	_, err := handler(context.Background(), makeReq(nil))
	require.NoError(t, err)

	result, err := handler(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already active")
}

func TestFocusStart_WhenDisabled_ReportsReason(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, func(c *config.Config) { c.Focus.Enabled = false })

	result, err := FocusStart(a.Focus, a.Now)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "(disabled)")
}

func TestFocusStart_WhenMinutesInvalid_ReturnsError(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, nil)

	result, err := FocusStart(a.Focus, a.Now)(context.Background(), makeReq(map[string]any{"minutes": float64(0)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "at least 1")
}

// --- Pomodoro tests ---

func TestPomodoroStatus_ShowsRunningAndPaused(t *testing.T) {
	t.Parallel()
	a, clk := newTestApp(t, nil)
	ctx := context.Background()
	handler := PomodoroStatus(a.Pomodoro, a.Now)

	result, err := handler(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Pomodoro: idle")

	_, err = a.Pomodoro.Start(ctx, "")
	require.NoError(t, err)
	clk.Advance(5 * time.Minute)

	result, err = handler(ctx, makeReq(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "work (running)")
	assert.Contains(t, text, "Remaining: 20m 0s")

	_, err = a.Pomodoro.Pause(ctx)
	require.NoError(t, err)
	result, err = handler(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "work (paused)")
}

// --- Usage tests ---

func TestUsageStatus_ListsPlatformsAgainstLimits(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, func(c *config.Config) {
		c.TimeLimits.Enabled = true
		c.TimeLimits.Limits = map[string]int{"youtube": 60}
	})
	ctx := context.Background()
	handler := UsageStatus(a.TimeLimits)

	result, err := handler(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No usage tracked today")

	_, err = a.TimeLimits.TrackActivity(ctx, "youtube", int64(time.Hour/time.Millisecond))
	require.NoError(t, err)
	_, err = a.TimeLimits.TrackActivity(ctx, "reddit", int64(90*time.Minute/time.Millisecond))
	require.NoError(t, err)

	result, err = handler(ctx, makeReq(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Usage on 2026-03-02")
	assert.Contains(t, text, "- youtube: 1h 0m of 1h 0m (100%) blocked")
	assert.Contains(t, text, "- reddit: 1h 30m (no limit)")

	result, err = handler(ctx, makeReq(map[string]any{"platform": "YouTube"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "- youtube:")
	assert.NotContains(t, resultText(t, result), "reddit")
}

// --- Streak tests ---

func TestStreakStatus_ReportsCounts(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, func(c *config.Config) {
		c.Streak.Goal = "no_access"
	})

	require.NoError(t, a.Streak.HandleWake(context.Background(), a.Now()))

	result, err := StreakStatus(a.Streak)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Current streak: 1 days")
	assert.Contains(t, text, "Last success: 2026-03-02")
}

// --- Unlock tests ---

func TestUnlockStatus_WhenNuclear_ReportsDenied(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, func(c *config.Config) { c.CommitmentLock.NuclearMode = true })

	result, err := UnlockStatus(a.Commitment)(context.Background(), makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Unlock: denied (nuclear_mode)")
}

func TestUnlockStatus_ShowsOpenFlow(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, nil)
	ctx := context.Background()

	_, err := a.Commitment.StartUnlockFlow(ctx)
	require.NoError(t, err)

	result, err := UnlockStatus(a.Commitment)(ctx, makeReq(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Unlock: allowed")
	assert.Contains(t, text, "Open flow: waiting (0/3 challenges)")
}

func TestUnlockStats_SummarisesHistory(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, nil)
	ctx := context.Background()

	_, err := a.Commitment.StartUnlockFlow(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Commitment.CancelUnlockFlow(ctx))

	result, err := UnlockStats(a.Commitment)(ctx, makeReq(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Attempts: 1 (0 succeeded, 1 failed)")
	assert.Contains(t, text, "Most common failure: cancelled_by_user")
	assert.Contains(t, text, "Consecutive failures: 1")
}

// --- Lockdown tests ---

func TestLockdownStatus_TracksEmergencyBypass(t *testing.T) {
	t.Parallel()
	a, clk := newTestApp(t, nil)
	ctx := context.Background()
	handler := LockdownStatus(a.Lockdown)

	result, err := handler(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No PIN configured")

	require.NoError(t, a.Lockdown.SetPIN(ctx, "2468", ""))
	_, err = a.Lockdown.Activate(ctx, "2468")
	require.NoError(t, err)
	_, err = a.Lockdown.RequestEmergencyBypass(ctx)
	require.NoError(t, err)

	result, err = handler(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Emergency bypass releases at 11:00 (in 1h 0m)")

	clk.Advance(time.Hour)
	result, err = handler(ctx, makeReq(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Lockdown: inactive")
}

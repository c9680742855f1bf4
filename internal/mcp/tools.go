package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/holdfast/internal/mcp/handlers"
)

// registerTools exposes status reads and focus start. The unlock ritual and
// lockdown changes stay on the local API.
func registerTools(s *server.MCPServer, deps *Deps) {
	a := deps.App

	// focus_status: Current focus session
	s.AddTool(
		mcp.NewTool("focus_status",
			mcp.WithDescription("Show whether a focus session is running and how much time is left."),
		),
		handlers.FocusStatus(a.Focus, a.Now),
	)

	// focus_start: Start a focus session
	s.AddTool(
		mcp.NewTool("focus_start",
			mcp.WithDescription("Start a focus session. Distracting sites stay blocked until it ends."),
			mcp.WithNumber("minutes",
				mcp.Description("Session length in minutes. Uses the configured default if omitted."),
			),
		),
		handlers.FocusStart(a.Focus, a.Now),
	)

	// pomodoro_status: Current pomodoro interval
	s.AddTool(
		mcp.NewTool("pomodoro_status",
			mcp.WithDescription("Show the current pomodoro interval, time left and completed work sessions."),
		),
		handlers.PomodoroStatus(a.Pomodoro, a.Now),
	)

	// usage_status: Today's time per platform
	s.AddTool(
		mcp.NewTool("usage_status",
			mcp.WithDescription("Show today's tracked time per platform against its daily limit."),
			mcp.WithString("platform",
				mcp.Description("Platform name. If omitted, lists every platform used today."),
			),
		),
		handlers.UsageStatus(a.TimeLimits),
	)

	// streak_status: Streak summary
	s.AddTool(
		mcp.NewTool("streak_status",
			mcp.WithDescription("Show the current and longest streak of days meeting the goal."),
		),
		handlers.StreakStatus(a.Streak),
	)

	// unlock_status: Commitment lock policy
	s.AddTool(
		mcp.NewTool("unlock_status",
			mcp.WithDescription("Report whether unlocking the commitment lock is currently allowed, and if not, why and for how long."),
		),
		handlers.UnlockStatus(a.Commitment),
	)

	// unlock_stats: Unlock history summary
	s.AddTool(
		mcp.NewTool("unlock_stats",
			mcp.WithDescription("Summarise past unlock attempts: success rate, common failures, days without unlocking."),
		),
		handlers.UnlockStats(a.Commitment),
	)

	// lockdown_status: Lockdown and emergency bypass
	s.AddTool(
		mcp.NewTool("lockdown_status",
			mcp.WithDescription("Show whether lockdown is active and when a pending emergency bypass releases it."),
		),
		handlers.LockdownStatus(a.Lockdown),
	)
}

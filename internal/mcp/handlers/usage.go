package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/holdfast/internal/streak"
	"github.com/btouchard/holdfast/internal/timelimit"
)

// UsageStatus returns a handler that reports today's usage, for one
// platform or all tracked platforms.
func UsageStatus(tl *timelimit.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		if p, ok := args["platform"].(string); ok && strings.TrimSpace(p) != "" {
			st := tl.CheckLimit(ctx, p)
			return mcp.NewToolResultText(formatUsage(st)), nil
		}

		today := tl.Today(ctx)
		if len(today.Usage) == 0 {
			return mcp.NewToolResultText("No usage tracked today."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Usage on %s\n\n", today.LastResetDate)
		for _, u := range today.Usage {
			b.WriteString(formatUsage(tl.CheckLimit(ctx, u.Platform)))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func formatUsage(st timelimit.Status) string {
	used := formatMs(st.UsedMs)
	if !st.HasLimit {
		return fmt.Sprintf("- %s: %s (no limit)\n", st.Platform, used)
	}

	line := fmt.Sprintf("- %s: %s of %s (%.0f%%)", st.Platform, used, formatMs(st.LimitMs), st.PercentUsed)
	switch {
	case st.Block:
		line += " blocked"
	case st.LimitReached:
		line += " limit reached"
	case st.Warn:
		line += " warning"
	}
	return line + "\n"
}

func formatMs(ms int64) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Minute)
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// StreakStatus returns a handler that reports the streak.
func StreakStatus(s *streak.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d := s.Data(ctx)

		var b strings.Builder
		fmt.Fprintf(&b, "Current streak: %d days\n", d.CurrentStreak)
		fmt.Fprintf(&b, "Longest streak: %d days\n", d.LongestStreak)
		fmt.Fprintf(&b, "Successful days: %d\n", d.TotalSuccessDays)
		if d.LastSuccessDate != "" {
			fmt.Fprintf(&b, "Last success: %s\n", d.LastSuccessDate)
		}
		if n := len(d.AchievedMilestones); n > 0 {
			fmt.Fprintf(&b, "Latest milestone: %d days\n", d.AchievedMilestones[n-1])
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

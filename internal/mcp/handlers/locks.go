package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/holdfast/internal/commitment"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/lockdown"
)

// UnlockStatus returns a handler that reports whether an unlock would be
// allowed right now. It never opens a flow.
func UnlockStatus(c *commitment.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := c.CheckUnlockAllowed(ctx)
		if err != nil {
			return mcp.NewToolResultError(errorText("Cannot check unlock policy", err)), nil
		}

		var b strings.Builder
		if d.Allowed {
			b.WriteString("Unlock: allowed\n")
		} else {
			fmt.Fprintf(&b, "Unlock: denied (%s)\n", d.Reason)
			if d.Message != "" {
				fmt.Fprintf(&b, "Reason: %s\n", d.Message)
			}
			if d.WaitText != "" {
				fmt.Fprintf(&b, "Try again in: %s\n", d.WaitText)
			}
		}

		if f, ok := c.Flow(); ok {
			fmt.Fprintf(&b, "Open flow: %s (%d/%d challenges)\n", f.Phase, f.ChallengesCompleted, f.ChallengesRequired)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// UnlockStats returns a handler that summarises the unlock history.
func UnlockStats(c *commitment.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := c.GetUnlockStats(ctx)
		if err != nil {
			return mcp.NewToolResultError(errorText("Cannot compute unlock stats", err)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Attempts: %d (%d succeeded, %d failed)\n", st.TotalAttempts, st.Successes, st.Failures)
		fmt.Fprintf(&b, "Success rate: %.0f%%\n", st.SuccessRate*100)
		if st.AverageTimeToCompleteMs > 0 {
			avg := time.Duration(st.AverageTimeToCompleteMs) * time.Millisecond
			fmt.Fprintf(&b, "Average time to unlock: %s\n", fault.FormatWait(avg))
		}
		if st.MostCommonFailure != "" {
			fmt.Fprintf(&b, "Most common failure: %s\n", st.MostCommonFailure)
		}
		fmt.Fprintf(&b, "Days without unlock: %d\n", st.DaysWithoutUnlock)
		fmt.Fprintf(&b, "Today: %d attempts | This week: %d attempts\n", st.TodayAttempts, st.WeekAttempts)
		fmt.Fprintf(&b, "Consecutive failures: %d\n", st.ConsecutiveFailures)
		return mcp.NewToolResultText(b.String()), nil
	}
}

// LockdownStatus returns a handler that reports lockdown and any pending
// emergency bypass.
func LockdownStatus(l *lockdown.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		em := l.CheckEmergencyBypass(ctx)

		var b strings.Builder
		switch {
		case !em.LockdownActive:
			b.WriteString("Lockdown: inactive\n")
			if !l.HasPIN(ctx) {
				b.WriteString("No PIN configured.\n")
			}
		case em.Requested:
			b.WriteString("Lockdown: active\n")
			fmt.Fprintf(&b, "Emergency bypass releases at %s (in %s)\n",
				em.ReleasesAt.Format("15:04"), fault.FormatWait(time.Duration(em.RemainingSeconds)*time.Second))
		default:
			b.WriteString("Lockdown: active\n")
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

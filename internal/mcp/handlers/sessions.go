package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/focus"
	"github.com/btouchard/holdfast/internal/pomodoro"
)

// Now returns the current time on the engine clock.
type Now func() time.Time

// FocusStatus returns a handler that reports the focus session.
func FocusStatus(f *focus.Engine, now Now) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(formatFocus(f.State(ctx), now())), nil
	}
}

// FocusStart returns a handler that starts a focus session.
func FocusStart(f *focus.Engine, now Now) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		minutes := 0
		if m, ok := args["minutes"].(float64); ok {
			if m < 1 {
				return mcp.NewToolResultError("minutes must be at least 1"), nil
			}
			minutes = int(m)
		}

		st, err := f.Start(ctx, minutes)
		if err != nil {
			return mcp.NewToolResultError(errorText("Cannot start focus session", err)), nil
		}
		return mcp.NewToolResultText("Focus session started.\n" + formatFocus(st, now())), nil
	}
}

func formatFocus(st focus.State, now time.Time) string {
	if !st.Active {
		return "Focus: idle\n"
	}

	var b strings.Builder
	b.WriteString("Focus: active\n")
	fmt.Fprintf(&b, "Duration: %d min\n", st.DurationMinutes)
	fmt.Fprintf(&b, "Ends at: %s\n", st.EndTime.Format("15:04"))
	fmt.Fprintf(&b, "Remaining: %s\n", fault.FormatWait(st.Remaining(now)))
	return b.String()
}

// PomodoroStatus returns a handler that reports the pomodoro cycle.
func PomodoroStatus(p *pomodoro.Engine, now Now) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := p.State(ctx)

		var b strings.Builder
		switch {
		case st.Mode == pomodoro.ModeIdle:
			b.WriteString("Pomodoro: idle\n")
		case st.Running:
			fmt.Fprintf(&b, "Pomodoro: %s (running)\n", st.Mode)
			fmt.Fprintf(&b, "Remaining: %s\n", fault.FormatWait(st.Remaining(now())))
		default:
			fmt.Fprintf(&b, "Pomodoro: %s (paused)\n", st.Mode)
			fmt.Fprintf(&b, "Remaining: %s\n", fault.FormatWait(st.Remaining(now())))
		}
		fmt.Fprintf(&b, "Completed work sessions: %d\n", st.SessionCount)
		return mcp.NewToolResultText(b.String()), nil
	}
}

// errorText renders an engine error for a tool result, including the wait
// for policy denials.
func errorText(prefix string, err error) string {
	if d, ok := fault.AsDenied(err); ok {
		if w := d.WaitText(); w != "" {
			return fmt.Sprintf("%s: %s (%s, try again in %s)", prefix, d.Message, d.Reason, w)
		}
		return fmt.Sprintf("%s: %s (%s)", prefix, d.Message, d.Reason)
	}
	return fmt.Sprintf("%s: %s", prefix, err)
}

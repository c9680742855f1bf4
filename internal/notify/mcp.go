package notify

import (
	"log/slog"
	"strings"
)

// MCPSender abstracts the mcp-go server notification methods.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes engine events to connected MCP clients as
// notifications/message log entries.
type MCPNotifier struct {
	sender MCPSender
}

// NewMCPNotifier creates an MCPNotifier backed by sender.
func NewMCPNotifier(sender MCPSender) *MCPNotifier {
	return &MCPNotifier{sender: sender}
}

// Notify broadcasts the event to all MCP sessions.
func (n *MCPNotifier) Notify(event Event) {
	params := map[string]any{
		"level":  levelFor(event.Type),
		"logger": "holdfast",
		"data": map[string]any{
			"type":    event.Type,
			"title":   event.Title,
			"message": event.Message,
		},
	}

	slog.Debug("mcp notification", "type", event.Type)
	n.sender.SendNotificationToAllClients("notifications/message", params)
}

func levelFor(eventType string) string {
	switch {
	case strings.HasSuffix(eventType, ".warning"), strings.HasSuffix(eventType, ".limit_reached"):
		return "warning"
	case strings.HasPrefix(eventType, "lockdown."), strings.HasPrefix(eventType, "unlock."):
		return "notice"
	default:
		return "info"
	}
}

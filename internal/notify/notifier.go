package notify

import "log/slog"

// Event is a user-facing notification raised by an engine.
type Event struct {
	Type    string // "focus.started", "focus.completed", "pomodoro.completed", "streak.milestone", ...
	Title   string
	Message string
}

// Notifier delivers events. Delivery is best-effort: implementations log
// failures and never return them.
type Notifier interface {
	Notify(event Event)
}

// Hub dispatches events to multiple notifiers.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Add registers another notifier.
func (h *Hub) Add(n Notifier) {
	h.notifiers = append(h.notifiers, n)
}

// Notify sends an event to all registered notifiers.
func (h *Hub) Notify(event Event) {
	for _, n := range h.notifiers {
		go n.Notify(event)
	}
}

// LogNotifier writes events to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(event Event) {
	slog.Info("notification", "type", event.Type, "title", event.Title, "message", event.Message)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(Event) {}

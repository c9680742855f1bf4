// Package clock provides the time source and calendar helpers used by the
// engines. All calendar strings are local dates in "2006-01-02" form.
package clock

import (
	"log/slog"
	"sync"
	"time"
)

// DateLayout is the calendar date format used for every stored date.
const DateLayout = "2006-01-02"

// Clock is the time source consumed by the engines.
type Clock interface {
	Now() time.Time
	Today() string
	StartOfWeek() string
}

// Local reads the wall clock in a fixed location.
type Local struct {
	loc *time.Location
}

// NewLocal returns a clock for the named IANA zone. An empty name uses the
// process's local zone; an unknown name falls back to UTC with a warning.
func NewLocal(zone string) *Local {
	if zone == "" {
		return &Local{loc: time.Local}
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		slog.Warn("unknown timezone, falling back to UTC", "timezone", zone, "error", err)
		loc = time.UTC
	}
	return &Local{loc: loc}
}

func (c *Local) Now() time.Time      { return time.Now().In(c.loc) }
func (c *Local) Today() string       { return DateOf(c.Now()) }
func (c *Local) StartOfWeek() string { return WeekStartOf(c.Now()) }

// Location returns the zone used to derive calendar dates.
func (c *Local) Location() *time.Location { return c.loc }

// Manual is a settable clock for tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a clock frozen at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Today() string       { return DateOf(m.Now()) }
func (m *Manual) StartOfWeek() string { return WeekStartOf(m.Now()) }

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// DateOf formats t as a calendar date in t's own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekStartOf returns the date of the Monday starting t's week.
func WeekStartOf(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 … Sunday=6
	return DateOf(StartOfDay(t).AddDate(0, 0, -offset))
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the first midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// NextMonday returns midnight of the Monday following t's week.
func NextMonday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, 7-offset)
}

// ParseDate parses a calendar date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, loc)
}

// AddDays shifts a calendar date by n days. Invalid input is returned as is.
func AddDays(date string, n int) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}

// DaysBetween returns the number of calendar days from a to b (b-a).
// It returns 0 when either date is invalid.
func DaysBetween(a, b string) int {
	ta, err := time.Parse(DateLayout, a)
	if err != nil {
		return 0
	}
	tb, err := time.Parse(DateLayout, b)
	if err != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

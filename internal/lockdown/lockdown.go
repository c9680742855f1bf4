// Package lockdown implements the PIN-protected settings freeze and its
// timed emergency bypass.
package lockdown

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/store"
)

// WakeLabel is the scheduler label for the end of an emergency bypass wait.
const WakeLabel = "lockdown_emergency"

const recordKey = "lockdown_state"

// State is the persisted lockdown. EmergencyBypassRequestedAt is only set
// while Active.
type State struct {
	Active                     bool      `json:"active"`
	ActivatedAt                time.Time `json:"activatedAt,omitzero"`
	EmergencyBypassRequestedAt time.Time `json:"emergencyBypassRequestedAt,omitzero"`
}

// Emergency describes a pending emergency bypass.
type Emergency struct {
	Requested        bool      `json:"requested"`
	RequestedAt      time.Time `json:"requestedAt,omitzero"`
	ReleasesAt       time.Time `json:"releasesAt,omitzero"`
	RemainingSeconds int       `json:"remainingSeconds"`
	LockdownActive   bool      `json:"lockdownActive"`
}

// Waker registers and cancels wake-ups.
type Waker interface {
	Schedule(ctx context.Context, label string, at time.Time) error
	Cancel(ctx context.Context, label string) error
}

// Engine runs lockdown.
type Engine struct {
	cfg      config.LockdownConfig
	doc      *store.Doc[State]
	pin      *store.Doc[pinRecord]
	clock    clock.Clock
	waker    Waker
	notifier notify.Notifier
}

// New creates a lockdown Engine.
func New(cfg config.LockdownConfig, s store.Store, clk clock.Clock, w Waker, n notify.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		doc:      store.NewDoc(s, recordKey, func() State { return State{} }),
		pin:      store.NewDoc(s, pinKey, func() pinRecord { return pinRecord{} }),
		clock:    clk,
		waker:    w,
		notifier: n,
	}
}

func (e *Engine) window() time.Duration {
	return time.Duration(e.cfg.EmergencyBypassMinutes) * time.Minute
}

// CheckEmergency computes the wait left on a pending emergency bypass and
// deactivates lockdown once it has elapsed.
func CheckEmergency(s State, window time.Duration, now time.Time) (State, time.Duration, bool) {
	if !s.Active || s.EmergencyBypassRequestedAt.IsZero() {
		return s, 0, false
	}
	remaining := max(0, window-now.Sub(s.EmergencyBypassRequestedAt))
	if remaining > 0 {
		return s, remaining, false
	}
	return State{}, 0, true
}

// HasPIN reports whether a PIN has been configured.
func (e *Engine) HasPIN(ctx context.Context) bool {
	return e.pin.Get(ctx).Hash != ""
}

// SetPIN stores a new PIN. When one already exists, currentPIN must match it.
func (e *Engine) SetPIN(ctx context.Context, newPIN, currentPIN string) error {
	if !validPIN(newPIN, e.cfg.MinPINLength, e.cfg.MaxPINLength) {
		return fault.Validation("PIN must be %d to %d digits", e.cfg.MinPINLength, e.cfg.MaxPINLength)
	}

	hash, err := hashPIN(newPIN)
	if err != nil {
		return fmt.Errorf("hashing PIN: %w", err)
	}

	_, err = e.pin.Update(ctx, func(p *pinRecord) error {
		if p.Hash != "" && !matchPIN(p.Hash, currentPIN) {
			return fault.Validation("current PIN is incorrect")
		}
		p.Hash = hash
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("lockdown PIN updated")
	return nil
}

// VerifyPIN reports whether pin matches the stored PIN.
func (e *Engine) VerifyPIN(ctx context.Context, pin string) bool {
	stored := e.pin.Get(ctx).Hash
	return stored != "" && matchPIN(stored, pin)
}

func (e *Engine) requirePIN(ctx context.Context, pin string) error {
	if !e.HasPIN(ctx) {
		return fault.InvalidState("no PIN is configured")
	}
	if !e.VerifyPIN(ctx, pin) {
		slog.Info("lockdown PIN rejected")
		return fault.Validation("incorrect PIN")
	}
	return nil
}

// Activate freezes settings.
func (e *Engine) Activate(ctx context.Context, pin string) (State, error) {
	if err := e.requirePIN(ctx, pin); err != nil {
		return State{}, err
	}

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if s.Active {
			return fault.InvalidState("lockdown is already active")
		}
		*s = State{Active: true, ActivatedAt: now}
		return nil
	})
	if err != nil {
		return State{}, err
	}
	slog.Info("lockdown activated")
	return st, nil
}

// Deactivate lifts the freeze and drops any pending emergency bypass.
func (e *Engine) Deactivate(ctx context.Context, pin string) error {
	if !e.State(ctx).Active {
		return fault.InvalidState("lockdown is not active")
	}
	if err := e.requirePIN(ctx, pin); err != nil {
		return err
	}

	_, err := e.doc.Update(ctx, func(s *State) error {
		*s = State{}
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.waker.Cancel(ctx, WakeLabel); err != nil {
		slog.Warn("cancelling emergency wake-up failed", "error", err)
	}
	slog.Info("lockdown deactivated")
	return nil
}

// RequestEmergencyBypass starts the emergency wait. A second request while
// one is pending returns the pending one unchanged.
func (e *Engine) RequestEmergencyBypass(ctx context.Context) (Emergency, error) {
	now := e.clock.Now()
	e.sweep(ctx, now)

	var fresh bool
	st, err := e.doc.Update(ctx, func(s *State) error {
		if !s.Active {
			return fault.InvalidState("lockdown is not active")
		}
		if s.EmergencyBypassRequestedAt.IsZero() {
			s.EmergencyBypassRequestedAt = now
			fresh = true
		}
		return nil
	})
	if err != nil {
		return Emergency{}, err
	}

	em := e.emergency(st, now)
	if fresh {
		if err := e.waker.Schedule(ctx, WakeLabel, em.ReleasesAt); err != nil {
			return em, fault.Store("scheduling emergency release", err)
		}
		slog.Info("emergency bypass requested", "releases_at", em.ReleasesAt)
		e.notifier.Notify(notify.Event{
			Type:    "lockdown.emergency_requested",
			Title:   "Emergency bypass requested",
			Message: fmt.Sprintf("Lockdown will lift at %s.", em.ReleasesAt.Format("15:04")),
		})
	}
	return em, nil
}

// CheckEmergencyBypass returns the emergency wait and, once it has elapsed,
// deactivates lockdown without a PIN. Repeated calls are harmless.
func (e *Engine) CheckEmergencyBypass(ctx context.Context) Emergency {
	now := e.clock.Now()
	return e.emergency(e.sweep(ctx, now), now)
}

// State returns the lockdown, applying an elapsed emergency bypass first.
func (e *Engine) State(ctx context.Context) State {
	return e.sweep(ctx, e.clock.Now())
}

// GuardSettingsChange refuses configuration changes while lockdown is active.
func (e *Engine) GuardSettingsChange(ctx context.Context) error {
	if e.State(ctx).Active {
		return fault.Denied(fault.ReasonLockdownActive, 0, "settings are locked")
	}
	return nil
}

// HandleWake is the scheduler handler for WakeLabel.
func (e *Engine) HandleWake(ctx context.Context, _ time.Time) error {
	e.State(ctx)
	return nil
}

func (e *Engine) sweep(ctx context.Context, now time.Time) State {
	var released bool
	st := e.doc.Sweep(ctx, func(s *State) bool {
		*s, _, released = CheckEmergency(*s, e.window(), now)
		return released
	})
	if released {
		slog.Info("lockdown released by emergency bypass")
		e.notifier.Notify(notify.Event{
			Type:    "lockdown.deactivated",
			Title:   "Lockdown lifted",
			Message: "The emergency bypass wait is over.",
		})
	}
	return st
}

func (e *Engine) emergency(s State, now time.Time) Emergency {
	em := Emergency{LockdownActive: s.Active}
	if s.EmergencyBypassRequestedAt.IsZero() {
		return em
	}
	_, remaining, _ := CheckEmergency(s, e.window(), now)
	em.Requested = true
	em.RequestedAt = s.EmergencyBypassRequestedAt
	em.ReleasesAt = s.EmergencyBypassRequestedAt.Add(e.window())
	em.RemainingSeconds = int(math.Ceil(remaining.Seconds()))
	return em
}

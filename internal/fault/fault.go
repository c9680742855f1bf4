// Package fault defines the error taxonomy shared by every engine.
//
// Callers branch on the sentinel errors with errors.Is; policy denials
// additionally carry a machine-readable reason and a wait estimate that can
// be recovered with errors.As into *DeniedError.
package fault

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPolicyDenied = errors.New("policy denied")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrStore        = errors.New("store failure")
)

// Reason is a machine-readable policy denial code.
type Reason string

const (
	ReasonDisabled          Reason = "disabled"
	ReasonBypassDisabled    Reason = "bypass_disabled"
	ReasonCooldownActive    Reason = "cooldown_active"
	ReasonNuclearMode       Reason = "nuclear_mode"
	ReasonTimeLockActive    Reason = "time_lock_active"
	ReasonWeeklyLimit       Reason = "weekly_limit_reached"
	ReasonOutsideHours      Reason = "outside_allowed_hours"
	ReasonLockdownActive    Reason = "lockdown_active"
	ReasonConfirmationDelay Reason = "confirmation_delay_active"
	ReasonCancelLocked      Reason = "cancel_locked"
	ReasonLimitReached      Reason = "limit_reached"
)

// DeniedError reports that a policy refused an operation.
type DeniedError struct {
	Reason  Reason
	Wait    time.Duration // zero when waiting will not help
	Message string
}

func (e *DeniedError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("%s: %s (wait %s)", e.Reason, e.Message, FormatWait(e.Wait))
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Is makes every DeniedError match ErrPolicyDenied.
func (e *DeniedError) Is(target error) bool {
	return target == ErrPolicyDenied
}

// WaitText returns the human-readable wait estimate, or "" if none applies.
func (e *DeniedError) WaitText() string {
	if e.Wait <= 0 {
		return ""
	}
	return FormatWait(e.Wait)
}

// Denied builds a policy denial.
func Denied(reason Reason, wait time.Duration, message string) *DeniedError {
	if wait < 0 {
		wait = 0
	}
	return &DeniedError{Reason: reason, Wait: wait, Message: message}
}

// InvalidState wraps ErrInvalidState with a formatted message.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Store wraps a durable store error for the named operation.
func Store(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// AsDenied extracts a *DeniedError from err.
func AsDenied(err error) (*DeniedError, bool) {
	var d *DeniedError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// FormatWait renders a duration the way users read countdowns: "2h 5m",
// "3m 10s", "45s". Whole days are shown for multi-day waits.
func FormatWait(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	d = d.Round(time.Second)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	seconds := int((d - time.Duration(minutes)*time.Minute) / time.Second)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

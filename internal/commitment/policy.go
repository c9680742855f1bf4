package commitment

import (
	"fmt"
	"time"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
)

// Friction tiers, weakest to strictest.
const (
	FrictionLow     = "low"
	FrictionMedium  = "medium"
	FrictionHigh    = "high"
	FrictionExtreme = "extreme"
)

var tierDelays = map[string]time.Duration{
	FrictionLow:     30 * time.Second,
	FrictionMedium:  60 * time.Second,
	FrictionHigh:    3 * time.Minute,
	FrictionExtreme: 5 * time.Minute,
}

// Strictest reports whether the weekly quota and time lock apply.
func Strictest(cfg config.CommitmentLockConfig) bool {
	return cfg.FrictionLevel == FrictionExtreme
}

// ConfirmationDelay is how long a new flow must wait before the intention
// can be submitted.
func ConfirmationDelay(cfg config.CommitmentLockConfig) time.Duration {
	if cfg.ConfirmationDelay > 0 {
		return cfg.ConfirmationDelay
	}
	if d, ok := tierDelays[cfg.FrictionLevel]; ok {
		return d
	}
	return tierDelays[FrictionMedium]
}

// Cooldown returns the cooldown that follows a confirmed unlock after
// failures consecutive failed attempts.
func Cooldown(cfg config.CommitmentLockConfig, failures int) time.Duration {
	base := time.Duration(cfg.BaseCooldownMinutes) * time.Minute
	m := cfg.EscalationMultipliers
	if !cfg.EscalationEnabled || len(m) == 0 {
		return base
	}
	i := min(max(failures, 0), len(m)-1)
	return base * time.Duration(m[i])
}

// Roll resets the daily counters on a date change and the weekly counters
// when a new week has started.
func Roll(s State, cfg config.CommitmentLockConfig, today, weekStart string) State {
	if s.LastDailyResetDate != today {
		s.TodayAttempts = 0
		s.TodaySuccesses = 0
		s.ConsecutiveFailures = 0
		s.LastDailyResetDate = today
	}
	if s.LastWeeklyResetDate != weekStart {
		s.WeekAttempts = 0
		s.WeekSuccesses = 0
		s.WeeklyUnlocksRemaining = cfg.WeeklyUnlockLimit
		s.LastWeeklyResetDate = weekStart
	}
	return s
}

// InWindow reports whether hour falls inside the allowed window. A window
// whose start is after its end wraps around midnight.
func InWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// Check evaluates the unlock policy in order and returns the first denial,
// or nil when an unlock may start.
func Check(s State, cfg config.CommitmentLockConfig, now time.Time) *fault.DeniedError {
	if !cfg.Enabled {
		return fault.Denied(fault.ReasonDisabled, 0, "the commitment lock is disabled")
	}
	if cfg.NuclearMode {
		return fault.Denied(fault.ReasonNuclearMode, 0, "nuclear mode is on; unlocking is impossible")
	}
	if now.Before(s.CurrentCooldownEndsAt) {
		return fault.Denied(fault.ReasonCooldownActive, s.CurrentCooldownEndsAt.Sub(now), "the previous unlock is cooling down")
	}
	if now.Before(s.TimeLockEndsAt) {
		return fault.Denied(fault.ReasonTimeLockActive, s.TimeLockEndsAt.Sub(now), "the time lock is active")
	}
	if Strictest(cfg) && s.WeeklyUnlocksRemaining <= 0 {
		return fault.Denied(fault.ReasonWeeklyLimit, clock.NextMonday(now).Sub(now), "no unlocks left this week")
	}
	if sc := cfg.Schedule; sc.Enabled && !InWindow(now.Hour(), sc.StartHour, sc.EndHour) {
		return fault.Denied(fault.ReasonOutsideHours, untilHour(now, sc.StartHour),
			fmt.Sprintf("unlocks are allowed between %02d:00 and %02d:00", sc.StartHour, sc.EndHour))
	}
	return nil
}

func untilHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

package commitment

import (
	"maps"
	"slices"
	"time"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/ring"
)

const historyKey = "unlock_history"

// Failure reasons recorded in the history.
const (
	FailureCancelled   = "cancelled_by_user"
	FailureInterrupted = "flow_interrupted"
)

// Attempt is one finished unlock flow.
type Attempt struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Success            bool      `json:"success"`
	FrictionLevel      string    `json:"frictionLevel"`
	ChallengesPassed   int       `json:"challengesPassed"`
	ChallengesFailed   int       `json:"challengesFailed"`
	IntentionStatement string    `json:"intentionStatement,omitempty"`
	TimeToCompleteMs   int64     `json:"timeToCompleteMs"`
	FailureReason      string    `json:"failureReason,omitempty"`
}

// History is the bounded attempt log, oldest first.
type History = ring.Ring[Attempt]

// Stats is derived from the history and the lock state.
type Stats struct {
	TotalAttempts           int     `json:"totalAttempts"`
	Successes               int     `json:"successes"`
	Failures                int     `json:"failures"`
	SuccessRate             float64 `json:"successRate"`
	AverageTimeToCompleteMs int64   `json:"averageTimeToCompleteMs"`
	MostCommonFailure       string  `json:"mostCommonFailure,omitempty"`
	DaysWithoutUnlock       int     `json:"daysWithoutUnlock"`
	TodayAttempts           int     `json:"todayAttempts"`
	WeekAttempts            int     `json:"weekAttempts"`
	ConsecutiveFailures     int     `json:"consecutiveFailures"`
	WeeklyUnlocksRemaining  int     `json:"weeklyUnlocksRemaining"`
}

// ComputeStats derives Stats. Average completion time only covers
// successful attempts. Ties for the most common failure go to the
// alphabetically first reason.
func ComputeStats(attempts []Attempt, s State, now time.Time) Stats {
	st := Stats{
		TotalAttempts:          len(attempts),
		TodayAttempts:          s.TodayAttempts,
		WeekAttempts:           s.WeekAttempts,
		ConsecutiveFailures:    s.ConsecutiveFailures,
		WeeklyUnlocksRemaining: s.WeeklyUnlocksRemaining,
	}

	var total int64
	reasons := map[string]int{}
	for _, a := range attempts {
		if a.Success {
			st.Successes++
			total += a.TimeToCompleteMs
			continue
		}
		st.Failures++
		if a.FailureReason != "" {
			reasons[a.FailureReason]++
		}
	}

	if st.TotalAttempts > 0 {
		st.SuccessRate = float64(st.Successes) / float64(st.TotalAttempts)
	}
	if st.Successes > 0 {
		st.AverageTimeToCompleteMs = total / int64(st.Successes)
	}
	best := 0
	for _, r := range slices.Sorted(maps.Keys(reasons)) {
		if reasons[r] > best {
			st.MostCommonFailure, best = r, reasons[r]
		}
	}
	if !s.LastUnlockAt.IsZero() {
		st.DaysWithoutUnlock = max(0, clock.DaysBetween(clock.DateOf(s.LastUnlockAt.In(now.Location())), clock.DateOf(now)))
	}
	return st
}

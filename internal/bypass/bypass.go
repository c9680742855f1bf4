// Package bypass gates temporary unblocking behind a solved puzzle and a
// cooldown.
package bypass

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/btouchard/holdfast/internal/challenge"
	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/store"
)

const recordKey = "challenge_state"

// State is the persisted bypass state.
type State struct {
	CurrentChallenge *challenge.Challenge `json:"currentChallenge"`
	FailedAttempts   int                  `json:"failedAttempts"`
	LastBypassAt     time.Time            `json:"lastBypassAt,omitzero"`
}

// Provider generates and verifies puzzles.
type Provider interface {
	Generate(t challenge.Type, d challenge.Difficulty) challenge.Challenge
	Verify(c challenge.Challenge, answer string) bool
}

// Result is the outcome of an answer submission.
type Result struct {
	Correct        bool          `json:"correct"`
	BypassDuration time.Duration `json:"-"`
	BypassUntil    time.Time     `json:"bypassUntil,omitzero"`
	FailedAttempts int           `json:"failedAttempts"`
}

// Status summarises the engine for callers.
type Status struct {
	Active            bool            `json:"active"`
	RemainingSeconds  int             `json:"remainingSeconds"`
	CooldownSeconds   int             `json:"cooldownSeconds"`
	FailedAttempts    int             `json:"failedAttempts"`
	PendingChallenge  *challenge.View `json:"pendingChallenge,omitempty"`
	LastBypassAt      time.Time       `json:"lastBypassAt,omitzero"`
	BypassDurationSec int             `json:"bypassDurationSeconds"`
}

// Engine runs the bypass flow.
type Engine struct {
	cfg      config.BypassConfig
	doc      *store.Doc[State]
	clock    clock.Clock
	provider Provider
}

// New creates a bypass Engine.
func New(cfg config.BypassConfig, s store.Store, clk clock.Clock, p Provider) *Engine {
	return &Engine{
		cfg:      cfg,
		doc:      store.NewDoc(s, recordKey, func() State { return State{} }),
		clock:    clk,
		provider: p,
	}
}

// Remaining returns how long the granted bypass still lasts at now.
func Remaining(s State, duration time.Duration, now time.Time) time.Duration {
	if s.LastBypassAt.IsZero() {
		return 0
	}
	return max(0, s.LastBypassAt.Add(duration).Sub(now))
}

// CooldownLeft returns how long until a new challenge may be requested.
func CooldownLeft(s State, cooldown time.Duration, now time.Time) time.Duration {
	if s.LastBypassAt.IsZero() {
		return 0
	}
	return max(0, s.LastBypassAt.Add(cooldown).Sub(now))
}

// Expire discards a stored challenge that is past its expiry.
func Expire(s State, now time.Time) (State, bool) {
	if s.CurrentChallenge == nil || !s.CurrentChallenge.Expired(now) {
		return s, false
	}
	s.CurrentChallenge = nil
	return s, true
}

// RequestChallenge stores and returns a fresh challenge.
func (e *Engine) RequestChallenge(ctx context.Context) (challenge.View, error) {
	if !e.cfg.Enabled {
		return challenge.View{}, fault.Denied(fault.ReasonDisabled, 0, "challenges are disabled")
	}
	if !e.cfg.AllowBypass {
		return challenge.View{}, fault.Denied(fault.ReasonBypassDisabled, 0, "bypass is not allowed")
	}

	now := e.clock.Now()
	st, err := e.doc.Update(ctx, func(s *State) error {
		if wait := CooldownLeft(*s, e.cfg.Cooldown, now); wait > 0 {
			return fault.Denied(fault.ReasonCooldownActive, wait, "a bypass was granted recently")
		}
		c := e.provider.Generate(challenge.Type(e.cfg.ChallengeType), challenge.Difficulty(e.cfg.Difficulty))
		c.CreatedAt = now
		if e.cfg.ChallengeTTL > 0 {
			c.ExpiresAt = now.Add(e.cfg.ChallengeTTL)
		}
		s.CurrentChallenge = &c
		return nil
	})
	if err != nil {
		if d, ok := fault.AsDenied(err); ok {
			slog.Info("bypass challenge denied", "reason", d.Reason, "wait", d.WaitText())
		}
		return challenge.View{}, err
	}

	slog.Info("bypass challenge issued", "type", st.CurrentChallenge.Type, "difficulty", st.CurrentChallenge.Difficulty)
	return st.CurrentChallenge.View(), nil
}

// SubmitAnswer checks answer against the pending challenge. A wrong answer
// is a normal result; the challenge is consumed either way.
func (e *Engine) SubmitAnswer(ctx context.Context, answer string) (Result, error) {
	now := e.clock.Now()
	var res Result
	_, err := e.doc.Update(ctx, func(s *State) error {
		*s, _ = Expire(*s, now)
		if s.CurrentChallenge == nil {
			return fault.InvalidState("no challenge is pending")
		}

		if e.provider.Verify(*s.CurrentChallenge, answer) {
			s.LastBypassAt = now
			s.FailedAttempts = 0
			res = Result{Correct: true, BypassDuration: e.cfg.Duration, BypassUntil: now.Add(e.cfg.Duration)}
		} else {
			s.FailedAttempts++
			res = Result{FailedAttempts: s.FailedAttempts}
		}
		s.CurrentChallenge = nil
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Correct {
		slog.Info("bypass granted", "until", res.BypassUntil)
	} else {
		slog.Info("bypass challenge failed", "failed_attempts", res.FailedAttempts)
	}
	return res, nil
}

// IsBypassActive reports whether a granted bypass is still running.
func (e *Engine) IsBypassActive(ctx context.Context) bool {
	return e.RemainingBypass(ctx) > 0
}

// RemainingBypass returns the time left on the granted bypass.
func (e *Engine) RemainingBypass(ctx context.Context) time.Duration {
	return Remaining(e.doc.Get(ctx), e.cfg.Duration, e.clock.Now())
}

// Status returns the engine summary, discarding an expired challenge.
func (e *Engine) Status(ctx context.Context) Status {
	now := e.clock.Now()
	st := e.doc.Sweep(ctx, func(s *State) bool {
		var changed bool
		*s, changed = Expire(*s, now)
		return changed
	})

	out := Status{
		RemainingSeconds:  seconds(Remaining(st, e.cfg.Duration, now)),
		CooldownSeconds:   seconds(CooldownLeft(st, e.cfg.Cooldown, now)),
		FailedAttempts:    st.FailedAttempts,
		LastBypassAt:      st.LastBypassAt,
		BypassDurationSec: int(e.cfg.Duration.Seconds()),
	}
	out.Active = out.RemainingSeconds > 0
	if st.CurrentChallenge != nil {
		v := st.CurrentChallenge.View()
		out.PendingChallenge = &v
	}
	return out
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

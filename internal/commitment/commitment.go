// Package commitment implements the commitment lock: an unlock ritual of
// waiting, stating an intention and solving consecutive puzzles, gated by
// escalating cooldowns, a weekly quota, a time-of-day window and a time lock.
//
// The open flow lives only in memory. A restart discards it and the user has
// to start over; RecoverInterruptedFlow records such flows as failed attempts.
package commitment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/btouchard/holdfast/internal/challenge"
	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/config"
	"github.com/btouchard/holdfast/internal/fault"
	"github.com/btouchard/holdfast/internal/notify"
	"github.com/btouchard/holdfast/internal/ring"
	"github.com/btouchard/holdfast/internal/store"
)

// WakeLabel is the scheduler label for the end of the post-unlock cooldown.
const WakeLabel = "unlock_cooldown_end"

const recordKey = "commitment_lock_state"

// State is the persisted lock state.
type State struct {
	TodayAttempts          int       `json:"todayAttempts"`
	TodaySuccesses         int       `json:"todaySuccesses"`
	WeekAttempts           int       `json:"weekAttempts"`
	WeekSuccesses          int       `json:"weekSuccesses"`
	LastDailyResetDate     string    `json:"lastDailyResetDate"`
	LastWeeklyResetDate    string    `json:"lastWeeklyResetDate"`
	ConsecutiveFailures    int       `json:"consecutiveFailures"`
	CurrentCooldownEndsAt  time.Time `json:"currentCooldownEndsAt,omitzero"`
	TimeLockEndsAt         time.Time `json:"timeLockEndsAt,omitzero"`
	WeeklyUnlocksRemaining int       `json:"weeklyUnlocksRemaining"`
	LastUnlockAt           time.Time `json:"lastUnlockAt,omitzero"`
	InProgressChallenge    *Progress `json:"inProgressChallenge"`
}

// Progress mirrors the open flow so it can be shown, and accounted for,
// after a restart.
type Progress struct {
	StartedAt           time.Time `json:"startedAt"`
	IntentionSubmitted  bool      `json:"intentionSubmitted"`
	ChallengesCompleted int       `json:"challengesCompleted"`
	ChallengesFailed    int       `json:"challengesFailed"`
	ChallengesRequired  int       `json:"challengesRequired"`
}

// Flow is the open unlock ritual.
type Flow struct {
	StartedAt           time.Time
	ReadyAt             time.Time
	IntentionSubmitted  bool
	IntentionText       string
	ChallengesCompleted int
	ChallengesFailed    int
	CurrentChallenge    *challenge.Challenge
}

// Flow phases.
const (
	PhaseWaiting    = "waiting"
	PhaseIntention  = "intention_pending"
	PhaseChallenges = "challenges_pending"
	PhaseReady      = "ready"
)

// FlowView is the client-safe projection of a Flow.
type FlowView struct {
	Phase               string          `json:"phase"`
	StartedAt           time.Time       `json:"startedAt"`
	ReadyAt             time.Time       `json:"readyAt"`
	WaitSeconds         int             `json:"waitSeconds"`
	IntentionSubmitted  bool            `json:"intentionSubmitted"`
	ChallengesCompleted int             `json:"challengesCompleted"`
	ChallengesFailed    int             `json:"challengesFailed"`
	ChallengesRequired  int             `json:"challengesRequired"`
	AllCompleted        bool            `json:"allCompleted"`
	Challenge           *challenge.View `json:"challenge,omitempty"`
}

// AnswerResult is the outcome of one puzzle answer.
type AnswerResult struct {
	Correct bool     `json:"correct"`
	Flow    FlowView `json:"flow"`
}

// Unlock is the outcome of a confirmed unlock.
type Unlock struct {
	CooldownMinutes        int       `json:"cooldownMinutes"`
	CooldownEndsAt         time.Time `json:"cooldownEndsAt"`
	TimeLockEndsAt         time.Time `json:"timeLockEndsAt,omitzero"`
	WeeklyUnlocksRemaining int       `json:"weeklyUnlocksRemaining"`
}

// Decision is the result of an allow check.
type Decision struct {
	Allowed  bool         `json:"allowed"`
	Reason   fault.Reason `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`
	WaitSecs int          `json:"waitSeconds,omitempty"`
	WaitText string       `json:"wait,omitempty"`
}

// Provider generates and verifies puzzles.
type Provider interface {
	Generate(t challenge.Type, d challenge.Difficulty) challenge.Challenge
	Verify(c challenge.Challenge, answer string) bool
}

// Waker registers and cancels wake-ups.
type Waker interface {
	Schedule(ctx context.Context, label string, at time.Time) error
	Cancel(ctx context.Context, label string) error
}

// Engine runs the commitment lock.
type Engine struct {
	cfg      config.CommitmentLockConfig
	doc      *store.Doc[State]
	history  *store.Doc[History]
	clock    clock.Clock
	provider Provider
	waker    Waker
	notifier notify.Notifier

	mu   sync.Mutex
	flow *Flow
}

// New creates a commitment lock Engine.
func New(cfg config.CommitmentLockConfig, s store.Store, clk clock.Clock, p Provider, w Waker, n notify.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		doc:      store.NewDoc(s, recordKey, func() State { return State{WeeklyUnlocksRemaining: cfg.WeeklyUnlockLimit} }),
		history:  store.NewDoc(s, historyKey, func() History { return *ring.New[Attempt](cfg.MaxHistory) }),
		clock:    clk,
		provider: p,
		waker:    w,
		notifier: n,
	}
}

// CheckUnlockAllowed rolls the counters and evaluates the policy.
func (e *Engine) CheckUnlockAllowed(ctx context.Context) (Decision, error) {
	now := e.clock.Now()
	st, err := e.roll(ctx)
	if err != nil {
		return Decision{}, err
	}
	return decision(Check(st, e.cfg, now)), nil
}

func decision(d *fault.DeniedError) Decision {
	if d == nil {
		return Decision{Allowed: true}
	}
	return Decision{
		Reason:   d.Reason,
		Message:  d.Message,
		WaitSecs: int(d.Wait.Seconds()),
		WaitText: d.WaitText(),
	}
}

func (e *Engine) roll(ctx context.Context) (State, error) {
	today, week := e.clock.Today(), e.clock.StartOfWeek()
	return e.doc.Update(ctx, func(s *State) error {
		*s = Roll(*s, e.cfg, today, week)
		return nil
	})
}

// StartUnlockFlow opens a flow when the policy allows it. The caller must
// honour the returned wait before submitting the intention.
func (e *Engine) StartUnlockFlow(ctx context.Context) (FlowView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow != nil {
		return FlowView{}, fault.InvalidState("an unlock flow is already open")
	}

	now := e.clock.Now()
	today, week := e.clock.Today(), e.clock.StartOfWeek()
	_, err := e.doc.Update(ctx, func(s *State) error {
		*s = Roll(*s, e.cfg, today, week)
		if d := Check(*s, e.cfg, now); d != nil {
			return d
		}
		s.TodayAttempts++
		s.WeekAttempts++
		s.InProgressChallenge = &Progress{StartedAt: now, ChallengesRequired: e.cfg.ChallengesRequired}
		return nil
	})
	if err != nil {
		if d, ok := fault.AsDenied(err); ok {
			slog.Info("unlock denied", "reason", d.Reason, "wait", d.WaitText())
		}
		return FlowView{}, err
	}

	e.flow = &Flow{StartedAt: now, ReadyAt: now.Add(ConfirmationDelay(e.cfg))}
	slog.Info("unlock flow started", "friction", e.cfg.FrictionLevel, "ready_at", e.flow.ReadyAt)
	return e.view(now), nil
}

// SubmitIntention records the user's reason for unlocking.
func (e *Engine) SubmitIntention(ctx context.Context, text string) (FlowView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow == nil {
		return FlowView{}, fault.InvalidState("no unlock flow is open")
	}
	now := e.clock.Now()
	if now.Before(e.flow.ReadyAt) {
		return FlowView{}, fault.Denied(fault.ReasonConfirmationDelay, e.flow.ReadyAt.Sub(now), "take a moment before continuing")
	}
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < e.cfg.MinIntentionLength {
		return FlowView{}, fault.Validation("intention must be at least %d characters (got %d)", e.cfg.MinIntentionLength, n)
	}

	e.flow.IntentionSubmitted = true
	e.flow.IntentionText = text
	e.saveProgress(ctx)
	return e.view(now), nil
}

// RequestChallenge returns the current puzzle, generating one if needed.
func (e *Engine) RequestChallenge(ctx context.Context) (FlowView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow == nil {
		return FlowView{}, fault.InvalidState("no unlock flow is open")
	}
	if !e.flow.IntentionSubmitted {
		return FlowView{}, fault.InvalidState("submit an intention first")
	}
	if e.flow.ChallengesCompleted >= e.cfg.ChallengesRequired {
		return FlowView{}, fault.InvalidState("all challenges are already completed")
	}
	if e.flow.CurrentChallenge == nil {
		e.nextChallenge()
	}
	return e.view(e.clock.Now()), nil
}

// SubmitChallengeAnswer checks answer against the current puzzle. A wrong
// answer is a normal result: the failure is counted, the run is reset when
// solves must be consecutive, and a new puzzle is issued.
func (e *Engine) SubmitChallengeAnswer(ctx context.Context, answer string) (AnswerResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow == nil || e.flow.CurrentChallenge == nil {
		return AnswerResult{}, fault.InvalidState("no challenge is pending")
	}

	correct := e.provider.Verify(*e.flow.CurrentChallenge, answer)
	e.flow.CurrentChallenge = nil
	if correct {
		e.flow.ChallengesCompleted++
		if e.flow.ChallengesCompleted < e.cfg.ChallengesRequired {
			e.nextChallenge()
		}
	} else {
		e.flow.ChallengesFailed++
		if e.cfg.ChallengesMustBeConsecutive {
			e.flow.ChallengesCompleted = 0
		}
		e.nextChallenge()
	}

	slog.Debug("unlock challenge answered", "correct", correct,
		"completed", e.flow.ChallengesCompleted, "failed", e.flow.ChallengesFailed)
	e.saveProgress(ctx)
	return AnswerResult{Correct: correct, Flow: e.view(e.clock.Now())}, nil
}

// ConfirmUnlock finishes the flow: it starts the escalated cooldown, applies
// the strictest tier's time lock and quota, forgives earlier failures and
// records the success.
func (e *Engine) ConfirmUnlock(ctx context.Context) (Unlock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.flow
	if f == nil {
		return Unlock{}, fault.InvalidState("no unlock flow is open")
	}
	if !f.IntentionSubmitted || f.ChallengesCompleted < e.cfg.ChallengesRequired {
		return Unlock{}, fault.InvalidState("complete the intention and all challenges first")
	}

	now := e.clock.Now()
	today, week := e.clock.Today(), e.clock.StartOfWeek()
	var cooldown time.Duration
	st, err := e.doc.Update(ctx, func(s *State) error {
		*s = Roll(*s, e.cfg, today, week)
		cooldown = Cooldown(e.cfg, s.ConsecutiveFailures)
		s.CurrentCooldownEndsAt = now.Add(cooldown)
		if Strictest(e.cfg) {
			if lock := now.Add(time.Duration(e.cfg.TimeLockHours) * time.Hour); lock.After(s.TimeLockEndsAt) {
				s.TimeLockEndsAt = lock
			}
			s.WeeklyUnlocksRemaining = max(0, s.WeeklyUnlocksRemaining-1)
		}
		s.ConsecutiveFailures = 0
		s.TodaySuccesses++
		s.WeekSuccesses++
		s.LastUnlockAt = now
		s.InProgressChallenge = nil
		return nil
	})
	if err != nil {
		return Unlock{}, err
	}

	e.record(ctx, Attempt{
		Timestamp:          now,
		Success:            true,
		ChallengesPassed:   f.ChallengesCompleted,
		ChallengesFailed:   f.ChallengesFailed,
		IntentionStatement: f.IntentionText,
		TimeToCompleteMs:   now.Sub(f.StartedAt).Milliseconds(),
	})
	e.flow = nil

	if cooldown > 0 {
		if err := e.waker.Schedule(ctx, WakeLabel, st.CurrentCooldownEndsAt); err != nil {
			slog.Warn("scheduling cooldown wake-up failed", "error", err)
		}
	}

	res := Unlock{
		CooldownMinutes:        int(cooldown / time.Minute),
		CooldownEndsAt:         st.CurrentCooldownEndsAt,
		TimeLockEndsAt:         st.TimeLockEndsAt,
		WeeklyUnlocksRemaining: st.WeeklyUnlocksRemaining,
	}
	slog.Info("unlock confirmed", "cooldown_minutes", res.CooldownMinutes, "weekly_remaining", res.WeeklyUnlocksRemaining)
	return res, nil
}

// CancelUnlockFlow abandons the open flow, counting it as a failure. It is a
// no-op when no flow is open.
func (e *Engine) CancelUnlockFlow(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.flow
	if f == nil {
		return nil
	}
	e.flow = nil

	now := e.clock.Now()
	_, err := e.doc.Update(ctx, func(s *State) error {
		s.ConsecutiveFailures++
		s.InProgressChallenge = nil
		return nil
	})

	e.record(ctx, Attempt{
		Timestamp:          now,
		ChallengesPassed:   f.ChallengesCompleted,
		ChallengesFailed:   f.ChallengesFailed,
		IntentionStatement: f.IntentionText,
		TimeToCompleteMs:   now.Sub(f.StartedAt).Milliseconds(),
		FailureReason:      FailureCancelled,
	})
	slog.Info("unlock flow cancelled")
	return err
}

// RecoverInterruptedFlow records a flow that was open when the process
// stopped as a failed attempt. Consecutive failures are left unchanged.
func (e *Engine) RecoverInterruptedFlow(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow != nil {
		return nil
	}

	if e.doc.Get(ctx).InProgressChallenge == nil {
		return nil
	}

	var lost *Progress
	_, err := e.doc.Update(ctx, func(s *State) error {
		lost = s.InProgressChallenge
		s.InProgressChallenge = nil
		return nil
	})
	if err != nil {
		return err
	}
	if lost == nil {
		return nil
	}

	e.record(ctx, Attempt{
		Timestamp:        e.clock.Now(),
		ChallengesPassed: lost.ChallengesCompleted,
		ChallengesFailed: lost.ChallengesFailed,
		TimeToCompleteMs: e.clock.Now().Sub(lost.StartedAt).Milliseconds(),
		FailureReason:    FailureInterrupted,
	})
	slog.Info("interrupted unlock flow recorded", "started_at", lost.StartedAt)
	return nil
}

// Flow returns the open flow, if any.
func (e *Engine) Flow() (FlowView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.flow == nil {
		return FlowView{}, false
	}
	return e.view(e.clock.Now()), true
}

// State returns the persisted lock state.
func (e *Engine) State(ctx context.Context) State {
	return e.doc.Get(ctx)
}

// History returns the recorded attempts, oldest first.
func (e *Engine) History(ctx context.Context) []Attempt {
	h := e.history.Get(ctx)
	return h.Items()
}

// GetUnlockStats derives statistics from the history and state.
func (e *Engine) GetUnlockStats(ctx context.Context) (Stats, error) {
	st, err := e.roll(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(e.History(ctx), st, e.clock.Now()), nil
}

// HandleWake is the scheduler handler for WakeLabel.
func (e *Engine) HandleWake(ctx context.Context, _ time.Time) error {
	st := e.doc.Get(ctx)
	if st.CurrentCooldownEndsAt.IsZero() || e.clock.Now().Before(st.CurrentCooldownEndsAt) {
		return nil
	}
	e.notifier.Notify(notify.Event{
		Type:    "unlock.cooldown_over",
		Title:   "Unlock cooldown over",
		Message: "The commitment lock cooldown has ended.",
	})
	return nil
}

func (e *Engine) nextChallenge() {
	c := e.provider.Generate(challenge.Type(e.cfg.ChallengeType), challenge.Difficulty(e.cfg.ChallengeDifficulty))
	c.CreatedAt = e.clock.Now()
	e.flow.CurrentChallenge = &c
}

func (e *Engine) saveProgress(ctx context.Context) {
	f := e.flow
	_, err := e.doc.Update(ctx, func(s *State) error {
		s.InProgressChallenge = &Progress{
			StartedAt:           f.StartedAt,
			IntentionSubmitted:  f.IntentionSubmitted,
			ChallengesCompleted: f.ChallengesCompleted,
			ChallengesFailed:    f.ChallengesFailed,
			ChallengesRequired:  e.cfg.ChallengesRequired,
		}
		return nil
	})
	if err != nil {
		slog.Warn("saving unlock progress failed", "error", err)
	}
}

func (e *Engine) record(ctx context.Context, a Attempt) {
	a.ID = uuid.NewString()
	a.FrictionLevel = e.cfg.FrictionLevel
	_, err := e.history.Update(ctx, func(h *History) error {
		h.SetCap(e.cfg.MaxHistory)
		h.Push(a)
		return nil
	})
	if err != nil {
		slog.Error("recording unlock attempt failed", "error", err)
	}
}

func (e *Engine) view(now time.Time) FlowView {
	f := e.flow
	v := FlowView{
		StartedAt:           f.StartedAt,
		ReadyAt:             f.ReadyAt,
		IntentionSubmitted:  f.IntentionSubmitted,
		ChallengesCompleted: f.ChallengesCompleted,
		ChallengesFailed:    f.ChallengesFailed,
		ChallengesRequired:  e.cfg.ChallengesRequired,
		AllCompleted:        f.ChallengesCompleted >= e.cfg.ChallengesRequired,
	}
	if f.CurrentChallenge != nil {
		cv := f.CurrentChallenge.View()
		v.Challenge = &cv
	}
	switch {
	case now.Before(f.ReadyAt):
		v.Phase = PhaseWaiting
		v.WaitSeconds = int(f.ReadyAt.Sub(now).Seconds())
	case !f.IntentionSubmitted:
		v.Phase = PhaseIntention
	case !v.AllCompleted:
		v.Phase = PhaseChallenges
	default:
		v.Phase = PhaseReady
	}
	return v
}

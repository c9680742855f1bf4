package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/store"
)

type firedLog struct {
	mu     sync.Mutex
	labels []string
}

func (f *firedLog) handler(label string) Handler {
	return func(_ context.Context, _ time.Time) error {
		f.mu.Lock()
		f.labels = append(f.labels, label)
		f.mu.Unlock()
		return nil
	}
}

func (f *firedLog) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.labels...)
}

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestScheduler_Start_FiresOverdueAlarms(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	clk := clock.NewManual(t0)

	require.NoError(t, st.SaveAlarm(ctx, store.Alarm{Label: "focus_end", FireAt: t0.Add(-time.Minute)}))
	require.NoError(t, st.SaveAlarm(ctx, store.Alarm{Label: "pomodoro_end", FireAt: t0.Add(time.Hour)}))

	var log firedLog
	s := New(st, clk, "")
	s.Handle("focus_end", log.handler("focus_end"))
	s.Handle("pomodoro_end", log.handler("pomodoro_end"))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Equal(t, []string{"focus_end"}, log.all())

	alarms, err := st.ListAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	assert.Equal(t, "pomodoro_end", alarms[0].Label)
}

func TestScheduler_Sweep_FiresDueAfterSuspension(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	clk := clock.NewManual(t0)

	var log firedLog
	s := New(st, clk, "")
	s.Handle("focus_end", log.handler("focus_end"))
	require.NoError(t, s.Schedule(ctx, "focus_end", t0.Add(25*time.Minute)))

	s.Sweep(ctx)
	assert.Empty(t, log.all())

	clk.Advance(2 * time.Hour) // process was suspended past the deadline
	s.Sweep(ctx)
	s.Sweep(ctx)
	assert.Equal(t, []string{"focus_end"}, log.all(), "a delivered alarm is not delivered again")
}

func TestScheduler_Cancel_RemovesAlarm(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	clk := clock.NewManual(t0)

	var log firedLog
	s := New(st, clk, "")
	s.Handle("focus_end", log.handler("focus_end"))
	require.NoError(t, s.Schedule(ctx, "focus_end", t0.Add(time.Minute)))
	require.NoError(t, s.Cancel(ctx, "focus_end"))
	require.NoError(t, s.Cancel(ctx, "never_scheduled"))

	clk.Advance(time.Hour)
	s.Sweep(ctx)
	assert.Empty(t, log.all())

	_, ok := s.Pending(ctx, "focus_end")
	assert.False(t, ok)
}

func TestScheduler_HandlerMayReschedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	clk := clock.NewManual(t0)

	s := New(st, clk, "")
	fired := 0
	s.Handle("daily_rollover", func(ctx context.Context, at time.Time) error {
		fired++
		return s.Schedule(ctx, "daily_rollover", at.Add(24*time.Hour))
	})
	require.NoError(t, s.Schedule(ctx, "daily_rollover", t0))

	s.Sweep(ctx)
	assert.Equal(t, 1, fired)

	next, ok := s.Pending(ctx, "daily_rollover")
	require.True(t, ok, "rescheduled alarm must survive the post-fire clear")
	assert.True(t, next.Equal(t0.Add(24*time.Hour)))
}

func TestScheduler_UnknownLabel_IsDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	clk := clock.NewManual(t0)

	s := New(st, clk, "")
	require.NoError(t, s.Schedule(ctx, "mystery", t0))
	s.Sweep(ctx)

	_, ok := s.Pending(ctx, "mystery")
	assert.False(t, ok)
}

func TestScheduler_Timer_FiresAfterStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemoryStore()
	clk := clock.NewManual(time.Now())

	done := make(chan struct{})
	s := New(st, clk, "")
	s.Handle("focus_end", func(context.Context, time.Time) error {
		close(done)
		return nil
	})
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	require.NoError(t, s.Schedule(ctx, "focus_end", clk.Now().Add(20*time.Millisecond)))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestNext_ComputesCronActivation(t *testing.T) {
	t.Parallel()

	next, err := Next("0 0 * * *", t0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), next)

	next, err = Next("55 23 * * *", t0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 23, 55, 0, 0, time.UTC), next)

	_, err = Next("not a spec", t0)
	assert.Error(t, err)
}

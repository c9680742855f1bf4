package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/holdfast/internal/clock"
	"github.com/btouchard/holdfast/internal/store"
)

func TestTracker_RecordsPerDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	tr := New(store.NewMemoryStore(), clk, 30)

	require.NoError(t, tr.RecordFocus(ctx, "2026-03-02", 25))
	require.NoError(t, tr.RecordFocus(ctx, "2026-03-02", 30))
	require.NoError(t, tr.RecordBlock(ctx))
	require.NoError(t, tr.RecordFocus(ctx, "2026-03-02", 0))
	require.NoError(t, tr.RecordFocus(ctx, "2026-03-01", 10))

	assert.Equal(t, Day{FocusMinutes: 55, BlockCount: 1}, tr.Day(ctx, "2026-03-02"))
	assert.Equal(t, Day{FocusMinutes: 10}, tr.Day(ctx, "2026-03-01"))
	assert.Equal(t, Day{}, tr.Day(ctx, "2026-02-28"))
}

func TestTracker_PrunesOutsideRetention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	tr := New(store.NewMemoryStore(), clk, 3)

	require.NoError(t, tr.RecordBlock(ctx))
	clk.Advance(5 * 24 * time.Hour)
	require.NoError(t, tr.RecordBlock(ctx))

	assert.Equal(t, []string{"2026-03-06"}, tr.Dates(ctx))
}

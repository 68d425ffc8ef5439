package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poro/notify-engine/internal/entity"
)

func newTestQueue(t *testing.T) *ScheduleQueue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewScheduleQueue(client)
}

func TestEnqueuePopDue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, "n1", now.Add(-time.Minute), entity.PriorityNormal))
	require.NoError(t, q.Enqueue(ctx, "n2", now.Add(time.Hour), entity.PriorityNormal))

	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "pop is score-ordered, not time-bounded")

	// First entry is the earliest-due one.
	assert.Equal(t, "n1", entries[0].NotificationID)
	assert.False(t, entries[0].DueAt().After(now))

	// The future entry must be recognized as not yet due and requeued.
	assert.True(t, entries[1].DueAt().After(now))
	require.NoError(t, q.Requeue(ctx, entries[1]))

	length, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestScheduledItemStaysUntilDue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()
	dueAt := now.Add(time.Hour)

	require.NoError(t, q.Enqueue(ctx, "future", dueAt, entity.PriorityHigh))

	// Simulated sweeps before the due time: pop, notice it is early, put back.
	for _, tick := range []time.Duration{time.Minute, 30 * time.Minute, 59 * time.Minute} {
		sweepNow := now.Add(tick)
		entries, err := q.PopDue(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, entries[0].DueAt().After(sweepNow), "at %v the item is not yet due", tick)
		require.NoError(t, q.Requeue(ctx, entries[0]))
	}

	// At the due time the item is released.
	sweepNow := now.Add(61 * time.Minute)
	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "future", entries[0].NotificationID)
	assert.False(t, entries[0].DueAt().After(sweepNow))

	length, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
}

func TestPriorityBreaksTies(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	dueAt := time.Now().Add(-time.Second)

	require.NoError(t, q.Enqueue(ctx, "low", dueAt, entity.PriorityLow))
	require.NoError(t, q.Enqueue(ctx, "urgent", dueAt, entity.PriorityUrgent))
	require.NoError(t, q.Enqueue(ctx, "normal", dueAt, entity.PriorityNormal))
	require.NoError(t, q.Enqueue(ctx, "high", dueAt, entity.PriorityHigh))

	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	order := make([]string, 0, 4)
	for _, e := range entries {
		order = append(order, e.NotificationID)
	}
	assert.Equal(t, []string{"urgent", "high", "normal", "low"}, order)
}

func TestPriorityNeverReordersDistinctDueTimes(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	require.NoError(t, q.Enqueue(ctx, "early-low", base, entity.PriorityLow))
	require.NoError(t, q.Enqueue(ctx, "late-urgent", base.Add(time.Second), entity.PriorityUrgent))

	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "early-low", entries[0].NotificationID)
}

func TestEnqueueSameIDReplacesScore(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, "n1", now.Add(time.Hour), entity.PriorityNormal))
	require.NoError(t, q.Enqueue(ctx, "n1", now.Add(-time.Minute), entity.PriorityNormal))

	length, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].DueAt().After(now))
}

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poro/notify-engine/internal/entity"
)

const defaultQueueKey = "notify:schedule"

// priorityWeight returns a small millisecond offset used only to break ties
// between items due at (nearly) the same instant. It never reorders items
// whose due times differ by more than the weight spread.
func priorityWeight(p entity.Priority) float64 {
	switch p {
	case entity.PriorityUrgent:
		return 0
	case entity.PriorityHigh:
		return 1
	case entity.PriorityNormal:
		return 2
	default:
		return 3
	}
}

// Entry is one scheduled delivery popped from the queue.
type Entry struct {
	NotificationID string
	Score          float64
}

// DueAt recovers the delivery time encoded in the entry's score.
func (e Entry) DueAt() time.Time {
	return time.UnixMilli(int64(e.Score))
}

// ScheduleQueue is a time-ordered delivery queue on a redis sorted set.
// Scores are epoch milliseconds plus a priority tie-break weight.
type ScheduleQueue struct {
	client *redis.Client
	key    string
}

func NewScheduleQueue(client *redis.Client) *ScheduleQueue {
	return &ScheduleQueue{
		client: client,
		key:    defaultQueueKey,
	}
}

// Enqueue inserts a notification keyed by its due time. Re-enqueueing the
// same ID replaces the previous score.
func (q *ScheduleQueue) Enqueue(ctx context.Context, notificationID string, dueAt time.Time, priority entity.Priority) error {
	score := float64(dueAt.UnixMilli()) + priorityWeight(priority)

	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  score,
		Member: notificationID,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue notification %s: %w", notificationID, err)
	}

	return nil
}

// PopDue atomically removes and returns up to maxCount of the lowest-scored
// entries. The pop is score-ordered, not time-bounded: callers must check
// each entry's due time and Requeue any that are not actually due yet.
func (q *ScheduleQueue) PopDue(ctx context.Context, maxCount int) ([]Entry, error) {
	members, err := q.client.ZPopMin(ctx, q.key, int64(maxCount)).Result()
	if err != nil {
		return nil, fmt.Errorf("pop due notifications: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{NotificationID: id, Score: m.Score})
	}

	return entries, nil
}

// Requeue puts a popped entry back with its original score. Used when the
// score-ordered pop raced ahead of the entry's actual due time.
func (q *ScheduleQueue) Requeue(ctx context.Context, e Entry) error {
	err := q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  e.Score,
		Member: e.NotificationID,
	}).Err()
	if err != nil {
		return fmt.Errorf("requeue notification %s: %w", e.NotificationID, err)
	}

	return nil
}

// Len returns the number of scheduled entries. Observability only.
func (q *ScheduleQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

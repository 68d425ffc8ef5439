package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Guard is a per-user, per-type admission check backed by redis counters
// with hour- and day-bucket keys that expire on their own.
type Guard struct {
	client *redis.Client
	now    func() time.Time
}

func NewGuard(client *redis.Client) *Guard {
	return &Guard{
		client: client,
		now:    time.Now,
	}
}

// Allow reserves one send for (userID, notifType) within the current hour
// and day windows. A rejected call is not charged against the counter.
// Counter-store errors fail open: notifications should not be blocked by a
// broken limiter.
func (g *Guard) Allow(ctx context.Context, userID, notifType string, maxPerHour, maxPerDay int) (bool, error) {
	now := g.now().UTC()

	var hourKey string
	if maxPerHour > 0 {
		hourKey = fmt.Sprintf("throttle:%s:%s:%s", userID, notifType, now.Format("2006010215"))
		allowed, err := g.reserve(ctx, hourKey, maxPerHour, endOfHour(now))
		if err != nil {
			logrus.Errorf("throttle check failed for %s/%s, failing open: %v", userID, notifType, err)
			return true, err
		}
		if !allowed {
			return false, nil
		}
	}

	if maxPerDay > 0 {
		dayKey := fmt.Sprintf("throttle:%s:%s:%s", userID, notifType, now.Format("20060102"))
		allowed, err := g.reserve(ctx, dayKey, maxPerDay, endOfDay(now))
		if err != nil {
			logrus.Errorf("throttle check failed for %s/%s, failing open: %v", userID, notifType, err)
			return true, err
		}
		if !allowed {
			// The hour bucket was already charged for a send that will not
			// happen; release that reservation too.
			if hourKey != "" {
				g.client.Decr(ctx, hourKey)
			}
			return false, nil
		}
	}

	return true, nil
}

func (g *Guard) reserve(ctx context.Context, key string, max int, expireAt time.Time) (bool, error) {
	count, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", key, err)
	}

	if count == 1 {
		if err := g.client.ExpireAt(ctx, key, expireAt).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	// Pre-increment value already at the limit: release the reservation so
	// the rejection itself is not counted.
	if count > int64(max) {
		g.client.Decr(ctx, key)
		return false, nil
	}

	return true, nil
}

func endOfHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

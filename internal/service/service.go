package service

import (
	"context"
	"time"

	"github.com/poro/notify-engine/internal/entity"
	"github.com/poro/notify-engine/internal/pkg/channel"
	"github.com/poro/notify-engine/internal/pkg/queue"
)

type NotificationUseCase interface {
	Create(ctx context.Context, req *entity.NotificationRequest) (*entity.Notification, error)
	Deliver(ctx context.Context, n *entity.Notification) map[entity.Channel]channel.DeliveryResult
	Get(ctx context.Context, id string) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error)
	Cancel(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) error
	QueueLength(ctx context.Context) (int64, error)
}

type TemplateUseCase interface {
	GetTemplate(ctx context.Context, notifType string) (*entity.NotificationTemplate, error)
	UpsertTemplate(ctx context.Context, t *entity.NotificationTemplate) error
	SeedDefaults(ctx context.Context) error
}

// ThrottleGuard is the per-user, per-type admission check.
type ThrottleGuard interface {
	Allow(ctx context.Context, userID, notifType string, maxPerHour, maxPerDay int) (bool, error)
}

// ScheduleQueue is the time-ordered delivery queue the orchestrator defers
// future sends to and the sweep loop drains.
type ScheduleQueue interface {
	Enqueue(ctx context.Context, notificationID string, dueAt time.Time, priority entity.Priority) error
	PopDue(ctx context.Context, maxCount int) ([]queue.Entry, error)
	Requeue(ctx context.Context, e queue.Entry) error
	Len(ctx context.Context) (int64, error)
}

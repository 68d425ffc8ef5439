package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/poro/notify-engine/internal/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	Update(ctx context.Context, n *entity.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Notification, error)
	// FindRetryable returns failed records below their attempt ceiling whose
	// last attempt is older than the given cutoff per record cooldown; the
	// cooldown itself is computed by the caller, so the query filters on
	// status and a conservative upper-bound cutoff only.
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*entity.Notification, error)
}

type TemplateRepository interface {
	Upsert(ctx context.Context, t *entity.NotificationTemplate) error
	GetByType(ctx context.Context, notifType string) (*entity.NotificationTemplate, error)
}

type PreferenceRepository interface {
	GetByUserID(ctx context.Context, userID string) (*entity.UserPreference, error)
	Upsert(ctx context.Context, p *entity.UserPreference) error
}

type Repository struct {
	Notifications NotificationRepository
	Templates     TemplateRepository
	Preferences   PreferenceRepository
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Notifications: NewNotificationRepository(db),
		Templates:     NewTemplateRepository(db),
		Preferences:   NewPreferenceRepository(db),
	}
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poro/notify-engine/internal/entity"

	_ "github.com/lib/pq"
)

type templateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Upsert(ctx context.Context, t *entity.NotificationTemplate) error {
	bodies, err := json.Marshal(t.ChannelBodies)
	if err != nil {
		return fmt.Errorf("marshal channel bodies: %w", err)
	}
	variables, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	defaults, err := json.Marshal(t.DefaultChannels)
	if err != nil {
		return fmt.Errorf("marshal default channels: %w", err)
	}
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `INSERT INTO notification_templates
		(type, channel_bodies, variables, default_channels, priority, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (type) DO UPDATE SET
			channel_bodies = EXCLUDED.channel_bodies,
			variables = EXCLUDED.variables,
			default_channels = EXCLUDED.default_channels,
			priority = EXCLUDED.priority,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query, t.Type, bodies, variables, defaults, t.Priority, settings, time.Now())
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", t.Type, err)
	}
	return nil
}

func (r *templateRepository) GetByType(ctx context.Context, notifType string) (*entity.NotificationTemplate, error) {
	query := `SELECT type, channel_bodies, variables, default_channels, priority, settings, created_at, updated_at
		FROM notification_templates WHERE type = $1`

	var (
		t         entity.NotificationTemplate
		bodies    []byte
		variables []byte
		defaults  []byte
		settings  []byte
	)

	err := r.db.QueryRowContext(ctx, query, notifType).Scan(
		&t.Type, &bodies, &variables, &defaults, &t.Priority, &settings, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", notifType, err)
	}

	if err := json.Unmarshal(bodies, &t.ChannelBodies); err != nil {
		return nil, fmt.Errorf("unmarshal channel bodies: %w", err)
	}
	if err := json.Unmarshal(variables, &t.Variables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	if err := json.Unmarshal(defaults, &t.DefaultChannels); err != nil {
		return nil, fmt.Errorf("unmarshal default channels: %w", err)
	}
	if err := json.Unmarshal(settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &t, nil
}

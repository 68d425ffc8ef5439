package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poro/notify-engine/internal/entity"
)

// TemplateCache keeps rendered-ready templates in redis so the dispatch hot
// path does not hit postgres for every create.
type TemplateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTemplateCache(client *redis.Client, ttl time.Duration) *TemplateCache {
	return &TemplateCache{client: client, ttl: ttl}
}

func (c *TemplateCache) Get(ctx context.Context, notifType string) (*entity.NotificationTemplate, error) {
	data, err := c.client.Get(ctx, "template:"+notifType).Result()
	if err != nil {
		return nil, err
	}

	var t entity.NotificationTemplate
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *TemplateCache) Set(ctx context.Context, t *entity.NotificationTemplate) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "template:"+t.Type, data, c.ttl).Err()
}

func (c *TemplateCache) Invalidate(ctx context.Context, notifType string) error {
	return c.client.Del(ctx, "template:"+notifType).Err()
}

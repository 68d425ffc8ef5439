package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/poro/notify-engine/internal/database"
	"github.com/poro/notify-engine/internal/entity"
)

// templateCache is the key-value cache in front of the template table.
type templateCache interface {
	Get(ctx context.Context, notifType string) (*entity.NotificationTemplate, error)
	Set(ctx context.Context, t *entity.NotificationTemplate) error
	Invalidate(ctx context.Context, notifType string) error
}

type templateUseCase struct {
	repo  database.TemplateRepository
	cache templateCache
}

func NewTemplateUseCase(repo database.TemplateRepository, cache templateCache) TemplateUseCase {
	return &templateUseCase{repo: repo, cache: cache}
}

func (uc *templateUseCase) GetTemplate(ctx context.Context, notifType string) (*entity.NotificationTemplate, error) {
	if t, err := uc.cache.Get(ctx, notifType); err == nil {
		return t, nil
	}

	t, err := uc.repo.GetByType(ctx, notifType)
	if err != nil {
		return nil, err
	}

	if err := uc.cache.Set(ctx, t); err != nil {
		logrus.Warnf("failed to cache template %s: %v", notifType, err)
	}
	return t, nil
}

func (uc *templateUseCase) UpsertTemplate(ctx context.Context, t *entity.NotificationTemplate) error {
	if len(t.ChannelBodies) == 0 {
		return fmt.Errorf("template %s has no channel bodies", t.Type)
	}
	for ch := range t.ChannelBodies {
		if !entity.IsValidChannel(ch) {
			return fmt.Errorf("template %s references unknown channel %q", t.Type, ch)
		}
	}
	if t.Priority == "" {
		t.Priority = entity.PriorityNormal
	}

	if err := uc.repo.Upsert(ctx, t); err != nil {
		return err
	}

	if err := uc.cache.Invalidate(ctx, t.Type); err != nil {
		logrus.Warnf("failed to invalidate template cache for %s: %v", t.Type, err)
	}
	return nil
}

// SeedDefaults installs the built-in templates that are missing. Existing
// templates are never overwritten, so operator edits survive restarts.
func (uc *templateUseCase) SeedDefaults(ctx context.Context) error {
	for _, tmpl := range defaultTemplates() {
		_, err := uc.repo.GetByType(ctx, tmpl.Type)
		if err == nil {
			continue
		}
		if err != entity.ErrTemplateNotFound {
			return fmt.Errorf("check template %s: %w", tmpl.Type, err)
		}

		if err := uc.repo.Upsert(ctx, tmpl); err != nil {
			return fmt.Errorf("seed template %s: %w", tmpl.Type, err)
		}
		logrus.Infof("Seeded template %s", tmpl.Type)
	}
	return nil
}

func defaultTemplates() []*entity.NotificationTemplate {
	standardSettings := entity.TemplateSettings{
		Throttle: entity.ThrottleSettings{Enabled: true, MaxPerHour: 10, MaxPerDay: 50},
		Retry:    entity.RetrySettings{Enabled: true, MaxAttempts: 3, BackoffMultiplier: 2},
	}

	return []*entity.NotificationTemplate{
		{
			Type: "content_approved",
			ChannelBodies: map[entity.Channel]entity.ChannelBody{
				entity.ChannelInApp: {
					Title:   "Content approved",
					Message: "Your submission {{content_title}} was approved.",
				},
				entity.ChannelEmail: {
					Subject: "Your content {{content_title}} was approved",
					HTML:    "<p>Hi {{user_name}},</p><p>Your submission <strong>{{content_title}}</strong> is now live: <a href=\"{{content_url}}\">view it</a>.</p>",
					Text:    "Hi {{user_name}}, your submission {{content_title}} is now live: {{content_url}}",
				},
				entity.ChannelPush: {
					Title:   "Content approved",
					Message: "{{content_title}} is now live",
				},
			},
			Variables: []entity.TemplateVariable{
				{Name: "user_name", Type: entity.VarString, Required: false, DefaultValue: "there"},
				{Name: "content_title", Type: entity.VarString, Required: true},
				{Name: "content_url", Type: entity.VarURL, Required: false},
			},
			DefaultChannels: []entity.Channel{entity.ChannelInApp, entity.ChannelEmail},
			Priority:        entity.PriorityNormal,
			Settings:        standardSettings,
		},
		{
			Type: "quota_exceeded",
			ChannelBodies: map[entity.Channel]entity.ChannelBody{
				entity.ChannelInApp: {
					Title:   "Quota exceeded",
					Message: "You have used {{used}} of {{limit}} in your plan.",
				},
				entity.ChannelEmail: {
					Subject: "You reached your usage limit",
					Text:    "You have used {{used}} of {{limit}}. Upgrade to keep going.",
				},
			},
			Variables: []entity.TemplateVariable{
				{Name: "used", Type: entity.VarNumber, Required: true},
				{Name: "limit", Type: entity.VarNumber, Required: true},
			},
			DefaultChannels: []entity.Channel{entity.ChannelInApp},
			Priority:        entity.PriorityHigh,
			Settings: entity.TemplateSettings{
				Throttle: entity.ThrottleSettings{Enabled: true, MaxPerHour: 2, MaxPerDay: 6},
				Retry:    entity.RetrySettings{Enabled: true, MaxAttempts: 3, BackoffMultiplier: 2},
			},
		},
		{
			Type: "security_alert",
			ChannelBodies: map[entity.Channel]entity.ChannelBody{
				entity.ChannelInApp: {
					Title:   "Security alert",
					Message: "New sign-in from {{location}} at {{occurred_at}}.",
				},
				entity.ChannelEmail: {
					Subject: "Security alert: new sign-in",
					Text:    "We noticed a new sign-in from {{location}} at {{occurred_at}}. If this wasn't you, reset your password.",
				},
				entity.ChannelSMS: {
					Text: "Security alert: new sign-in from {{location}}. Not you? Reset your password.",
				},
				entity.ChannelPush: {
					Title:   "Security alert",
					Message: "New sign-in from {{location}}",
				},
			},
			Variables: []entity.TemplateVariable{
				{Name: "location", Type: entity.VarString, Required: true},
				{Name: "occurred_at", Type: entity.VarDate, Required: true},
			},
			DefaultChannels: []entity.Channel{entity.ChannelInApp, entity.ChannelEmail, entity.ChannelPush},
			Priority:        entity.PriorityUrgent,
			Settings: entity.TemplateSettings{
				// Security alerts are never throttled away.
				Throttle: entity.ThrottleSettings{Enabled: false},
				Retry:    entity.RetrySettings{Enabled: true, MaxAttempts: 5, BackoffMultiplier: 2},
			},
		},
	}
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poro/notify-engine/internal/entity"
)

type fakeTemplateRepo struct {
	templates map[string]*entity.NotificationTemplate
	upserts   int
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[string]*entity.NotificationTemplate)}
}

func (r *fakeTemplateRepo) Upsert(_ context.Context, t *entity.NotificationTemplate) error {
	r.upserts++
	r.templates[t.Type] = t
	return nil
}

func (r *fakeTemplateRepo) GetByType(_ context.Context, notifType string) (*entity.NotificationTemplate, error) {
	t, ok := r.templates[notifType]
	if !ok {
		return nil, entity.ErrTemplateNotFound
	}
	return t, nil
}

type fakeTemplateCache struct {
	entries     map[string]*entity.NotificationTemplate
	hits, sets  int
	invalidated []string
}

func newFakeTemplateCache() *fakeTemplateCache {
	return &fakeTemplateCache{entries: make(map[string]*entity.NotificationTemplate)}
}

func (c *fakeTemplateCache) Get(_ context.Context, notifType string) (*entity.NotificationTemplate, error) {
	t, ok := c.entries[notifType]
	if !ok {
		return nil, errors.New("cache miss")
	}
	c.hits++
	return t, nil
}

func (c *fakeTemplateCache) Set(_ context.Context, t *entity.NotificationTemplate) error {
	c.sets++
	c.entries[t.Type] = t
	return nil
}

func (c *fakeTemplateCache) Invalidate(_ context.Context, notifType string) error {
	c.invalidated = append(c.invalidated, notifType)
	delete(c.entries, notifType)
	return nil
}

func TestGetTemplateFillsCacheOnMiss(t *testing.T) {
	repo := newFakeTemplateRepo()
	cache := newFakeTemplateCache()
	uc := NewTemplateUseCase(repo, cache)
	ctx := context.Background()

	repo.templates["quota_exceeded"] = &entity.NotificationTemplate{Type: "quota_exceeded"}

	got, err := uc.GetTemplate(ctx, "quota_exceeded")
	require.NoError(t, err)
	assert.Equal(t, "quota_exceeded", got.Type)
	assert.Equal(t, 1, cache.sets)

	// Second read is served by the cache.
	_, err = uc.GetTemplate(ctx, "quota_exceeded")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets)
}

func TestGetTemplateUnknownType(t *testing.T) {
	uc := NewTemplateUseCase(newFakeTemplateRepo(), newFakeTemplateCache())

	_, err := uc.GetTemplate(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrTemplateNotFound)
}

func TestUpsertTemplateValidation(t *testing.T) {
	repo := newFakeTemplateRepo()
	uc := NewTemplateUseCase(repo, newFakeTemplateCache())
	ctx := context.Background()

	err := uc.UpsertTemplate(ctx, &entity.NotificationTemplate{Type: "empty"})
	assert.Error(t, err, "a template with no bodies is undeliverable")

	err = uc.UpsertTemplate(ctx, &entity.NotificationTemplate{
		Type: "bad_channel",
		ChannelBodies: map[entity.Channel]entity.ChannelBody{
			entity.Channel("telegram"): {Message: "hi"},
		},
	})
	assert.Error(t, err)
	assert.Zero(t, repo.upserts)
}

func TestUpsertTemplateInvalidatesCache(t *testing.T) {
	repo := newFakeTemplateRepo()
	cache := newFakeTemplateCache()
	uc := NewTemplateUseCase(repo, cache)
	ctx := context.Background()

	tmpl := &entity.NotificationTemplate{
		Type: "content_approved",
		ChannelBodies: map[entity.Channel]entity.ChannelBody{
			entity.ChannelInApp: {Message: "hi"},
		},
	}
	require.NoError(t, uc.UpsertTemplate(ctx, tmpl))

	assert.Equal(t, []string{"content_approved"}, cache.invalidated)
	assert.Equal(t, entity.PriorityNormal, tmpl.Priority, "missing priority defaults to normal")
}

func TestSeedDefaultsNeverOverwrites(t *testing.T) {
	repo := newFakeTemplateRepo()
	uc := NewTemplateUseCase(repo, newFakeTemplateCache())
	ctx := context.Background()

	require.NoError(t, uc.SeedDefaults(ctx))
	seeded := repo.upserts
	assert.Equal(t, len(defaultTemplates()), seeded)

	// Operator edit to a seeded template.
	edited := repo.templates["content_approved"]
	edited.Priority = entity.PriorityUrgent

	require.NoError(t, uc.SeedDefaults(ctx))
	assert.Equal(t, seeded, repo.upserts, "reseeding writes nothing")
	assert.Equal(t, entity.PriorityUrgent, repo.templates["content_approved"].Priority)
}

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poro/notify-engine/internal/entity"
)

func testTemplate() *entity.NotificationTemplate {
	return &entity.NotificationTemplate{
		Type: "content_approved",
		ChannelBodies: map[entity.Channel]entity.ChannelBody{
			entity.ChannelInApp: {
				Title:   "Content approved",
				Message: "Your submission {{content_title}} was approved.",
			},
			entity.ChannelEmail: {
				Subject: "{{content_title}} was approved",
				Text:    "Hi {{user_name}}, see {{content_url}}",
			},
		},
		Variables: []entity.TemplateVariable{
			{Name: "user_name", Type: entity.VarString, DefaultValue: "there"},
			{Name: "content_title", Type: entity.VarString, Required: true},
			{Name: "content_url", Type: entity.VarURL},
		},
	}
}

func TestRender(t *testing.T) {
	r := NewRenderer()

	t.Run("substitutes caller variables", func(t *testing.T) {
		body, warnings, err := r.Render(testTemplate(), entity.ChannelInApp, map[string]interface{}{
			"content_title": "My Post",
		})
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "Your submission My Post was approved.", body.Message)
		assert.Equal(t, "Content approved", body.Title)
	})

	t.Run("falls back to contract default", func(t *testing.T) {
		body, warnings, err := r.Render(testTemplate(), entity.ChannelEmail, map[string]interface{}{
			"content_title": "My Post",
			"content_url":   "https://example.com/p/1",
		})
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "Hi there, see https://example.com/p/1", body.Text)
	})

	t.Run("leaves unresolved token literal with warning", func(t *testing.T) {
		body, warnings, err := r.Render(testTemplate(), entity.ChannelEmail, map[string]interface{}{
			"content_title": "My Post",
		})
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "content_url")
		assert.Equal(t, "Hi there, see {{content_url}}", body.Text)
	})

	t.Run("unsupported channel", func(t *testing.T) {
		_, _, err := r.Render(testTemplate(), entity.ChannelSMS, nil)
		assert.ErrorIs(t, err, entity.ErrChannelNotSupported)
	})

	t.Run("numbers render without exponent", func(t *testing.T) {
		tmpl := testTemplate()
		tmpl.ChannelBodies[entity.ChannelInApp] = entity.ChannelBody{Message: "used {{used}} of {{limit}}"}
		body, _, err := r.Render(tmpl, entity.ChannelInApp, map[string]interface{}{
			"used":  float64(95),
			"limit": 100,
		})
		require.NoError(t, err)
		assert.Equal(t, "used 95 of 100", body.Message)
	})
}

func TestRenderIdempotent(t *testing.T) {
	r := NewRenderer()
	vars := map[string]interface{}{
		"content_title": "My Post",
		"content_url":   "https://example.com/p/1",
	}

	first, _, err := r.Render(testTemplate(), entity.ChannelEmail, vars)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, _, err := r.Render(testTemplate(), entity.ChannelEmail, vars)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestValidateVariables(t *testing.T) {
	tests := []struct {
		name       string
		vars       map[string]interface{}
		violations int
	}{
		{
			name:       "valid",
			vars:       map[string]interface{}{"content_title": "x", "content_url": "https://example.com"},
			violations: 0,
		},
		{
			name:       "missing required",
			vars:       map[string]interface{}{},
			violations: 1,
		},
		{
			name:       "wrong string type",
			vars:       map[string]interface{}{"content_title": 42},
			violations: 1,
		},
		{
			name:       "bad url",
			vars:       map[string]interface{}{"content_title": "x", "content_url": "not a url"},
			violations: 1,
		},
		{
			name:       "missing optional with default is fine",
			vars:       map[string]interface{}{"content_title": "x"},
			violations: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateVariables(testTemplate(), tt.vars)
			assert.Len(t, violations, tt.violations)
		})
	}
}

func TestValidateVariableTypes(t *testing.T) {
	tmpl := &entity.NotificationTemplate{
		Variables: []entity.TemplateVariable{
			{Name: "count", Type: entity.VarNumber, Required: true},
			{Name: "when", Type: entity.VarDate, Required: true},
			{Name: "extra", Type: entity.VarObject},
		},
	}

	tests := []struct {
		name string
		vars map[string]interface{}
		ok   bool
	}{
		{"numeric float", map[string]interface{}{"count": 3.5, "when": "2026-09-01"}, true},
		{"numeric string", map[string]interface{}{"count": "12", "when": "2026-09-01"}, true},
		{"non-numeric", map[string]interface{}{"count": "twelve", "when": "2026-09-01"}, false},
		{"rfc3339 date", map[string]interface{}{"count": 1, "when": "2026-09-01T10:00:00Z"}, true},
		{"garbage date", map[string]interface{}{"count": 1, "when": "someday"}, false},
		{"object", map[string]interface{}{"count": 1, "when": "2026-09-01", "extra": map[string]interface{}{"a": 1}}, true},
		{"non-object", map[string]interface{}{"count": 1, "when": "2026-09-01", "extra": "nope"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidateVariables(tmpl, tt.vars)
			if tt.ok {
				assert.Empty(t, violations)
			} else {
				assert.NotEmpty(t, violations)
			}
		})
	}
}

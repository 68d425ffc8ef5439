package entity

import "time"

// Variable type tags used by the template variable contract.
const (
	VarString = "string"
	VarNumber = "number"
	VarDate   = "date"
	VarURL    = "url"
	VarObject = "object"
)

// TemplateVariable declares one variable a template body may reference.
type TemplateVariable struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Required     bool        `json:"required"`
	DefaultValue interface{} `json:"default_value,omitempty"`
}

// ChannelBody holds the raw, unrendered body definition for one channel.
// Fields contain {{variable}} placeholders.
type ChannelBody struct {
	Title   string `json:"title,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type ThrottleSettings struct {
	Enabled    bool `json:"enabled"`
	MaxPerHour int  `json:"max_per_hour"`
	MaxPerDay  int  `json:"max_per_day"`
}

type RetrySettings struct {
	Enabled           bool    `json:"enabled"`
	MaxAttempts       int     `json:"max_attempts"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

type TemplateSettings struct {
	Throttle ThrottleSettings `json:"throttle"`
	Retry    RetrySettings    `json:"retry"`
}

// NotificationTemplate defines rendering and dispatch policy for one
// notification type. Read-only to the dispatch path at runtime.
type NotificationTemplate struct {
	Type            string                  `json:"type"`
	ChannelBodies   map[Channel]ChannelBody `json:"channel_bodies"`
	Variables       []TemplateVariable      `json:"variables"`
	DefaultChannels []Channel               `json:"default_channels"`
	Priority        Priority                `json:"priority"`
	Settings        TemplateSettings        `json:"settings"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// SupportsChannel reports whether the template defines a body for ch.
func (t *NotificationTemplate) SupportsChannel(ch Channel) bool {
	_, ok := t.ChannelBodies[ch]
	return ok
}

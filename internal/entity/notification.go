package entity

import (
	"time"
)

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// AllChannels lists every channel the engine can dispatch to.
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS}

func IsValidChannel(c Channel) bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RenderedBody is the frozen per-channel payload computed once at creation time.
// Retries replay it verbatim; rendering is never repeated.
type RenderedBody struct {
	Title   string `json:"title,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type Notification struct {
	ID               string                   `json:"id"`
	UserID           string                   `json:"user_id"`
	Type             string                   `json:"type"`
	Channels         []Channel                `json:"channels"`
	Status           string                   `json:"status"`
	Priority         Priority                 `json:"priority"`
	ScheduledAt      *time.Time               `json:"scheduled_at,omitempty"`
	SentAt           *time.Time               `json:"sent_at,omitempty"`
	DeliveredAt      *time.Time               `json:"delivered_at,omitempty"`
	ReadAt           *time.Time               `json:"read_at,omitempty"`
	DeliveryAttempts int                      `json:"delivery_attempts"`
	LastAttemptAt    *time.Time               `json:"last_attempt_at,omitempty"`
	ErrorMessage     string                   `json:"error_message,omitempty"`
	RenderedPayload  map[Channel]RenderedBody `json:"rendered_payload"`
	// FailedChannels holds channels that reported a permanent failure;
	// they are excluded from every later attempt on this record.
	FailedChannels []Channel         `json:"failed_channels,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// HasFailedChannel reports whether ch already hit a permanent failure on this record.
func (n *Notification) HasFailedChannel(ch Channel) bool {
	for _, c := range n.FailedChannels {
		if c == ch {
			return true
		}
	}
	return false
}

type NotificationRequest struct {
	UserID      string                 `json:"user_id" binding:"required"`
	Type        string                 `json:"type" binding:"required"`
	Data        map[string]interface{} `json:"data"`
	Channels    []Channel              `json:"channels"`
	Priority    Priority               `json:"priority"`
	ScheduledAt *time.Time             `json:"scheduled_at"`
}

package channel

import (
	"context"

	"github.com/poro/notify-engine/internal/entity"
)

// Message is the channel-independent payload handed to an adapter. The body
// fields were rendered once at notification creation time.
type Message struct {
	To      string            `json:"to"`
	Title   string            `json:"title,omitempty"`
	Subject string            `json:"subject,omitempty"`
	Body    string            `json:"body,omitempty"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// DeliveryResult reports one adapter's send outcome. PermanentFailure marks
// provider-classified failures (invalid address, unsubscribed) that must
// never be retried on that channel for that record.
type DeliveryResult struct {
	Success          bool   `json:"success"`
	ProviderID       string `json:"provider_id,omitempty"`
	PermanentFailure bool   `json:"permanent_failure"`
	Error            string `json:"error,omitempty"`
}

// Adapter delivers a rendered message through one transport.
type Adapter interface {
	Send(ctx context.Context, msg Message) DeliveryResult
	Channel() entity.Channel
}

// Registry maps channel tags to adapter instances. Dispatch selects an
// adapter by lookup, never by switching on the tag.
type Registry map[entity.Channel]Adapter

func (r Registry) Get(ch entity.Channel) (Adapter, bool) {
	a, ok := r[ch]
	return a, ok
}

func failure(err error, permanent bool) DeliveryResult {
	return DeliveryResult{
		Success:          false,
		PermanentFailure: permanent,
		Error:            err.Error(),
	}
}

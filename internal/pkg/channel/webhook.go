package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/poro/notify-engine/internal/entity"
)

// WebhookAdapter posts rendered messages to an external provider endpoint as
// JSON. Push and SMS providers share this shape and differ only in endpoint
// and channel tag.
type WebhookAdapter struct {
	channel entity.Channel
	url     string
	apiKey  string
	client  *http.Client
}

func NewPushAdapter(url, apiKey string, timeout time.Duration) *WebhookAdapter {
	return newWebhookAdapter(entity.ChannelPush, url, apiKey, timeout)
}

func NewSMSAdapter(url, apiKey string, timeout time.Duration) *WebhookAdapter {
	return newWebhookAdapter(entity.ChannelSMS, url, apiKey, timeout)
}

func newWebhookAdapter(ch entity.Channel, url, apiKey string, timeout time.Duration) *WebhookAdapter {
	return &WebhookAdapter{
		channel: ch,
		url:     url,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *WebhookAdapter) Channel() entity.Channel {
	return a.channel
}

type providerResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (a *WebhookAdapter) Send(ctx context.Context, msg Message) DeliveryResult {
	payload, err := json.Marshal(msg)
	if err != nil {
		return failure(fmt.Errorf("marshal %s message: %w", a.channel, err), true)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return failure(fmt.Errorf("build %s request: %w", a.channel, err), true)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return failure(fmt.Errorf("%s provider request: %w", a.channel, err), false)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed providerResponse
	_ = json.Unmarshal(body, &parsed)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return DeliveryResult{Success: true, ProviderID: parsed.ID}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Invalid token/number, unsubscribed recipient: never retry.
		return failure(fmt.Errorf("%s provider rejected message (%d): %s", a.channel, resp.StatusCode, parsed.Error), true)
	default:
		return failure(fmt.Errorf("%s provider error (%d): %s", a.channel, resp.StatusCode, parsed.Error), false)
	}
}

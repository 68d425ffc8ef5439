package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/poro/notify-engine/internal/entity"
)

// InAppAdapter publishes in-app notifications to a RabbitMQ exchange routed
// by user ID. The feed consumer that surfaces them to clients is external.
type InAppAdapter struct {
	channel  *amqp.Channel
	exchange string
	timeout  time.Duration
}

func NewInAppAdapter(conn *amqp.Connection, exchange string, timeout time.Duration) (*InAppAdapter, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"direct", // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &InAppAdapter{
		channel:  ch,
		exchange: exchange,
		timeout:  timeout,
	}, nil
}

func (a *InAppAdapter) Channel() entity.Channel {
	return entity.ChannelInApp
}

func (a *InAppAdapter) Send(ctx context.Context, msg Message) DeliveryResult {
	body, err := json.Marshal(msg)
	if err != nil {
		return failure(fmt.Errorf("marshal in-app message: %w", err), true)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err = a.channel.PublishWithContext(
		ctx,
		a.exchange,
		msg.To, // routing key: user ID
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		// Broker unavailability is transient.
		return failure(fmt.Errorf("publish in-app message: %w", err), false)
	}

	return DeliveryResult{Success: true}
}

func (a *InAppAdapter) Close() error {
	return a.channel.Close()
}

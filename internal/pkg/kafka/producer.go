package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// DeliveryEvent is the audit record published for every per-channel delivery
// attempt. Downstream analytics consume these; dispatch never depends on them.
type DeliveryEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type"`
	Channel        string    `json:"channel"`
	Attempt        int       `json:"attempt"`
	Success        bool      `json:"success"`
	ProviderID     string    `json:"provider_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

type Producer interface {
	PublishDeliveryEvent(ctx context.Context, event DeliveryEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
}

// NewProducer builds a delivery-event producer. When the brokers are not
// reachable it degrades to a logging no-op so dispatch keeps working.
func NewProducer(brokers, topic string) Producer {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers)
	if err != nil {
		logrus.Warnf("Kafka connection failed, delivery events will be logged only: %v", err)
		return &nopProducer{}
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logrus.Infof("Could not create topic %s (might already exist): %v", topic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logrus.Infof("Kafka delivery-event producer connected to %s", brokers)
	return &kafkaProducer{writer: writer}
}

func (p *kafkaProducer) PublishDeliveryEvent(ctx context.Context, event DeliveryEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.NotificationID),
		Value: value,
		Time:  event.At,
	})
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// NewNopProducer returns the disabled producer used when the audit stream is
// turned off in config.
func NewNopProducer() Producer {
	return &nopProducer{}
}

type nopProducer struct{}

func (n *nopProducer) PublishDeliveryEvent(_ context.Context, event DeliveryEvent) error {
	logrus.Debugf("delivery event (kafka disabled): %s/%s success=%v", event.NotificationID, event.Channel, event.Success)
	return nil
}

func (n *nopProducer) Close() error { return nil }

// Package events publishes scheduled-post transitions for downstream
// consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"inspiro/internal/logging"
	"inspiro/internal/model"
)

// PostEvent is the message body written for each transition.
type PostEvent struct {
	Type string              `json:"type"`
	At   time.Time           `json:"at"`
	Post model.ScheduledPost `json:"post"`
}

// EventType names a transition, e.g. "post.posted".
func EventType(s model.PostStatus) string {
	switch s {
	case model.StatusPosted:
		return "post.posted"
	case model.StatusFailed:
		return "post.failed"
	}
	return "post.pending"
}

// Producer is the part of *kafka.Producer the publisher needs.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Kafka writes post events keyed by post id.
type Kafka struct {
	producer Producer
	topic    string
	now      func() time.Time
}

// NewKafka connects an idempotent producer to broker.
func NewKafka(broker, topic string) (*Kafka, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  broker,
		"security.protocol":  "PLAINTEXT",
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	logging.Info("events_producer_ready", map[string]any{"broker": broker, "topic": topic})
	return NewWithProducer(p, topic), nil
}

func NewWithProducer(p Producer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic, now: time.Now}
}

// PostChanged publishes p. Delivery is best effort; failures are logged.
func (k *Kafka) PostChanged(_ context.Context, p model.ScheduledPost) {
	body, err := json.Marshal(PostEvent{Type: EventType(p.Status), At: k.now().UTC(), Post: p})
	if err != nil {
		logging.Error("post_event_marshal_failed", map[string]any{"id": p.ID, "error": err.Error()})
		return
	}
	topic := k.topic
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(p.ID),
		Value:          body,
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		logging.Warn("post_event_produce_failed", map[string]any{"id": p.ID, "topic": topic, "error": err.Error()})
		return
	}
	logging.Debug("post_event_published", map[string]any{"id": p.ID, "topic": topic, "status": string(p.Status)})
}

// Close flushes pending messages and releases the producer.
func (k *Kafka) Close() error {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		logging.Warn("events_unflushed", map[string]any{"remaining": remaining})
	}
	k.producer.Close()
	return nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) PostChanged(context.Context, model.ScheduledPost) {}
func (Nop) Close() error                                      { return nil }

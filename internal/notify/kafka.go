package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes notification envelopes to a Kafka topic. Messages
// are keyed by order id so all notifications for one order stay ordered on
// a single partition.
type KafkaNotifier struct {
	writer   *kafkago.Writer
	producer string
}

var _ Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier creates a notifier writing to topic on the given brokers.
// producer names this service in the envelope for downstream attribution.
func NewKafkaNotifier(brokers []string, topic, producer string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		},
		producer: producer,
	}
}

// Notify emits one customer notification.
func (k *KafkaNotifier) Notify(ctx context.Context, eventType string, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.producer,
		CorrelationID: n.OrderID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("notify: marshal envelope: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(n.OrderID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafkago.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: publish %s for order %s: %w", eventType, n.OrderID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// Package notifier provides notification.Sink implementations. The engine
// treats emission as fire-and-forget; these sinks only hand events to a
// delivery channel.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/ucademy/orderflow/internal/domain/notification"
)

var _ notification.Sink = (*KafkaSink)(nil)

// KafkaSink publishes lifecycle events to a Kafka topic as JSON messages
// keyed by recipient, so one buyer's notifications stay ordered within a
// partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a KafkaSink writing to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Emit publishes the event.
func (s *KafkaSink) Emit(ctx context.Context, ev notification.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal notification event")
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RecipientID),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, "write notification message")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/egov/grievance-service/internal/config"
)

const headerEventType = "event-type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to Kafka keyed by grievance id, so all events of one
// grievance land on the same partition in commit order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for cfg.Topic.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	topic := cfg.Topic
	if topic == "" {
		topic = TopicGrievanceStatusChanged
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: writer}
}

// Publish sends one event.
func (p *KafkaPublisher) Publish(ctx context.Context, event GrievanceStatusChangedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.GrievanceID),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(EventGrievanceStatusChanged)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aistrack/platform/pkg/common/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event is the envelope written to the decoded topic.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type Producer struct {
	writer *kafka.Writer
}

// NewProducer writes asynchronously in small batches so publishing never
// blocks ingestion; delivery failures are logged.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Log.WithError(err).WithFields(map[string]interface{}{
					"topic":    topic,
					"messages": len(messages),
				}).Error("Failed to publish events")
			}
		},
	}

	return &Producer{writer: writer}
}

// Publish wraps data in an Event. key selects the partition so events for one
// vessel stay ordered.
func (p *Producer) Publish(ctx context.Context, eventType, source, key string, data interface{}) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish %s event %s: %w", eventType, event.ID, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Package kafka publishes eventstream events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/folio/pkg/eventstream"
)

// DefaultTopic receives document events when no topic is configured.
const DefaultTopic = "folio.documents"

// Config holds configuration for the Kafka publisher.
type Config struct {
	Brokers []string

	// Topic defaults to DefaultTopic.
	Topic string

	// WriteTimeout bounds each publish. Defaults to 10 seconds.
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes JSON-encoded events keyed by document ID so that all
// events for one document land on the same partition.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka event publisher initialized", "brokers", c.Brokers, "topic", c.Topic)

	return NewPublisherWithWriter(writer, c.WriteTimeout, logger), nil
}

// NewPublisherWithWriter builds a publisher on an existing writer.
func NewPublisherWithWriter(w MessageWriter, timeout time.Duration, logger *slog.Logger) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{writer: w, timeout: timeout, logger: logger}
}

// PublishDocumentIngested writes one message for the event.
func (p *Publisher) PublishDocumentIngested(ctx context.Context, event *eventstream.DocumentIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.DocumentID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing %s for document %s: %w", event.EventType, event.DocumentID, err)
	}

	p.logger.Debug("published event", "event_type", event.EventType, "document_id", event.DocumentID)

	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	skafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Writer is the subset of kafka.Writer the producer needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Publisher publishes keyed JSON events
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaProducer implements Publisher on a kafka writer
type KafkaProducer struct {
	writer Writer
}

// NewKafkaProducer creates a producer writing to topic on brokers
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		RequiredAcks: skafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaProducer{writer: w}
}

// NewKafkaProducerWithWriter allows injecting a test writer
func NewKafkaProducerWithWriter(w Writer) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

// Publish marshals value to JSON and writes it under key. Events of one
// booking share a key and therefore a partition.
func (p *KafkaProducer) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, skafka.Message{Key: []byte(key), Value: b}); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the underlying writer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no brokers are configured; it only logs
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event at debug level
func (p *LogPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.logger.WithFields(logrus.Fields{"key": key, "event": value}).Debug("event")
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}

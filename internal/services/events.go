package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/segmentio/kafka-go"
)

// KafkaWriter is the subset of kafka.Writer the publisher needs
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes ledger events as JSON messages keyed by event type
type KafkaPublisher struct {
	writer KafkaWriter
}

// publishBatchTimeout bounds how long a synchronous publish waits for its batch to fill
const publishBatchTimeout = 10 * time.Millisecond

// NewKafkaPublisher creates a publisher writing to broker/topic
func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: publishBatchTimeout,
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter allows injecting a test writer
func NewKafkaPublisherWithWriter(w KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b, Time: time.Now()})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no broker is configured
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, key string, value interface{}) error {
	log.Debugf("event %s: %+v", key, value)
	return nil
}

func (LogPublisher) Close() error { return nil }

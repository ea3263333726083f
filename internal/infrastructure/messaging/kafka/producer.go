package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LightMap-Intelligence/internal/config"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/pkg/errors"
)

var (
	ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")
)

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event envelopes.
type Producer struct {
	writer WriterInterface
	source string
	logger logging.Logger
	closed atomic.Bool
}

// NewProducer creates a Producer writing to the configured brokers.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "kafka brokers cannot be empty")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchTimeout: batchTimeout,
	}
	return NewProducerWithWriter(writer, log), nil
}

// NewProducerWithWriter creates a Producer over an existing writer (for
// testing).
func NewProducerWithWriter(writer WriterInterface, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Producer{writer: writer, source: "lightmap-api", logger: log.Named("kafka_producer")}
}

// Publish sends one envelope to a topic, keyed so all events of a session
// land in one partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, envelope *EventEnvelope) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message",
			logging.String("topic", topic),
			logging.String("key", key),
			logging.Err(err),
		)
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to publish message")
	}
	p.logger.Debug("published message",
		logging.String("topic", topic),
		logging.String("event_type", envelope.EventType),
	)
	return nil
}

// PublishSessionFinalized wraps the payload and publishes it to the session
// topic.
func (p *Producer) PublishSessionFinalized(ctx context.Context, topic string, payload *SessionFinalizedPayload) error {
	envelope, err := NewEventEnvelope(EventTypeSessionFinalized, p.source, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, payload.SessionID, envelope)
}

// Close shuts the producer down.  Safe to call more than once.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}

package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/LightMap-Intelligence/internal/config"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/pkg/errors"
)

var (
	ErrConsumerClosed = errors.New(errors.ErrCodeInternal, "consumer closed")
)

// Handler processes one decoded envelope.  A handler error is logged and
// counted but never stops the consume loop; the message is still committed
// so one poison event cannot wedge the partition.
type Handler func(ctx context.Context, envelope *EventEnvelope) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a fetch/handle/commit loop over one topic.
type Consumer struct {
	reader  ReaderInterface
	handler Handler
	logger  logging.Logger
	closed  atomic.Bool

	handled atomic.Int64
	failed  atomic.Int64
}

// NewConsumer creates a Consumer for the configured session topic.
func NewConsumer(cfg config.KafkaConfig, handler Handler, log logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "kafka brokers cannot be empty")
	}
	if handler == nil {
		return nil, errors.New(errors.CodeInvalidParam, "handler cannot be nil")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.ConsumerGroup,
		Topic:   cfg.SessionTopic,
	})
	return NewConsumerWithReader(reader, handler, log), nil
}

// NewConsumerWithReader creates a Consumer over an existing reader (for
// testing).
func NewConsumerWithReader(reader ReaderInterface, handler Handler, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Consumer{reader: reader, handler: handler, logger: log.Named("kafka_consumer")}
}

// Run consumes until the context is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if c.closed.Load() {
			return ErrConsumerClosed
		}
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to fetch message")
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var envelope EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.failed.Add(1)
		c.logger.Error("dropping undecodable message",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Err(err),
		)
		return
	}
	if err := c.handler(ctx, &envelope); err != nil {
		c.failed.Add(1)
		c.logger.Error("handler failed",
			logging.String("event_type", envelope.EventType),
			logging.String("event_id", envelope.EventID),
			logging.Err(err),
		)
		return
	}
	c.handled.Add(1)
}

// Counts reports how many envelopes were handled and how many failed.
func (c *Consumer) Counts() (handled, failed int64) {
	return c.handled.Load(), c.failed.Load()
}

// Close stops the consumer.  Safe to call more than once.
func (c *Consumer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.reader.Close()
}

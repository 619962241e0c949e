// Package kafka carries DocPulse's document and analytics events over
// segmentio/kafka-go. Payloads are JSON; consumers hand each message to a
// MessageHandler and commit it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/resilience"
)

// MessageHandler processes one message. Returning an error wrapped with
// resilience.Permanent (DecodeJSON does this) skips the message without
// retrying; other errors are retried a few times before it is skipped.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer feeds one topic to a MessageHandler.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	retry     resilience.RetryConfig
	log       *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// ConsumerOption adjusts the reader configuration.
type ConsumerOption func(*kafka.ReaderConfig)

// WithGroupID replaces the configured consumer group. The searcher gives
// each instance its own group so every instance sees every invalidation.
func WithGroupID(groupID string) ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.GroupID = groupID }
}

// FromFirstOffset makes a new group replay the topic from the beginning.
func FromFirstOffset() ConsumerOption {
	return func(rc *kafka.ReaderConfig) { rc.StartOffset = kafka.FirstOffset }
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    4 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return &Consumer{
		reader:  kafka.NewReader(rc),
		handler: handler,
		retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		log:     slog.Default().With("component", "kafka-consumer", "topic", topic, "group", rc.GroupID),
	}
}

// Start consumes until ctx ends, then closes the reader. It returns nil on
// a clean shutdown.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("consuming")
	defer c.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			c.log.Info("consumer stopped")
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			c.log.Error("fetch failed", "error", err)
			continue
		}

		c.dispatch(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

// dispatch runs the handler with retries; a message that still fails is
// logged and dropped so one bad event cannot stall the partition.
func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	err := resilience.Retry(ctx, "handle "+msg.Topic, c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil && ctx.Err() == nil {
		c.log.Warn("message skipped",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
	}
}

// Close is safe to call more than once.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.reader.Close() })
	return c.closeErr
}

// DecodeJSON unmarshals a message value into T. Decoding failures are
// permanent: redelivering the same bytes cannot fix them.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, resilience.Permanent(fmt.Errorf("decoding kafka message: %w", err))
	}
	return out, nil
}

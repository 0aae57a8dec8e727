package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles one message. Returning a ValidationError drops the
// message; any other error retries it.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// Reader is the part of kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds one topic into a MessageHandler, committing each message
// once it is handled or rejected as invalid.
type Consumer struct {
	reader  Reader
	topic   string
	logger  ectologger.Logger
	handler MessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	retryBase time.Duration
	retryMax  time.Duration
}

type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// NewConsumer creates a Kafka consumer reading cfg.Topic as part of
// cfg.ConsumerGroup.
func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
	return NewConsumerWithReader(reader, cfg.Topic, logger, handler)
}

// NewConsumerWithReader wraps an existing reader.
func NewConsumerWithReader(reader Reader, topic string, logger ectologger.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:    reader,
		topic:     topic,
		logger:    logger,
		handler:   handler,
		retryBase: 200 * time.Millisecond,
		retryMax:  10 * time.Second,
	}
}

// SetRetryBackoff bounds the delay between attempts at a failing message.
func (c *Consumer) SetRetryBackoff(base, maxDelay time.Duration) {
	c.retryBase = base
	c.retryMax = maxDelay
}

// Start consumes in the background until Stop or ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic": c.topic,
	}).Info("Kafka consumer started")
	return nil
}

// Stop waits for the message in flight and closes the reader.
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.WithContext(ctx).Info("Consumer loop stopping")
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
				continue
			}

			c.processMessage(ctx, msg)
		}
	}
}

// processMessage hands msg to the handler. Invalid records are committed
// and dropped. Other failures are retried with a doubling backoff, so a
// partition never moves past a record that could not be stored.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	incoming := newIncomingMessage(msg)
	ctx = incoming.TraceContext(ctx)

	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, incoming)
		if err == nil {
			metrics.MessagesTotal.WithLabelValues("in", "success").Inc()
			break
		}
		if models.IsValidationError(err) {
			metrics.MessagesTotal.WithLabelValues("in", "invalid").Inc()
			log.WithError(err).Warn("Dropping invalid message")
			break
		}

		metrics.MessagesTotal.WithLabelValues("in", "retry").Inc()
		log.WithError(err).WithField("attempt", attempt).Errorf("Failed to process message, retrying in %s", delay)
		select {
		case <-ctx.Done():
			tracing.Fail(span, err)
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, c.retryMax)
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
}

// Running reports whether Start has been called and Stop has not.
func (c *Consumer) Running() bool {
	return c.cancel != nil
}

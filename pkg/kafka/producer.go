package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/canonical"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/segmentio/kafka-go"
)

// EventCompositeCanonicalized is emitted for every composite after a
// canonicalize pass.
const EventCompositeCanonicalized = "composite.canonicalized"

// Writer is the part of kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CompositeSource supplies the composites to publish.
type CompositeSource interface {
	Composites(ctx context.Context, project string, filter merging.Filter) ([]models.Composite, error)
}

// Producer handles Kafka event emission
type Producer struct {
	writer    Writer
	topic     string
	batchSize int
	source    CompositeSource
	logger    ectologger.Logger
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, source CompositeSource, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, cfg.BatchSize, source, logger)
}

// NewProducerWithWriter wraps an existing writer. The writer owns the topic.
func NewProducerWithWriter(writer Writer, topic string, batchSize int, source CompositeSource, logger ectologger.Logger) *Producer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Producer{
		writer:    writer,
		topic:     topic,
		batchSize: batchSize,
		source:    source,
		logger:    logger,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// CompositeEvent carries one composite. The message key is the canonical
// uid so every event for an entity lands on the same partition.
type CompositeEvent struct {
	EventType string            `json:"event_type"`
	Project   string            `json:"project"`
	UID       string            `json:"uid"`
	Schema    models.Schema     `json:"schema"`
	Composite *models.Composite `json:"composite"`
	Timestamp time.Time         `json:"timestamp"`
}

// AfterCanonicalize publishes every composite of the project.
func (p *Producer) AfterCanonicalize(ctx context.Context, project string, _ *canonical.Report) error {
	_, err := p.Publish(ctx, project)
	return err
}

// Publish sends one event per composite of the project and returns how
// many were sent.
func (p *Producer) Publish(ctx context.Context, project string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	composites, err := p.source.Composites(ctx, project, merging.Filter{})
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	events := make([]*CompositeEvent, len(composites))
	for i := range composites {
		events[i] = &CompositeEvent{
			EventType: EventCompositeCanonicalized,
			Project:   project,
			UID:       composites[i].UID,
			Schema:    composites[i].Schema,
			Composite: &composites[i],
			Timestamp: now,
		}
	}

	for start := 0; start < len(events); start += p.batchSize {
		end := min(start+p.batchSize, len(events))
		if err := p.PublishEvents(ctx, events[start:end]); err != nil {
			return start, err
		}
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"project": project,
		"events":  len(events),
		"topic":   p.topic,
	}).Info("Published composite events")
	return len(events), nil
}

// PublishEvents publishes multiple composite events in a batch
func (p *Producer) PublishEvents(ctx context.Context, events []*CompositeEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	trace := traceHeaders(ctx)
	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		headers := []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
			{Key: HeaderProject, Value: []byte(event.Project)},
			{Key: "schema", Value: []byte(event.Schema)},
			{Key: "schema_version", Value: []byte("1.0")},
		}
		messages[i] = kafka.Message{
			Key:     []byte(event.UID),
			Value:   data,
			Headers: append(headers, trace...),
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		metrics.MessagesTotal.WithLabelValues("out", "error").Add(float64(len(events)))
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish composite events batch")
		return err
	}

	metrics.MessagesTotal.WithLabelValues("out", "success").Add(float64(len(events)))
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published composite events batch")

	return nil
}

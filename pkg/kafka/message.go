package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
)

// Header names understood on incoming and set on outgoing messages.
const (
	HeaderProject     = "project"
	HeaderEventType   = "event_type"
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string
}

func newIncomingMessage(msg kafka.Message) *IncomingMessage {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &IncomingMessage{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Headers:   headers,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Topic:     msg.Topic,
	}
}

// Project returns the project header, or fallback when absent.
func (m *IncomingMessage) Project(fallback string) string {
	if p := m.Headers[HeaderProject]; p != "" {
		return p
	}
	return fallback
}

// TraceContext continues the producer's trace when the message carries
// W3C trace headers.
func (m *IncomingMessage) TraceContext(ctx context.Context) context.Context {
	if m.Headers[HeaderTraceParent] == "" {
		return ctx
	}
	return propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier(m.Headers))
}

func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)

	var headers []kafka.Header
	for _, key := range []string{HeaderTraceParent, HeaderTraceState} {
		if v := carrier.Get(key); v != "" {
			headers = append(headers, kafka.Header{Key: key, Value: []byte(v)})
		}
	}
	return headers
}

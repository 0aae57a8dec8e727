package kafka

import (
	"context"

	"github.com/Ramsey-B/fern/internal/tracing"
)

// Ingester stores one raw record envelope.
type Ingester interface {
	Raw(ctx context.Context, project string, raw []byte) error
}

// IngestHandler feeds each message value, a record envelope, to ingester.
// The project is the envelope's own project, else the "project" header,
// else defaultProject.
func IngestHandler(ingester Ingester, defaultProject string) MessageHandler {
	return func(ctx context.Context, msg *IncomingMessage) error {
		ctx, span := tracing.StartSpan(ctx, "kafka.IngestHandler")
		defer span.End()

		return ingester.Raw(ctx, msg.Project(defaultProject), msg.Value)
	}
}

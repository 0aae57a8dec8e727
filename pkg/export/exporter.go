package export

import (
	"context"
	"path"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
)

// CompositeSource supplies the merged view of a project.
type CompositeSource interface {
	Composites(ctx context.Context, project string, filter merging.Filter) ([]models.Composite, error)
	Links(ctx context.Context, project string, filter merging.Filter) ([]models.CompositeLink, error)
}

// MappingSource lists stored mappings.
type MappingSource interface {
	Mappings(ctx context.Context, project string) ([]models.Mapping, error)
}

// Report lists the written files.
type Report struct {
	Project    string   `json:"project"`
	Composites int      `json:"composites"`
	Links      int      `json:"links"`
	Mappings   int      `json:"mappings"`
	Files      []string `json:"files"`
}

// Exporter renders a project's tables and hands them to a sink.
type Exporter struct {
	composites CompositeSource
	mappings   MappingSource
	sink       Sink
	logger     ectologger.Logger
}

func NewExporter(composites CompositeSource, mappings MappingSource, sink Sink, logger ectologger.Logger) *Exporter {
	return &Exporter{composites: composites, mappings: mappings, sink: sink, logger: logger}
}

// Export writes <project>/composites.csv, links.csv and mappings.csv.
func (e *Exporter) Export(ctx context.Context, project string, filter merging.Filter) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "export.Exporter.Export")
	defer span.End()

	composites, err := e.composites.Composites(ctx, project, filter)
	if err != nil {
		return nil, err
	}
	links, err := e.composites.Links(ctx, project, filter)
	if err != nil {
		return nil, err
	}
	mappings, err := e.mappings.Mappings(ctx, project)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Project:    project,
		Composites: len(composites),
		Links:      len(links),
		Mappings:   len(mappings),
	}

	tables := []struct {
		name   string
		render func() ([]byte, error)
	}{
		{"composites.csv", func() ([]byte, error) { return CompositesCSV(composites) }},
		{"links.csv", func() ([]byte, error) { return LinksCSV(links) }},
		{"mappings.csv", func() ([]byte, error) { return MappingsCSV(mappings) }},
	}
	for _, table := range tables {
		body, err := table.render()
		if err != nil {
			return nil, err
		}
		location, err := e.sink.Put(ctx, path.Join(project, table.name), body)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithField("file", table.name).Error("Failed to write export file")
			return nil, err
		}
		report.Files = append(report.Files, location)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"project":    project,
		"composites": report.Composites,
		"links":      report.Links,
		"mappings":   report.Mappings,
	}).Info("Exported tables")
	return report, nil
}

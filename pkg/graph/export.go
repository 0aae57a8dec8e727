package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolve"
)

const (
	// NodeLabel is carried by every exported composite next to its schema.
	NodeLabel = "Entity"
	// SimilarType marks pairs judged related but distinct.
	SimilarType = "SIMILAR"
	// DefaultLinkType is used for links without a usable schema.
	DefaultLinkType = "LINKED"
)

// Statement is one parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Runner executes statements atomically.
type Runner interface {
	RunStatements(ctx context.Context, statements []Statement) error
}

// CompositeSource supplies the merged view of a project.
type CompositeSource interface {
	Composites(ctx context.Context, project string, filter merging.Filter) ([]models.Composite, error)
	Links(ctx context.Context, project string, filter merging.Filter) ([]models.CompositeLink, error)
}

// DecisionSource supplies judgements and their resolution.
type DecisionSource interface {
	Mappings(ctx context.Context, project string) ([]models.Mapping, error)
	Resolution(ctx context.Context, project string) (*resolve.Resolution, error)
}

// ExportOptions controls one export.
type ExportOptions struct {
	Filter merging.Filter
	// Replace deletes the project's previously exported nodes first.
	Replace bool
}

// ExportReport counts what an export wrote.
type ExportReport struct {
	Project  string `json:"project"`
	Nodes    int    `json:"nodes"`
	Links    int    `json:"links"`
	Similars int    `json:"similars"`
}

// Exporter writes composites as nodes, canonical links as relationships
// and similar pairs as SIMILAR edges.
type Exporter struct {
	runner     Runner
	composites CompositeSource
	decisions  DecisionSource
	logger     ectologger.Logger
}

func NewExporter(runner Runner, composites CompositeSource, decisions DecisionSource, logger ectologger.Logger) *Exporter {
	return &Exporter{
		runner:     runner,
		composites: composites,
		decisions:  decisions,
		logger:     logger,
	}
}

// Export writes the project's graph in a single transaction.
func (e *Exporter) Export(ctx context.Context, project string, opts ExportOptions) (*ExportReport, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Exporter.Export")
	defer span.End()

	composites, err := e.composites.Composites(ctx, project, opts.Filter)
	if err != nil {
		return nil, err
	}
	links, err := e.composites.Links(ctx, project, opts.Filter)
	if err != nil {
		return nil, err
	}
	mappings, err := e.decisions.Mappings(ctx, project)
	if err != nil {
		return nil, err
	}
	res, err := e.decisions.Resolution(ctx, project)
	if err != nil {
		return nil, err
	}

	similars := SimilarPairs(mappings, res, composites)
	statements, err := BuildStatements(project, composites, links, similars, opts.Replace)
	if err != nil {
		return nil, err
	}

	if err := e.runner.RunStatements(ctx, statements); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("project", project).Error("Failed to export graph")
		return nil, fmt.Errorf("failed to export graph: %w", err)
	}

	report := &ExportReport{
		Project:  project,
		Nodes:    len(composites),
		Links:    len(links),
		Similars: len(similars),
	}
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"project":  project,
		"nodes":    report.Nodes,
		"links":    report.Links,
		"similars": report.Similars,
	}).Info("Exported graph")
	return report, nil
}

// SimilarPairs lifts decided null-judgement mappings to canonical uids.
// Pairs inside one cluster or touching a composite outside the export are
// dropped; duplicates collapse.
func SimilarPairs(mappings []models.Mapping, res *resolve.Resolution, composites []models.Composite) []models.Pair {
	exported := make(map[string]bool, len(composites))
	for i := range composites {
		exported[composites[i].UID] = true
	}

	seen := make(map[models.Pair]bool)
	var pairs []models.Pair
	for i := range mappings {
		m := &mappings[i]
		if !m.IsSimilar() {
			continue
		}
		a, b := res.Canonical(m.LeftUID), res.Canonical(m.RightUID)
		if a == b || !exported[a] || !exported[b] {
			continue
		}
		pair := models.NewPair(a, b)
		if seen[pair] {
			continue
		}
		seen[pair] = true
		pairs = append(pairs, pair)
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Left != pairs[j].Left {
			return pairs[i].Left < pairs[j].Left
		}
		return pairs[i].Right < pairs[j].Right
	})
	return pairs
}

// BuildStatements renders the Cypher for one export. Nodes are batched per
// schema label and relationships per link type, each with UNWIND.
func BuildStatements(project string, composites []models.Composite, links []models.CompositeLink, similars []models.Pair, replace bool) ([]Statement, error) {
	var statements []Statement
	if replace {
		statements = append(statements, Statement{
			Cypher: fmt.Sprintf("MATCH (n:%s {project: $project}) DETACH DELETE n", NodeLabel),
			Params: map[string]any{"project": project},
		})
	}

	nodes := make(map[string][]any)
	for i := range composites {
		props, err := nodeProps(project, &composites[i])
		if err != nil {
			return nil, err
		}
		label := sanitizeLabel(string(composites[i].Schema), NodeLabel)
		nodes[label] = append(nodes[label], props)
	}
	for _, label := range sortedKeys(nodes) {
		statements = append(statements, Statement{
			Cypher: fmt.Sprintf(`UNWIND $batch AS props
MERGE (n:%s {uid: props.uid, project: props.project})
SET n = props, n:%s`, NodeLabel, label),
			Params: map[string]any{"batch": nodes[label]},
		})
	}

	rels := make(map[string][]any)
	for i := range links {
		l := &links[i]
		props, err := linkProps(l)
		if err != nil {
			return nil, err
		}
		relType := sanitizeLabel(strings.ToUpper(l.Schema), DefaultLinkType)
		rels[relType] = append(rels[relType], map[string]any{
			"source": l.Source,
			"target": l.Target,
			"props":  props,
		})
	}
	for _, relType := range sortedKeys(rels) {
		statements = append(statements, relationshipStatement(project, relType, rels[relType]))
	}

	if len(similars) > 0 {
		batch := make([]any, len(similars))
		for i, p := range similars {
			batch[i] = map[string]any{
				"source": p.Left,
				"target": p.Right,
				"props":  map[string]any{"project": project},
			}
		}
		statements = append(statements, relationshipStatement(project, SimilarType, batch))
	}

	return statements, nil
}

func relationshipStatement(project, relType string, batch []any) Statement {
	return Statement{
		Cypher: fmt.Sprintf(`UNWIND $batch AS rel
MATCH (a:%[1]s {uid: rel.source, project: $project})
MATCH (b:%[1]s {uid: rel.target, project: $project})
MERGE (a)-[r:%[2]s]->(b)
SET r = rel.props`, NodeLabel, relType),
		Params: map[string]any{"project": project, "batch": batch},
	}
}

// nodeProps flattens a composite into Bolt-compatible properties. Nested
// data is stored as a JSON string.
func nodeProps(project string, c *models.Composite) (map[string]any, error) {
	props := map[string]any{
		"uid":                  c.UID,
		"project":              project,
		"schema":               string(c.Schema),
		"name":                 c.Name,
		"aliases":              nonNil(c.Aliases),
		"origins":              nonNil(c.Origins),
		"addresses":            nonNil(c.Addresses),
		"uid_parts":            nonNil(c.UIDParts),
		"registration_numbers": nonNil(c.RegistrationNumbers),
		"external_ids":         nonNil(c.ExternalIDs),
		"tasked":               c.Tasked,
		"weight":               int64(c.Weight),
	}
	if c.Country != "" {
		props["country"] = c.Country
	}
	if len(c.Data) > 0 {
		raw, err := json.Marshal(c.Data)
		if err != nil {
			return nil, fmt.Errorf("composite %s: %w", c.UID, err)
		}
		props["data"] = string(raw)
	}
	return props, nil
}

func linkProps(l *models.CompositeLink) (map[string]any, error) {
	props := map[string]any{
		"schema":  l.Schema,
		"origins": nonNil(l.Origins),
	}
	if len(l.Data) > 0 {
		raw, err := json.Marshal(l.Data)
		if err != nil {
			return nil, fmt.Errorf("link %s -> %s: %w", l.Source, l.Target, err)
		}
		props["data"] = string(raw)
	}
	return props, nil
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label, fallback string) string {
	var b strings.Builder
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 || (b.String()[0] >= '0' && b.String()[0] <= '9') {
		return fallback
	}
	return b.String()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolve"
	"golang.org/x/sync/errgroup"
)

// Mode selects how candidate pairs are enumerated.
type Mode string

const (
	// ModeExhaustive scores every unordered pair.
	ModeExhaustive Mode = "exhaustive"
	// ModeIndex scores only pairs an inverted q-gram index cannot rule out.
	// It returns the same candidates as ModeExhaustive unless a lossy
	// IndexOptions setting is enabled.
	ModeIndex Mode = "index"
)

// ParseMode maps a configured mode name; the empty string is exhaustive.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeExhaustive:
		return ModeExhaustive, nil
	case ModeIndex:
		return ModeIndex, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", value)
	}
}

// EntitySource lists the entities candidates are drawn from.
type EntitySource interface {
	ListActive(ctx context.Context, project string, origins ...string) ([]models.Entity, error)
}

// AliasSource lists alias names.
type AliasSource interface {
	List(ctx context.Context, project string) ([]models.Alias, error)
}

// DecisionStore receives candidates and supplies the decided set.
type DecisionStore interface {
	Cleanup(ctx context.Context, project string) (int64, error)
	Resolution(ctx context.Context, project string) (*resolve.Resolution, error)
	SimilarPairs(ctx context.Context, project string) (map[models.Pair]bool, error)
	EmitJudgements(ctx context.Context, project string, batch []decision.Judgement) error
}

// GenerateOptions controls one candidate generation run.
type GenerateOptions struct {
	Project string
	// DiscardStale removes undecided generated candidates before the run.
	DiscardStale bool
	// Origins keeps only pairs with at least one side from these origins.
	Origins       []string
	Mode Mode
	// CountryFilter and MaxPostings narrow index mode beyond the threshold.
	CountryFilter bool
	MaxPostings   int
	Workers       int
	BatchSize     int
}

// DefaultGenerateOptions returns the options used by the CLI and API.
func DefaultGenerateOptions(project string) GenerateOptions {
	return GenerateOptions{
		Project:      project,
		DiscardStale: true,
		Mode:         ModeExhaustive,
		Workers:      4,
		BatchSize:    500,
	}
}

// Candidate is an accepted pair and its score.
type Candidate struct {
	Pair  models.Pair `json:"pair"`
	Score float64     `json:"score"`
}

// GenerateResult summarizes a run.
type GenerateResult struct {
	Entities   int         `json:"entities"`
	Scored     int         `json:"scored"`
	Discarded  int64       `json:"discarded"`
	Certain    int         `json:"certain"`
	Candidates []Candidate `json:"candidates"`
}

// Generator proposes candidate pairs to the decision store.
type Generator struct {
	entities  EntitySource
	aliases   AliasSource
	decisions DecisionStore
	scorer    *Scorer
	logger    ectologger.Logger
}

func NewGenerator(entities EntitySource, aliases AliasSource, decisions DecisionStore, scorer *Scorer, logger ectologger.Logger) *Generator {
	return &Generator{
		entities:  entities,
		aliases:   aliases,
		decisions: decisions,
		scorer:    scorer,
		logger:    logger,
	}
}

// Generate scores the active entities of a project and records every pair
// scoring above the threshold that is not already decided, including pairs a
// reviewer marked similar without a judgement. Certain pairs
// are recorded as matches; the rest as undecided generated candidates.
func (g *Generator) Generate(ctx context.Context, opts GenerateOptions) (*GenerateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Generator.Generate", tracing.Project(opts.Project))
	defer span.End()

	if opts.Mode == "" {
		opts.Mode = ModeExhaustive
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	log := g.logger.WithContext(ctx).WithFields(map[string]any{
		"project": opts.Project,
		"mode":    string(opts.Mode),
	})
	start := time.Now()
	result := &GenerateResult{Candidates: []Candidate{}}

	if opts.DiscardStale {
		discarded, err := g.decisions.Cleanup(ctx, opts.Project)
		if err != nil {
			return nil, err
		}
		result.Discarded = discarded
	}

	entities, err := g.entities.ListActive(ctx, opts.Project)
	if err != nil {
		return nil, err
	}
	aliases, err := g.aliases.List(ctx, opts.Project)
	if err != nil {
		return nil, err
	}
	views := BuildViews(entities, aliases, g.scorer.Profile().Fingerprinter())
	result.Entities = len(views)
	log.Infof("Loaded %d entities", len(views))

	res, err := g.decisions.Resolution(ctx, opts.Project)
	if err != nil {
		return nil, err
	}
	similar, err := g.decisions.SimilarPairs(ctx, opts.Project)
	if err != nil {
		return nil, err
	}
	decided := func(a, b string) bool {
		return res.IsDecided(a, b) || similar[models.NewPair(a, b)]
	}

	candidates, scored, err := g.score(ctx, views, decided, opts)
	if err != nil {
		return nil, err
	}
	result.Scored = scored
	metrics.PairsScoredTotal.WithLabelValues(opts.Project, string(opts.Mode)).Add(float64(scored))

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Pair.Left != b.Pair.Left {
			return a.Pair.Left < b.Pair.Left
		}
		return a.Pair.Right < b.Pair.Right
	})

	names := make(map[string]string, len(views))
	for _, v := range views {
		if len(v.Names) > 0 {
			names[v.UID] = v.Names[0]
		} else {
			names[v.UID] = v.UID
		}
	}

	batch := make([]decision.Judgement, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := g.decisions.EmitJudgements(ctx, opts.Project, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, c := range candidates {
		log.Infof("Candidate [%.3f]: %s <-> %s", c.Score, names[c.Pair.Left], names[c.Pair.Right])

		j := decision.Judgement{
			Left:      c.Pair.Left,
			Right:     c.Pair.Right,
			Generated: true,
			Score:     models.Float(c.Score),
		}
		outcome := "candidate"
		if g.scorer.IsCertain(c.Score) {
			j.Judgement = models.Bool(true)
			outcome = "certain"
			result.Certain++
		}
		metrics.CandidatesTotal.WithLabelValues(opts.Project, outcome).Inc()

		batch = append(batch, j)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Candidates = candidates
	span.SetAttributes(tracing.AttrCount.Int(len(candidates)))
	metrics.GenerateDuration.WithLabelValues(opts.Project, string(opts.Mode)).Observe(time.Since(start).Seconds())
	log.WithFields(map[string]any{
		"scored":     result.Scored,
		"candidates": len(candidates),
		"certain":    result.Certain,
	}).Info("Candidate generation completed")
	return result, nil
}

// score fans the pair space out over workers. Worker w owns every view
// position i with i % workers == w, so no results are shared.
func (g *Generator) score(ctx context.Context, views []*EntityView, decided func(a, b string) bool, opts GenerateOptions) ([]Candidate, int, error) {
	var index *Index
	if opts.Mode == ModeIndex {
		index = NewIndex(views, g.scorer.Profile().Threshold, IndexOptions{CountryFilter: opts.CountryFilter, MaxPostings: opts.MaxPostings})
	}

	origins := make(map[string]bool, len(opts.Origins))
	for _, o := range opts.Origins {
		origins[o] = true
	}

	threshold := g.scorer.Profile().Threshold
	found := make([][]Candidate, opts.Workers)
	scored := make([]int, opts.Workers)

	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < opts.Workers; w++ {
		eg.Go(func() error {
			for i := w; i < len(views); i += opts.Workers {
				if err := egCtx.Err(); err != nil {
					return err
				}

				left := views[i]
				consider := func(j int) {
					right := views[j]
					if len(origins) > 0 && !left.HasOrigin(origins) && !right.HasOrigin(origins) {
						return
					}
					if decided(left.UID, right.UID) {
						return
					}
					scored[w]++
					score := g.scorer.Score(left, right)
					if score <= threshold {
						return
					}
					found[w] = append(found[w], Candidate{Pair: models.NewPair(left.UID, right.UID), Score: score})
				}

				if index != nil {
					for _, j := range index.Similar(i) {
						consider(j)
					}
					continue
				}
				for j := i + 1; j < len(views); j++ {
					consider(j)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	candidates := []Candidate{}
	total := 0
	for w := range found {
		candidates = append(candidates, found[w]...)
		total += scored[w]
	}
	return candidates, total, nil
}

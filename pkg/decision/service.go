// Package decision is the single entry point for judgements about entity pairs.
package decision

import (
	"context"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolve"
)

// MappingStore persists mappings.
type MappingStore interface {
	Find(ctx context.Context, project string, pair models.Pair) (*models.Mapping, error)
	Upsert(ctx context.Context, mapping *models.Mapping) error
	List(ctx context.Context, project string) ([]models.Mapping, error)
	ListJudged(ctx context.Context, project string) ([]models.Mapping, error)
	ListSimilar(ctx context.Context, project string) ([]models.Mapping, error)
	ListUndecided(ctx context.Context, project string, limit, offset int) ([]models.Mapping, error)
	CountUndecided(ctx context.Context, project string) (int, error)
	DeleteUndecidedGenerated(ctx context.Context, project string) (int64, error)
	Delete(ctx context.Context, project string, pair models.Pair) error
}

// EntityChecker reports which uids have any record. Inactive pending
// results count as present.
type EntityChecker interface {
	KnownUIDs(ctx context.Context, project string, uids []string) (map[string]bool, error)
}

// Listener is notified, inside the writing transaction, whenever a stored
// mapping is decided.
type Listener interface {
	JudgementDecided(ctx context.Context, project string, mapping *models.Mapping) error
}

// Judgement is one emission into the decision store.
type Judgement struct {
	Left      string
	Right     string
	Judgement *bool
	Decided   bool
	Generated bool
	Score     *float64
	DecidedBy string
}

// Service merges emissions into stored mappings.
type Service struct {
	db        database.DB
	mappings  MappingStore
	entities  EntityChecker
	listeners []Listener
	logger    ectologger.Logger
}

func NewService(db database.DB, mappings MappingStore, entities EntityChecker, logger ectologger.Logger, listeners ...Listener) *Service {
	return &Service{
		db:        db,
		mappings:  mappings,
		entities:  entities,
		listeners: listeners,
		logger:    logger,
	}
}

// AddListener registers a listener for decided mappings.
func (s *Service) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// EmitJudgement validates and merges one judgement with the stored mapping
// of its pair, then notifies listeners when the result is decided.
func (s *Service) EmitJudgement(ctx context.Context, project string, in Judgement) (*models.Mapping, error) {
	ctx, span := tracing.StartSpan(ctx, "decision.Service.EmitJudgement")
	defer span.End()

	if err := validate(in); err != nil {
		return nil, err
	}

	var stored *models.Mapping
	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		stored, err = s.emit(ctx, project, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// EmitJudgements writes a batch of judgements in one transaction.
func (s *Service) EmitJudgements(ctx context.Context, project string, batch []Judgement) error {
	ctx, span := tracing.StartSpan(ctx, "decision.Service.EmitJudgements")
	defer span.End()

	for _, in := range batch {
		if err := validate(in); err != nil {
			return err
		}
	}

	return database.WithTx(ctx, s.db, func(ctx context.Context) error {
		for _, in := range batch {
			if _, err := s.emit(ctx, project, in); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) emit(ctx context.Context, project string, in Judgement) (*models.Mapping, error) {
	pair := models.NewPair(in.Left, in.Right)
	existing, err := s.mappings.Find(ctx, project, pair)
	if err != nil {
		return nil, err
	}

	mapping := Merge(existing, project, in)
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		return nil, err
	}

	metrics.JudgementsTotal.WithLabelValues(project, judgementLabel(mapping.Judgement), strconv.FormatBool(mapping.Decided)).Inc()

	if mapping.Decided {
		for _, l := range s.listeners {
			if err := l.JudgementDecided(ctx, project, mapping); err != nil {
				return nil, err
			}
		}
	}
	return mapping, nil
}

// Merge folds an emission into the stored mapping of its pair (nil when the
// pair is new). Decided never reverts, a judgement implies decided and
// generated is sticky. An undecided emission never changes the judgement of
// a decided mapping; it only refreshes the score.
func Merge(existing *models.Mapping, project string, in Judgement) *models.Mapping {
	pair := models.NewPair(in.Left, in.Right)
	decided := in.Decided || in.Judgement != nil

	if existing == nil {
		m := &models.Mapping{
			Project:   project,
			LeftUID:   pair.Left,
			RightUID:  pair.Right,
			Judgement: in.Judgement,
			Decided:   decided,
			Generated: in.Generated,
			Score:     in.Score,
		}
		if decided && in.DecidedBy != "" {
			m.DecidedBy = &in.DecidedBy
		}
		return m
	}

	m := *existing
	m.Project = project
	m.Generated = existing.Generated || in.Generated
	if in.Score != nil {
		m.Score = in.Score
	}

	if existing.Decided && !decided {
		return &m
	}

	m.Judgement = in.Judgement
	m.Decided = existing.Decided || decided
	if decided && in.DecidedBy != "" {
		m.DecidedBy = &in.DecidedBy
	}
	return &m
}

// Cleanup deletes generated mappings nobody decided on.
func (s *Service) Cleanup(ctx context.Context, project string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "decision.Service.Cleanup")
	defer span.End()

	deleted, err := s.mappings.DeleteUndecidedGenerated(ctx, project)
	if err != nil {
		return 0, err
	}

	metrics.CleanupDeletedTotal.WithLabelValues(project).Add(float64(deleted))
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"project": project,
		"deleted": deleted,
	}).Info("Removed undecided generated mappings")
	return deleted, nil
}

// Resolution resolves the current judgements of a project. Inconsistent
// false judgements are logged on every call.
func (s *Service) Resolution(ctx context.Context, project string) (*resolve.Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "decision.Service.Resolution")
	defer span.End()

	judged, err := s.mappings.ListJudged(ctx, project)
	if err != nil {
		return nil, err
	}

	res := resolve.Resolve(judged)
	for _, inc := range res.Inconsistencies() {
		metrics.InconsistenciesTotal.WithLabelValues(project).Inc()
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"project":       project,
			"left_uid":      inc.Pair.Left,
			"right_uid":     inc.Pair.Right,
			"canonical_uid": inc.Canonical,
		}).Warn("False judgement contradicts a cluster of true judgements")
	}
	return res, nil
}

// SimilarPairs returns the pairs a reviewer decided without a judgement.
// Resolution does not see them, so generation skips them separately.
func (s *Service) SimilarPairs(ctx context.Context, project string) (map[models.Pair]bool, error) {
	similar, err := s.mappings.ListSimilar(ctx, project)
	if err != nil {
		return nil, err
	}
	pairs := make(map[models.Pair]bool, len(similar))
	for _, m := range similar {
		pairs[models.NewPair(m.LeftUID, m.RightUID)] = true
	}
	return pairs, nil
}

// Get returns the stored mapping of a pair, or nil.
func (s *Service) Get(ctx context.Context, project, a, b string) (*models.Mapping, error) {
	return s.mappings.Find(ctx, project, models.NewPair(a, b))
}

// Mappings returns every stored mapping of a project.
func (s *Service) Mappings(ctx context.Context, project string) ([]models.Mapping, error) {
	return s.mappings.List(ctx, project)
}

func validate(in Judgement) error {
	if in.Left == "" {
		return models.NewValidationError("left_uid", "uid is required")
	}
	if in.Right == "" {
		return models.NewValidationError("right_uid", "uid is required")
	}
	if in.Left == in.Right {
		return models.NewValidationError("right_uid", "cannot judge entity %s against itself", in.Left)
	}
	return nil
}

func judgementLabel(j *bool) string {
	if j == nil {
		return "null"
	}
	return strconv.FormatBool(*j)
}

package ingest

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

type EntityStore interface {
	Upsert(ctx context.Context, entity *models.Entity) (*models.Entity, error)
	DeleteByOrigin(ctx context.Context, project, origin, queryUID, matchUID string) (int64, error)
}

type LinkStore interface {
	Upsert(ctx context.Context, link *models.Link) error
	DeleteByOrigin(ctx context.Context, project, origin string) error
}

type AliasStore interface {
	Upsert(ctx context.Context, alias *models.Alias) error
	DeleteByOrigin(ctx context.Context, project, origin string) error
}

type AddressStore interface {
	Upsert(ctx context.Context, address *models.Address) error
	DeleteByOrigin(ctx context.Context, project, origin string) error
}

type DocumentStore interface {
	Upsert(ctx context.Context, doc *models.Document) error
	DeleteByOrigin(ctx context.Context, project, origin string) error
}

// JudgementSink receives judgement records. pipeline.Runner is the sink in
// production, so a judgement waits for the project lock like any pass.
type JudgementSink interface {
	EmitJudgement(ctx context.Context, project string, in decision.Judgement) (*models.Mapping, error)
}

// Activation decides whether a result record is written active.
type Activation interface {
	ResultActive(ctx context.Context, project, queryUID, matchUID string) (bool, error)
}

// Stores groups the record stores written by ingestion.
type Stores struct {
	Entities  EntityStore
	Links     LinkStore
	Aliases   AliasStore
	Addresses AddressStore
	Documents DocumentStore
}

// Service validates records and writes them. Invalid records are rejected
// with a ValidationError before anything is written.
type Service struct {
	db         database.DB
	stores     Stores
	judgements JudgementSink
	activation Activation
	logger     ectologger.Logger
}

func NewService(db database.DB, stores Stores, judgements JudgementSink, logger ectologger.Logger) *Service {
	return &Service{
		db:         db,
		stores:     stores,
		judgements: judgements,
		logger:     logger,
	}
}

// SetActivation installs the policy for result records. Without one, result
// records are written inactive.
func (s *Service) SetActivation(a Activation) {
	s.activation = a
}

// Entity validates and upserts an entity record.
func (s *Service) Entity(ctx context.Context, project string, rec *EntityRecord) (_ *models.Entity, err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Entity")
	defer span.End()
	defer func() { count(KindEntity, err) }()

	if err := Validate(rec); err != nil {
		return nil, err
	}
	schema, err := models.ParseSchema(rec.Schema)
	if err != nil {
		return nil, err
	}

	e := &models.Entity{
		Project:            project,
		UID:                rec.UID,
		QueryUID:           rec.QueryUID,
		MatchUID:           rec.MatchUID,
		Origin:             rec.Origin,
		Schema:             schema,
		Name:               strings.TrimSpace(rec.Name),
		Country:            normalizers.Country(rec.Country),
		RegistrationNumber: strings.TrimSpace(rec.RegistrationNumber),
		ExternalID:         strings.TrimSpace(rec.ExternalID),
		Tasked:             rec.Tasked,
		Weight:             rec.Weight,
		Active:             true,
		Data:               database.NewJSONB(rec.Data),
	}
	if e.IsResult() {
		e.Active, err = s.resultActive(ctx, project, e.QueryUID, e.MatchUID)
		if err != nil {
			return nil, err
		}
	}
	return s.stores.Entities.Upsert(ctx, e)
}

// Link validates and upserts a link record. Links from an entity to itself
// are dropped and nil is returned.
func (s *Service) Link(ctx context.Context, project string, rec *LinkRecord) (_ *models.Link, err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Link")
	defer span.End()
	defer func() { count(KindLink, err) }()

	if err := Validate(rec); err != nil {
		return nil, err
	}
	if rec.Source == rec.Target {
		s.logger.WithContext(ctx).WithField("uid", rec.Source).Debug("Dropping self link")
		return nil, nil
	}

	l := &models.Link{
		Project:   project,
		Origin:    rec.Origin,
		SourceUID: rec.Source,
		TargetUID: rec.Target,
		Schema:    strings.TrimSpace(rec.Schema),
		Data:      database.NewJSONB(rec.Data),
	}
	if err := s.stores.Links.Upsert(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) Alias(ctx context.Context, project string, rec *AliasRecord) (err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Alias")
	defer span.End()
	defer func() { count(KindAlias, err) }()

	if err := Validate(rec); err != nil {
		return err
	}
	return s.stores.Aliases.Upsert(ctx, &models.Alias{
		Project: project,
		Origin:  rec.Origin,
		UID:     rec.UID,
		Name:    strings.TrimSpace(rec.Name),
	})
}

// Address stores an address with its slug. A slug that normalizes to
// nothing rejects the record.
func (s *Service) Address(ctx context.Context, project string, rec *AddressRecord) (err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Address")
	defer span.End()
	defer func() { count(KindAddress, err) }()

	if err := Validate(rec); err != nil {
		return err
	}
	slug := normalizers.Slug(rec.Address)
	if slug == "" {
		return models.NewValidationError("address", "address %q has no comparable content", rec.Address)
	}
	return s.stores.Addresses.Upsert(ctx, &models.Address{
		Project:    project,
		Origin:     rec.Origin,
		EntityUID:  rec.UID,
		Address:    strings.TrimSpace(rec.Address),
		Slug:       slug,
		Normalized: rec.Normalized,
		Latitude:   rec.Latitude,
		Longitude:  rec.Longitude,
	})
}

func (s *Service) Document(ctx context.Context, project string, rec *DocumentRecord) (err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Document")
	defer span.End()
	defer func() { count(KindDocument, err) }()

	if err := Validate(rec); err != nil {
		return err
	}
	return s.stores.Documents.Upsert(ctx, &models.Document{
		Project:   project,
		Reference: rec.Reference,
		Origin:    rec.Origin,
		EntityUID: rec.UID,
		URL:       rec.URL,
		Title:     rec.Title,
		Publisher: rec.Publisher,
	})
}

// Judgement forwards a judgement record to the decision store.
func (s *Service) Judgement(ctx context.Context, project string, rec *JudgementRecord) (_ *models.Mapping, err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Judgement")
	defer span.End()
	defer func() { count(KindJudgement, err) }()

	if err := Validate(rec); err != nil {
		return nil, err
	}
	return s.judgements.EmitJudgement(ctx, project, decision.Judgement{
		Left:      rec.Left,
		Right:     rec.Right,
		Judgement: rec.Judgement,
		Decided:   rec.Decided,
		Score:     rec.Score,
		DecidedBy: rec.DecidedBy,
	})
}

// Envelope dispatches a decoded envelope. An empty envelope project falls
// back to project.
func (s *Service) Envelope(ctx context.Context, project string, env *Envelope) error {
	if env.Project != "" {
		project = env.Project
	}

	record, err := env.Decode()
	if err != nil {
		count(env.Kind, err)
		return err
	}

	switch rec := record.(type) {
	case *EntityRecord:
		_, err = s.Entity(ctx, project, rec)
	case *LinkRecord:
		_, err = s.Link(ctx, project, rec)
	case *AliasRecord:
		err = s.Alias(ctx, project, rec)
	case *AddressRecord:
		err = s.Address(ctx, project, rec)
	case *DocumentRecord:
		err = s.Document(ctx, project, rec)
	case *JudgementRecord:
		_, err = s.Judgement(ctx, project, rec)
	}
	return err
}

// Raw validates raw JSON against the envelope schema and ingests it.
func (s *Service) Raw(ctx context.Context, project string, raw []byte) error {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		count("unknown", err)
		return err
	}
	return s.Envelope(ctx, project, env)
}

// Batch ingests envelopes in one transaction; the first failure rolls back
// the whole batch.
func (s *Service) Batch(ctx context.Context, project string, envelopes []Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Batch")
	defer span.End()

	return database.WithTx(ctx, s.db, func(ctx context.Context) error {
		for i := range envelopes {
			if err := s.Envelope(ctx, project, &envelopes[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear deletes the records of an origin. With a query/match pair only the
// entities of that result context are removed.
func (s *Service) Clear(ctx context.Context, project, origin, queryUID, matchUID string) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Clear")
	defer span.End()

	if strings.TrimSpace(origin) == "" {
		return models.NewValidationError("origin", "origin is required")
	}

	return database.WithTx(ctx, s.db, func(ctx context.Context) error {
		deleted, err := s.stores.Entities.DeleteByOrigin(ctx, project, origin, queryUID, matchUID)
		if err != nil {
			return err
		}
		if queryUID == "" && matchUID == "" {
			if err := s.stores.Aliases.DeleteByOrigin(ctx, project, origin); err != nil {
				return err
			}
			if err := s.stores.Addresses.DeleteByOrigin(ctx, project, origin); err != nil {
				return err
			}
			if err := s.stores.Documents.DeleteByOrigin(ctx, project, origin); err != nil {
				return err
			}
			if err := s.stores.Links.DeleteByOrigin(ctx, project, origin); err != nil {
				return err
			}
		}

		s.logger.WithContext(ctx).WithFields(map[string]any{
			"project":   project,
			"origin":    origin,
			"query_uid": queryUID,
			"match_uid": matchUID,
			"entities":  deleted,
		}).Info("Cleared origin")
		return nil
	})
}

func (s *Service) resultActive(ctx context.Context, project, queryUID, matchUID string) (bool, error) {
	if s.activation == nil {
		return false, nil
	}
	return s.activation.ResultActive(ctx, project, queryUID, matchUID)
}

func count(kind string, err error) {
	status := "ok"
	switch {
	case models.IsValidationError(err):
		status = "invalid"
	case err != nil:
		status = "error"
	}
	metrics.RecordsIngestedTotal.WithLabelValues(kind, status).Inc()
}

package emitter

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

// EntityLookup finds the records of a uid.
type EntityLookup interface {
	ListByUID(ctx context.Context, project, uid string) ([]models.Entity, error)
}

// Judgements records emitter judgements. App wires pipeline.Runner so they
// take the project lock.
type Judgements interface {
	EmitJudgement(ctx context.Context, project string, in decision.Judgement) (*models.Mapping, error)
	Get(ctx context.Context, project, a, b string) (*models.Mapping, error)
}

// Deps are the collaborators shared by every emitter of a process.
type Deps struct {
	Ingest     *ingest.Service
	Judgements Judgements
	Entities   EntityLookup
	Scorer     *matching.Scorer
	Logger     ectologger.Logger
}

// OriginEmitter writes records of one origin without a result context.
type OriginEmitter struct {
	deps    Deps
	project string
	origin  string
}

func NewOriginEmitter(deps Deps, project, origin string) (*OriginEmitter, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return nil, models.NewValidationError("origin", "origin is required")
	}
	return &OriginEmitter{
		deps:    deps,
		project: project,
		origin:  origin,
	}, nil
}

func (e *OriginEmitter) Origin() string {
	return e.origin
}

// UID derives a stable uid from the origin and key parts. At least one
// part is required and no part may be empty.
func (e *OriginEmitter) UID(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", models.NewValidationError("uid", "no unique key given")
	}

	h := sha1.New()
	h.Write([]byte(e.origin))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", models.NewValidationError("uid", "key part %d is empty", i)
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// EmitEntity stores an entity from a loose attribute map.
func (e *OriginEmitter) EmitEntity(ctx context.Context, attrs map[string]any) (*models.Entity, error) {
	rec, err := ingest.EntityFromAttributes(e.origin, attrs)
	if err != nil {
		return nil, err
	}
	return e.deps.Ingest.Entity(ctx, e.project, rec)
}

func (e *OriginEmitter) EmitLink(ctx context.Context, source, target, schema string, data models.Attributes) (*models.Link, error) {
	return e.deps.Ingest.Link(ctx, e.project, &ingest.LinkRecord{
		Origin: e.origin,
		Source: source,
		Target: target,
		Schema: schema,
		Data:   data,
	})
}

func (e *OriginEmitter) EmitAlias(ctx context.Context, uid, name string) error {
	return e.deps.Ingest.Alias(ctx, e.project, &ingest.AliasRecord{Origin: e.origin, UID: uid, Name: name})
}

func (e *OriginEmitter) EmitAddress(ctx context.Context, uid, address string) error {
	return e.deps.Ingest.Address(ctx, e.project, &ingest.AddressRecord{Origin: e.origin, UID: uid, Address: address})
}

func (e *OriginEmitter) EmitDocument(ctx context.Context, uid, reference, url string) error {
	return e.deps.Ingest.Document(ctx, e.project, &ingest.DocumentRecord{
		Origin:    e.origin,
		UID:       uid,
		Reference: reference,
		URL:       url,
	})
}

// EmitJudgement records a judgement between two entities.
func (e *OriginEmitter) EmitJudgement(ctx context.Context, a, b string, judgement *bool, score *float64, decided bool) (*models.Mapping, error) {
	return e.deps.Judgements.EmitJudgement(ctx, e.project, decision.Judgement{
		Left:      a,
		Right:     b,
		Judgement: judgement,
		Decided:   decided,
		Score:     score,
		DecidedBy: e.origin,
	})
}

// Clear deletes every record of the origin.
func (e *OriginEmitter) Clear(ctx context.Context) error {
	return e.deps.Ingest.Clear(ctx, e.project, e.origin, "", "")
}

// Result opens an emitter for the result context (queryUID, matchUID).
func (e *OriginEmitter) Result(ctx context.Context, queryUID, matchUID string) (*ResultEmitter, error) {
	ctx, span := tracing.StartSpan(ctx, "emitter.OriginEmitter.Result")
	defer span.End()

	if queryUID == "" || matchUID == "" {
		return nil, models.NewValidationError("query_uid", "result context needs a query and a match uid")
	}

	mapping, err := e.deps.Judgements.Get(ctx, e.project, queryUID, matchUID)
	if err != nil {
		return nil, err
	}

	return &ResultEmitter{
		OriginEmitter: e,
		queryUID:      queryUID,
		matchUID:      matchUID,
		mapping:       mapping,
	}, nil
}

// ResultEmitter writes records inside a result context. Once the context is
// rejected every emission is ignored.
type ResultEmitter struct {
	*OriginEmitter
	queryUID string
	matchUID string
	mapping  *models.Mapping
}

func (r *ResultEmitter) State() ResultState {
	return StateFor(r.mapping)
}

func (r *ResultEmitter) disabled() bool {
	return r.State() == Rejected
}

// EmitEntity stores a result entity. Its active flag follows the result
// state. Emitting the match entity itself creates a tentative, scored
// mapping to the query when none exists yet.
func (r *ResultEmitter) EmitEntity(ctx context.Context, attrs map[string]any) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "emitter.ResultEmitter.EmitEntity")
	defer span.End()

	if r.disabled() {
		return nil, nil
	}

	rec, err := ingest.EntityFromAttributes(r.origin, attrs)
	if err != nil {
		return nil, err
	}
	rec.QueryUID = r.queryUID
	rec.MatchUID = r.matchUID

	entity, err := r.deps.Ingest.Entity(ctx, r.project, rec)
	if err != nil {
		return nil, err
	}

	if r.mapping == nil && entity.UID == r.matchUID {
		if err := r.tentative(ctx, entity); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

func (r *ResultEmitter) tentative(ctx context.Context, result *models.Entity) error {
	queries, err := r.deps.Entities.ListByUID(ctx, r.project, r.queryUID)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		r.deps.Logger.WithContext(ctx).WithFields(map[string]any{
			"project":   r.project,
			"origin":    r.origin,
			"query_uid": r.queryUID,
			"match_uid": r.matchUID,
		}).Warn("Query entity missing, no tentative mapping created")
		return nil
	}

	fp := r.deps.Scorer.Profile().Fingerprinter()
	score := r.deps.Scorer.Score(matching.NewView(&queries[0], nil, fp), matching.NewView(result, nil, fp))

	mapping, err := r.deps.Judgements.EmitJudgement(ctx, r.project, decision.Judgement{
		Left:  r.matchUID,
		Right: r.queryUID,
		Score: &score,
	})
	if err != nil {
		return err
	}
	r.mapping = mapping
	return nil
}

func (r *ResultEmitter) EmitLink(ctx context.Context, source, target, schema string, data models.Attributes) (*models.Link, error) {
	if r.disabled() {
		return nil, nil
	}
	return r.OriginEmitter.EmitLink(ctx, source, target, schema, data)
}

func (r *ResultEmitter) EmitAlias(ctx context.Context, uid, name string) error {
	if r.disabled() {
		return nil
	}
	return r.OriginEmitter.EmitAlias(ctx, uid, name)
}

func (r *ResultEmitter) EmitAddress(ctx context.Context, uid, address string) error {
	if r.disabled() {
		return nil
	}
	return r.OriginEmitter.EmitAddress(ctx, uid, address)
}

func (r *ResultEmitter) EmitDocument(ctx context.Context, uid, reference, url string) error {
	if r.disabled() {
		return nil
	}
	return r.OriginEmitter.EmitDocument(ctx, uid, reference, url)
}

func (r *ResultEmitter) EmitJudgement(ctx context.Context, a, b string, judgement *bool, score *float64, decided bool) (*models.Mapping, error) {
	if r.disabled() {
		return nil, nil
	}
	return r.OriginEmitter.EmitJudgement(ctx, a, b, judgement, score, decided)
}

// Clear deletes the entities of this result context only.
func (r *ResultEmitter) Clear(ctx context.Context) error {
	return r.deps.Ingest.Clear(ctx, r.project, r.origin, r.queryUID, r.matchUID)
}

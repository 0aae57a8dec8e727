package emitter_test

import (
	"context"
	"testing"

	"github.com/Ramsey-B/fern/internal/database/databasetest"
	"github.com/Ramsey-B/fern/internal/repositories/address"
	"github.com/Ramsey-B/fern/internal/repositories/alias"
	"github.com/Ramsey-B/fern/internal/repositories/document"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/link"
	"github.com/Ramsey-B/fern/internal/repositories/mapping"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/emitter"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	deps      emitter.Deps
	decisions *decision.Service
	entities  *entity.Repository
	aliases   *alias.Repository
	links     *link.Repository
	documents *document.Repository
	merger    *merging.CompositeMerger
}

func newFixture(t *testing.T) *fixture {
	db := databasetest.NewSQLite(t)
	logger := databasetest.Logger()

	entities := entity.NewRepository(db, logger)
	aliases := alias.NewRepository(db, logger)
	addresses := address.NewRepository(db, logger)
	links := link.NewRepository(db, logger)
	documents := document.NewRepository(db, logger)

	decisions := decision.NewService(db, mapping.NewRepository(db, logger), entities, logger)
	lifecycle := emitter.NewLifecycle(entities, decisions, logger, aliases, addresses, links, documents)
	decisions.AddListener(lifecycle)

	ingestSvc := ingest.NewService(db, ingest.Stores{
		Entities:  entities,
		Links:     links,
		Aliases:   aliases,
		Addresses: addresses,
		Documents: documents,
	}, decisions, logger)
	ingestSvc.SetActivation(lifecycle)

	return &fixture{
		deps: emitter.Deps{
			Ingest:     ingestSvc,
			Judgements: decisions,
			Entities:   entities,
			Scorer:     matching.NewScorer(matching.DefaultProfile()),
			Logger:     logger,
		},
		decisions: decisions,
		entities:  entities,
		aliases:   aliases,
		links:     links,
		documents: documents,
		merger:    merging.NewCompositeMerger(entities, aliases, addresses, links, logger),
	}
}

func TestOriginEmitter_UID(t *testing.T) {
	f := newFixture(t)
	e, err := emitter.NewOriginEmitter(f.deps, "p", "registry")
	require.NoError(t, err)

	uid, err := e.UID("acme", "123")
	require.NoError(t, err)
	assert.Len(t, uid, 40)

	again, err := e.UID("acme", "123")
	require.NoError(t, err)
	assert.Equal(t, uid, again)

	other, err := e.UID("acme", "124")
	require.NoError(t, err)
	assert.NotEqual(t, uid, other)

	_, err = e.UID()
	assert.True(t, models.IsValidationError(err))

	_, err = e.UID("acme", " ")
	assert.True(t, models.IsValidationError(err))

	_, err = emitter.NewOriginEmitter(f.deps, "p", "")
	assert.True(t, models.IsValidationError(err))
}

func TestOriginEmitter_EmitEntity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := emitter.NewOriginEmitter(f.deps, "p", "registry")
	require.NoError(t, err)

	entity, err := e.EmitEntity(ctx, map[string]any{"uid": "q", "name": "Acme Corp", "schema": "Company", "weight": 2})
	require.NoError(t, err)
	assert.True(t, entity.Active)
	assert.Equal(t, "registry", entity.Origin)
	assert.Equal(t, 2, entity.Weight)

	_, err = e.EmitEntity(ctx, map[string]any{"name": "No Uid"})
	assert.True(t, models.IsValidationError(err))
}

func TestResultEmitter_PendingResultIsReviewable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registry, err := emitter.NewOriginEmitter(f.deps, "p", "registry")
	require.NoError(t, err)
	_, err = registry.EmitEntity(ctx, map[string]any{"uid": "q", "name": "Acme Corp", "schema": "Company"})
	require.NoError(t, err)

	web, err := emitter.NewOriginEmitter(f.deps, "p", "web")
	require.NoError(t, err)
	result, err := web.Result(ctx, "q", "m")
	require.NoError(t, err)
	entity, err := result.EmitEntity(ctx, map[string]any{"uid": "m", "name": "ACME Corp", "schema": "Company"})
	require.NoError(t, err)
	require.False(t, entity.Active)

	page, err := f.decisions.ReviewQueue(ctx, "p", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pruned)
	require.Len(t, page.Mappings, 1)
	assert.Equal(t, models.NewPair("q", "m"), page.Mappings[0].Pair())

	m, err := f.decisions.Get(ctx, "p", "q", "m")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestResultEmitter_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	origin, err := emitter.NewOriginEmitter(f.deps, "p", "registry")
	require.NoError(t, err)
	_, err = origin.EmitEntity(ctx, map[string]any{"uid": "q", "name": "Acme Corp", "schema": "Company"})
	require.NoError(t, err)

	web, err := emitter.NewOriginEmitter(f.deps, "p", "web")
	require.NoError(t, err)

	t.Run("pending result is inactive with a tentative mapping", func(t *testing.T) {
		result, err := web.Result(ctx, "q", "m")
		require.NoError(t, err)
		assert.Equal(t, emitter.Pending, result.State())

		entity, err := result.EmitEntity(ctx, map[string]any{"uid": "m", "name": "ACME Corp", "schema": "Company"})
		require.NoError(t, err)
		assert.False(t, entity.Active)

		m, err := f.decisions.Get(ctx, "p", "q", "m")
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.False(t, m.Decided)
		assert.Nil(t, m.Judgement)
		require.NotNil(t, m.Score)
		assert.Greater(t, *m.Score, 0.0)
	})

	t.Run("confirmed result becomes active", func(t *testing.T) {
		_, err := f.decisions.EmitJudgement(ctx, "p", decision.Judgement{Left: "q", Right: "m", Judgement: models.Bool(true)})
		require.NoError(t, err)

		rows, err := f.entities.ListResult(ctx, "p", "q", "m")
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Active)

		result, err := web.Result(ctx, "q", "m")
		require.NoError(t, err)
		assert.Equal(t, emitter.Active, result.State())

		entity, err := result.EmitEntity(ctx, map[string]any{"uid": "m2", "name": "Acme Subsidiary"})
		require.NoError(t, err)
		assert.True(t, entity.Active)
	})

	t.Run("rejected result is removed and disabled", func(t *testing.T) {
		result, err := web.Result(ctx, "q", "x")
		require.NoError(t, err)
		_, err = result.EmitEntity(ctx, map[string]any{"uid": "x", "name": "Other Thing"})
		require.NoError(t, err)
		_, err = result.EmitEntity(ctx, map[string]any{"uid": "y", "name": "Other Owner"})
		require.NoError(t, err)
		require.NoError(t, result.EmitAlias(ctx, "x", "Other"))
		_, err = result.EmitLink(ctx, "y", "x", "ownership", nil)
		require.NoError(t, err)
		require.NoError(t, result.EmitDocument(ctx, "x", "doc-x", "https://example.com/x"))

		pending, err := f.merger.Links(ctx, "p", merging.Filter{})
		require.NoError(t, err)
		assert.Empty(t, pending, "links of a pending result are not merged")

		_, err = f.decisions.EmitJudgement(ctx, "p", decision.Judgement{Left: "x", Right: "q", Judgement: models.Bool(false)})
		require.NoError(t, err)

		rows, err := f.entities.ListResult(ctx, "p", "q", "x")
		require.NoError(t, err)
		assert.Empty(t, rows)

		aliases, err := f.aliases.List(ctx, "p")
		require.NoError(t, err)
		assert.Empty(t, aliases)

		links, err := f.links.List(ctx, "p")
		require.NoError(t, err)
		assert.Empty(t, links)

		docs, err := f.documents.List(ctx, "p")
		require.NoError(t, err)
		assert.Empty(t, docs)

		result, err = web.Result(ctx, "q", "x")
		require.NoError(t, err)
		assert.Equal(t, emitter.Rejected, result.State())
		entity, err := result.EmitEntity(ctx, map[string]any{"uid": "x", "name": "Other Thing"})
		require.NoError(t, err)
		assert.Nil(t, entity)
	})

	t.Run("clear removes only the result context", func(t *testing.T) {
		result, err := web.Result(ctx, "q", "m")
		require.NoError(t, err)
		require.NoError(t, result.Clear(ctx))

		rows, err := f.entities.ListResult(ctx, "p", "q", "m")
		require.NoError(t, err)
		assert.Empty(t, rows)

		rows, err = f.entities.ListByUID(ctx, "p", "q")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("result context needs both uids", func(t *testing.T) {
		_, err := web.Result(ctx, "q", "")
		assert.True(t, models.IsValidationError(err))
	})
}

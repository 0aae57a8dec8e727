package canonical_test

import (
	"context"
	"testing"

	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/database/databasetest"
	"github.com/Ramsey-B/fern/internal/repositories/address"
	"github.com/Ramsey-B/fern/internal/repositories/alias"
	"github.com/Ramsey-B/fern/internal/repositories/document"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/link"
	"github.com/Ramsey-B/fern/internal/repositories/mapping"
	"github.com/Ramsey-B/fern/pkg/canonical"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	canonicalizer *canonical.Canonicalizer
	decisions     *decision.Service
	mappings      *mapping.Repository
	entities      *entity.Repository
	links         *link.Repository
	aliases       *alias.Repository
	addresses     *address.Repository
	documents     *document.Repository
}

func newFixture(t *testing.T) *fixture {
	db := databasetest.NewSQLite(t)
	logger := databasetest.Logger()

	f := &fixture{
		mappings:  mapping.NewRepository(db, logger),
		entities:  entity.NewRepository(db, logger),
		links:     link.NewRepository(db, logger),
		aliases:   alias.NewRepository(db, logger),
		addresses: address.NewRepository(db, logger),
		documents: document.NewRepository(db, logger),
	}
	f.decisions = decision.NewService(db, f.mappings, f.entities, logger)
	f.canonicalizer = canonical.NewCanonicalizer(db, f.decisions, logger, f.entities, f.links, f.aliases, f.addresses, f.documents)
	return f
}

func (f *fixture) seed(t *testing.T) {
	ctx := context.Background()
	for _, e := range []models.Entity{
		{UID: "b-uid", Name: "Acme Corp"},
		{UID: "a-uid", Name: "ACME Corporation"},
		{UID: "c-uid", Name: "Jane Doe", Schema: models.SchemaPerson},
	} {
		e.Project, e.Origin, e.Active = "p", "src", true
		if e.Schema == "" {
			e.Schema = models.SchemaCompany
		}
		_, err := f.entities.Upsert(ctx, &e)
		require.NoError(t, err)
	}
	require.NoError(t, f.links.Upsert(ctx, &models.Link{Project: "p", Origin: "src", SourceUID: "c-uid", TargetUID: "a-uid", Schema: "DIRECTOR"}))
	require.NoError(t, f.aliases.Upsert(ctx, &models.Alias{Project: "p", Origin: "src", UID: "a-uid", Name: "Acme"}))
	require.NoError(t, f.addresses.Upsert(ctx, &models.Address{Project: "p", Origin: "src", EntityUID: "a-uid", Address: "1 Main St"}))
	require.NoError(t, f.documents.Upsert(ctx, &models.Document{Project: "p", Reference: "doc-1", Origin: "src", EntityUID: "a-uid", URL: "https://example.org/1"}))
}

func (f *fixture) canonicalOf(t *testing.T, uid string) string {
	e, err := f.entities.Get(context.Background(), "p", uid)
	require.NoError(t, err)
	return e.CanonicalUID
}

func TestCanonicalize_MatchAndLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)

	_, err := f.decisions.EmitJudgement(ctx, "p", decision.Judgement{Left: "b-uid", Right: "a-uid", Judgement: models.Bool(true)})
	require.NoError(t, err)

	report, err := f.canonicalizer.Canonicalize(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clusters)
	assert.Equal(t, 2, report.Members)
	assert.Empty(t, report.Inconsistencies)

	assert.Equal(t, "b-uid", f.canonicalOf(t, "a-uid"))
	assert.Equal(t, "b-uid", f.canonicalOf(t, "b-uid"))
	assert.Equal(t, "c-uid", f.canonicalOf(t, "c-uid"))

	links, err := f.links.List(ctx, "p")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "c-uid", links[0].SourceCanonicalUID)
	assert.Equal(t, "b-uid", links[0].TargetCanonicalUID)

	aliases, err := f.aliases.List(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "b-uid", aliases[0].CanonicalUID)

	addresses, err := f.addresses.List(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "b-uid", addresses[0].CanonicalUID)

	docs, err := f.documents.List(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "b-uid", docs[0].CanonicalUID)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)

	_, err := f.decisions.EmitJudgement(ctx, "p", decision.Judgement{Left: "b-uid", Right: "a-uid", Judgement: models.Bool(true)})
	require.NoError(t, err)

	_, err = f.canonicalizer.Canonicalize(ctx, "p")
	require.NoError(t, err)
	first, err := f.entities.ListActive(ctx, "p")
	require.NoError(t, err)
	firstLinks, err := f.links.List(ctx, "p")
	require.NoError(t, err)

	_, err = f.canonicalizer.Canonicalize(ctx, "p")
	require.NoError(t, err)
	second, err := f.entities.ListActive(ctx, "p")
	require.NoError(t, err)
	secondLinks, err := f.links.List(ctx, "p")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].UID, second[i].UID)
		assert.Equal(t, first[i].CanonicalUID, second[i].CanonicalUID)
	}
	assert.Equal(t, firstLinks[0].TargetCanonicalUID, secondLinks[0].TargetCanonicalUID)
}

func TestCanonicalize_SplitResetsCanonicalIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)

	_, err := f.decisions.EmitJudgement(ctx, "p", decision.Judgement{Left: "b-uid", Right: "a-uid", Judgement: models.Bool(true)})
	require.NoError(t, err)
	_, err = f.canonicalizer.Canonicalize(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "b-uid", f.canonicalOf(t, "a-uid"))

	require.NoError(t, f.mappings.Delete(ctx, "p", models.NewPair("a-uid", "b-uid")))
	_, err = f.canonicalizer.Canonicalize(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "a-uid", f.canonicalOf(t, "a-uid"))

	links, err := f.links.List(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "a-uid", links[0].TargetCanonicalUID)
}

func TestCanonicalize_ReportsInconsistencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t)

	for _, in := range []decision.Judgement{
		{Left: "a-uid", Right: "b-uid", Judgement: models.Bool(true)},
		{Left: "b-uid", Right: "c-uid", Judgement: models.Bool(true)},
		{Left: "a-uid", Right: "c-uid", Judgement: models.Bool(false)},
	} {
		_, err := f.decisions.EmitJudgement(ctx, "p", in)
		require.NoError(t, err)
	}

	report, err := f.canonicalizer.Canonicalize(ctx, "p")
	require.NoError(t, err)
	require.Len(t, report.Inconsistencies, 1)
	assert.Equal(t, models.NewPair("a-uid", "c-uid"), report.Inconsistencies[0].Pair)
	assert.Equal(t, "c-uid", f.canonicalOf(t, "a-uid"))
}

type txResolver struct {
	canonical.Resolver
	inTx bool
}

func (r *txResolver) Resolution(ctx context.Context, project string) (*resolve.Resolution, error) {
	r.inTx = database.InTx(ctx)
	return r.Resolver.Resolution(ctx, project)
}

func TestCanonicalize_ReadsJudgementsInTransaction(t *testing.T) {
	db := databasetest.NewSQLite(t)
	logger := databasetest.Logger()
	entities := entity.NewRepository(db, logger)
	resolver := &txResolver{Resolver: decision.NewService(db, mapping.NewRepository(db, logger), entities, logger)}

	report, err := canonical.NewCanonicalizer(db, resolver, logger, entities).Canonicalize(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, resolver.inTx)
	assert.Zero(t, report.Clusters)
}

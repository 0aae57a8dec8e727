package ingest_test

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
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	service   *ingest.Service
	entities  *entity.Repository
	links     *link.Repository
	aliases   *alias.Repository
	addresses *address.Repository
	mappings  *mapping.Repository
}

func newFixture(t *testing.T) *fixture {
	db := databasetest.NewSQLite(t)
	logger := databasetest.Logger()

	f := &fixture{
		entities:  entity.NewRepository(db, logger),
		links:     link.NewRepository(db, logger),
		aliases:   alias.NewRepository(db, logger),
		addresses: address.NewRepository(db, logger),
		mappings:  mapping.NewRepository(db, logger),
	}
	decisions := decision.NewService(db, f.mappings, f.entities, logger)
	f.service = ingest.NewService(db, ingest.Stores{
		Entities:  f.entities,
		Links:     f.links,
		Aliases:   f.aliases,
		Addresses: f.addresses,
		Documents: document.NewRepository(db, logger),
	}, decisions, logger)
	return f
}

type staticActivation bool

func (a staticActivation) ResultActive(context.Context, string, string, string) (bool, error) {
	return bool(a), nil
}

func TestService_Entity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("origin record is active", func(t *testing.T) {
		e, err := f.service.Entity(ctx, "p", &ingest.EntityRecord{Origin: "reg", UID: "u1", Schema: "company", Name: "Acme", Country: " DE "})
		require.NoError(t, err)
		assert.True(t, e.Active)
		assert.Equal(t, models.SchemaCompany, e.Schema)
		assert.Equal(t, "de", e.Country)
		assert.Equal(t, "u1", e.CanonicalUID)
	})

	t.Run("unknown schema writes nothing", func(t *testing.T) {
		_, err := f.service.Entity(ctx, "p", &ingest.EntityRecord{Origin: "reg", UID: "u2", Schema: "Spaceship"})
		require.Error(t, err)
		assert.True(t, models.IsValidationError(err))

		rows, err := f.entities.ListByUID(ctx, "p", "u2")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("result record starts inactive", func(t *testing.T) {
		e, err := f.service.Entity(ctx, "p", &ingest.EntityRecord{Origin: "web", UID: "r1", QueryUID: "u1", MatchUID: "r1"})
		require.NoError(t, err)
		assert.False(t, e.Active)
	})

	t.Run("activation policy", func(t *testing.T) {
		f.service.SetActivation(staticActivation(true))
		defer f.service.SetActivation(nil)

		e, err := f.service.Entity(ctx, "p", &ingest.EntityRecord{Origin: "web", UID: "r2", QueryUID: "u1", MatchUID: "r2"})
		require.NoError(t, err)
		assert.True(t, e.Active)
	})
}

func TestService_Link(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.service.Link(ctx, "p", &ingest.LinkRecord{Origin: "reg", Source: "a", Target: "a"})
	require.NoError(t, err)
	assert.Nil(t, l)

	l, err = f.service.Link(ctx, "p", &ingest.LinkRecord{Origin: "reg", Source: "a", Target: "b", Schema: "owner"})
	require.NoError(t, err)
	require.NotNil(t, l)

	links, err := f.links.List(ctx, "p")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "b", links[0].TargetCanonicalUID)
}

func TestService_Address(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Address(ctx, "p", &ingest.AddressRecord{Origin: "reg", UID: "u1", Address: "1 Main Street"}))
	err := f.service.Address(ctx, "p", &ingest.AddressRecord{Origin: "reg", UID: "u1", Address: "!!!"})
	assert.True(t, models.IsValidationError(err))

	rows, err := f.addresses.List(ctx, "p")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1-main-st", rows[0].Slug)
}

func TestService_Raw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Raw(ctx, "p", []byte(`{"kind":"entity","record":{"origin":"o","uid":"a","name":"A"}}`)))
	require.NoError(t, f.service.Raw(ctx, "p", []byte(`{"kind":"entity","record":{"origin":"o","uid":"b","name":"B"}}`)))
	require.NoError(t, f.service.Raw(ctx, "p", []byte(`{"kind":"judgement","record":{"left_uid":"a","right_uid":"b","judgement":true}}`)))

	m, err := f.mappings.Find(ctx, "p", models.NewPair("a", "b"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.IsMatch())
	assert.True(t, m.Decided)

	err = f.service.Raw(ctx, "p", []byte(`{"kind":"entity","record":{"uid":"c"}}`))
	assert.True(t, models.IsValidationError(err))
}

func TestService_Batch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.service.Batch(ctx, "p", []ingest.Envelope{
		{Kind: ingest.KindEntity, Record: []byte(`{"origin":"o","uid":"a"}`)},
		{Kind: ingest.KindEntity, Record: []byte(`{"origin":"o"}`)},
	})
	require.Error(t, err)

	rows, err := f.entities.ListByUID(ctx, "p", "a")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestService_Clear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Entity(ctx, "p", &ingest.EntityRecord{Origin: "reg", UID: "a", Name: "A"})
	require.NoError(t, err)
	_, err = f.service.Entity(ctx, "p", &ingest.EntityRecord{Origin: "web", UID: "r", QueryUID: "a", MatchUID: "r"})
	require.NoError(t, err)
	require.NoError(t, f.service.Alias(ctx, "p", &ingest.AliasRecord{Origin: "reg", UID: "a", Name: "Alpha"}))

	t.Run("result context only", func(t *testing.T) {
		require.NoError(t, f.service.Clear(ctx, "p", "web", "a", "r"))
		rows, err := f.entities.ListByUID(ctx, "p", "r")
		require.NoError(t, err)
		assert.Empty(t, rows)
		rows, err = f.entities.ListByUID(ctx, "p", "a")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("whole origin", func(t *testing.T) {
		require.NoError(t, f.service.Clear(ctx, "p", "reg", "", ""))
		rows, err := f.entities.ListByUID(ctx, "p", "a")
		require.NoError(t, err)
		assert.Empty(t, rows)
		aliases, err := f.aliases.List(ctx, "p")
		require.NoError(t, err)
		assert.Empty(t, aliases)
	})

	t.Run("origin required", func(t *testing.T) {
		assert.True(t, models.IsValidationError(f.service.Clear(ctx, "p", " ", "", "")))
	})
}

package mapping_test

import (
	"context"
	"testing"

	"github.com/Ramsey-B/fern/internal/database/databasetest"
	"github.com/Ramsey-B/fern/internal/repositories/mapping"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) *mapping.Repository {
	return mapping.NewRepository(databasetest.NewSQLite(t), databasetest.Logger())
}

func TestRepository_UpsertAndFind(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()
	pair := models.NewPair("a", "b")

	found, err := repo.Find(ctx, "p", pair)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = repo.Get(ctx, "p", pair)
	require.Error(t, err)

	require.NoError(t, repo.Upsert(ctx, &models.Mapping{
		Project: "p", LeftUID: pair.Left, RightUID: pair.Right,
		Generated: true, Score: models.Float(0.7),
	}))

	found, err = repo.Find(ctx, "p", pair)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.Judgement)
	assert.False(t, found.Decided)
	assert.True(t, found.Generated)
	assert.InDelta(t, 0.7, *found.Score, 1e-9)

	found.Judgement = models.Bool(false)
	found.Decided = true
	require.NoError(t, repo.Upsert(ctx, found))

	found, err = repo.Find(ctx, "p", pair)
	require.NoError(t, err)
	require.NotNil(t, found.Judgement)
	assert.False(t, *found.Judgement)
	assert.True(t, found.Decided)
}

func TestRepository_RejectsUnorderedKey(t *testing.T) {
	repo := newRepository(t)
	err := repo.Upsert(context.Background(), &models.Mapping{Project: "p", LeftUID: "a", RightUID: "b"})
	assert.Error(t, err)
}

func TestRepository_Queries(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	seed := []models.Mapping{
		{LeftUID: "b", RightUID: "a", Generated: true, Score: models.Float(0.6)},
		{LeftUID: "c", RightUID: "a", Generated: true, Score: models.Float(0.9)},
		{LeftUID: "d", RightUID: "a", Generated: false, Score: models.Float(0.8)},
		{LeftUID: "e", RightUID: "a", Judgement: models.Bool(true), Decided: true, Generated: true},
		{LeftUID: "f", RightUID: "a", Decided: true},
	}
	for i := range seed {
		seed[i].Project = "p"
		require.NoError(t, repo.Upsert(ctx, &seed[i]))
	}

	t.Run("undecided ranked by score", func(t *testing.T) {
		page, err := repo.ListUndecided(ctx, "p", 10, 0)
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, "c", page[0].LeftUID)
		assert.Equal(t, "d", page[1].LeftUID)
		assert.Equal(t, "b", page[2].LeftUID)

		count, err := repo.CountUndecided(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("judged and similar", func(t *testing.T) {
		judged, err := repo.ListJudged(ctx, "p")
		require.NoError(t, err)
		require.Len(t, judged, 1)
		assert.Equal(t, "e", judged[0].LeftUID)

		similar, err := repo.ListSimilar(ctx, "p")
		require.NoError(t, err)
		require.Len(t, similar, 1)
		assert.Equal(t, "f", similar[0].LeftUID)
	})

	t.Run("cleanup keeps decided and manual rows", func(t *testing.T) {
		deleted, err := repo.DeleteUndecidedGenerated(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		all, err := repo.List(ctx, "p")
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

package decision_test

import (
	"context"
	"testing"

	"github.com/Ramsey-B/fern/internal/database/databasetest"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/mapping"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	decided []models.Mapping
}

func (l *recordingListener) JudgementDecided(_ context.Context, _ string, m *models.Mapping) error {
	l.decided = append(l.decided, *m)
	return nil
}

type fixture struct {
	svc      *decision.Service
	entities *entity.Repository
	listener *recordingListener
}

func newFixture(t *testing.T) *fixture {
	db := databasetest.NewSQLite(t)
	logger := databasetest.Logger()
	entities := entity.NewRepository(db, logger)
	listener := &recordingListener{}
	svc := decision.NewService(db, mapping.NewRepository(db, logger), entities, logger, listener)
	return &fixture{svc: svc, entities: entities, listener: listener}
}

func (f *fixture) seedEntities(t *testing.T, uids ...string) {
	for _, uid := range uids {
		_, err := f.entities.Upsert(context.Background(), &models.Entity{
			Project: "p", UID: uid, Origin: "src", Schema: models.SchemaCompany, Name: uid, Active: true,
		})
		require.NoError(t, err)
	}
}

func TestMerge(t *testing.T) {
	decidedFalse := &models.Mapping{LeftUID: "b", RightUID: "a", Judgement: models.Bool(false), Decided: true, Score: models.Float(0.4)}
	candidate := &models.Mapping{LeftUID: "b", RightUID: "a", Generated: true, Score: models.Float(0.6)}

	tests := []struct {
		name          string
		existing      *models.Mapping
		in            decision.Judgement
		wantJudgement *bool
		wantDecided   bool
		wantGenerated bool
		wantScore     float64
	}{
		{
			name:          "new candidate",
			in:            decision.Judgement{Left: "a", Right: "b", Generated: true, Score: models.Float(0.7)},
			wantGenerated: true,
			wantScore:     0.7,
		},
		{
			name:          "judgement implies decided",
			in:            decision.Judgement{Left: "a", Right: "b", Judgement: models.Bool(true)},
			wantJudgement: models.Bool(true),
			wantDecided:   true,
		},
		{
			name:          "undecided emission only refreshes score of a decided mapping",
			existing:      decidedFalse,
			in:            decision.Judgement{Left: "a", Right: "b", Generated: true, Score: models.Float(0.9)},
			wantJudgement: models.Bool(false),
			wantDecided:   true,
			wantGenerated: true,
			wantScore:     0.9,
		},
		{
			name:          "decision on a candidate keeps generated",
			existing:      candidate,
			in:            decision.Judgement{Left: "b", Right: "a", Judgement: models.Bool(true)},
			wantJudgement: models.Bool(true),
			wantDecided:   true,
			wantGenerated: true,
			wantScore:     0.6,
		},
		{
			name:          "decided without judgement marks similar",
			existing:      candidate,
			in:            decision.Judgement{Left: "a", Right: "b", Decided: true},
			wantDecided:   true,
			wantGenerated: true,
			wantScore:     0.6,
		},
		{
			name:          "re-review overrides a decided judgement",
			existing:      decidedFalse,
			in:            decision.Judgement{Left: "a", Right: "b", Judgement: models.Bool(true)},
			wantJudgement: models.Bool(true),
			wantDecided:   true,
			wantScore:     0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decision.Merge(tt.existing, "p", tt.in)
			assert.Equal(t, "b", got.LeftUID)
			assert.Equal(t, "a", got.RightUID)
			assert.Equal(t, tt.wantJudgement, got.Judgement)
			assert.Equal(t, tt.wantDecided, got.Decided)
			assert.Equal(t, tt.wantGenerated, got.Generated)
			if tt.wantScore == 0 {
				assert.Nil(t, got.Score)
			} else {
				require.NotNil(t, got.Score)
				assert.InDelta(t, tt.wantScore, *got.Score, 1e-9)
			}
		})
	}
}

func TestEmitJudgement_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   decision.Judgement
	}{
		{name: "missing left", in: decision.Judgement{Right: "b"}},
		{name: "missing right", in: decision.Judgement{Left: "a"}},
		{name: "self judgement", in: decision.Judgement{Left: "a", Right: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.EmitJudgement(ctx, "p", tt.in)
			require.Error(t, err)
			assert.True(t, models.IsValidationError(err))
		})
	}

	all, err := f.svc.Mappings(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEmitJudgement_StoresAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.EmitJudgement(ctx, "p", decision.Judgement{Left: "x", Right: "y", Generated: true, Score: models.Float(0.8)})
	require.NoError(t, err)
	assert.Equal(t, "y", stored.LeftUID)
	assert.Empty(t, f.listener.decided)

	stored, err = f.svc.EmitJudgement(ctx, "p", decision.Judgement{Left: "y", Right: "x", Judgement: models.Bool(true), DecidedBy: "alice"})
	require.NoError(t, err)
	assert.True(t, stored.Decided)
	require.Len(t, f.listener.decided, 1)
	assert.Equal(t, "alice", *f.listener.decided[0].DecidedBy)

	// a later candidate run never reopens the decision
	_, err = f.svc.EmitJudgement(ctx, "p", decision.Judgement{Left: "x", Right: "y", Generated: true, Score: models.Float(0.3)})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "p", "x", "y")
	require.NoError(t, err)
	assert.True(t, got.IsMatch())
	assert.InDelta(t, 0.3, *got.Score, 1e-9)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.EmitJudgements(ctx, "p", []decision.Judgement{
		{Left: "a", Right: "b", Generated: true, Score: models.Float(0.9)},
		{Left: "a", Right: "c", Generated: true, Score: models.Float(0.8)},
		{Left: "b", Right: "c", Generated: true, Score: models.Float(0.7)},
	}))
	_, err := f.svc.EmitJudgement(ctx, "p", decision.Judgement{Left: "a", Right: "c", Judgement: models.Bool(false)})
	require.NoError(t, err)

	deleted, err := f.svc.Cleanup(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := f.svc.Mappings(ctx, "p")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, models.NewPair("a", "c"), remaining[0].Pair())
	assert.True(t, remaining[0].IsDistinct())
}

func TestResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []decision.Judgement{
		{Left: "a", Right: "b", Judgement: models.Bool(true)},
		{Left: "a", Right: "c", Judgement: models.Bool(false)},
		{Left: "c", Right: "d", Generated: true, Score: models.Float(0.6)},
	} {
		_, err := f.svc.EmitJudgement(ctx, "p", in)
		require.NoError(t, err)
	}

	res, err := f.svc.Resolution(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, res.Clusters())

	judgement, decided := res.Decided("b", "c")
	assert.True(t, decided)
	assert.False(t, judgement)
	assert.False(t, res.IsDecided("c", "d"))
}

func TestReviewQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedEntities(t, "a", "b", "c", "d")

	require.NoError(t, f.svc.EmitJudgements(ctx, "p", []decision.Judgement{
		{Left: "a", Right: "b", Judgement: models.Bool(true)},
		{Left: "b", Right: "c", Judgement: models.Bool(true)},
		{Left: "a", Right: "c", Generated: true, Score: models.Float(0.95)},
		{Left: "a", Right: "d", Generated: true, Score: models.Float(0.7)},
		{Left: "d", Right: "e", Generated: true, Score: models.Float(0.9)},
		{Left: "c", Right: "d", Generated: true, Score: models.Float(0.6)},
	}))

	page, err := f.svc.ReviewQueue(ctx, "p", 10, 0)
	require.NoError(t, err)

	// (a,c) is settled by the cluster, e does not exist
	assert.Equal(t, 2, page.Pruned)
	require.Len(t, page.Mappings, 2)
	assert.Equal(t, models.NewPair("a", "d"), page.Mappings[0].Pair())
	assert.Equal(t, models.NewPair("c", "d"), page.Mappings[1].Pair())
	assert.Equal(t, 2, page.Total)

	page, err = f.svc.ReviewQueue(ctx, "p", 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Mappings, 1)
	assert.Equal(t, models.NewPair("c", "d"), page.Mappings[0].Pair())
}

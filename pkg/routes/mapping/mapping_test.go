package mapping_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/middleware"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolve"
	"github.com/Ramsey-B/fern/pkg/routes/mapping"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecisions struct {
	mappings []models.Mapping
	project  string
	limit    int
	offset   int
}

func (f *fakeDecisions) ReviewQueue(_ context.Context, project string, limit, offset int) (*decision.ReviewPage, error) {
	f.project, f.limit, f.offset = project, limit, offset
	return &decision.ReviewPage{Mappings: []models.Mapping{}, Total: 0}, nil
}

func (f *fakeDecisions) Get(_ context.Context, project, a, b string) (*models.Mapping, error) {
	pair := models.NewPair(a, b)
	for i := range f.mappings {
		if f.mappings[i].Pair() == pair {
			return &f.mappings[i], nil
		}
	}
	return nil, httperror.NewHTTPError(http.StatusNotFound, "mapping not found")
}

func (f *fakeDecisions) Resolution(context.Context, string) (*resolve.Resolution, error) {
	return resolve.Resolve(f.mappings), nil
}

type fakeJudge struct {
	project string
	got     decision.Judgement
}

func (f *fakeJudge) EmitJudgement(_ context.Context, project string, in decision.Judgement) (*models.Mapping, error) {
	f.project, f.got = project, in
	pair := models.NewPair(in.Left, in.Right)
	return &models.Mapping{
		Project:   project,
		LeftUID:   pair.Left,
		RightUID:  pair.Right,
		Judgement: in.Judgement,
		Decided:   in.Decided,
		DecidedBy: &in.DecidedBy,
	}, nil
}

func newServer(t *testing.T, d *fakeDecisions, j *fakeJudge) *echo.Echo {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	container, err := routes.NewContainer(routes.Deps{Decisions: d, Judge: j}, logger)
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Container(container.GetContainerID()))
	e.Use(middleware.Context("default"))
	e.Use(middleware.Auth(middleware.AuthConfig{}))
	mapping.Register(e.Group("/api/v1/mappings"))
	return e
}

func do(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJudgement(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantDecided bool
		wantJudge   *bool
	}{
		{
			name:        "match defaults to decided",
			body:        `{"left_uid":"a","right_uid":"b","judgement":true}`,
			wantStatus:  http.StatusOK,
			wantDecided: true,
			wantJudge:   models.Bool(true),
		},
		{
			name:        "null judgement is similar",
			body:        `{"left_uid":"a","right_uid":"b","judgement":null}`,
			wantStatus:  http.StatusOK,
			wantDecided: true,
		},
		{
			name:        "explicit undecided",
			body:        `{"left_uid":"a","right_uid":"b","judgement":false,"decided":false}`,
			wantStatus:  http.StatusOK,
			wantDecided: false,
			wantJudge:   models.Bool(false),
		},
		{
			name:       "missing right uid",
			body:       `{"left_uid":"a","judgement":true}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "self pair",
			body:       `{"left_uid":"a","right_uid":"a","judgement":true}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"left_uid":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &fakeJudge{}
			e := newServer(t, &fakeDecisions{}, judge)

			rec := do(e, http.MethodPost, "/api/v1/mappings/judgements", tt.body, map[string]string{
				middleware.HeaderProject: "sanctions",
				"X-Reviewer":             "alice",
			})

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, "sanctions", judge.project)
			assert.Equal(t, "alice", judge.got.DecidedBy)
			assert.Equal(t, tt.wantDecided, judge.got.Decided)
			assert.Equal(t, tt.wantJudge, judge.got.Judgement)

			var m models.Mapping
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
			assert.Equal(t, "b", m.LeftUID)
			assert.Equal(t, "a", m.RightUID)
		})
	}
}

func TestReviewQueue(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantStatus: http.StatusOK, wantLimit: 10},
		{name: "paged", query: "?limit=5&offset=20", wantStatus: http.StatusOK, wantLimit: 5, wantOffset: 20},
		{name: "bad limit", query: "?limit=ten", wantStatus: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDecisions{}
			rec := do(newServer(t, d, &fakeJudge{}), http.MethodGet, "/api/v1/mappings/review"+tt.query, "", nil)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, "default", d.project)
			assert.Equal(t, tt.wantLimit, d.limit)
			assert.Equal(t, tt.wantOffset, d.offset)
		})
	}
}

func TestGetMapping(t *testing.T) {
	d := &fakeDecisions{mappings: []models.Mapping{
		{LeftUID: "b", RightUID: "a", Judgement: models.Bool(true), Decided: true},
	}}
	e := newServer(t, d, &fakeJudge{})

	rec := do(e, http.MethodGet, "/api/v1/mappings?left=a&right=b", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/mappings?left=a&right=c", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/v1/mappings?left=a", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInconsistencies(t *testing.T) {
	d := &fakeDecisions{mappings: []models.Mapping{
		{LeftUID: "b", RightUID: "a", Judgement: models.Bool(true), Decided: true},
		{LeftUID: "c", RightUID: "b", Judgement: models.Bool(true), Decided: true},
		{LeftUID: "c", RightUID: "a", Judgement: models.Bool(false), Decided: true},
	}}

	rec := do(newServer(t, d, &fakeJudge{}), http.MethodGet, "/api/v1/mappings/inconsistencies", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var found []resolve.Inconsistency
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, models.NewPair("a", "c"), found[0].Pair)
	assert.Equal(t, "c", found[0].Canonical)
}

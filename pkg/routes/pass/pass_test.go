package pass_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/middleware"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/canonical"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/routes/pass"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	opts    matching.GenerateOptions
	project string
	origins []string
	busy    bool
}

func (f *fakeRunner) Generate(_ context.Context, opts matching.GenerateOptions) (*matching.GenerateResult, error) {
	f.opts = opts
	if f.busy {
		return nil, httperror.NewHTTPError(http.StatusConflict, "project is locked")
	}
	return &matching.GenerateResult{Candidates: []matching.Candidate{}}, nil
}

func (f *fakeRunner) Canonicalize(_ context.Context, project string) (*canonical.Report, error) {
	f.project = project
	return &canonical.Report{Project: project}, nil
}

func (f *fakeRunner) Cleanup(_ context.Context, project string) (int64, error) {
	f.project = project
	return 3, nil
}

func (f *fakeRunner) NameMerge(_ context.Context, project string, origins []string) (*matching.NameMergeResult, error) {
	f.project, f.origins = project, origins
	return &matching.NameMergeResult{}, nil
}

func newServer(t *testing.T, r *fakeRunner) *echo.Echo {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	container, err := routes.NewContainer(routes.Deps{
		Runner:   r,
		Generate: matching.DefaultGenerateOptions(""),
	}, logger)
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Container(container.GetContainerID()))
	e.Use(middleware.Context("default"))
	pass.Register(e.Group("/api/v1/passes"))
	return e
}

func post(e *echo.Echo, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(middleware.HeaderProject, "sanctions")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		busy        bool
		wantStatus  int
		wantMode    matching.Mode
		wantOrigins []string
		wantDiscard bool
	}{
		{name: "defaults", wantStatus: http.StatusOK, wantMode: matching.ModeExhaustive, wantDiscard: true},
		{
			name:        "overrides",
			body:        `{"origins":["ofac"],"mode":"index","discard_stale":false}`,
			wantStatus:  http.StatusOK,
			wantMode:    matching.ModeIndex,
			wantOrigins: []string{"ofac"},
		},
		{name: "unknown mode", body: `{"mode":"fuzzy"}`, wantStatus: http.StatusBadRequest},
		{name: "locked", busy: true, wantStatus: http.StatusConflict, wantMode: matching.ModeExhaustive, wantDiscard: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{busy: tt.busy}
			rec := post(newServer(t, r), "/api/v1/passes/generate", tt.body)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusBadRequest {
				return
			}
			assert.Equal(t, "sanctions", r.opts.Project)
			assert.Equal(t, tt.wantMode, r.opts.Mode)
			assert.Equal(t, tt.wantOrigins, r.opts.Origins)
			assert.Equal(t, tt.wantDiscard, r.opts.DiscardStale)
		})
	}
}

func TestOtherPasses(t *testing.T) {
	r := &fakeRunner{}
	e := newServer(t, r)

	rec := post(e, "/api/v1/passes/canonicalize", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sanctions", r.project)

	rec = post(e, "/api/v1/passes/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":3}`, rec.Body.String())

	rec = post(e, "/api/v1/passes/name-merge", `{"origins":["un"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"un"}, r.origins)
}

package composite_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/middleware"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/routes/composite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMerger struct {
	project string
	filter  merging.Filter
}

func (f *fakeMerger) Composites(_ context.Context, project string, filter merging.Filter) ([]models.Composite, error) {
	f.project, f.filter = project, filter
	return []models.Composite{{UID: "b", Name: "Acme Corp", Schema: models.SchemaCompany}}, nil
}

func (f *fakeMerger) Composite(_ context.Context, project, uid string) (*models.Composite, error) {
	f.project = project
	if uid != "b" {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("composite %s not found", uid))
	}
	return &models.Composite{UID: "b", Name: "Acme Corp", Schema: models.SchemaCompany}, nil
}

func (f *fakeMerger) Links(_ context.Context, project string, filter merging.Filter) ([]models.CompositeLink, error) {
	f.project, f.filter = project, filter
	return nil, nil
}

func newServer(t *testing.T, m *fakeMerger) *echo.Echo {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	deps := routes.Deps{}
	if m != nil {
		deps.Composites = m
	}
	container, err := routes.NewContainer(deps, logger)
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Container(container.GetContainerID()))
	e.Use(middleware.Context("default"))
	composite.Register(e.Group("/api/v1/composites"))
	return e
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListComposites(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantFilter merging.Filter
	}{
		{name: "no filter", wantStatus: http.StatusOK},
		{
			name:       "origins and tasked",
			query:      "?origin=ofac&origin=un&tasked=true",
			wantStatus: http.StatusOK,
			wantFilter: merging.Filter{Origins: []string{"ofac", "un"}, Tasked: true},
		},
		{name: "bad tasked", query: "?tasked=maybe", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMerger{}
			rec := get(newServer(t, m), "/api/v1/composites"+tt.query)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, "default", m.project)
			assert.Equal(t, tt.wantFilter, m.filter)

			var got []models.Composite
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.Len(t, got, 1)
			assert.Equal(t, "Acme Corp", got[0].Name)
		})
	}
}

func TestGetComposite(t *testing.T) {
	e := newServer(t, &fakeMerger{})

	assert.Equal(t, http.StatusOK, get(e, "/api/v1/composites/b").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/api/v1/composites/zzz").Code)
}

func TestListLinksIsNeverNull(t *testing.T) {
	rec := get(newServer(t, &fakeMerger{}), "/api/v1/composites/links")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestUnregisteredMergerIsUnavailable(t *testing.T) {
	rec := get(newServer(t, nil), "/api/v1/composites")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "service unavailable")
}

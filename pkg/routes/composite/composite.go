package composite

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	fctx "github.com/Ramsey-B/fern/internal/context"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/labstack/echo/v4"
)

// Merger builds composites on demand.
type Merger interface {
	Composites(ctx context.Context, project string, filter merging.Filter) ([]models.Composite, error)
	Composite(ctx context.Context, project, canonicalUID string) (*models.Composite, error)
	Links(ctx context.Context, project string, filter merging.Filter) ([]models.CompositeLink, error)
}

// Register registers composite routes
func Register(g *echo.Group) {
	g.GET("", ListComposites)
	g.GET("/links", ListLinks)
	g.GET("/:uid", GetComposite)
}

// ListComposites returns every composite of the project.
// Supports repeated ?origin= and ?tasked=true.
func ListComposites(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	ctx, merger, err := ectoinject.GetContext[Merger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	composites, err := merger.Composites(ctx, fctx.GetProject(ctx), filter)
	if err != nil {
		return err
	}
	if composites == nil {
		composites = []models.Composite{}
	}
	return c.JSON(http.StatusOK, composites)
}

// GetComposite returns one composite by canonical uid.
func GetComposite(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, merger, err := ectoinject.GetContext[Merger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	composite, err := merger.Composite(ctx, fctx.GetProject(ctx), c.Param("uid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, composite)
}

// ListLinks returns canonical links between the filtered composites.
func ListLinks(c echo.Context) error {
	ctx := c.Request().Context()

	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	ctx, merger, err := ectoinject.GetContext[Merger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	links, err := merger.Links(ctx, fctx.GetProject(ctx), filter)
	if err != nil {
		return err
	}
	if links == nil {
		links = []models.CompositeLink{}
	}
	return c.JSON(http.StatusOK, links)
}

func parseFilter(c echo.Context) (merging.Filter, error) {
	filter := merging.Filter{Origins: c.QueryParams()["origin"]}
	if raw := c.QueryParam("tasked"); raw != "" {
		tasked, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, httperror.NewHTTPError(http.StatusBadRequest, "tasked must be a boolean")
		}
		filter.Tasked = tasked
	}
	return filter, nil
}

package pass

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	fctx "github.com/Ramsey-B/fern/internal/context"
	"github.com/Ramsey-B/fern/pkg/canonical"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/labstack/echo/v4"
)

// Runner executes passes under the project lock.
type Runner interface {
	Generate(ctx context.Context, opts matching.GenerateOptions) (*matching.GenerateResult, error)
	Canonicalize(ctx context.Context, project string) (*canonical.Report, error)
	Cleanup(ctx context.Context, project string) (int64, error)
	NameMerge(ctx context.Context, project string, origins []string) (*matching.NameMergeResult, error)
}

// GenerateRequest overrides the configured generation options.
type GenerateRequest struct {
	Origins      []string `json:"origins"`
	Mode         string   `json:"mode"`
	DiscardStale *bool    `json:"discard_stale"`
}

// NameMergeRequest restricts a name merge to entities from origins.
type NameMergeRequest struct {
	Origins []string `json:"origins"`
}

// Register registers pass routes
func Register(g *echo.Group) {
	g.POST("/generate", Generate)
	g.POST("/canonicalize", Canonicalize)
	g.POST("/cleanup", Cleanup)
	g.POST("/name-merge", NameMerge)
}

// Generate runs a generation pass. The registered matching.GenerateOptions
// supply every option the request leaves unset; their Project is ignored.
func Generate(c echo.Context) error {
	ctx := c.Request().Context()

	var req GenerateRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}

	ctx, opts, err := ectoinject.GetContext[matching.GenerateOptions](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, runner, err := ectoinject.GetContext[Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	opts.Project = fctx.GetProject(ctx)
	if len(req.Origins) > 0 {
		opts.Origins = req.Origins
	}
	if req.Mode != "" {
		mode, err := matching.ParseMode(req.Mode)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		opts.Mode = mode
	}
	if req.DiscardStale != nil {
		opts.DiscardStale = *req.DiscardStale
	}

	result, err := runner.Generate(ctx, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func Canonicalize(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, runner, err := ectoinject.GetContext[Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	report, err := runner.Canonicalize(ctx, fctx.GetProject(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func Cleanup(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, runner, err := ectoinject.GetContext[Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	deleted, err := runner.Cleanup(ctx, fctx.GetProject(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": deleted})
}

func NameMerge(c echo.Context) error {
	ctx := c.Request().Context()

	var req NameMergeRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}

	ctx, runner, err := ectoinject.GetContext[Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := runner.NameMerge(ctx, fctx.GetProject(ctx), req.Origins)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// bindOptional binds a JSON body when one is sent.
func bindOptional(c echo.Context, dest any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := c.Bind(dest); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

package mapping

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	fctx "github.com/Ramsey-B/fern/internal/context"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolve"
	"github.com/labstack/echo/v4"
)

// Decisions is the read side of the decision store.
type Decisions interface {
	ReviewQueue(ctx context.Context, project string, limit, offset int) (*decision.ReviewPage, error)
	Get(ctx context.Context, project, a, b string) (*models.Mapping, error)
	Resolution(ctx context.Context, project string) (*resolve.Resolution, error)
}

// Judge records a judgement under the project lock.
type Judge interface {
	EmitJudgement(ctx context.Context, project string, in decision.Judgement) (*models.Mapping, error)
}

// JudgementRequest is a reviewer's verdict on a pair. Decided defaults to
// true; a null judgement marks the pair as similar but distinct.
type JudgementRequest struct {
	Left      string `json:"left_uid" validate:"required"`
	Right     string `json:"right_uid" validate:"required,nefield=Left"`
	Judgement *bool  `json:"judgement"`
	Decided   *bool  `json:"decided"`
}

// Register registers mapping routes
func Register(g *echo.Group) {
	g.GET("", GetMapping)
	g.GET("/review", ReviewQueue)
	g.GET("/inconsistencies", Inconsistencies)
	g.POST("/judgements", SubmitJudgement)
}

// GetMapping returns the stored mapping for ?left=&right= in either order.
func GetMapping(c echo.Context) error {
	ctx := c.Request().Context()

	left, right := c.QueryParam("left"), c.QueryParam("right")
	if left == "" || right == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "left and right query parameters are required")
	}

	ctx, decisions, err := ectoinject.GetContext[Decisions](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	mapping, err := decisions.Get(ctx, fctx.GetProject(ctx), left, right)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, mapping)
}

// ReviewQueue pages undecided candidates, best score first.
func ReviewQueue(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := intParam(c, "limit", 10)
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset", 0)
	if err != nil {
		return err
	}

	ctx, decisions, err := ectoinject.GetContext[Decisions](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	page, err := decisions.ReviewQueue(ctx, fctx.GetProject(ctx), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Inconsistencies lists explicit false judgements inside a cluster.
func Inconsistencies(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, decisions, err := ectoinject.GetContext[Decisions](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	res, err := decisions.Resolution(ctx, fctx.GetProject(ctx))
	if err != nil {
		return err
	}

	found := res.Inconsistencies()
	if found == nil {
		found = []resolve.Inconsistency{}
	}
	return c.JSON(http.StatusOK, found)
}

// SubmitJudgement records a reviewer judgement. The reviewer from the
// request context is stored as decided_by.
func SubmitJudgement(c echo.Context) error {
	ctx := c.Request().Context()
	project := fctx.GetProject(ctx)

	var req JudgementRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := ingest.Validate(&req); err != nil {
		return err
	}

	decided := true
	if req.Decided != nil {
		decided = *req.Decided
	}

	ctx, judge, err := ectoinject.GetContext[Judge](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	reviewer := fctx.GetReviewer(ctx)
	mapping, err := judge.EmitJudgement(ctx, project, decision.Judgement{
		Left:      req.Left,
		Right:     req.Right,
		Judgement: req.Judgement,
		Decided:   decided,
		DecidedBy: reviewer,
	})
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	logger.WithContext(ctx).WithFields(map[string]any{
		"left_uid":  mapping.LeftUID,
		"right_uid": mapping.RightUID,
		"judgement": judgementLabel(mapping.Judgement),
		"reviewer":  reviewer,
	}).Info("Recorded judgement")

	return c.JSON(http.StatusOK, mapping)
}

func intParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s must be a non-negative integer", name)
	}
	return v, nil
}

func judgementLabel(j *bool) string {
	switch {
	case j == nil:
		return "similar"
	case *j:
		return "match"
	default:
		return "distinct"
	}
}

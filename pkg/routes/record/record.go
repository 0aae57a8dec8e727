package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	fctx "github.com/Ramsey-B/fern/internal/context"
	"github.com/Ramsey-B/fern/pkg/ingest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/labstack/echo/v4"
)

// MaxBodyBytes bounds one ingestion request.
const MaxBodyBytes = 16 << 20

// Ingester stores validated records.
type Ingester interface {
	Raw(ctx context.Context, project string, raw []byte) error
	Batch(ctx context.Context, project string, envelopes []ingest.Envelope) error
}

// Register registers record routes
func Register(g *echo.Group) {
	g.POST("", Ingest)
}

// IngestResponse reports how many envelopes were stored.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// Ingest accepts one envelope or a JSON array of envelopes. An array is
// stored atomically: any invalid envelope rejects the whole request.
func Ingest(c echo.Context) error {
	ctx := c.Request().Context()
	project := fctx.GetProject(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxBodyBytes+1))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	if len(body) > MaxBodyBytes {
		return httperror.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "request body is empty")
	}

	ctx, ingester, err := ectoinject.GetContext[Ingester](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if trimmed[0] != '[' {
		if err := ingester.Raw(ctx, project, trimmed); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, IngestResponse{Accepted: 1})
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "request body must be an envelope or an array of envelopes")
	}

	envelopes := make([]ingest.Envelope, 0, len(raws))
	for i, raw := range raws {
		env, err := ingest.DecodeEnvelope(raw)
		if err != nil {
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				return ve.ToHTTPError().AddMetaValue("index", i)
			}
			return err
		}
		envelopes = append(envelopes, *env)
	}

	if err := ingester.Batch(ctx, project, envelopes); err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	logger.WithContext(ctx).WithFields(map[string]any{
		"project":  project,
		"accepted": len(envelopes),
	}).Debug("Ingested record batch")

	return c.JSON(http.StatusOK, IngestResponse{Accepted: len(envelopes)})
}

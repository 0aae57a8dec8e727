package link

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

const table = "links"

var columns = []string{
	"project", "origin", "source_uid", "target_uid", "source_canonical_uid", "target_canonical_uid",
	"schema", "data", "created_at", "updated_at",
}

var (
	sourceColumn = repositories.CanonicalColumn{Canonical: "source_canonical_uid", UID: "source_uid"}
	targetColumn = repositories.CanonicalColumn{Canonical: "target_canonical_uid", UID: "target_uid"}
)

// Repository handles link persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Upsert stores a link. New links point at their raw endpoints until the next canonicalize.
func (r *Repository) Upsert(ctx context.Context, link *models.Link) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	if link.SourceCanonicalUID == "" {
		link.SourceCanonicalUID = link.SourceUID
	}
	if link.TargetCanonicalUID == "" {
		link.TargetCanonicalUID = link.TargetUID
	}
	if link.Data.Data == nil {
		link.Data = database.NewJSONB(models.Attributes{})
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(link.Project, link.Origin, link.SourceUID, link.TargetUID, link.SourceCanonicalUID, link.TargetCanonicalUID,
		link.Schema, link.Data, link.CreatedAt, link.UpdatedAt)

	query, args := ib.Build()
	query += database.OnConflictUpdate([]string{"project", "origin", "source_uid", "target_uid"}, []string{"schema", "data", "updated_at"})

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_uid": link.SourceUID,
			"target_uid": link.TargetUID,
		}).Error("Failed to upsert link")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert link")
	}
	return nil
}

// List returns every link of a project, optionally restricted to origins.
func (r *Repository) List(ctx context.Context, project string, origins ...string) ([]models.Link, error) {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.List")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("project", project))
	if len(origins) > 0 {
		sb.Where(sb.In("origin", database.ToAny(origins)...))
	}
	sb.OrderBy("source_canonical_uid", "target_canonical_uid", "origin")

	query, args := sb.Build()
	var links []models.Link
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list links")
	}
	return links, nil
}

// Delete removes the links an origin attached to uid, on either end.
func (r *Repository) Delete(ctx context.Context, project, origin, uid string) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
		db.Or(
			db.Equal("source_uid", uid),
			db.Equal("target_uid", uid),
		),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("uid", uid).Error("Failed to delete links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete links")
	}
	return nil
}

// DeleteByOrigin removes every link of an origin.
func (r *Repository) DeleteByOrigin(ctx context.Context, project, origin string) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.DeleteByOrigin")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("origin", origin).Error("Failed to delete links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete links")
	}
	return nil
}

func (r *Repository) ResetCanonical(ctx context.Context, project string) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.ResetCanonical")
	defer span.End()

	if _, err := repositories.ResetCanonical(ctx, r.db, table, project, sourceColumn, targetColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reset link canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset link canonical ids")
	}
	return nil
}

// SetCanonical rewrites both endpoints of every link touching members.
func (r *Repository) SetCanonical(ctx context.Context, project, canonical string, members []string) error {
	ctx, span := tracing.StartSpan(ctx, "link.Repository.SetCanonical")
	defer span.End()

	for _, col := range []repositories.CanonicalColumn{sourceColumn, targetColumn} {
		if _, err := repositories.SetCanonical(ctx, r.db, table, project, canonical, members, col); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("column", col.Canonical).Error("Failed to set link canonical ids")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set link canonical ids")
		}
	}
	return nil
}

package alias

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

const table = "aliases"

var columns = []string{"project", "origin", "uid", "name", "canonical_uid"}

var canonicalColumn = repositories.CanonicalColumn{Canonical: "canonical_uid", UID: "uid"}

// Repository handles alias persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Upsert stores an alias; storing the same name twice is a no-op.
func (r *Repository) Upsert(ctx context.Context, alias *models.Alias) error {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.Upsert")
	defer span.End()

	if alias.CanonicalUID == "" {
		alias.CanonicalUID = alias.UID
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(alias.Project, alias.Origin, alias.UID, alias.Name, alias.CanonicalUID)

	query, args := ib.Build()
	query += database.OnConflictUpdate([]string{"project", "origin", "uid", "name"}, nil)

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("uid", alias.UID).Error("Failed to upsert alias")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert alias")
	}
	return nil
}

// List returns every alias of a project.
func (r *Repository) List(ctx context.Context, project string) ([]models.Alias, error) {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.List")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("project", project))
	sb.OrderBy("uid", "name")

	query, args := sb.Build()
	var aliases []models.Alias
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &aliases, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list aliases")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list aliases")
	}
	return aliases, nil
}

// Delete removes the aliases an origin recorded for uid.
func (r *Repository) Delete(ctx context.Context, project, origin, uid string) error {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
		db.Equal("uid", uid),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("uid", uid).Error("Failed to delete aliases")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete aliases")
	}
	return nil
}

// DeleteByOrigin removes every alias of an origin.
func (r *Repository) DeleteByOrigin(ctx context.Context, project, origin string) error {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.DeleteByOrigin")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("origin", origin).Error("Failed to delete aliases")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete aliases")
	}
	return nil
}

func (r *Repository) ResetCanonical(ctx context.Context, project string) error {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.ResetCanonical")
	defer span.End()

	if _, err := repositories.ResetCanonical(ctx, r.db, table, project, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reset alias canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset alias canonical ids")
	}
	return nil
}

func (r *Repository) SetCanonical(ctx context.Context, project, canonical string, members []string) error {
	ctx, span := tracing.StartSpan(ctx, "alias.Repository.SetCanonical")
	defer span.End()

	if _, err := repositories.SetCanonical(ctx, r.db, table, project, canonical, members, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set alias canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set alias canonical ids")
	}
	return nil
}

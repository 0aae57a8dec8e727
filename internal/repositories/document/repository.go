package document

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

const table = "documents"

var columns = []string{"project", "reference", "origin", "entity_uid", "canonical_uid", "url", "title", "publisher"}

var canonicalColumn = repositories.CanonicalColumn{Canonical: "canonical_uid", UID: "entity_uid"}

// Repository handles document persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Upsert stores a document keyed by its reference.
func (r *Repository) Upsert(ctx context.Context, doc *models.Document) error {
	ctx, span := tracing.StartSpan(ctx, "document.Repository.Upsert")
	defer span.End()

	if doc.CanonicalUID == "" {
		doc.CanonicalUID = doc.EntityUID
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(doc.Project, doc.Reference, doc.Origin, doc.EntityUID, doc.CanonicalUID, doc.URL, doc.Title, doc.Publisher)

	query, args := ib.Build()
	query += database.OnConflictUpdate([]string{"project", "reference"}, []string{"origin", "entity_uid", "url", "title", "publisher"})

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("reference", doc.Reference).Error("Failed to upsert document")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert document")
	}
	return nil
}

// List returns every document of a project.
func (r *Repository) List(ctx context.Context, project string) ([]models.Document, error) {
	ctx, span := tracing.StartSpan(ctx, "document.Repository.List")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("project", project))
	sb.OrderBy("reference")

	query, args := sb.Build()
	var docs []models.Document
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &docs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list documents")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list documents")
	}
	return docs, nil
}

// Delete removes the documents an origin attached to an entity.
func (r *Repository) Delete(ctx context.Context, project, origin, entityUID string) error {
	ctx, span := tracing.StartSpan(ctx, "document.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
		db.Equal("entity_uid", entityUID),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_uid", entityUID).Error("Failed to delete documents")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete documents")
	}
	return nil
}

// DeleteByOrigin removes every document of an origin.
func (r *Repository) DeleteByOrigin(ctx context.Context, project, origin string) error {
	ctx, span := tracing.StartSpan(ctx, "document.Repository.DeleteByOrigin")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("origin", origin).Error("Failed to delete documents")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete documents")
	}
	return nil
}

func (r *Repository) ResetCanonical(ctx context.Context, project string) error {
	ctx, span := tracing.StartSpan(ctx, "document.Repository.ResetCanonical")
	defer span.End()

	if _, err := repositories.ResetCanonical(ctx, r.db, table, project, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reset document canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset document canonical ids")
	}
	return nil
}

func (r *Repository) SetCanonical(ctx context.Context, project, canonical string, members []string) error {
	ctx, span := tracing.StartSpan(ctx, "document.Repository.SetCanonical")
	defer span.End()

	if _, err := repositories.SetCanonical(ctx, r.db, table, project, canonical, members, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set document canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set document canonical ids")
	}
	return nil
}

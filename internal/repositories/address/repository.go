package address

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

const table = "addresses"

var columns = []string{"project", "origin", "entity_uid", "canonical_uid", "address", "slug", "normalized", "latitude", "longitude"}

var canonicalColumn = repositories.CanonicalColumn{Canonical: "canonical_uid", UID: "entity_uid"}

// Repository handles address persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Upsert stores an address, refreshing its geocoding fields.
func (r *Repository) Upsert(ctx context.Context, address *models.Address) error {
	ctx, span := tracing.StartSpan(ctx, "address.Repository.Upsert")
	defer span.End()

	if address.CanonicalUID == "" {
		address.CanonicalUID = address.EntityUID
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(address.Project, address.Origin, address.EntityUID, address.CanonicalUID, address.Address,
		address.Slug, address.Normalized, address.Latitude, address.Longitude)

	query, args := ib.Build()
	query += database.OnConflictUpdate([]string{"project", "origin", "entity_uid", "address"},
		[]string{"slug", "normalized", "latitude", "longitude"})

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("entity_uid", address.EntityUID).Error("Failed to upsert address")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert address")
	}
	return nil
}

// List returns every address of a project.
func (r *Repository) List(ctx context.Context, project string) ([]models.Address, error) {
	ctx, span := tracing.StartSpan(ctx, "address.Repository.List")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("project", project))
	sb.OrderBy("entity_uid", "address")

	query, args := sb.Build()
	var addresses []models.Address
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &addresses, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list addresses")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list addresses")
	}
	return addresses, nil
}

// Delete removes the addresses an origin recorded for an entity.
func (r *Repository) Delete(ctx context.Context, project, origin, entityUID string) error {
	ctx, span := tracing.StartSpan(ctx, "address.Repository.Delete")
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
		r.logger.WithContext(ctx).WithError(err).WithField("entity_uid", entityUID).Error("Failed to delete addresses")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete addresses")
	}
	return nil
}

// DeleteByOrigin removes every address of an origin.
func (r *Repository) DeleteByOrigin(ctx context.Context, project, origin string) error {
	ctx, span := tracing.StartSpan(ctx, "address.Repository.DeleteByOrigin")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("origin", origin).Error("Failed to delete addresses")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete addresses")
	}
	return nil
}

func (r *Repository) ResetCanonical(ctx context.Context, project string) error {
	ctx, span := tracing.StartSpan(ctx, "address.Repository.ResetCanonical")
	defer span.End()

	if _, err := repositories.ResetCanonical(ctx, r.db, table, project, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reset address canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset address canonical ids")
	}
	return nil
}

func (r *Repository) SetCanonical(ctx context.Context, project, canonical string, members []string) error {
	ctx, span := tracing.StartSpan(ctx, "address.Repository.SetCanonical")
	defer span.End()

	if _, err := repositories.SetCanonical(ctx, r.db, table, project, canonical, members, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set address canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set address canonical ids")
	}
	return nil
}

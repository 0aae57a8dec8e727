package entity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

const table = "entities"

var columns = []string{
	"project", "uid", "query_uid", "match_uid", "origin", "canonical_uid", "schema", "name", "country",
	"registration_number", "external_id", "tasked", "weight", "active", "data", "created_at", "updated_at",
}

// canonical_uid and created_at survive a re-ingest.
var upsertColumns = []string{
	"origin", "schema", "name", "country", "registration_number", "external_id", "tasked", "weight", "active", "data", "updated_at",
}

var canonicalColumn = repositories.CanonicalColumn{Canonical: "canonical_uid", UID: "uid"}

// Repository handles entity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or refreshes an entity record. A new record is its own canonical entity.
func (r *Repository) Upsert(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	if entity.CanonicalUID == "" {
		entity.CanonicalUID = entity.UID
	}
	if entity.Data.Data == nil {
		entity.Data = database.NewJSONB(models.Attributes{})
	}

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(entity.Project, entity.UID, entity.QueryUID, entity.MatchUID, entity.Origin, entity.CanonicalUID,
		string(entity.Schema), entity.Name, entity.Country, entity.RegistrationNumber, entity.ExternalID,
		entity.Tasked, entity.Weight, entity.Active, entity.Data, entity.CreatedAt, entity.UpdatedAt)

	query, args := ib.Build()
	query += database.OnConflictUpdate([]string{"project", "uid", "query_uid", "match_uid"}, upsertColumns)

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("uid", entity.UID).Error("Failed to upsert entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert entity")
	}

	return entity, nil
}

// ListByUID returns every record carrying uid, across result contexts.
func (r *Repository) ListByUID(ctx context.Context, project, uid string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListByUID")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("uid", uid),
	)
	sb.OrderBy("query_uid", "match_uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// Get returns the first record carrying uid.
func (r *Repository) Get(ctx context.Context, project, uid string) (*models.Entity, error) {
	entities, err := r.ListByUID(ctx, project, uid)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("entity %s not found", uid))
	}
	return &entities[0], nil
}

// ListActive returns the active records of a project, optionally restricted to origins.
func (r *Repository) ListActive(ctx context.Context, project string, origins ...string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListActive")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("active", true),
	)
	if len(origins) > 0 {
		sb.Where(sb.In("origin", database.ToAny(origins)...))
	}
	sb.OrderBy("canonical_uid", "uid", "query_uid", "match_uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// ListByCanonical returns the active records of one canonical entity.
func (r *Repository) ListByCanonical(ctx context.Context, project, canonicalUID string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListByCanonical")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("canonical_uid", canonicalUID),
		sb.Equal("active", true),
	)
	sb.OrderBy("uid", "query_uid", "match_uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// KnownUIDs returns the subset of uids that have any record, active or not.
// Pending result records count.
func (r *Repository) KnownUIDs(ctx context.Context, project string, uids []string) (map[string]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.KnownUIDs")
	defer span.End()

	existing := make(map[string]bool, len(uids))
	for _, chunk := range database.Chunk(uids, database.MaxInListSize) {
		sb := r.db.Flavor().NewSelectBuilder()
		sb.Select("DISTINCT uid")
		sb.From(table)
		sb.Where(
			sb.Equal("project", project),
			sb.In("uid", database.ToAny(chunk)...),
		)

		query, args := sb.Build()
		var found []string
		if err := database.Conn(ctx, r.db).SelectContext(ctx, &found, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to check entity uids")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check entity uids")
		}
		for _, uid := range found {
			existing[uid] = true
		}
	}
	return existing, nil
}

// SetResultActive flips the active flag of the records emitted for a
// query/match pair, in either order.
func (r *Repository) SetResultActive(ctx context.Context, project, queryUID, matchUID string, active bool) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SetResultActive")
	defer span.End()

	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("active", active),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("project", project),
		ub.Or(
			ub.And(ub.Equal("query_uid", queryUID), ub.Equal("match_uid", matchUID)),
			ub.And(ub.Equal("query_uid", matchUID), ub.Equal("match_uid", queryUID)),
		),
	)

	query, args := ub.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update result entities")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update result entities")
	}
	return result.RowsAffected()
}

// ListResult returns the records emitted for a query/match pair, in either order.
func (r *Repository) ListResult(ctx context.Context, project, queryUID, matchUID string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListResult")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Or(
			sb.And(sb.Equal("query_uid", queryUID), sb.Equal("match_uid", matchUID)),
			sb.And(sb.Equal("query_uid", matchUID), sb.Equal("match_uid", queryUID)),
		),
	)
	sb.OrderBy("uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// Delete removes one record.
func (r *Repository) Delete(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", entity.Project),
		db.Equal("uid", entity.UID),
		db.Equal("query_uid", entity.QueryUID),
		db.Equal("match_uid", entity.MatchUID),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("uid", entity.UID).Error("Failed to delete entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity")
	}
	return nil
}

// DeleteByOrigin removes the records of an origin. A non-empty query/match
// pair restricts the delete to that result context.
func (r *Repository) DeleteByOrigin(ctx context.Context, project, origin, queryUID, matchUID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.DeleteByOrigin")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("origin", origin),
	)
	if queryUID != "" || matchUID != "" {
		db.Where(
			db.Equal("query_uid", queryUID),
			db.Equal("match_uid", matchUID),
		)
	}

	query, args := db.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("origin", origin).Error("Failed to delete entities")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entities")
	}
	return result.RowsAffected()
}

// ResetCanonical makes every record of the project its own canonical entity.
func (r *Repository) ResetCanonical(ctx context.Context, project string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ResetCanonical")
	defer span.End()

	if _, err := repositories.ResetCanonical(ctx, r.db, table, project, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reset entity canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reset entity canonical ids")
	}
	return nil
}

// SetCanonical points every record of members at canonical.
func (r *Repository) SetCanonical(ctx context.Context, project, canonical string, members []string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SetCanonical")
	defer span.End()

	if _, err := repositories.SetCanonical(ctx, r.db, table, project, canonical, members, canonicalColumn); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("canonical_uid", canonical).Error("Failed to set entity canonical ids")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set entity canonical ids")
	}
	return nil
}

func (r *Repository) list(ctx context.Context, query string, args []any) ([]models.Entity, error) {
	var entities []models.Entity
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}
	return entities, nil
}

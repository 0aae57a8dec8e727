package mapping

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

const table = "mappings"

var columns = []string{
	"project", "left_uid", "right_uid", "judgement", "decided", "generated", "score", "decided_by", "created_at", "updated_at",
}

var upsertColumns = []string{"judgement", "decided", "generated", "score", "decided_by", "updated_at"}

// Repository handles mapping (judgement) persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB exposes the underlying database handle for transactional operations.
func (r *Repository) DB() database.DB {
	return r.db
}

// Find returns the mapping of a pair, or nil when the pair has never been judged.
func (r *Repository) Find(ctx context.Context, project string, pair models.Pair) (*models.Mapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.Find")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("left_uid", pair.Left),
		sb.Equal("right_uid", pair.Right),
	)

	query, args := sb.Build()
	var mapping models.Mapping
	if err := database.Conn(ctx, r.db).GetContext(ctx, &mapping, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get mapping")
	}
	return &mapping, nil
}

// Get returns the mapping of a pair or a 404.
func (r *Repository) Get(ctx context.Context, project string, pair models.Pair) (*models.Mapping, error) {
	mapping, err := r.Find(ctx, project, pair)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("mapping %s <-> %s not found", pair.Left, pair.Right))
	}
	return mapping, nil
}

// Upsert writes the full state of a mapping.
func (r *Repository) Upsert(ctx context.Context, mapping *models.Mapping) error {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.Upsert")
	defer span.End()

	if mapping.LeftUID <= mapping.RightUID {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "mapping key %s <-> %s is not ordered", mapping.LeftUID, mapping.RightUID)
	}

	now := time.Now().UTC()
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	ib.Values(mapping.Project, mapping.LeftUID, mapping.RightUID, mapping.Judgement, mapping.Decided, mapping.Generated,
		mapping.Score, mapping.DecidedBy, mapping.CreatedAt, mapping.UpdatedAt)

	query, args := ib.Build()
	query += database.OnConflictUpdate([]string{"project", "left_uid", "right_uid"}, upsertColumns)

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"left_uid":  mapping.LeftUID,
			"right_uid": mapping.RightUID,
		}).Error("Failed to upsert mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert mapping")
	}
	return nil
}

// List returns every mapping of a project.
func (r *Repository) List(ctx context.Context, project string) ([]models.Mapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.List")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("project", project))
	sb.OrderBy("left_uid", "right_uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// ListJudged returns the mappings carrying a true or false judgement.
func (r *Repository) ListJudged(ctx context.Context, project string) ([]models.Mapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.ListJudged")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.IsNotNull("judgement"),
	)
	sb.OrderBy("left_uid", "right_uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// ListSimilar returns decided mappings without a judgement.
func (r *Repository) ListSimilar(ctx context.Context, project string) ([]models.Mapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.ListSimilar")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("decided", true),
		sb.IsNull("judgement"),
	)
	sb.OrderBy("left_uid", "right_uid")

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// ListUndecided pages through undecided mappings, best score first.
func (r *Repository) ListUndecided(ctx context.Context, project string, limit, offset int) ([]models.Mapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.ListUndecided")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("decided", false),
	)
	// COALESCE keeps NULL scores last on both backends.
	sb.OrderBy("COALESCE(score, 0) DESC", "left_uid ASC", "right_uid ASC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	return r.list(ctx, query, args)
}

// CountUndecided returns the size of the review queue before pruning.
func (r *Repository) CountUndecided(ctx context.Context, project string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.CountUndecided")
	defer span.End()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(table)
	sb.Where(
		sb.Equal("project", project),
		sb.Equal("decided", false),
	)

	query, args := sb.Build()
	var count int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count undecided mappings")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count undecided mappings")
	}
	return count, nil
}

// DeleteUndecidedGenerated removes machine-proposed candidates nobody decided on.
func (r *Repository) DeleteUndecidedGenerated(ctx context.Context, project string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.DeleteUndecidedGenerated")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("decided", false),
		db.Equal("generated", true),
	)

	query, args := db.Build()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete undecided mappings")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete undecided mappings")
	}
	return result.RowsAffected()
}

// Delete removes the mapping of a pair.
func (r *Repository) Delete(ctx context.Context, project string, pair models.Pair) error {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.Delete")
	defer span.End()

	db := r.db.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	db.Where(
		db.Equal("project", project),
		db.Equal("left_uid", pair.Left),
		db.Equal("right_uid", pair.Right),
	)

	query, args := db.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete mapping")
	}
	return nil
}

func (r *Repository) list(ctx context.Context, query string, args []any) ([]models.Mapping, error) {
	var mappings []models.Mapping
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list mappings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list mappings")
	}
	return mappings, nil
}

// Package repositories holds helpers shared by the table repositories.
package repositories

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/internal/database"
)

// CanonicalColumn pairs a canonical id column with the uid column it derives from.
type CanonicalColumn struct {
	Canonical string
	UID       string
}

// ResetCanonical points every canonical column of table back at its own uid.
func ResetCanonical(ctx context.Context, db database.DB, table, project string, cols ...CanonicalColumn) (int64, error) {
	ub := db.Flavor().NewUpdateBuilder()
	ub.Update(table)
	for _, col := range cols {
		ub.SetMore(fmt.Sprintf("%s = %s", col.Canonical, col.UID))
	}
	ub.Where(ub.Equal("project", project))

	query, args := ub.Build()
	result, err := database.Conn(ctx, db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetCanonical assigns canonical to every row whose uid column is one of members.
// Members are written in chunks to stay under driver parameter limits.
func SetCanonical(ctx context.Context, db database.DB, table, project, canonical string, members []string, col CanonicalColumn) (int64, error) {
	var total int64
	for _, chunk := range database.Chunk(members, database.MaxInListSize) {
		ub := db.Flavor().NewUpdateBuilder()
		ub.Update(table)
		ub.Set(ub.Assign(col.Canonical, canonical))
		ub.Where(
			ub.Equal("project", project),
			ub.In(col.UID, database.ToAny(chunk)...),
		)

		query, args := ub.Build()
		result, err := database.Conn(ctx, db).ExecContext(ctx, query, args...)
		if err != nil {
			return total, err
		}
		n, _ := result.RowsAffected()
		total += n
	}
	return total, nil
}

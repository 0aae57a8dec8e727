package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// MaxInListSize bounds the number of bound parameters put in a single IN list.
const MaxInListSize = 500

func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

// OnConflictUpdate renders an upsert clause understood by both PostgreSQL and
// SQLite. With no update columns the conflicting row is left untouched.
func OnConflictUpdate(conflict []string, update []string) string {
	if len(update) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(conflict, ", "))
	}

	sets := make([]string, len(update))
	for i, col := range update {
		sets[i] = fmt.Sprintf("%s = %s", col, Excluded(col))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", "))
}

// ToAny converts a string slice for use with sqlbuilder In clauses.
func ToAny(values []string) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}

// Chunk splits values into slices of at most size elements.
func Chunk(values []string, size int) [][]string {
	if size <= 0 {
		size = MaxInListSize
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// IsNoRows reports the sql "no rows" condition.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

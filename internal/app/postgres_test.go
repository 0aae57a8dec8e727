//go:build integration

package app_test

import (
	"testing"

	"github.com/Ramsey-B/fern/internal/database/databasetest"
)

func TestReviewWorkflowPostgres(t *testing.T) {
	a, e := newServerOn(t, databasetest.NewPostgres(t))
	reviewWorkflow(t, a, e)
}

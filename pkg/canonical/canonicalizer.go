// Package canonical propagates cluster identity onto every stored record.
package canonical

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/database"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/resolve"
)

// Table is a store whose rows carry canonical ids derived from entity uids.
type Table interface {
	ResetCanonical(ctx context.Context, project string) error
	SetCanonical(ctx context.Context, project, canonical string, members []string) error
}

// Resolver supplies a fresh resolution of the project's judgements.
type Resolver interface {
	Resolution(ctx context.Context, project string) (*resolve.Resolution, error)
}

// Report summarizes a canonicalize pass.
type Report struct {
	Project         string                  `json:"project"`
	Clusters        int                     `json:"clusters"`
	Members         int                     `json:"members"`
	Inconsistencies []resolve.Inconsistency `json:"inconsistencies"`
	Duration        time.Duration           `json:"duration"`
}

// Canonicalizer rewrites canonical ids of every registered table.
type Canonicalizer struct {
	db       database.DB
	resolver Resolver
	tables   []Table
	logger   ectologger.Logger
}

// NewCanonicalizer builds a canonicalizer over tables, typically entities,
// links, aliases, addresses and documents.
func NewCanonicalizer(db database.DB, resolver Resolver, logger ectologger.Logger, tables ...Table) *Canonicalizer {
	return &Canonicalizer{
		db:       db,
		resolver: resolver,
		tables:   tables,
		logger:   logger,
	}
}

// Canonicalize resets every canonical id to its own uid, then points every
// member of a multi-member cluster at the cluster's greatest uid. It runs in
// one transaction and is idempotent.
func (c *Canonicalizer) Canonicalize(ctx context.Context, project string) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "canonical.Canonicalizer.Canonicalize")
	defer span.End()

	start := time.Now()
	log := c.logger.WithContext(ctx).WithField("project", project)

	report := &Report{Project: project}
	err := database.WithTx(ctx, c.db, func(ctx context.Context) error {
		// Judgements are read in the same transaction the canonical ids are written in.
		res, err := c.resolver.Resolution(ctx, project)
		if err != nil {
			return err
		}
		clusters := res.Clusters()
		report.Clusters = len(clusters)
		report.Inconsistencies = res.Inconsistencies()

		for _, table := range c.tables {
			if err := table.ResetCanonical(ctx, project); err != nil {
				return err
			}
		}

		for _, members := range clusters {
			canonical := res.Canonical(members[0])
			report.Members += len(members)
			for _, table := range c.tables {
				if err := table.SetCanonical(ctx, project, canonical, members); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Canonicalize failed, changes rolled back")
		return nil, err
	}

	report.Duration = time.Since(start)
	metrics.Clusters.WithLabelValues(project).Set(float64(report.Clusters))
	metrics.CanonicalizeDuration.WithLabelValues(project).Observe(report.Duration.Seconds())

	log.WithFields(map[string]any{
		"clusters":        report.Clusters,
		"members":         report.Members,
		"inconsistencies": len(report.Inconsistencies),
	}).Info("Canonicalized project")
	return report, nil
}

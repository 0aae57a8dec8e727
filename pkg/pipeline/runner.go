// Package pipeline runs the writer passes of a project under its phase lock.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/lock"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/canonical"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Phase names used for lock metrics and logs.
const (
	PhaseGenerate     = "generate"
	PhaseCanonicalize = "canonicalize"
	PhaseCleanup      = "cleanup"
	PhaseNameMerge    = "name-merge"
	PhaseJudge        = "judge"
)

type Generator interface {
	Generate(ctx context.Context, opts matching.GenerateOptions) (*matching.GenerateResult, error)
	NameMerge(ctx context.Context, project string, origins []string) (*matching.NameMergeResult, error)
}

type Canonicalizer interface {
	Canonicalize(ctx context.Context, project string) (*canonical.Report, error)
}

type Decisions interface {
	Cleanup(ctx context.Context, project string) (int64, error)
	EmitJudgement(ctx context.Context, project string, in decision.Judgement) (*models.Mapping, error)
}

// CanonicalizeHook runs after a successful canonicalize, still under the lock.
type CanonicalizeHook interface {
	AfterCanonicalize(ctx context.Context, project string, report *canonical.Report) error
}

// Options controls lock behaviour.
type Options struct {
	// LockTTL is how long a lock survives without being extended.
	LockTTL time.Duration
	// LockWait is how long a pass waits for a busy lock.
	LockWait time.Duration
}

// Runner serializes the writers of a project. Every pass takes the same
// per-project lock, so passes and judgement submissions never interleave.
type Runner struct {
	locker        lock.Locker
	generator     Generator
	canonicalizer Canonicalizer
	decisions     Decisions
	hooks         []CanonicalizeHook
	opts          Options
	logger        ectologger.Logger
}

func NewRunner(locker lock.Locker, generator Generator, canonicalizer Canonicalizer, decisions Decisions, opts Options, logger ectologger.Logger) *Runner {
	if opts.LockTTL <= 0 {
		opts.LockTTL = lock.DefaultTTL
	}
	return &Runner{
		locker:        locker,
		generator:     generator,
		canonicalizer: canonicalizer,
		decisions:     decisions,
		opts:          opts,
		logger:        logger,
	}
}

// AddHook registers a hook run after every canonicalize.
func (r *Runner) AddHook(h CanonicalizeHook) {
	r.hooks = append(r.hooks, h)
}

func (r *Runner) Generate(ctx context.Context, opts matching.GenerateOptions) (*matching.GenerateResult, error) {
	var result *matching.GenerateResult
	err := r.run(ctx, PhaseGenerate, opts.Project, func(ctx context.Context) error {
		var err error
		result, err = r.generator.Generate(ctx, opts)
		return err
	})
	return result, err
}

func (r *Runner) Canonicalize(ctx context.Context, project string) (*canonical.Report, error) {
	var report *canonical.Report
	err := r.run(ctx, PhaseCanonicalize, project, func(ctx context.Context) error {
		var err error
		report, err = r.canonicalizer.Canonicalize(ctx, project)
		if err != nil {
			return err
		}
		for _, h := range r.hooks {
			if err := h.AfterCanonicalize(ctx, project, report); err != nil {
				return err
			}
		}
		return nil
	})
	return report, err
}

func (r *Runner) Cleanup(ctx context.Context, project string) (int64, error) {
	var deleted int64
	err := r.run(ctx, PhaseCleanup, project, func(ctx context.Context) error {
		var err error
		deleted, err = r.decisions.Cleanup(ctx, project)
		return err
	})
	return deleted, err
}

func (r *Runner) NameMerge(ctx context.Context, project string, origins []string) (*matching.NameMergeResult, error) {
	var result *matching.NameMergeResult
	err := r.run(ctx, PhaseNameMerge, project, func(ctx context.Context) error {
		var err error
		result, err = r.generator.NameMerge(ctx, project, origins)
		return err
	})
	return result, err
}

// EmitJudgement submits one judgement under the project lock. Reviewer
// submissions and ingested judgement records both come through here.
func (r *Runner) EmitJudgement(ctx context.Context, project string, in decision.Judgement) (*models.Mapping, error) {
	var mapping *models.Mapping
	err := r.run(ctx, PhaseJudge, project, func(ctx context.Context) error {
		var err error
		mapping, err = r.decisions.EmitJudgement(ctx, project, in)
		return err
	})
	return mapping, err
}

// Integrate runs generate then canonicalize.
func (r *Runner) Integrate(ctx context.Context, opts matching.GenerateOptions) (*canonical.Report, error) {
	if _, err := r.Generate(ctx, opts); err != nil {
		return nil, err
	}
	return r.Canonicalize(ctx, opts.Project)
}

func (r *Runner) run(ctx context.Context, phase, project string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Runner."+phase, tracing.Project(project), tracing.AttrPhase.String(phase))
	defer span.End()

	if project == "" {
		return models.NewValidationError("project", "project is required")
	}

	start := time.Now()
	err := lock.WithLock(ctx, r.locker, LockKey(project), r.opts.LockTTL, r.opts.LockWait, func(ctx context.Context) error {
		metrics.LockAcquisitionsTotal.WithLabelValues(phase, "acquired").Inc()
		return fn(ctx)
	})

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"phase":    phase,
		"project":  project,
		"duration": time.Since(start).String(),
	})
	if errors.Is(err, lock.ErrLockNotAcquired) {
		metrics.LockAcquisitionsTotal.WithLabelValues(phase, "busy").Inc()
		log.Warn("Project is locked by another pass")
		tracing.Fail(span, err)
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("project %s is busy, retry later", project))
	}
	if err != nil {
		log.WithError(err).Error("Pass failed")
		tracing.Fail(span, err)
		return err
	}
	log.Info("Pass completed")
	return nil
}

// LockKey is the lock key shared by every writer of a project.
func LockKey(project string) string {
	return "project:" + project
}

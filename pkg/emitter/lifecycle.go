// Package emitter writes records on behalf of an origin and runs the
// lifecycle of enrichment results.
package emitter

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ResultState is the lifecycle state of the records of one result context.
type ResultState int

const (
	// Pending results wait for a decision and stay inactive.
	Pending ResultState = iota
	// Active results take part in matching and merging.
	Active
	// Rejected results are deleted and further emissions are ignored.
	Rejected
)

func (s ResultState) String() string {
	switch s {
	case Active:
		return "active"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

// StateFor derives the result state from the mapping governing a result
// context. A missing or undecided mapping is Pending.
func StateFor(m *models.Mapping) ResultState {
	switch {
	case m == nil || !m.Decided:
		return Pending
	case m.IsDistinct():
		return Rejected
	}
	return Active
}

// ResultStore reads and removes result entities.
type ResultStore interface {
	SetResultActive(ctx context.Context, project, queryUID, matchUID string, active bool) (int64, error)
	ListResult(ctx context.Context, project, queryUID, matchUID string) ([]models.Entity, error)
	Delete(ctx context.Context, entity *models.Entity) error
}

// AttachmentStore removes the records an origin attached to an entity uid:
// aliases, addresses, links and documents.
type AttachmentStore interface {
	Delete(ctx context.Context, project, origin, uid string) error
}

// MappingReader looks up the mapping of a pair.
type MappingReader interface {
	Get(ctx context.Context, project, a, b string) (*models.Mapping, error)
}

// Lifecycle moves result records between states when their governing
// mapping is decided.
type Lifecycle struct {
	results     ResultStore
	mappings    MappingReader
	attachments []AttachmentStore
	logger      ectologger.Logger
}

// NewLifecycle builds a lifecycle. Rejection clears every attachment store
// for each removed result record.
func NewLifecycle(results ResultStore, mappings MappingReader, logger ectologger.Logger, attachments ...AttachmentStore) *Lifecycle {
	return &Lifecycle{
		results:     results,
		mappings:    mappings,
		attachments: attachments,
		logger:      logger,
	}
}

// State returns the current state of a result context.
func (l *Lifecycle) State(ctx context.Context, project, queryUID, matchUID string) (ResultState, error) {
	m, err := l.mappings.Get(ctx, project, queryUID, matchUID)
	if err != nil {
		return Pending, err
	}
	return StateFor(m), nil
}

// ResultActive reports whether new records of a result context are written
// active.
func (l *Lifecycle) ResultActive(ctx context.Context, project, queryUID, matchUID string) (bool, error) {
	state, err := l.State(ctx, project, queryUID, matchUID)
	return state == Active, err
}

// JudgementDecided activates or removes the results governed by mapping.
func (l *Lifecycle) JudgementDecided(ctx context.Context, project string, mapping *models.Mapping) error {
	ctx, span := tracing.StartSpan(ctx, "emitter.Lifecycle.JudgementDecided")
	defer span.End()

	switch StateFor(mapping) {
	case Active:
		n, err := l.results.SetResultActive(ctx, project, mapping.LeftUID, mapping.RightUID, true)
		if err != nil {
			return err
		}
		if n > 0 {
			l.logger.WithContext(ctx).WithFields(map[string]any{
				"project":   project,
				"left_uid":  mapping.LeftUID,
				"right_uid": mapping.RightUID,
				"records":   n,
			}).Info("Activated result records")
		}
	case Rejected:
		return l.reject(ctx, project, mapping)
	}
	return nil
}

func (l *Lifecycle) reject(ctx context.Context, project string, mapping *models.Mapping) error {
	records, err := l.results.ListResult(ctx, project, mapping.LeftUID, mapping.RightUID)
	if err != nil {
		return err
	}

	for i := range records {
		e := &records[i]
		for _, store := range l.attachments {
			if err := store.Delete(ctx, project, e.Origin, e.UID); err != nil {
				return err
			}
		}
		if err := l.results.Delete(ctx, e); err != nil {
			return err
		}
	}

	if len(records) > 0 {
		l.logger.WithContext(ctx).WithFields(map[string]any{
			"project":   project,
			"left_uid":  mapping.LeftUID,
			"right_uid": mapping.RightUID,
			"records":   len(records),
		}).Info("Removed rejected result records")
	}
	return nil
}

package decision

import (
	"context"

	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ReviewPage is one page of the review queue.
type ReviewPage struct {
	Mappings []models.Mapping `json:"mappings"`
	Pruned   int              `json:"pruned"`
	Total    int              `json:"total"`
}

// ReviewQueue returns up to limit undecided mappings, best score first.
// Entries already settled by transitive judgements, or whose entities are
// gone, are deleted while paging.
func (s *Service) ReviewQueue(ctx context.Context, project string, limit, offset int) (*ReviewPage, error) {
	ctx, span := tracing.StartSpan(ctx, "decision.Service.ReviewQueue")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.Resolution(ctx, project)
	if err != nil {
		return nil, err
	}

	page := &ReviewPage{Mappings: []models.Mapping{}}
	cursor := offset
	for len(page.Mappings) < limit {
		batch, err := s.mappings.ListUndecided(ctx, project, limit, cursor)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		existing, err := s.existing(ctx, project, batch)
		if err != nil {
			return nil, err
		}

		for i := range batch {
			m := batch[i]
			if res.IsDecided(m.LeftUID, m.RightUID) || !existing[m.LeftUID] || !existing[m.RightUID] {
				if err := s.mappings.Delete(ctx, project, m.Pair()); err != nil {
					return nil, err
				}
				page.Pruned++
				continue
			}
			if len(page.Mappings) < limit {
				page.Mappings = append(page.Mappings, m)
			}
			cursor++
		}
		if len(batch) < limit {
			break
		}
	}

	total, err := s.mappings.CountUndecided(ctx, project)
	if err != nil {
		return nil, err
	}
	page.Total = total

	if page.Pruned > 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"project": project,
			"pruned":  page.Pruned,
		}).Info("Pruned redundant review candidates")
	}
	return page, nil
}

func (s *Service) existing(ctx context.Context, project string, batch []models.Mapping) (map[string]bool, error) {
	if s.entities == nil {
		all := make(map[string]bool, len(batch)*2)
		for _, m := range batch {
			all[m.LeftUID] = true
			all[m.RightUID] = true
		}
		return all, nil
	}

	uids := make([]string, 0, len(batch)*2)
	for _, m := range batch {
		uids = append(uids, m.LeftUID, m.RightUID)
	}
	return s.entities.KnownUIDs(ctx, project, uids)
}

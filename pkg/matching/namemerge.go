package matching

import (
	"context"
	"sort"

	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/decision"
	"github.com/Ramsey-B/fern/pkg/models"
)

// NameMergeDecider is recorded as the author of name-merge judgements.
const NameMergeDecider = "name-merge"

// NameMergeResult summarizes a name-merge run.
type NameMergeResult struct {
	Groups     int `json:"groups"`
	Judgements int `json:"judgements"`
	Skipped    int `json:"skipped"`
}

// NameMerge confirms as matches the entities of one schema whose primary
// names share a fingerprint. Assets are never merged. Each group is joined
// to its greatest uid; pairs already decided, including those marked
// similar, are left alone.
func (g *Generator) NameMerge(ctx context.Context, project string, origins []string) (*NameMergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Generator.NameMerge")
	defer span.End()

	entities, err := g.entities.ListActive(ctx, project, origins...)
	if err != nil {
		return nil, err
	}
	res, err := g.decisions.Resolution(ctx, project)
	if err != nil {
		return nil, err
	}
	similar, err := g.decisions.SimilarPairs(ctx, project)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		schema      models.Schema
		fingerprint string
	}
	groups := make(map[groupKey]map[string]bool)
	fp := g.scorer.Profile().Fingerprinter()
	for i := range entities {
		e := &entities[i]
		if e.Schema == models.SchemaAsset {
			continue
		}
		key, ok := fp.Generate(e.Name)
		if !ok {
			continue
		}
		k := groupKey{schema: e.Schema, fingerprint: key}
		if groups[k] == nil {
			groups[k] = make(map[string]bool)
		}
		groups[k][e.UID] = true
	}

	result := &NameMergeResult{}
	var batch []decision.Judgement
	for k, members := range groups {
		if len(members) < 2 {
			continue
		}
		uids := make([]string, 0, len(members))
		for uid := range members {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		result.Groups++

		g.logger.WithContext(ctx).WithFields(map[string]any{
			"project":     project,
			"schema":      string(k.schema),
			"fingerprint": k.fingerprint,
		}).Infof("Merge: %s (%d matches)", k.fingerprint, len(uids))

		anchor := uids[len(uids)-1]
		for _, uid := range uids[:len(uids)-1] {
			if res.IsDecided(anchor, uid) || similar[models.NewPair(anchor, uid)] {
				result.Skipped++
				continue
			}
			batch = append(batch, decision.Judgement{
				Left:      anchor,
				Right:     uid,
				Judgement: models.Bool(true),
				Decided:   true,
				DecidedBy: NameMergeDecider,
			})
		}
	}

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Left != batch[j].Left {
			return batch[i].Left < batch[j].Left
		}
		return batch[i].Right < batch[j].Right
	})
	if len(batch) > 0 {
		if err := g.decisions.EmitJudgements(ctx, project, batch); err != nil {
			return nil, err
		}
	}
	result.Judgements = len(batch)
	return result, nil
}

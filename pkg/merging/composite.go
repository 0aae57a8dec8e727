package merging

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/tracing"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

// EntitySource lists active entity records.
type EntitySource interface {
	ListActive(ctx context.Context, project string, origins ...string) ([]models.Entity, error)
	ListByCanonical(ctx context.Context, project, canonicalUID string) ([]models.Entity, error)
}

// AliasSource lists alias records.
type AliasSource interface {
	List(ctx context.Context, project string) ([]models.Alias, error)
}

// AddressSource lists address records.
type AddressSource interface {
	List(ctx context.Context, project string) ([]models.Address, error)
}

// LinkSource lists link records.
type LinkSource interface {
	List(ctx context.Context, project string, origins ...string) ([]models.Link, error)
}

// Filter restricts which composites are produced.
type Filter struct {
	// Origins keeps composites with at least one member from these origins.
	Origins []string
	// Tasked keeps composites with at least one tasked member.
	Tasked bool
}

// CompositeMerger produces composite entities and links on demand.
type CompositeMerger struct {
	entities  EntitySource
	aliases   AliasSource
	addresses AddressSource
	links     LinkSource
	logger    ectologger.Logger
}

func NewCompositeMerger(entities EntitySource, aliases AliasSource, addresses AddressSource, links LinkSource, logger ectologger.Logger) *CompositeMerger {
	return &CompositeMerger{
		entities:  entities,
		aliases:   aliases,
		addresses: addresses,
		links:     links,
		logger:    logger,
	}
}

// Composites merges every canonical entity of a project, sorted by uid.
func (m *CompositeMerger) Composites(ctx context.Context, project string, filter Filter) ([]models.Composite, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.CompositeMerger.Composites")
	defer span.End()

	entities, err := m.entities.ListActive(ctx, project)
	if err != nil {
		return nil, err
	}
	aliases, addresses, err := m.attachments(ctx, project)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]models.Entity)
	for _, e := range entities {
		groups[e.CanonicalUID] = append(groups[e.CanonicalUID], e)
	}

	composites := make([]models.Composite, 0, len(groups))
	for canonical, members := range groups {
		c := Merge(canonical, members, aliases, addresses)
		if !filter.matches(c) {
			continue
		}
		composites = append(composites, *c)
	}
	sort.Slice(composites, func(i, j int) bool { return composites[i].UID < composites[j].UID })

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"project":    project,
		"composites": len(composites),
	}).Debug("Merged composites")
	return composites, nil
}

// Composite merges a single canonical entity.
func (m *CompositeMerger) Composite(ctx context.Context, project, canonicalUID string) (*models.Composite, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.CompositeMerger.Composite")
	defer span.End()

	members, err := m.entities.ListByCanonical(ctx, project, canonicalUID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("entity %s not found", canonicalUID))
	}

	aliases, addresses, err := m.attachments(ctx, project)
	if err != nil {
		return nil, err
	}
	return Merge(canonicalUID, members, aliases, addresses), nil
}

// Links merges the canonical links of a project. Links with an endpoint
// that has no active record (deleted, pending or rejected results) are
// dropped. With a non-empty filter only links between composites passing
// the filter are kept.
func (m *CompositeMerger) Links(ctx context.Context, project string, filter Filter) ([]models.CompositeLink, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.CompositeMerger.Links")
	defer span.End()

	links, err := m.links.List(ctx, project)
	if err != nil {
		return nil, err
	}
	entities, err := m.entities.ListActive(ctx, project)
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(entities))
	for i := range entities {
		active[entities[i].UID] = true
	}

	live := links[:0]
	for _, l := range links {
		if active[l.SourceUID] && active[l.TargetUID] {
			live = append(live, l)
		}
	}
	if dropped := len(links) - len(live); dropped > 0 {
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"project": project,
			"dropped": dropped,
		}).Debug("Dropped links without active endpoints")
	}

	merged := MergeLinks(live)
	if filter.isZero() {
		return merged, nil
	}

	composites, err := m.Composites(ctx, project, filter)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(composites))
	for _, c := range composites {
		keep[c.UID] = true
	}

	filtered := make([]models.CompositeLink, 0, len(merged))
	for _, l := range merged {
		if keep[l.Source] && keep[l.Target] {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

func (m *CompositeMerger) attachments(ctx context.Context, project string) (map[string][]string, map[string][]string, error) {
	aliasRows, err := m.aliases.List(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	aliases := make(map[string][]string)
	for _, a := range aliasRows {
		aliases[a.UID] = append(aliases[a.UID], a.Name)
	}

	addressRows, err := m.addresses.List(ctx, project)
	if err != nil {
		return nil, nil, err
	}
	addresses := make(map[string][]string)
	for i := range addressRows {
		a := &addressRows[i]
		addresses[a.EntityUID] = append(addresses[a.EntityUID], a.Label())
	}
	return aliases, addresses, nil
}

// Merge folds the active records of one canonical entity. aliases and
// addresses are keyed by entity uid; only those of member uids are used.
func Merge(canonical string, members []models.Entity, aliases, addresses map[string][]string) *models.Composite {
	var (
		uids, origins, names, aliasNames []string
		countries, regs, extIDs, addrs   []string
		schemas                          []models.Schema
		attrs                            []models.Attributes
	)

	c := &models.Composite{UID: canonical}
	memberUIDs := make(map[string]bool, len(members))
	for i := range members {
		e := &members[i]
		if !memberUIDs[e.UID] {
			memberUIDs[e.UID] = true
			aliasNames = append(aliasNames, aliases[e.UID]...)
			addrs = append(addrs, addresses[e.UID]...)
		}
		uids = append(uids, e.UID)
		origins = append(origins, e.Origin)
		schemas = append(schemas, e.Schema)
		if e.Name != "" {
			names = append(names, e.Name)
		}
		countries = append(countries, e.Country)
		regs = append(regs, e.RegistrationNumber)
		extIDs = append(extIDs, e.ExternalID)
		c.Weight = max(c.Weight, e.Weight)
		c.Tasked = c.Tasked || e.Tasked
		attrs = append(attrs, e.Data.Data)
	}

	c.UIDParts = Union(uids)
	c.Origins = Union(origins)
	c.Schema = models.BestSchema(schemas)
	c.Country = Majority(countries)
	c.RegistrationNumbers = Union(regs)
	c.ExternalIDs = Union(extIDs)
	c.Addresses = Union(addrs)
	c.Data = MergeAttributes(attrs)

	all := Union(append(append([]string(nil), names...), aliasNames...))
	if len(names) > 0 {
		c.Name = matching.MedianOf(Union(names), all)
	} else if len(all) > 0 {
		c.Name = matching.MedianOf(all, all)
	}
	c.Aliases = make([]string, 0, len(all))
	for _, n := range all {
		if n != c.Name {
			c.Aliases = append(c.Aliases, n)
		}
	}
	return c
}

// MergeLinks groups links by canonical (source, target), unions their
// origins and votes their schema and attributes. Links whose canonical
// endpoints coincide are dropped.
func MergeLinks(links []models.Link) []models.CompositeLink {
	type group struct {
		schemas []string
		origins []string
		attrs   []models.Attributes
	}
	groups := make(map[models.Pair]*group)
	var keys []models.Pair

	for i := range links {
		l := &links[i]
		if l.IsSelfLink() {
			continue
		}
		key := models.Pair{Left: l.SourceCanonicalUID, Right: l.TargetCanonicalUID}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			keys = append(keys, key)
		}
		g.schemas = append(g.schemas, l.Schema)
		g.origins = append(g.origins, l.Origin)
		g.attrs = append(g.attrs, l.Data.Data)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Left != keys[j].Left {
			return keys[i].Left < keys[j].Left
		}
		return keys[i].Right < keys[j].Right
	})

	merged := make([]models.CompositeLink, 0, len(keys))
	for _, key := range keys {
		g := groups[key]
		merged = append(merged, models.CompositeLink{
			Source:  key.Left,
			Target:  key.Right,
			Schema:  Majority(g.schemas),
			Origins: Union(g.origins),
			Data:    MergeAttributes(g.attrs),
		})
	}
	return merged
}

func (f Filter) isZero() bool {
	return len(f.Origins) == 0 && !f.Tasked
}

func (f Filter) matches(c *models.Composite) bool {
	if f.Tasked && !c.Tasked {
		return false
	}
	if len(f.Origins) > 0 && !c.HasOrigin(f.Origins...) {
		return false
	}
	return true
}

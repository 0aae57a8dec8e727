// Package resolve derives clusters and the decided set from a snapshot of
// judgements. Everything here is a pure function of its input: callers
// resolve again after every write instead of caching a Resolution.
package resolve

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Inconsistency is a false judgement between two uids that true judgements
// have already placed in the same cluster.
type Inconsistency struct {
	Pair      models.Pair `json:"pair"`
	Canonical string      `json:"canonical_uid"`
}

// Resolution is the partition induced by true judgements plus the negative
// judgements lifted to cluster level.
type Resolution struct {
	clusters  [][]string
	canonical map[string]string
	// distinct holds cluster pairs, keyed by canonical uids, judged different.
	distinct map[models.Pair]bool
	// overridden holds exact pairs judged false inside one cluster.
	overridden      map[models.Pair]bool
	inconsistencies []Inconsistency
}

// Resolve builds the Resolution of a judgement snapshot. Mappings without a
// judgement are ignored. The result does not depend on input order.
func Resolve(mappings []models.Mapping) *Resolution {
	uf := newUnionFind()
	for i := range mappings {
		m := &mappings[i]
		if m.IsMatch() && m.LeftUID != m.RightUID {
			uf.union(m.LeftUID, m.RightUID)
		}
	}

	r := &Resolution{
		canonical:  make(map[string]string),
		distinct:   make(map[models.Pair]bool),
		overridden: make(map[models.Pair]bool),
	}

	for _, members := range uf.groups() {
		sort.Strings(members)
		canonical := members[len(members)-1]
		for _, uid := range members {
			r.canonical[uid] = canonical
		}
		r.clusters = append(r.clusters, members)
	}
	sort.Slice(r.clusters, func(i, j int) bool {
		return r.clusters[i][len(r.clusters[i])-1] < r.clusters[j][len(r.clusters[j])-1]
	})

	for i := range mappings {
		m := &mappings[i]
		if !m.IsDistinct() {
			continue
		}
		left, right := r.Canonical(m.LeftUID), r.Canonical(m.RightUID)
		if left == right {
			pair := models.NewPair(m.LeftUID, m.RightUID)
			if !r.overridden[pair] {
				r.overridden[pair] = true
				r.inconsistencies = append(r.inconsistencies, Inconsistency{Pair: pair, Canonical: left})
			}
			continue
		}
		r.distinct[models.NewPair(left, right)] = true
	}
	sort.Slice(r.inconsistencies, func(i, j int) bool {
		a, b := r.inconsistencies[i].Pair, r.inconsistencies[j].Pair
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return a.Right < b.Right
	})

	return r
}

// Canonical returns the canonical uid of uid: the greatest uid of its
// cluster, or uid itself when it belongs to no cluster.
func (r *Resolution) Canonical(uid string) string {
	if c, ok := r.canonical[uid]; ok {
		return c
	}
	return uid
}

// Cluster returns the sorted members of uid's cluster. A uid without true
// judgements forms a singleton.
func (r *Resolution) Cluster(uid string) []string {
	c, ok := r.canonical[uid]
	if !ok {
		return []string{uid}
	}
	idx := sort.Search(len(r.clusters), func(i int) bool {
		members := r.clusters[i]
		return members[len(members)-1] >= c
	})
	return append([]string(nil), r.clusters[idx]...)
}

// Clusters returns every multi-member cluster, sorted by canonical uid.
func (r *Resolution) Clusters() [][]string {
	out := make([][]string, len(r.clusters))
	for i, members := range r.clusters {
		out[i] = append([]string(nil), members...)
	}
	return out
}

// SameCluster reports whether true judgements connect a and b.
func (r *Resolution) SameCluster(a, b string) bool {
	return a == b || r.Canonical(a) == r.Canonical(b)
}

// Decided reports whether the pair is settled and, if so, how. Pairs in one
// cluster are true unless that exact pair was judged false; pairs across two
// clusters judged different are false.
func (r *Resolution) Decided(a, b string) (judgement bool, decided bool) {
	if a == b {
		return true, true
	}
	ca, cb := r.Canonical(a), r.Canonical(b)
	if ca == cb {
		if r.overridden[models.NewPair(a, b)] {
			return false, true
		}
		return true, true
	}
	if r.distinct[models.NewPair(ca, cb)] {
		return false, true
	}
	return false, false
}

// IsDecided reports whether the pair needs no further review.
func (r *Resolution) IsDecided(a, b string) bool {
	_, decided := r.Decided(a, b)
	return decided
}

// DecidedSet materializes every decided pair. Its size grows with the square
// of cluster sizes; prefer Decided for lookups.
func (r *Resolution) DecidedSet() map[models.Pair]bool {
	set := make(map[models.Pair]bool)
	for _, members := range r.clusters {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				pair := models.NewPair(members[i], members[j])
				set[pair] = !r.overridden[pair]
			}
		}
	}
	for key := range r.distinct {
		for _, a := range r.Cluster(key.Left) {
			for _, b := range r.Cluster(key.Right) {
				set[models.NewPair(a, b)] = false
			}
		}
	}
	return set
}

// Inconsistencies lists the false judgements contradicted by a cluster.
func (r *Resolution) Inconsistencies() []Inconsistency {
	return append([]Inconsistency(nil), r.inconsistencies...)
}

package matching

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
)

// Index is an in-memory inverted index from fingerprint q-grams and
// identifiers to views. Without lossy options it returns every pair the
// scorer could place above minSimilarity: two fingerprints within the edit
// distance that similarity allows share at least
// max(len) + q - 1 - q*distance padded q-grams, and q is chosen so that
// bound is always positive.
type Index struct {
	views         []*EntityView
	q             int
	minSimilarity float64

	fingerprints []indexedFingerprint
	byView       [][]int
	postings     map[string][]posting
	identifiers  map[string][]int

	countryFilter bool
	maxPostings   int
}

// IndexOptions tunes the inverted index. CountryFilter and MaxPostings
// trade completeness for speed: with either set, index mode may miss pairs
// exhaustive mode would return.
type IndexOptions struct {
	// CountryFilter drops hits whose countries are both set and differ.
	CountryFilter bool
	// MaxPostings skips q-grams shared by more fingerprints than this. Zero keeps all.
	MaxPostings int
}

type indexedFingerprint struct {
	view   int
	length int
	grams  map[string]int
}

type posting struct {
	fingerprint int
	count       int
}

// NewIndex indexes views by position for pairs whose best fingerprint
// similarity may exceed minSimilarity.
func NewIndex(views []*EntityView, minSimilarity float64, opts IndexOptions) *Index {
	ix := &Index{
		views:         views,
		q:             GramSize(minSimilarity),
		minSimilarity: minSimilarity,
		byView:        make([][]int, len(views)),
		postings:      make(map[string][]posting),
		identifiers:   make(map[string][]int),
		countryFilter: opts.CountryFilter,
		maxPostings:   opts.MaxPostings,
	}

	for i, v := range views {
		for _, id := range v.RegistrationNumbers {
			ix.identifiers["reg:"+id] = append(ix.identifiers["reg:"+id], i)
		}
		for _, id := range v.ExternalIDs {
			ix.identifiers["ext:"+id] = append(ix.identifiers["ext:"+id], i)
		}
		for _, fp := range v.Fingerprints {
			id := len(ix.fingerprints)
			ix.byView[i] = append(ix.byView[i], id)
			grams := fingerprint.QGrams(fp, ix.q)
			ix.fingerprints = append(ix.fingerprints, indexedFingerprint{
				view:   i,
				length: utf8.RuneCountInString(fp),
				grams:  grams,
			})
			for gram, n := range grams {
				ix.postings[gram] = append(ix.postings[gram], posting{fingerprint: id, count: n})
			}
		}
	}
	return ix
}

// GramSize is the largest q in [1, 3] for which the shared q-gram bound
// stays positive at minSimilarity.
func GramSize(minSimilarity float64) int {
	for q := 3; q > 1; q-- {
		if float64(q)*(1-minSimilarity) <= 1 {
			return q
		}
	}
	return 1
}

// Similar returns, in ascending order, the positions greater than i that
// share an identifier with view i or hold a fingerprint passing the q-gram
// count filter against one of view i's fingerprints.
func (ix *Index) Similar(i int) []int {
	view := ix.views[i]
	hits := make(map[int]bool)

	for _, id := range view.RegistrationNumbers {
		ix.hit(hits, i, ix.identifiers["reg:"+id])
	}
	for _, id := range view.ExternalIDs {
		ix.hit(hits, i, ix.identifiers["ext:"+id])
	}

	for _, f := range ix.byView[i] {
		left := &ix.fingerprints[f]
		common := make(map[int]int)
		for gram, n := range left.grams {
			list := ix.postings[gram]
			if ix.maxPostings > 0 && len(list) > ix.maxPostings {
				continue
			}
			for _, p := range list {
				if ix.fingerprints[p.fingerprint].view > i {
					common[p.fingerprint] += min(n, p.count)
				}
			}
		}
		for id, shared := range common {
			right := &ix.fingerprints[id]
			if shared >= ix.requiredGrams(max(left.length, right.length)) {
				hits[right.view] = true
			}
		}
	}

	out := make([]int, 0, len(hits))
	for j := range hits {
		if ix.countryFilter && !compatibleCountries(view, ix.views[j]) {
			continue
		}
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}

// Grams returns the number of distinct indexed q-grams.
func (ix *Index) Grams() int {
	return len(ix.postings)
}

// requiredGrams is the fewest padded q-grams two fingerprints of longest
// length n share when their similarity exceeds minSimilarity.
func (ix *Index) requiredGrams(n int) int {
	// similarity > s  <=>  distance < (1-s)*n
	maxDistance := int(math.Ceil((1-ix.minSimilarity)*float64(n))) - 1
	return max(1, n+ix.q-1-ix.q*max(0, maxDistance))
}

func (ix *Index) hit(hits map[int]bool, i int, positions []int) {
	for _, j := range positions {
		if j > i {
			hits[j] = true
		}
	}
}

func compatibleCountries(a, b *EntityView) bool {
	return a.Country == "" || b.Country == "" || a.Country == b.Country
}

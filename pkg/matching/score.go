package matching

import (
	"github.com/Ramsey-B/fern/pkg/models"
)

// Scorer computes the similarity of two entity views in [0, CertainScore].
type Scorer struct {
	profile Profile
}

func NewScorer(profile Profile) *Scorer {
	return &Scorer{profile: profile}
}

// Profile returns the profile the scorer was built with.
func (s *Scorer) Profile() Profile {
	return s.profile
}

// Score compares two views. Shared identifiers are certain; assets never
// match; otherwise the best fingerprint similarity is discounted for
// non-person pairs, conflicting countries and untasked pairs. A pair with no
// fingerprint on either side scores 0. Score(a, b) == Score(b, a).
func (s *Scorer) Score(a, b *EntityView) float64 {
	if sharesAny(a.RegistrationNumbers, b.RegistrationNumbers) || sharesAny(a.ExternalIDs, b.ExternalIDs) {
		return s.profile.CertainScore
	}
	if a.Schema == models.SchemaAsset || b.Schema == models.SchemaAsset {
		return 0
	}

	score := bestSimilarity(a.Fingerprints, b.Fingerprints)
	if score == 0 {
		return 0
	}

	if a.Schema != models.SchemaPerson && b.Schema != models.SchemaPerson {
		score *= s.profile.NonPersonFactor
	}
	if a.Country != "" && b.Country != "" && a.Country != b.Country {
		score *= s.profile.CountryMismatchFactor
	}
	if !a.Tasked && !b.Tasked {
		score *= s.profile.UntaskedFactor
	}
	return score
}

// IsCertain reports whether a score settles the pair without review.
func (s *Scorer) IsCertain(score float64) bool {
	return score >= s.profile.CertainScore
}

func bestSimilarity(left, right []string) float64 {
	best := 0.0
	for _, l := range left {
		for _, r := range right {
			if sim := Similarity(l, r); sim > best {
				best = sim
				if best == 1 {
					return best
				}
			}
		}
	}
	return best
}

func sharesAny(left, right []string) bool {
	for _, l := range left {
		for _, r := range right {
			if l == r {
				return true
			}
		}
	}
	return false
}

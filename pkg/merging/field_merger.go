// Package merging folds the records of one canonical entity into a composite.
package merging

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Majority returns the most frequent non-empty value. Ties go to the
// lexically smaller value so the result does not depend on input order.
func Majority(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			counts[v]++
		}
	}

	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// Union returns the sorted distinct non-empty values.
func Union(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MergeAttributes votes every extra attribute key independently. Values are
// compared by their JSON encoding; empty values do not vote.
func MergeAttributes(attrs []models.Attributes) models.Attributes {
	type ballot struct {
		value any
		count int
	}
	votes := make(map[string]map[string]*ballot)

	for _, a := range attrs {
		for key, value := range a {
			if isEmpty(value) {
				continue
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				continue
			}
			byValue, ok := votes[key]
			if !ok {
				byValue = make(map[string]*ballot)
				votes[key] = byValue
			}
			b, ok := byValue[string(encoded)]
			if !ok {
				b = &ballot{value: value}
				byValue[string(encoded)] = b
			}
			b.count++
		}
	}

	if len(votes) == 0 {
		return nil
	}

	merged := make(models.Attributes, len(votes))
	for key, byValue := range votes {
		bestKey, bestCount := "", 0
		for encoded, b := range byValue {
			if b.count > bestCount || (b.count == bestCount && encoded < bestKey) {
				bestKey, bestCount = encoded, b.count
			}
		}
		merged[key] = byValue[bestKey].value
	}
	return merged
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

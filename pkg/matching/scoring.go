// Package matching scores entity pairs and generates review candidates.
package matching

import (
	"sort"
	"unicode/utf8"
)

// LevenshteinDistance is the rune level edit distance between a and b.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	prevRow := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(rb)]
}

// Similarity is 1 - distance / longer length, in [0, 1].
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// Median returns the set median of values: the element with the smallest
// summed edit distance to all others. Ties go to the lexically smaller value.
func Median(values []string) string {
	return MedianOf(values, values)
}

// MedianOf picks the candidate with the smallest summed edit distance to
// every value of population. Ties go to the lexically smaller candidate.
func MedianOf(candidates, population []string) string {
	if len(candidates) == 0 {
		return ""
	}
	unique := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, v := range candidates {
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}
	sort.Strings(unique)

	best, bestCost := unique[0], -1
	for _, candidate := range unique {
		cost := 0
		for _, other := range population {
			cost += LevenshteinDistance(candidate, other)
		}
		if bestCost < 0 || cost < bestCost {
			best, bestCost = candidate, cost
		}
	}
	return best
}

package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"acme corp", "acme corp", 0},
		{"müller", "muller", 1},
		{"日本", "日本語", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.a, tt.b))
			assert.Equal(t, tt.expected, LevenshteinDistance(tt.b, tt.a))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("acme", "acme"))
	assert.InDelta(t, 0.75, Similarity("acme", "acne"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []string
		expected string
	}{
		{name: "empty", values: nil, expected: ""},
		{name: "single", values: []string{"Acme"}, expected: "Acme"},
		{name: "closest to the rest", values: []string{"Acme Corp", "Acme Corp.", "ACME Corporation", "Acme Corp"}, expected: "Acme Corp"},
		{name: "tie goes to the smaller value", values: []string{"b", "a"}, expected: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Median(tt.values))
		})
	}
}

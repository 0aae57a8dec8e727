package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Société Générale", "societe generale"},
		{"MÜLLER", "muller"},
		{"ﬁnance", "finance"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fold(tt.input))
		})
	}
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "hrb12345", Identifier("HRB 12-345"))
	assert.Equal(t, Identifier("hrb12345"), Identifier(" HRB.12345 "))
	assert.Empty(t, Identifier(" - "))
}

func TestAddressAndSlug(t *testing.T) {
	assert.Equal(t, "12 main st, springfield", Address("12  Main Street, Springfield"))
	assert.Equal(t, "12-main-st-springfield", Slug("12 Main Street, Springfield"))
	assert.Equal(t, Slug("12 MAIN ST. Springfield"), Slug("12 Main Street Springfield"))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "ab1", ApplyChain(" A-b 1 ", "identifier", "unknown"))
	_, ok := Get("slug")
	assert.True(t, ok)
}

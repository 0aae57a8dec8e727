// Package fingerprint reduces entity names to comparable token strings.
package fingerprint

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ramsey-B/fern/pkg/normalizers"
)

const (
	// DefaultMinTokenLength drops initials and stray letters.
	DefaultMinTokenLength = 2
	// DefaultMinLength is the shortest fingerprint worth comparing.
	DefaultMinLength = 3
)

// legalForms maps spelled out company forms onto one abbreviation so that
// "ACME Corporation" and "Acme Corp" share a fingerprint.
var legalForms = map[string]string{
	"corporation":        "corp",
	"incorporated":       "inc",
	"limited":            "ltd",
	"company":            "co",
	"companies":          "cos",
	"association":        "assn",
	"international":      "intl",
	"holding":            "hldg",
	"holdings":           "hldgs",
	"partnership":        "lp",
	"gesellschaft":       "ges",
	"aktiengesellschaft": "ag",
	"societe":            "sa",
	"sociedad":           "sa",
	"public":             "pub",
	"brothers":           "bros",
	"manufacturing":      "mfg",
	"services":           "svcs",
}

// Fingerprinter builds fingerprints with configurable length limits.
type Fingerprinter struct {
	MinTokenLength int
	MinLength      int
}

// Default uses DefaultMinTokenLength and DefaultMinLength.
var Default = Fingerprinter{MinTokenLength: DefaultMinTokenLength, MinLength: DefaultMinLength}

// Generate fingerprints name with the default limits.
func Generate(name string) (string, bool) {
	return Default.Generate(name)
}

// Generate folds name, replaces punctuation with spaces, abbreviates legal
// forms and drops short tokens. It reports false when nothing comparable is left.
func (f Fingerprinter) Generate(name string) (string, bool) {
	folded := normalizers.Fold(name)

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)

	tokens := make([]string, 0, 4)
	for _, token := range strings.Fields(cleaned) {
		if abbr, ok := legalForms[token]; ok {
			token = abbr
		}
		if utf8.RuneCountInString(token) < f.MinTokenLength {
			continue
		}
		tokens = append(tokens, token)
	}

	fp := strings.Join(tokens, " ")
	if fp == "" || utf8.RuneCountInString(fp) < f.MinLength {
		return "", false
	}
	return fp, true
}

// GenerateAll fingerprints every name, dropping duplicates and names
// without a fingerprint. Order follows the first occurrence.
func (f Fingerprinter) GenerateAll(names []string) []string {
	seen := make(map[string]bool, len(names))
	fps := make([]string, 0, len(names))
	for _, name := range names {
		fp, ok := f.Generate(name)
		if !ok || seen[fp] {
			continue
		}
		seen[fp] = true
		fps = append(fps, fp)
	}
	return fps
}

// QGrams counts the rune q-grams of fp padded with q-1 markers on both
// ends, so a string of n runes yields n+q-1 grams.
func QGrams(fp string, q int) map[string]int {
	if q < 1 {
		q = 1
	}
	pad := strings.Repeat("\x00", q-1)
	runes := []rune(pad + fp + pad)
	grams := make(map[string]int, len(runes))
	for i := 0; i+q <= len(runes); i++ {
		grams[string(runes[i:i+q])]++
	}
	return grams
}

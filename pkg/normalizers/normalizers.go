// Package normalizers provides the string normalizations shared by
// fingerprinting, scoring and address handling.
package normalizers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = map[string]Normalizer{
	"fold":       Fold,
	"identifier": Identifier,
	"country":    Country,
	"address":    Address,
	"slug":       Slug,
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// ApplyChain applies multiple normalizers in sequence. Unknown names are skipped.
func ApplyChain(value string, names ...string) string {
	result := value
	for _, name := range names {
		if fn, ok := registry[name]; ok {
			result = fn(result)
		}
	}
	return result
}

// Fold decomposes s (NFKD), drops combining marks and lower-cases the rest,
// so "Société" and "societe" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Identifier reduces a registration number or external id to its folded
// letters and digits: "HRB 12-345" and "hrb12345" are the same identifier.
func Identifier(s string) string {
	var result strings.Builder
	for _, r := range Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Country normalizes a country code for comparison.
func Country(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	spaceRe = regexp.MustCompile(`\s+`)
	slugRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

var addressAbbreviations = []struct{ full, abbr string }{
	{"street", "st"},
	{"avenue", "ave"},
	{"boulevard", "blvd"},
	{"drive", "dr"},
	{"road", "rd"},
	{"lane", "ln"},
	{"court", "ct"},
	{"circle", "cir"},
	{"place", "pl"},
	{"apartment", "apt"},
	{"suite", "ste"},
	{"north", "n"},
	{"south", "s"},
	{"east", "e"},
	{"west", "w"},
}

// Address folds an address and abbreviates common street words.
func Address(s string) string {
	words := strings.Fields(spaceRe.ReplaceAllString(Fold(s), " "))
	for i, w := range words {
		trimmed := strings.TrimRight(w, ".,")
		for _, a := range addressAbbreviations {
			if trimmed == a.full {
				words[i] = a.abbr + w[len(trimmed):]
				break
			}
		}
	}
	return strings.Join(words, " ")
}

// Slug is the comparison key of an address: folded, abbreviated, and
// reduced to dash separated letters and digits.
func Slug(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(Address(s), "-"), "-")
}

// Package normalize canonicalizes Japanese power facility names.
//
// Two depths exist. The light form keeps the facility suffix and is used to
// build address-search queries. The key form strips the suffix and all
// separators and is used as the grouping key when matching capacity entries
// to footprints.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// Suffix is the canonical substation suffix.
const Suffix = "変電所"

// LineSuffix marks transmission line names.
const LineSuffix = "線"

var (
	// voltageParenRe matches annotations such as (154kV), ( 66 KV ), (6.6kV).
	voltageParenRe = regexp.MustCompile(`(?i)\(\s*\d+(?:\.\d+)?\s*k?v\s*\)`)
	// jpSuffixRe matches a trailing 変電 with or without 所.
	jpSuffixRe = regexp.MustCompile(`変電所?$`)
	// enSuffixRe matches a trailing English substation suffix.
	enSuffixRe = regexp.MustCompile(`(?i)\s*sub-?station$`)
	// enWordRe matches the English suffix anywhere, for key stripping.
	enWordRe = regexp.MustCompile(`(?i)sub-?station`)
	// bracketRe matches any bracket left after folding.
	bracketRe = regexp.MustCompile(`[()\[\]{}「」『』【】〔〕]`)
)

// Light returns the light form of raw:
//  1. Full-width alphanumerics and punctuation folded to half-width
//  2. Parenthetical voltage annotations removed
//  3. Whitespace runs collapsed to a single space and trimmed
//  4. A trailing 変電 or 変電所 standardized to 変電所, and a trailing
//     English substation suffix to "Substation"
//
// Light never fails and Light(Light(x)) == Light(x).
func Light(raw string) string {
	return fixpoint(raw, lightOnce)
}

// Key returns the grouping key of raw: the light form with every facility
// suffix, whitespace and bracket removed, lower-cased.
//
// Key never fails and Key(Key(x)) == Key(x).
func Key(raw string) string {
	return fixpoint(raw, keyOnce)
}

// IsLine reports whether the name denotes a transmission line.
func IsLine(name string) bool {
	return strings.HasSuffix(Light(name), LineSuffix)
}

// Query builds the address-search query for a light-form name, appending
// the substation suffix when the name does not already carry it.
func Query(light string) string {
	if strings.Contains(light, Suffix) {
		return light
	}
	return light + " " + Suffix
}

func lightOnce(s string) string {
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, "　", " ")
	s = voltageParenRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = jpSuffixRe.ReplaceAllString(s, Suffix)
	if enSuffixRe.MatchString(s) {
		s = enSuffixRe.ReplaceAllString(s, " Substation")
		s = strings.TrimSpace(s)
	}
	return s
}

func keyOnce(s string) string {
	s = Light(s)
	s = strings.ReplaceAll(s, Suffix, "")
	s = enWordRe.ReplaceAllString(s, "")
	s = bracketRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "")
	return strings.ToLower(s)
}

// fixpoint applies step until s stops changing. After the first pass every
// change removes at least one rune, so the rune count bounds the loop.
func fixpoint(s string, step func(string) string) string {
	for i := utf8.RuneCountInString(s) + 2; i > 0; i-- {
		next := step(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

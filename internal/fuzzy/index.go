// Package fuzzy finds the closest named reference feature by edit distance.
package fuzzy

import (
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Candidate is a named reference location.
type Candidate struct {
	// Name is the normalized name compared against queries.
	Name string
	// Label is the name as it appears in the source dataset.
	Label string
	Lon   float64
	Lat   float64
	// Pos is the candidate's position in its source dataset.
	Pos int
}

// Match is the winning candidate and its edit distance to the query.
type Match struct {
	Candidate
	Distance int
}

// Index holds candidates for repeated lookups. It is read-only after
// construction and safe for concurrent use.
type Index struct {
	items []Candidate
}

// NewIndex builds an index. Candidates with an empty name are skipped.
func NewIndex(cands []Candidate) *Index {
	idx := &Index{items: make([]Candidate, 0, len(cands))}
	for _, c := range cands {
		if c.Name == "" {
			continue
		}
		idx.items = append(idx.items, c)
	}
	return idx
}

// Len returns the number of indexed candidates.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.items)
}

// Threshold returns the largest accepted edit distance for query:
// max(2, floor(0.2 * length in runes)).
func Threshold(query string) int {
	t := utf8.RuneCountInString(query) / 5
	if t < 2 {
		return 2
	}
	return t
}

// Distance is the rune-level Levenshtein distance with unit costs.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Best returns the closest candidate within Threshold(query).
//
// Ties on distance go to the lexicographically smaller normalized name, then
// to the lower dataset position, so the result does not depend on the order
// candidates were supplied in.
func (idx *Index) Best(query string) (Match, bool) {
	if idx == nil || query == "" {
		return Match{}, false
	}
	limit := Threshold(query)
	qLen := utf8.RuneCountInString(query)

	var best Match
	found := false
	for _, c := range idx.items {
		// Length difference is a lower bound on the distance.
		if abs(utf8.RuneCountInString(c.Name)-qLen) > limit {
			continue
		}
		d := Distance(query, c.Name)
		if d > limit {
			continue
		}
		if !found || better(d, c, best) {
			best = Match{Candidate: c, Distance: d}
			found = true
		}
	}
	return best, found
}

func better(d int, c Candidate, cur Match) bool {
	if d != cur.Distance {
		return d < cur.Distance
	}
	if c.Name != cur.Name {
		return c.Name < cur.Name
	}
	return c.Pos < cur.Pos
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

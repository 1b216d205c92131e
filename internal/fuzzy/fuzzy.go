// Package fuzzy provides edit-distance similarity scoring on a 0–100 scale
// and ranked candidate extraction over a term list.
//
// Scores are derived from Levenshtein distance (via [matchr.Levenshtein])
// normalised by the longer string's length: identical strings score 100,
// strings with no common structure score near 0. [PartialRatio] additionally
// slides the shorter string over the longer one and keeps the best window
// score, which rewards substring-style matches ("node" inside "nodejs").
//
// Extraction is deterministic: given the same candidate slice, ties are
// broken by candidate order, never by map iteration.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Scorer computes a similarity score in [0, 100] for a pair of strings.
type Scorer func(a, b string) float64

// Ratio returns the Levenshtein similarity of a and b on a 0–100 scale.
// Comparison is case-insensitive. Two empty strings score 100.
func Ratio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	dist := matchr.Levenshtein(a, b)
	return 100 * (1 - float64(dist)/float64(longest))
}

// PartialRatio returns the best [Ratio] between the shorter input and any
// equally-sized window of the longer input. It is the scoring used for
// whole-phrase suggestion lookup, where a vocabulary term may appear inside
// a longer utterance.
func PartialRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	if len(short) == len(long) {
		return Ratio(string(short), string(long))
	}

	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		window := string(long[i : i+len(short)])
		if s := Ratio(string(short), window); s > best {
			best = s
			if best == 100 {
				break
			}
		}
	}
	return best
}

// Match pairs a candidate term with its similarity score.
type Match struct {
	Term  string
	Score float64
}

// ExtractTop scores query against every candidate using score and returns up
// to limit matches with Score >= cutoff, ordered by descending score.
// Equal scores keep the candidates' input order, so results are stable for
// identical inputs.
func ExtractTop(query string, candidates []string, limit int, cutoff float64, score Scorer) []Match {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if s := score(query, c); s >= cutoff {
			matches = append(matches, Match{Term: c, Score: s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Best returns the single highest-scoring candidate at or above cutoff.
// The boolean reports whether any candidate qualified.
func Best(query string, candidates []string, cutoff float64, score Scorer) (Match, bool) {
	top := ExtractTop(query, candidates, 1, cutoff, score)
	if len(top) == 0 {
		return Match{}, false
	}
	return top[0], true
}

package fuzzy

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// phoneticFloor is the minimum Jaro-Winkler similarity (scaled to 0–100)
// a phonetically matching candidate must reach to qualify.
const phoneticFloor = 70

// PhoneticTop returns up to limit candidates that sound like query, ranked
// by Jaro-Winkler similarity. A candidate qualifies when it shares at least
// one Double Metaphone code with the query and scores at or above 70.
//
// It complements [ExtractTop]: edit-distance scoring misses sound-alike
// misrecognitions with divergent spellings ("kubernetes" heard as
// "cooper netties"), which phonetic codes catch. Ties keep candidate order.
func PhoneticTop(query string, candidates []string, limit int) []Match {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := strings.Fields(queryLower)
	if len(queryTokens) == 0 {
		return nil
	}
	queryCodes := metaphoneCodes(queryTokens)
	if len(queryCodes) == 0 {
		return nil
	}

	matches := make([]Match, 0, limit)
	for _, c := range candidates {
		candLower := strings.ToLower(strings.TrimSpace(c))
		if candLower == "" || candLower == queryLower {
			continue
		}
		candTokens := strings.Fields(candLower)
		if !codesOverlap(queryCodes, metaphoneCodes(candTokens)) {
			continue
		}
		if s := jaroWinklerScore(queryTokens, candTokens, queryLower, candLower); s >= phoneticFloor {
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

// metaphoneCodes returns the union of Double Metaphone codes over tokens.
// Tokens too short to produce a code contribute nothing.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// jaroWinklerScore computes the best Jaro-Winkler similarity between query
// and candidate on a 0–100 scale, taking the maximum over the full strings,
// the space-stripped strings, and every token pairing. The space-stripped
// pass handles compounds split by the recognizer ("java script" against
// "javascript"); the pairwise pass handles one spoken word aligning with one
// word of a multi-word term.
func jaroWinklerScore(queryTokens, candTokens []string, queryFull, candFull string) float64 {
	best := matchr.JaroWinkler(queryFull, candFull, false)

	if len(queryTokens) > 1 || len(candTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(queryTokens, ""), strings.Join(candTokens, ""), false)
		if joined > best {
			best = joined
		}
	}

	for _, qt := range queryTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(qt, ct, false); s > best {
				best = s
			}
		}
	}

	return best * 100
}

// Package corrector normalises raw speech-to-text output against the shared
// technical vocabulary.
//
// Correction is strictly lexical: tokens are matched against a bounded,
// dynamically maintained term set, never against arbitrary language. The
// pipeline is phonetic rewrites over the whole string, then a per-word
// four-strategy cascade, then an optional indicator-driven rewrite re-pass,
// and finally context recording plus vocabulary learning. Every step is
// best-effort — correction returns a usable string even when an individual
// step yields nothing; it never fails the session.
//
// Each Corrector owns a private rolling window of recent utterances (the
// context vocabulary) and shares the process-wide [vocab.Store]. One
// Corrector is created per session; its context is discarded with the
// session, while anything it learned persists in the store.
package corrector

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/jhalloran/voxlex/internal/fuzzy"
	"github.com/jhalloran/voxlex/internal/observe"
	"github.com/jhalloran/voxlex/internal/vocab"
)

const (
	// globalCutoff is the similarity floor for strategy 2 (full-vocabulary
	// fuzzy match).
	globalCutoff = 75

	// contextCutoff is the lower similarity floor for strategy 3. Terms
	// already established in the conversation are favoured even when they
	// would score below the global cutoff.
	contextCutoff = 70

	// suggestionCutoff is the partial-ratio floor for whole-phrase
	// suggestion lookup.
	suggestionCutoff = 60

	// DefaultContextWindow is the number of recent corrected utterances
	// retained for context-vocabulary construction.
	DefaultContextWindow = 20
)

// abbreviations is the fixed expansion table used as the last correction
// strategy. Exact key match only.
var abbreviations = map[string]string{
	"js":  "javascript",
	"ts":  "typescript",
	"py":  "python",
	"db":  "database",
	"ci":  "continuous integration",
	"cd":  "continuous deployment",
	"ui":  "user interface",
	"ux":  "user experience",
	"ml":  "machine learning",
	"ai":  "artificial intelligence",
	"api": "api",
	"sdk": "software development kit",
	"ide": "integrated development environment",
}

// looseTokenRE matches tokens whose first character is a letter. This is the
// generic tokenisation path (context vocabulary, learning) and is looser than
// the store's source-extraction rule, which also requires a trailing letter.
// The asymmetry is preserved from the reference behaviour; do not unify.
var looseTokenRE = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9]*\b`)

// nonWordRE strips everything outside the word-character class, used to
// separate a token from its adjacent punctuation before matching.
var nonWordRE = regexp.MustCompile(`[^a-z0-9_]`)

func toLower(s string) string { return strings.ToLower(s) }

// Option configures a [Corrector].
type Option func(*Corrector)

// WithContextWindow overrides the recent-utterance window size.
// Non-positive values keep the default of 20.
func WithContextWindow(n int) Option {
	return func(c *Corrector) {
		if n > 0 {
			c.maxRecent = n
		}
	}
}

// Corrector applies multi-strategy lexical correction. Safe for concurrent
// use, though a session drives its Corrector from a single goroutine.
type Corrector struct {
	store *vocab.Store

	mu        sync.Mutex
	recent    []string // FIFO ring of recent corrected utterances, oldest first
	maxRecent int
}

// New creates a Corrector backed by the shared vocabulary store.
func New(store *vocab.Store, opts ...Option) *Corrector {
	c := &Corrector{
		store:     store,
		maxRecent: DefaultContextWindow,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CorrectText runs the full correction pipeline over text and returns the
// corrected string. The result is recorded in the context window and any
// newly confirmed terms are fed back into the vocabulary.
func (c *Corrector) CorrectText(text string) string {
	if len(strings.TrimSpace(text)) < 2 {
		return text
	}

	corrected := c.correctTokens(applyRewrites(text))

	// Indicator-driven enhancement: re-apply rewrites when the text still
	// looks like unresolved technical phrasing. Best-effort only — a pass
	// that yields nothing leaves the text as-is.
	if enhanced, ok := c.enhance(corrected); ok {
		corrected = enhanced
	}

	c.addContext(corrected)
	c.learn(text, corrected)

	return corrected
}

// CorrectPartial is the cheap path used for interim recognition results. It
// applies the same rewrite and cascade stages but records no context and
// learns nothing, since the same utterance will arrive again as a final.
func (c *Corrector) CorrectPartial(text string) string {
	if len(strings.TrimSpace(text)) < 2 {
		return text
	}
	return c.correctTokens(applyRewrites(text))
}

// correctTokens applies the per-word cascade to every whitespace token.
// Vocabulary and context snapshots are taken once per call so that all
// tokens of one utterance are corrected against the same term set.
func (c *Corrector) correctTokens(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	terms := c.store.Terms()
	contextTerms := c.contextTerms()

	for i, w := range words {
		words[i] = c.correctWord(w, terms, contextTerms)
	}
	return strings.Join(words, " ")
}

// correctWord corrects a single (lowercased) token through the four-strategy
// cascade, short-circuiting at the first applicable strategy:
//
//  1. Exact vocabulary membership — already correct, return unchanged.
//  2. Fuzzy match against the full vocabulary, cutoff 75.
//  3. Fuzzy match against the context vocabulary, cutoff 70.
//  4. Fixed abbreviation expansion on exact key match.
//
// Punctuation adjacent to the token is preserved: matching runs on the
// stripped form and the substitution is spliced back into the original token.
func (c *Corrector) correctWord(word string, terms, contextTerms []string) string {
	clean := nonWordRE.ReplaceAllString(toLower(word), "")
	if len(clean) < 2 {
		return word
	}

	// Strategy 1: exact membership.
	if c.store.Contains(clean) {
		return word
	}

	// Strategy 2: global fuzzy match.
	if m, ok := fuzzy.Best(clean, terms, globalCutoff, fuzzy.Ratio); ok {
		return strings.Replace(toLower(word), clean, m.Term, 1)
	}

	// Strategy 3: context fuzzy match.
	if len(contextTerms) > 0 {
		if m, ok := fuzzy.Best(clean, contextTerms, contextCutoff, fuzzy.Ratio); ok {
			return strings.Replace(toLower(word), clean, m.Term, 1)
		}
	}

	// Strategy 4: abbreviation expansion.
	if expansion, ok := abbreviations[clean]; ok {
		return strings.Replace(toLower(word), clean, expansion, 1)
	}

	return word
}

// enhance re-applies the rewrite rules when text matches a tech-indicator
// pattern. The second return value reports whether an enhanced variant
// applies; any failure inside the pass degrades to "no additional
// correction".
func (c *Corrector) enhance(text string) (string, bool) {
	if !hasTechIndicators(text) {
		return text, false
	}
	enhanced := applyRewrites(text)
	if enhanced == text {
		return text, false
	}
	return enhanced, true
}

// Suggestions returns up to limit alternative corrections for text: the
// rewrite result when it differs from the input, followed by whole-phrase
// fuzzy matches (partial-ratio, cutoff 60) against the vocabulary,
// deduplicated in order. When no candidate clears the partial-ratio cutoff,
// a phonetic lookup runs instead.
func (c *Corrector) Suggestions(text string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	var suggestions []string
	seen := make(map[string]struct{})

	if phonetic := applyRewrites(text); phonetic != toLower(text) {
		suggestions = append(suggestions, phonetic)
		seen[phonetic] = struct{}{}
	}

	terms := c.store.Terms()
	matches := fuzzy.ExtractTop(toLower(text), terms, limit, suggestionCutoff, fuzzy.PartialRatio)
	if len(matches) == 0 {
		// Fall back to sound-alike lookup when edit distance finds nothing.
		matches = fuzzy.PhoneticTop(toLower(text), terms, limit)
	}
	for _, m := range matches {
		if _, dup := seen[m.Term]; dup {
			continue
		}
		suggestions = append(suggestions, m.Term)
		seen[m.Term] = struct{}{}
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// learn feeds tokens that appear in corrected but not in original back into
// the vocabulary. Each candidate is validated by the store's admission
// heuristic; this is the loop that lets confirmed corrections expand future
// matching.
func (c *Corrector) learn(original, corrected string) {
	if original == corrected {
		return
	}

	origSet := make(map[string]struct{})
	for _, tok := range looseTokenRE.FindAllString(toLower(original), -1) {
		origSet[tok] = struct{}{}
	}

	var added int64
	seen := make(map[string]struct{})
	for _, tok := range looseTokenRE.FindAllString(toLower(corrected), -1) {
		if _, inOrig := origSet[tok]; inOrig {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}

		// AddTerms runs the admission heuristic; invalid candidates are
		// silently dropped.
		added += int64(c.store.AddTerms(tok))
	}
	observe.DefaultMetrics().RecordTermsLearned(context.Background(), "learning", added)
}

// addContext appends text to the recent-utterance window, evicting the
// oldest entry beyond the window size.
func (c *Corrector) addContext(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent = append(c.recent, toLower(text))
	if len(c.recent) > c.maxRecent {
		// Copy to a fresh backing array so evicted entries don't pin memory.
		trimmed := make([]string, c.maxRecent)
		copy(trimmed, c.recent[len(c.recent)-c.maxRecent:])
		c.recent = trimmed
	}
}

// Recent returns a copy of the context window, oldest first. Intended for
// testing and debugging.
func (c *Corrector) Recent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.recent))
	copy(out, c.recent)
	return out
}

// contextTerms builds the context vocabulary: tokens from the recent window
// that are also in the shared store, deduplicated in first-seen order.
func (c *Corrector) contextTerms() []string {
	c.mu.Lock()
	joined := strings.Join(c.recent, " ")
	c.mu.Unlock()

	if joined == "" {
		return nil
	}

	var terms []string
	seen := make(map[string]struct{})
	for _, tok := range looseTokenRE.FindAllString(joined, -1) {
		if _, dup := seen[tok]; dup {
			continue
		}
		if c.store.Contains(tok) {
			terms = append(terms, tok)
			seen[tok] = struct{}{}
		}
	}
	return terms
}

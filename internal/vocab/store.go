// Package vocab maintains the dynamic technical vocabulary shared by all
// transcription sessions.
//
// The [Store] is the only process-wide mutable resource: it holds the set of
// known technical terms plus per-term frequency counts, seeded with a fixed
// base vocabulary at construction and grown over time by background source
// refreshes, session add_custom_terms commands, and corrector learning.
// Terms are never removed. All methods are safe for concurrent use; readers
// never observe a partially inserted term.
//
// Term admission is a heuristic classifier, not a dictionary lookup: see
// [Store.IsValidTerm] for the exact rule order. Two extraction paths exist
// with deliberately different token boundary rules — see [Store.ExtractTerms]
// versus the corrector's looser tokenisation.
package vocab

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhalloran/voxlex/internal/fuzzy"
)

// searchCutoff is the minimum similarity score (0–100) for a term to appear
// in [Store.SearchSimilar] results.
const searchCutoff = 60

// trendingLimit caps the number of trending terms reported by [Store.Stats].
const trendingLimit = 10

// baseTerms is the seed vocabulary loaded at construction. Order matters:
// the store preserves insertion order and uses it for deterministic ranking
// tie-breaks in SearchSimilar.
var baseTerms = []string{
	// AI / ML
	"ai", "ml", "llm", "gpt", "chatgpt", "claude", "anthropic", "openai",
	"transformer", "neural", "pytorch", "tensorflow", "huggingface",

	// Programming languages
	"python", "javascript", "typescript", "rust", "go", "java", "kotlin",
	"swift", "dart", "php", "ruby", "scala", "clojure", "elixir",

	// Frameworks and libraries
	"react", "vue", "angular", "svelte", "nextjs", "nuxtjs", "gatsby",
	"express", "fastapi", "django", "flask", "rails", "spring",

	// Cloud / DevOps
	"aws", "azure", "gcp", "docker", "kubernetes", "terraform",
	"ansible", "jenkins", "github", "gitlab", "vercel", "netlify",

	// Databases
	"postgresql", "mysql", "mongodb", "redis", "elasticsearch",
	"dynamodb", "firestore", "supabase", "planetscale",

	// Protocols and standards
	"api", "rest", "graphql", "grpc", "json", "xml", "yaml",
	"oauth", "jwt", "ssl", "tls", "websocket", "cors",
}

// stopWords are common English words that are never admitted as terms.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "man": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "boy": {},
	"did": {}, "its": {}, "let": {}, "put": {}, "say": {}, "she": {},
	"too": {}, "use": {},
}

// techSuffixes and techPrefixes are the surface patterns associated with
// technical vocabulary. A term matching any of them is admitted.
var (
	techSuffixes = []string{"js", "api", "db", "sql", "css", "ml", "ai", "ops", "lang"}
	techPrefixes = []string{"micro", "web", "dev"}
)

// knownExtensions are file-format and protocol tokens admitted as terms even
// though they match none of the surface patterns.
var knownExtensions = map[string]struct{}{
	"json": {}, "xml": {}, "yaml": {}, "toml": {}, "csv": {},
	"sql": {}, "html": {}, "css": {},
}

// strictTokenRE matches tokens whose first AND last character is a letter.
// This is the boundary rule for source-text extraction (GitHub repo metadata,
// Hacker News titles). The corrector uses a looser leading-letter rule for
// context and learning; the asymmetry is intentional and affects which terms
// each path can learn. Do not unify.
var strictTokenRE = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9]*[a-zA-Z]\b`)

var digitRE = regexp.MustCompile(`\d`)

// TermCount pairs a vocabulary term with its occurrence count.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Stats is a point-in-time summary of the vocabulary, reported to clients by
// the get_vocabulary_stats command.
type Stats struct {
	TotalTerms  int
	Trending    []TermCount
	LastRefresh time.Time
}

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithFetchers configures the external term sources consulted by
// [Store.Refresh]. Without fetchers, Refresh is a no-op.
func WithFetchers(fetchers ...SourceFetcher) Option {
	return func(s *Store) {
		s.fetchers = fetchers
	}
}

// Store is the shared technical-vocabulary service. Terms only grow; there is
// no removal path short of process restart.
type Store struct {
	fetchers []SourceFetcher

	mu          sync.RWMutex
	terms       map[string]struct{}
	order       []string // insertion order, parallel to terms
	freq        map[string]int
	lastRefresh time.Time

	gateMu sync.Mutex
	gates  map[string]*sourceGate
}

// New creates a [Store] seeded with the base vocabulary.
func New(opts ...Option) *Store {
	s := &Store{
		terms: make(map[string]struct{}, len(baseTerms)),
		freq:  make(map[string]int, len(baseTerms)),
		gates: make(map[string]*sourceGate),
	}
	for _, o := range opts {
		o(s)
	}
	for _, t := range baseTerms {
		s.insert(t)
	}
	return s
}

// insert adds term to the set if absent. Must be called with s.mu held, or
// during construction before the store escapes.
func (s *Store) insert(term string) {
	if _, ok := s.terms[term]; !ok {
		s.terms[term] = struct{}{}
		s.order = append(s.order, term)
	}
}

// IsValidTerm reports whether candidate looks like a technical term. The
// evaluation order is load-bearing and mirrored by downstream expectations:
//
//  1. Reject terms shorter than 2 runes and stoplisted common words.
//  2. Accept on a technical suffix or prefix pattern.
//  3. Accept terms containing a digit with length > 3 (versioned names).
//  4. Accept members of the known file-extension / protocol set.
//
// The candidate is lowercased before classification.
func (s *Store) IsValidTerm(candidate string) bool {
	term := strings.ToLower(candidate)
	if len(term) < 2 {
		return false
	}
	if _, stopped := stopWords[term]; stopped {
		return false
	}

	for _, suf := range techSuffixes {
		if strings.HasSuffix(term, suf) {
			return true
		}
	}
	for _, pre := range techPrefixes {
		if strings.HasPrefix(term, pre) {
			return true
		}
	}

	if len(term) > 3 && digitRE.MatchString(term) {
		return true
	}

	_, known := knownExtensions[term]
	return known
}

// ExtractTerms tokenises freeText with the strict boundary rule (token must
// begin and end with a letter), lowercases each token, and admits every token
// that passes [Store.IsValidTerm]. Admitted tokens have their frequency count
// incremented. Returns the number of tokens admitted (including repeats of
// already-known terms).
func (s *Store) ExtractTerms(freeText string) int {
	if freeText == "" {
		return 0
	}
	tokens := strictTokenRE.FindAllString(strings.ToLower(freeText), -1)

	added := 0
	for _, tok := range tokens {
		if !s.IsValidTerm(tok) {
			continue
		}
		s.mu.Lock()
		s.insert(tok)
		s.freq[tok]++
		s.mu.Unlock()
		added++
	}
	return added
}

// AddTerms validates each candidate via [Store.IsValidTerm] and inserts the
// survivors. Manually added terms are not exempt from the heuristic filter;
// invalid candidates are silently dropped. Each accepted candidate increments
// the term's frequency count, so concurrent additions of the same term from
// different sessions are all reflected. Returns the number accepted.
func (s *Store) AddTerms(candidates ...string) int {
	accepted := 0
	for _, c := range candidates {
		term := strings.ToLower(strings.TrimSpace(c))
		if term == "" || !s.IsValidTerm(term) {
			continue
		}
		s.mu.Lock()
		s.insert(term)
		s.freq[term]++
		s.mu.Unlock()
		accepted++
	}
	return accepted
}

// addTag admits a structured tag from a source that reports its own
// popularity count (e.g. Stack Overflow). The tag is validated like any other
// candidate; its frequency is increased by count.
func (s *Store) addTag(name string, count int) bool {
	term := strings.ToLower(strings.TrimSpace(name))
	if term == "" || !s.IsValidTerm(term) {
		return false
	}
	if count < 1 {
		count = 1
	}
	s.mu.Lock()
	s.insert(term)
	s.freq[term] += count
	s.mu.Unlock()
	return true
}

// Contains reports whether term (case-insensitive) is in the vocabulary.
func (s *Store) Contains(term string) bool {
	t := strings.ToLower(term)
	s.mu.RLock()
	_, ok := s.terms[t]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of distinct terms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.terms)
}

// Terms returns a snapshot of all terms in insertion order.
func (s *Store) Terms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// SearchSimilar returns up to limit vocabulary terms whose similarity to
// query is at least 60/100, ordered by descending score. Ties keep insertion
// order, so the ranking is deterministic for an identical term set.
func (s *Store) SearchSimilar(query string, limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	matches := fuzzy.ExtractTop(strings.ToLower(query), s.Terms(), limit, searchCutoff, fuzzy.Ratio)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Term)
	}
	return out
}

// Stats returns the current vocabulary summary: total term count, the top
// trending terms by frequency, and the last successful refresh time (zero if
// no refresh has completed yet).
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trending := make([]TermCount, 0, len(s.freq))
	for term, count := range s.freq {
		trending = append(trending, TermCount{Term: term, Count: count})
	}
	sort.Slice(trending, func(i, j int) bool {
		if trending[i].Count != trending[j].Count {
			return trending[i].Count > trending[j].Count
		}
		return trending[i].Term < trending[j].Term
	})
	if len(trending) > trendingLimit {
		trending = trending[:trendingLimit]
	}

	return Stats{
		TotalTerms:  len(s.terms),
		Trending:    trending,
		LastRefresh: s.lastRefresh,
	}
}

// LastRefresh returns the completion time of the most recent refresh fan-out,
// or the zero time when none has run yet.
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// markRefreshed records the completion of a refresh fan-out.
func (s *Store) markRefreshed(t time.Time) {
	s.mu.Lock()
	s.lastRefresh = t
	s.mu.Unlock()
}

package corrector

import "regexp"

// rewriteRule is a single phonetic rewrite: a word-boundary-delimited pattern
// and its replacement.
type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rewriteRules are applied in declared order over the lowercased text. The
// order is load-bearing: later rules may rely on earlier normalisation having
// already happened, so no rule may be assumed independent of the others.
var rewriteRules = []rewriteRule{
	// Letter-by-letter spellings.
	{regexp.MustCompile(`\ba p i\b`), "api"},
	{regexp.MustCompile(`\bj son\b`), "json"},
	{regexp.MustCompile(`\bx m l\b`), "xml"},
	{regexp.MustCompile(`\bs q l\b`), "sql"},
	{regexp.MustCompile(`\bh t m l\b`), "html"},
	{regexp.MustCompile(`\bc s s\b`), "css"},
	{regexp.MustCompile(`\bg p t\b`), "gpt"},
	{regexp.MustCompile(`\ba i\b`), "ai"},
	{regexp.MustCompile(`\bm l\b`), "ml"},
	{regexp.MustCompile(`\bu i\b`), "ui"},
	{regexp.MustCompile(`\bu x\b`), "ux"},

	// Split compound terms.
	{regexp.MustCompile(`\bweb socket\b`), "websocket"},
	{regexp.MustCompile(`\bnode js\b`), "nodejs"},
	{regexp.MustCompile(`\bnext js\b`), "nextjs"},
	{regexp.MustCompile(`\bview js\b`), "vuejs"},
	{regexp.MustCompile(`\breact js\b`), "reactjs"},
	{regexp.MustCompile(`\btype script\b`), "typescript"},
	{regexp.MustCompile(`\bjava script\b`), "javascript"},
	{regexp.MustCompile(`\bmongo db\b`), "mongodb"},
	{regexp.MustCompile(`\bpostgres ql\b`), "postgresql"},
	{regexp.MustCompile(`\bmy sql\b`), "mysql"},
	{regexp.MustCompile(`\bdev ops\b`), "devops"},
	{regexp.MustCompile(`\bci cd\b`), "cicd"},

	// Phrase contractions.
	{regexp.MustCompile(`\bchat gpt\b`), "chatgpt"},
	{regexp.MustCompile(`\bopen ai\b`), "openai"},
	{regexp.MustCompile(`\bhugging face\b`), "huggingface"},
	{regexp.MustCompile(`\bpy torch\b`), "pytorch"},
	{regexp.MustCompile(`\btensor flow\b`), "tensorflow"},
	{regexp.MustCompile(`\bsci kit learn\b`), "scikit-learn"},
}

// techIndicators are surface patterns suggesting unresolved technical
// phrasing. When any of them matches, the rewrite pass is re-applied as a
// final best-effort enhancement.
var techIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\b[a-z] [a-z] [a-z]\b`), // letter-by-letter spellings
	regexp.MustCompile(`\bweb \w+\b`),           // web technologies
	regexp.MustCompile(`\bnode \w+\b`),          // node technologies
	regexp.MustCompile(`\b\w+ js\b`),            // JavaScript frameworks
	regexp.MustCompile(`\b\w+ sql\b`),           // SQL variants
}

// applyRewrites lowercases text and applies every rewrite rule in order.
func applyRewrites(text string) string {
	corrected := toLower(text)
	for _, rule := range rewriteRules {
		corrected = rule.pattern.ReplaceAllString(corrected, rule.replacement)
	}
	return corrected
}

// hasTechIndicators reports whether text matches any tech-indicator pattern.
func hasTechIndicators(text string) bool {
	lower := toLower(text)
	for _, re := range techIndicators {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

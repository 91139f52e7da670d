// Package intent turns a free-text financial question into a structured,
// machine-checkable query. Resolution is pure: the reference time is always
// supplied by the caller and the resolver has no side effects.
package intent

import (
	"strings"
	"time"

	"finchat/internal/core"
)

type Resolver struct {
	categories *CategoryIndex
}

// NewResolver creates a resolver over the given category index. A nil index
// falls back to the default taxonomy.
func NewResolver(idx *CategoryIndex) *Resolver {
	if idx == nil {
		idx = DefaultCategories()
	}
	return &Resolver{categories: idx}
}

// Resolve parses the question into a StructuredQuery. It fails closed: an
// unmatched category or missing time range yields an UnresolvableError,
// never a guessed query. Questions with no personal-ledger cues at all are
// reported as general questions so the caller can route them to the LLM
// without an aggregation.
func (r *Resolver) Resolve(question, userID string, now time.Time) (core.StructuredQuery, error) {
	if strings.TrimSpace(question) == "" {
		return core.StructuredQuery{}, core.ErrEmptyQuestion
	}

	tokens := tokenize(question)
	kind, kindFound := detectKind(tokens)
	cats, unknown := r.detectCategories(tokens)

	if unknown != "" {
		return core.StructuredQuery{}, core.Unresolvable(core.ReasonUnknownCategory, "no category matches '"+unknown+"'")
	}

	if !kindFound {
		if len(cats) == 0 && !hasLedgerCue(tokens) {
			return core.StructuredQuery{}, core.Unresolvable(core.ReasonGeneralQuestion, "")
		}
		return core.StructuredQuery{}, core.Unresolvable(core.ReasonUnsupportedKind, "could not tell sum, count, average or trend")
	}

	rng, ok := parseTimeRange(tokens, now)
	if !ok {
		return core.StructuredQuery{}, core.Unresolvable(core.ReasonAmbiguousTime, "no recognizable time range in question")
	}

	q := core.StructuredQuery{
		UserID:     userID,
		Range:      rng,
		Categories: cats,
		Kind:       kind,
	}
	if err := q.Validate(); err != nil {
		return core.StructuredQuery{}, err
	}
	return q, nil
}

// detectKind maps question phrasing to an aggregation kind. Trend and
// average are checked before sum because their phrasings often contain
// spend words too ("spending trend per month").
func detectKind(tokens []string) (core.AggregationKind, bool) {
	joined := " " + strings.Join(tokens, " ") + " "

	trendCues := []string{" trend ", " over time ", " per day ", " per week ", " per month ", " month by month ", " day by day ", " breakdown "}
	for _, c := range trendCues {
		if strings.Contains(joined, c) {
			return core.AggregationTrend, true
		}
	}
	avgCues := []string{" average ", " avg ", " mean ", " typically ", " per transaction "}
	for _, c := range avgCues {
		if strings.Contains(joined, c) {
			return core.AggregationAverage, true
		}
	}
	countCues := []string{" how many ", " number of ", " count "}
	for _, c := range countCues {
		if strings.Contains(joined, c) {
			return core.AggregationCount, true
		}
	}
	sumCues := []string{" how much ", " total ", " sum ", " spend ", " spent ", " altogether ", " overall ", " earn ", " earned "}
	for _, c := range sumCues {
		if strings.Contains(joined, c) {
			return core.AggregationSum, true
		}
	}
	return "", false
}

// detectCategories collects matched category filters. When a filter phrase
// ("on X" / "for X") points at something the index does not know, the
// offending word is returned so the resolver can fail closed.
func (r *Resolver) detectCategories(tokens []string) (cats []string, unknown string) {
	seen := make(map[string]struct{})
	i := 0
	for i < len(tokens) {
		if c, n, ok := r.categories.MatchTokens(tokens, i); ok {
			if _, dup := seen[c]; !dup {
				seen[c] = struct{}{}
				cats = append(cats, c)
			}
			i += n
			continue
		}
		i++
	}

	// A filter preposition followed by an unmatched noun means the user
	// asked for a category we do not have.
	for i, tok := range tokens {
		if tok != "on" && tok != "for" {
			continue
		}
		if i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1]
		if isFilterStopword(next) {
			continue
		}
		if _, _, ok := r.categories.MatchTokens(tokens, i+1); !ok {
			return cats, next
		}
	}
	return cats, ""
}

func isFilterStopword(tok string) bool {
	switch tok {
	case "the", "my", "a", "an", "average", "last", "this", "past", "each", "every", "all", "me", "time":
		return true
	}
	if _, ok := monthNames[tok]; ok {
		return true
	}
	// Numbers belong to time expressions, not category filters.
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasLedgerCue(tokens []string) bool {
	for _, tok := range tokens {
		switch tok {
		case "spend", "spent", "spending", "expense", "expenses", "transaction", "transactions", "purchases", "bought", "paid", "balance", "my", "i":
			return true
		}
	}
	return false
}

// tokenize lowercases and strips punctuation, keeping letters and digits.
func tokenize(s string) []string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, s)
	return strings.Fields(s)
}

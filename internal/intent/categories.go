package intent

import "strings"

// CategoryIndex maps user phrasing to canonical ledger categories through a
// synonym table. Matching is case-insensitive and fails closed: a phrase
// that looks like a category filter but matches nothing is an error at the
// resolver level, never a guess.
type CategoryIndex struct {
	synonyms map[string]string // lowercased synonym -> canonical name
}

// DefaultCategories covers the canonical categories the ledger uses.
// Callers with their own taxonomy build an index via NewCategoryIndex.
func DefaultCategories() *CategoryIndex {
	return NewCategoryIndex(map[string][]string{
		"Groceries":     {"groceries", "grocery", "food shopping", "supermarket", "food"},
		"Dining":        {"dining", "restaurants", "restaurant", "eating out", "takeout", "takeaway"},
		"Transport":     {"transport", "transportation", "commute", "uber", "taxi", "bus", "train", "fuel", "petrol"},
		"Rent":          {"rent", "housing"},
		"Utilities":     {"utilities", "bills", "electricity", "water bill", "internet"},
		"Entertainment": {"entertainment", "movies", "cinema", "games", "streaming"},
		"Shopping":      {"shopping", "clothes", "clothing"},
		"Health":        {"health", "medical", "pharmacy", "doctor"},
		"Salary":        {"salary", "paycheck", "wages", "income"},
		"Savings":       {"savings", "saving"},
	})
}

// NewCategoryIndex builds an index from canonical name to synonym list.
// The canonical name itself always matches.
func NewCategoryIndex(table map[string][]string) *CategoryIndex {
	idx := &CategoryIndex{synonyms: make(map[string]string)}
	for canonical, syns := range table {
		idx.synonyms[strings.ToLower(canonical)] = canonical
		for _, s := range syns {
			idx.synonyms[strings.ToLower(s)] = canonical
		}
	}
	return idx
}

// Match resolves a phrase to its canonical category, if known.
func (idx *CategoryIndex) Match(phrase string) (string, bool) {
	c, ok := idx.synonyms[strings.ToLower(strings.TrimSpace(phrase))]
	return c, ok
}

// MatchTokens tries the longest token n-gram first (up to three tokens)
// starting at position i. Returns the canonical category and how many
// tokens were consumed.
func (idx *CategoryIndex) MatchTokens(tokens []string, i int) (string, int, bool) {
	for n := 3; n >= 1; n-- {
		if i+n > len(tokens) {
			continue
		}
		phrase := strings.Join(tokens[i:i+n], " ")
		if c, ok := idx.Match(phrase); ok {
			return c, n, true
		}
	}
	return "", 0, false
}

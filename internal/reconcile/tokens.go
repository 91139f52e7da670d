package reconcile

import (
	"regexp"
	"strconv"
	"strings"
)

// TokenKind tags a segment of the LLM reply.
type TokenKind int

const (
	PlainText TokenKind = iota
	NumericClaim
)

// Token is one segment of a tokenized reply. NumericClaim tokens carry the
// parsed amount in cents alongside the raw text.
type Token struct {
	Kind  TokenKind
	Text  string
	Cents int64 // absolute value in cents, only for NumericClaim
	Whole bool  // claim had no fractional part (candidate for a count)
}

// amountPattern is the fixed grammar for numeric claims: an optional
// currency marker, digits with optional thousands separators, optional
// decimals.
var amountPattern = regexp.MustCompile(`[€$]?\d[\d,]*(?:\.\d+)?`)

// Tokenize splits the reply into PlainText and NumericClaim tokens. Years,
// date components and percentages are deliberately left as plain text:
// only standalone amounts count as claims.
func Tokenize(reply string) []Token {
	var tokens []Token
	last := 0
	for _, loc := range amountPattern.FindAllStringIndex(reply, -1) {
		start, end := loc[0], loc[1]
		raw := reply[start:end]

		if !isClaim(reply, start, end, raw) {
			continue
		}

		cents, whole, ok := parseClaim(raw)
		if !ok {
			continue
		}
		if start > last {
			tokens = append(tokens, Token{Kind: PlainText, Text: reply[last:start]})
		}
		tokens = append(tokens, Token{Kind: NumericClaim, Text: raw, Cents: cents, Whole: whole})
		last = end
	}
	if last < len(reply) {
		tokens = append(tokens, Token{Kind: PlainText, Text: reply[last:]})
	}
	return tokens
}

// isClaim filters out matches that are calendar or percentage artifacts
// rather than monetary claims.
func isClaim(reply string, start, end int, raw string) bool {
	// Attached to a date ("2024-03-01", "03/15") or a word.
	if start > 0 {
		switch reply[start-1] {
		case '-', '/', '.':
			return false
		}
	}
	if end < len(reply) {
		switch reply[end] {
		case '-', '/', '%':
			return false
		}
	}
	// A bare 4-digit integer in a plausible year range is a year.
	digits := strings.TrimLeft(raw, "€$")
	if len(digits) == 4 && !strings.ContainsAny(digits, ".,") {
		if y, err := strconv.Atoi(digits); err == nil && y >= 1900 && y <= 2100 {
			return false
		}
	}
	return true
}

func parseClaim(raw string) (cents int64, whole bool, ok bool) {
	s := strings.TrimLeft(raw, "€$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false, false
	}
	whole = !strings.Contains(s, ".")

	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	v, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false, false
	}
	cents = v * 100
	if len(frac) > 1 {
		f := frac[1:]
		if len(f) > 2 {
			f = f[:2]
		}
		fv, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return 0, false, false
		}
		if len(f) == 1 {
			fv *= 10
		}
		cents += fv
	}
	return cents, whole, true
}

// Package reconcile checks LLM replies against the grounded aggregation
// result and rewrites any numeric claim the data does not support.
package reconcile

import (
	"strings"

	"finchat/internal/core"
)

// Mismatch records one corrected claim.
type Mismatch struct {
	Claimed  string
	Expected string
}

// Outcome is the reconciled reply.
type Outcome struct {
	Answer     string
	Reconciled bool // true when at least one claim was rewritten
	Mismatches []Mismatch
}

// Reconcile tokenizes the reply and compares every numeric claim with the
// verified figures in the aggregation result. Claims that match any verified
// figure pass through unchanged; claims that match none are replaced with
// the primary verified value. Replies with no claims pass through as-is.
func Reconcile(reply string, r core.AggregationResult) Outcome {
	tokens := Tokenize(reply)

	centsSet, countSet := verifiedFigures(r)
	expected := core.Money{Cents: abs(r.Value.Cents)}.String()

	var b strings.Builder
	out := Outcome{}
	for _, tok := range tokens {
		if tok.Kind == PlainText {
			b.WriteString(tok.Text)
			continue
		}
		if matches(tok, centsSet, countSet) {
			b.WriteString(tok.Text)
			continue
		}
		b.WriteString(expected)
		out.Reconciled = true
		out.Mismatches = append(out.Mismatches, Mismatch{Claimed: tok.Text, Expected: expected})
	}
	out.Answer = b.String()
	return out
}

// verifiedFigures collects every amount the composer could legitimately have
// surfaced: the headline value, category breakdown lines, trend buckets and
// the transaction count.
func verifiedFigures(r core.AggregationResult) (cents map[int64]struct{}, counts map[int64]struct{}) {
	cents = map[int64]struct{}{abs(r.Value.Cents): {}}
	for _, c := range r.ByCategory {
		cents[abs(c.Amount.Cents)] = struct{}{}
	}
	for _, bk := range r.Buckets {
		cents[abs(bk.Total.Cents)] = struct{}{}
	}
	counts = map[int64]struct{}{int64(r.Count): {}}
	return cents, counts
}

func matches(tok Token, cents, counts map[int64]struct{}) bool {
	if _, ok := cents[tok.Cents]; ok {
		return true
	}
	if tok.Whole && tok.Cents%100 == 0 {
		if _, ok := counts[tok.Cents/100]; ok {
			return true
		}
	}
	return false
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

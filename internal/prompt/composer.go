// Package prompt builds grounded prompts for the LLM. The composed text
// embeds the exact precomputed numbers and their provenance so the model
// is never in a position to invent figures, and it never includes
// transaction-level detail beyond what the aggregation already exposes.
package prompt

import (
	"strconv"
	"strings"

	"finchat/internal/core"
)

const (
	// maxBreakdownLines bounds category and bucket listings so the prompt
	// stays small regardless of ledger size.
	maxBreakdownLines = 12

	// maxQuestionLen truncates pathological questions.
	maxQuestionLen = 500

	dateLayout = "2006-01-02"
)

// Compose builds the grounded prompt for a ledger-backed question. Pure
// function, no I/O.
func Compose(question string, q core.StructuredQuery, r core.AggregationResult) string {
	var b strings.Builder

	b.WriteString("You are a personal finance assistant. Answer the user's question using ONLY the verified figures below.\n")
	b.WriteString("The figures were computed directly from the user's transaction ledger; do not invent, adjust or re-derive any number.\n\n")

	b.WriteString("VERIFIED DATA:\n")
	b.WriteString("- Period: " + q.Range.Start.Format(dateLayout) + " to " + q.Range.End.AddDate(0, 0, -1).Format(dateLayout) + "\n")
	if len(q.Categories) > 0 {
		b.WriteString("- Categories: " + strings.Join(q.Categories, ", ") + "\n")
	} else {
		b.WriteString("- Categories: all\n")
	}

	if r.NoData {
		b.WriteString("- No transactions were found for this period and filter.\n")
	} else {
		switch r.Kind {
		case core.AggregationSum:
			writeSum(&b, r)
		case core.AggregationCount:
			b.WriteString("- Transaction count: " + itoa(r.Count) + "\n")
		case core.AggregationAverage:
			b.WriteString("- Average amount per transaction: " + r.Value.Abs().String() + " " + r.Unit + signNote(r.Value) + "\n")
			b.WriteString("- Transaction count: " + itoa(r.Count) + "\n")
		case core.AggregationTrend:
			writeTrend(&b, r)
		}
	}

	b.WriteString("\nRULES:\n")
	b.WriteString("1. State amounts exactly as given above, without changing digits.\n")
	b.WriteString("2. Spending totals are reported as positive amounts (the sign is already handled).\n")
	b.WriteString("3. If no transactions were found, say so plainly.\n")
	b.WriteString("4. Keep the answer to at most 4 short sentences. No markdown.\n\n")

	b.WriteString("QUESTION: " + truncate(question, maxQuestionLen) + "\n")
	return b.String()
}

// ComposeGeneral builds the prompt for a general finance question that
// touches no personal data, in the concise style of the assistant.
func ComposeGeneral(question string) string {
	var b strings.Builder
	b.WriteString("Answer the following personal finance question concisely and helpfully, in at most 4 lines. ")
	b.WriteString("Do not ask for personal data and do not invent account figures.\n\n")
	b.WriteString("Question: " + truncate(question, maxQuestionLen) + "\n\nAnswer:")
	return b.String()
}

func writeSum(b *strings.Builder, r core.AggregationResult) {
	label := "- Total"
	if r.Value.IsNegative() {
		label = "- Total spent"
	}
	b.WriteString(label + ": " + r.Value.Abs().String() + " " + r.Unit + "\n")
	b.WriteString("- Transaction count: " + itoa(r.Count) + "\n")
	if len(r.ByCategory) > 1 {
		b.WriteString("- By category:\n")
		for i, c := range r.ByCategory {
			if i == maxBreakdownLines {
				b.WriteString("  (further categories omitted)\n")
				break
			}
			b.WriteString("  " + c.Name + ": " + c.Amount.Abs().String() + " " + r.Unit + "\n")
		}
	}
}

func writeTrend(b *strings.Builder, r core.AggregationResult) {
	b.WriteString("- Overall total: " + r.Value.Abs().String() + " " + r.Unit + signNote(r.Value) + "\n")
	b.WriteString("- " + string(r.Width) + " totals:\n")
	for i, bk := range r.Buckets {
		if i == maxBreakdownLines {
			b.WriteString("  (further periods omitted)\n")
			break
		}
		b.WriteString("  " + bk.Start.Format(dateLayout) + ": " + bk.Total.Abs().String() + " " + r.Unit + "\n")
	}
}

func signNote(m core.Money) string {
	if m.IsNegative() {
		return " (spending)"
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

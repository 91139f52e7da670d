package services

import (
	"fmt"
	"strings"

	"finchat/internal/core"
)

const fallbackDateLayout = "2 January 2006"

// FallbackAnswer renders a templated answer straight from the grounded
// result. Used when the LLM gateway is unavailable; the wording is flat
// but every figure is verified.
func FallbackAnswer(q core.StructuredQuery, r core.AggregationResult) string {
	period := fmt.Sprintf("between %s and %s",
		r.Range.Start.Format(fallbackDateLayout),
		r.Range.End.AddDate(0, 0, -1).Format(fallbackDateLayout))
	scope := categoryScope(q.Categories)

	if r.NoData {
		return fmt.Sprintf("No matching transactions%s were found %s.", scope, period)
	}

	switch r.Kind {
	case core.AggregationSum:
		verb := "spent"
		if r.Value.Cents > 0 {
			verb = "received"
		}
		return fmt.Sprintf("You %s %s %s%s %s.",
			verb, r.Value.Abs().String(), r.Unit, scope, period)

	case core.AggregationCount:
		noun := "transactions"
		if r.Count == 1 {
			noun = "transaction"
		}
		return fmt.Sprintf("You made %d %s%s %s.", r.Count, noun, scope, period)

	case core.AggregationAverage:
		return fmt.Sprintf("Your average transaction%s %s was %s %s.",
			scope, period, r.Value.Abs().String(), r.Unit)

	case core.AggregationTrend:
		return fmt.Sprintf("Across %d %s intervals %s, your transactions%s totalled %s %s.",
			len(r.Buckets), string(r.Width), period, scope, r.Value.Abs().String(), r.Unit)

	default:
		return fmt.Sprintf("Your transactions%s %s totalled %s %s.",
			scope, period, r.Value.Abs().String(), r.Unit)
	}
}

func categoryScope(categories []string) string {
	if len(categories) == 0 {
		return ""
	}
	return " on " + strings.Join(categories, ", ")
}

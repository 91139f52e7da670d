package prompt

import (
	"strings"
	"testing"
	"time"

	"finchat/internal/core"
)

func marchQuery(t *testing.T) (core.StructuredQuery, core.AggregationResult) {
	t.Helper()
	start, _ := time.Parse("2006-01-02", "2024-03-01")
	end, _ := time.Parse("2006-01-02", "2024-04-01")
	q := core.StructuredQuery{
		UserID:     "u1",
		Range:      core.NewTimeRange(start, end),
		Categories: []string{"Groceries"},
		Kind:       core.AggregationSum,
	}
	r := core.AggregationResult{
		Kind:  core.AggregationSum,
		Value: core.Money{Cents: -8000},
		Count: 2,
		Unit:  "EUR",
		Range: q.Range,
	}
	return q, r
}

func TestComposeEmbedsVerifiedNumber(t *testing.T) {
	q, r := marchQuery(t)
	p := Compose("How much did I spend on groceries in March 2024?", q, r)

	if !strings.Contains(p, "80 EUR") {
		t.Errorf("prompt missing verified amount:\n%s", p)
	}
	if !strings.Contains(p, "2024-03-01") || !strings.Contains(p, "2024-03-31") {
		t.Errorf("prompt missing provenance dates:\n%s", p)
	}
	if !strings.Contains(p, "Groceries") {
		t.Errorf("prompt missing category filter:\n%s", p)
	}
}

func TestComposeRedactsTransactionDetail(t *testing.T) {
	q, r := marchQuery(t)
	p := Compose("How much did I spend on groceries in March 2024?", q, r)

	// Only the aggregate goes in; no per-transaction amounts or descriptions.
	for _, leak := range []string{"50", "30", "description", "Description"} {
		if strings.Contains(p, leak) {
			t.Errorf("prompt leaks transaction detail %q:\n%s", leak, p)
		}
	}
}

func TestComposeNoData(t *testing.T) {
	q, r := marchQuery(t)
	r.NoData = true
	r.Value = core.Money{}
	r.Count = 0

	p := Compose("How much did I spend on groceries in March 2024?", q, r)
	if !strings.Contains(p, "No transactions were found") {
		t.Errorf("prompt should state the empty result:\n%s", p)
	}
}

func TestComposeBoundedSize(t *testing.T) {
	q, r := marchQuery(t)
	r.Kind = core.AggregationTrend
	q.Kind = core.AggregationTrend
	r.Width = core.BucketDaily
	start := q.Range.Start
	for i := 0; i < 400; i++ {
		r.Buckets = append(r.Buckets, core.Bucket{Start: start.AddDate(0, 0, i), Total: core.Money{Cents: -100}})
	}
	long := strings.Repeat("why ", 1000)

	p := Compose(long, q, r)
	if len(p) > 4000 {
		t.Errorf("prompt too large: %d bytes", len(p))
	}
	if !strings.Contains(p, "further periods omitted") {
		t.Error("expected bucket truncation marker")
	}
}

func TestComposeGeneral(t *testing.T) {
	p := ComposeGeneral("What is an index fund?")
	if !strings.Contains(p, "What is an index fund?") {
		t.Errorf("general prompt missing question:\n%s", p)
	}
	if !strings.Contains(p, "at most 4 lines") {
		t.Errorf("general prompt missing conciseness instruction:\n%s", p)
	}
}

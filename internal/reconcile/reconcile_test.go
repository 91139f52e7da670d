package reconcile

import (
	"strings"
	"testing"
	"time"

	"finchat/internal/core"
)

func marchResult() core.AggregationResult {
	return core.AggregationResult{
		Kind:  core.AggregationSum,
		Value: core.Money{Cents: -8000},
		Count: 2,
		Unit:  "EUR",
		Range: core.NewTimeRange(
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		),
	}
}

func TestReconcileMatchingClaimPassesThrough(t *testing.T) {
	out := Reconcile("You spent 80 EUR on groceries in March 2024.", marchResult())

	if out.Reconciled {
		t.Fatalf("matching claim flagged as reconciled: %+v", out.Mismatches)
	}
	if out.Answer != "You spent 80 EUR on groceries in March 2024." {
		t.Fatalf("answer changed: %q", out.Answer)
	}
}

func TestReconcileRewritesContradictingClaim(t *testing.T) {
	out := Reconcile("You spent 75 EUR on groceries.", marchResult())

	if !out.Reconciled {
		t.Fatal("contradicting claim not flagged")
	}
	if out.Answer != "You spent 80 EUR on groceries." {
		t.Fatalf("answer = %q", out.Answer)
	}
	if len(out.Mismatches) != 1 || out.Mismatches[0].Claimed != "75" || out.Mismatches[0].Expected != "80" {
		t.Fatalf("mismatches = %+v", out.Mismatches)
	}
}

func TestReconcileCurrencyAndDecimalForms(t *testing.T) {
	cases := []struct {
		reply string
		want  bool // reconciled
	}{
		{"That comes to €80.", false},
		{"That comes to 80.00 EUR.", false},
		{"That comes to $80.", false},
		{"That comes to 80.50 EUR.", true},
		{"That comes to €79.", true},
	}
	for _, tc := range cases {
		out := Reconcile(tc.reply, marchResult())
		if out.Reconciled != tc.want {
			t.Errorf("Reconcile(%q).Reconciled = %v, want %v (answer %q)",
				tc.reply, out.Reconciled, tc.want, out.Answer)
		}
	}
}

func TestReconcileCountClaim(t *testing.T) {
	out := Reconcile("Across 2 transactions you spent 80 EUR.", marchResult())
	if out.Reconciled {
		t.Fatalf("count claim flagged: %q", out.Answer)
	}
}

func TestReconcileIgnoresYearsAndDates(t *testing.T) {
	out := Reconcile("Between 2024-03-01 and 2024-03-31 (March 2024) you spent 80 EUR.", marchResult())
	if out.Reconciled {
		t.Fatalf("calendar tokens flagged: %+v", out.Mismatches)
	}
	if !strings.Contains(out.Answer, "2024-03-31") {
		t.Fatalf("date mangled: %q", out.Answer)
	}
}

func TestReconcileIgnoresPercentages(t *testing.T) {
	out := Reconcile("Spending rose 15% to 80 EUR.", marchResult())
	if out.Reconciled {
		t.Fatalf("percentage flagged: %+v", out.Mismatches)
	}
}

func TestReconcileNoClaimsPassesThrough(t *testing.T) {
	reply := "You had no grocery spending in that period."
	out := Reconcile(reply, marchResult())
	if out.Reconciled || out.Answer != reply {
		t.Fatalf("out = %+v", out)
	}
}

func TestReconcileAcceptsBreakdownFigures(t *testing.T) {
	r := marchResult()
	r.ByCategory = []core.CategoryAmount{
		{Name: "Dining", Amount: core.Money{Cents: -3000}},
		{Name: "Groceries", Amount: core.Money{Cents: -5000}},
	}
	out := Reconcile("Groceries were 50 EUR and dining 30 EUR, 80 EUR in total.", r)
	if out.Reconciled {
		t.Fatalf("breakdown figures flagged: %+v", out.Mismatches)
	}
}

func TestReconcileThousandsSeparators(t *testing.T) {
	r := marchResult()
	r.Value = core.Money{Cents: -123456}
	out := Reconcile("You spent 1,234.56 EUR overall.", r)
	if out.Reconciled {
		t.Fatalf("separated amount flagged: %+v", out.Mismatches)
	}
}

func TestTokenizeGrammar(t *testing.T) {
	tokens := Tokenize("€80 plus 12.34 across 2 buys in 2024")
	var claims []int64
	for _, tok := range tokens {
		if tok.Kind == NumericClaim {
			claims = append(claims, tok.Cents)
		}
	}
	want := []int64{8000, 1234, 200}
	if len(claims) != len(want) {
		t.Fatalf("claims = %v, want %v", claims, want)
	}
	for i := range want {
		if claims[i] != want[i] {
			t.Fatalf("claims = %v, want %v", claims, want)
		}
	}
}

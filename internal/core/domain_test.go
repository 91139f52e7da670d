package core

import (
	"errors"
	"testing"
	"time"
)

func mustRange(t *testing.T, start, end string) TimeRange {
	t.Helper()
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return NewTimeRange(s, e)
}

func TestTimeRangeContains(t *testing.T) {
	r := mustRange(t, "2024-03-01", "2024-04-01")

	inside := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if !r.Contains(inside) {
		t.Errorf("expected %v inside %v", inside, r)
	}
	if !r.Contains(r.Start) {
		t.Error("start should be inclusive")
	}
	if r.Contains(r.End) {
		t.Error("end should be exclusive")
	}
	before := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if r.Contains(before) {
		t.Errorf("expected %v outside %v", before, r)
	}
}

func TestTimeRangeDays(t *testing.T) {
	tests := []struct {
		start, end string
		want       int
	}{
		{"2024-03-01", "2024-04-01", 31},
		{"2024-01-01", "2025-01-01", 366}, // leap year
		{"2024-03-01", "2024-03-02", 1},
	}
	for _, tt := range tests {
		r := mustRange(t, tt.start, tt.end)
		if got := r.Days(); got != tt.want {
			t.Errorf("Days(%s..%s) = %d, want %d", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestStructuredQueryValidate(t *testing.T) {
	valid := StructuredQuery{
		UserID:     "u1",
		Range:      mustRange(t, "2024-03-01", "2024-04-01"),
		Categories: []string{"Groceries"},
		Kind:       AggregationSum,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid query rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(q *StructuredQuery)
		want   error
	}{
		{"missing user", func(q *StructuredQuery) { q.UserID = " " }, ErrEmptyUserID},
		{"bad kind", func(q *StructuredQuery) { q.Kind = "median" }, ErrInvalidAggregation},
		{"blank category", func(q *StructuredQuery) { q.Categories = []string{""} }, ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)
			if err := q.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("inverted range", func(t *testing.T) {
		q := valid
		q.Range = TimeRange{Start: q.Range.End, End: q.Range.Start}
		if err := q.Validate(); err == nil {
			t.Error("expected error for inverted range")
		}
	})
}

func TestXPEventValidate(t *testing.T) {
	valid := XPEvent{
		EventID:    "e1",
		UserID:     "u1",
		Action:     ActionExpenseLogged,
		XPDelta:    10,
		OccurredAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	e := valid
	e.EventID = ""
	if err := e.Validate(); !errors.Is(err, ErrEmptyEventID) {
		t.Errorf("expected ErrEmptyEventID, got %v", err)
	}

	e = valid
	e.XPDelta = -25 // penalties are allowed
	if err := e.Validate(); err != nil {
		t.Errorf("negative delta should be valid: %v", err)
	}
}

func TestUnresolvableError(t *testing.T) {
	err := Unresolvable(ReasonUnknownCategory, "no match for 'gadgets'")
	if !errors.Is(err, ErrUnresolvable) {
		t.Error("Unresolvable should wrap ErrUnresolvable")
	}
	var ue *UnresolvableError
	if !errors.As(err, &ue) {
		t.Fatal("expected *UnresolvableError")
	}
	if ue.Reason != ReasonUnknownCategory {
		t.Errorf("Reason = %q, want %q", ue.Reason, ReasonUnknownCategory)
	}
}

func TestGatewayError(t *testing.T) {
	last := errors.New("connection reset")
	err := &GatewayError{Attempts: 3, Last: last}
	if !errors.Is(err, ErrGatewayFailure) {
		t.Error("GatewayError should wrap ErrGatewayFailure")
	}
}

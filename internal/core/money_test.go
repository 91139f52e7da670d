package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"dot separator", "12.34", 1234, false},
		{"comma separator", "12,34", 1234, false},
		{"whole amount", "80", 8000, false},
		{"negative", "-12.34", -1234, false},
		{"explicit plus", "+5", 500, false},
		{"rounds down third decimal", "12.344", 1234, false},
		{"rounds up third decimal", "12.346", 1235, false},
		{"single fractional digit", "12.3", 1230, false},
		{"leading dot", ".50", 50, false},
		{"empty", "", 0, true},
		{"just spaces", "   ", 0, true},
		{"letters", "abc", 0, true},
		{"two separators", "1.2.3", 0, true},
		{"bare zero", "0", 0, true},
		{"overflow", "99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalToCents(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{8000, "80"},
		{-8000, "-80"},
		{1234, "12.34"},
		{-1234, "-12.34"},
		{5, "0.05"},
		{0, "0"},
		{100050, "1000.50"},
	}

	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMoneyAbsAdd(t *testing.T) {
	if got := (Money{Cents: -80}).Abs(); got.Cents != 80 {
		t.Errorf("Abs(-80) = %d, want 80", got.Cents)
	}
	if got := (Money{Cents: 80}).Abs(); got.Cents != 80 {
		t.Errorf("Abs(80) = %d, want 80", got.Cents)
	}
	if got := (Money{Cents: -5000}).Add(Money{Cents: 2000}); got.Cents != -3000 {
		t.Errorf("Add = %d, want -3000", got.Cents)
	}
}

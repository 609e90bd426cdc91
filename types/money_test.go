package types

import "testing"

func TestCentsArithmetic(t *testing.T) {
	a := Cents(4900)
	b := Cents(100)

	if got := a.Add(b); got != 5000 {
		t.Errorf("Add: got %d, want 5000", got)
	}
	if got := a.Sub(b); got != 4800 {
		t.Errorf("Sub: got %d, want 4800", got)
	}
	if got := a.Negate(); got != -4900 {
		t.Errorf("Negate: got %d, want -4900", got)
	}
	if got := Cents(-50).Abs(); got != 50 {
		t.Errorf("Abs: got %d, want 50", got)
	}
}

func TestCentsPredicates(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() should be true")
	}
	if !Cents(1).IsPositive() {
		t.Error("Cents(1).IsPositive() should be true")
	}
	if !Cents(-1).IsNegative() {
		t.Error("Cents(-1).IsNegative() should be true")
	}
}

func TestCentsString(t *testing.T) {
	tests := []struct {
		cents Cents
		want  string
	}{
		{4900, "$49.00"},
		{1, "$0.01"},
		{0, "$0.00"},
		{-150, "-$1.50"},
	}
	for _, tt := range tests {
		if got := tt.cents.String(); got != tt.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestFromUSDRoundTrip(t *testing.T) {
	if got := FromUSD(49.00); got != 4900 {
		t.Errorf("FromUSD(49.00) = %d, want 4900", got)
	}
	if got := FromUSD(0.01); got != 1 {
		t.Errorf("FromUSD(0.01) = %d, want 1", got)
	}
}

func TestCentsNoOverflowNearBudget(t *testing.T) {
	// 2^62 is the documented safe balance ceiling; arithmetic near it must
	// not silently wrap.
	const near = Cents(1 << 61)
	sum := near.Add(near)
	if sum <= 0 {
		t.Fatalf("unexpected overflow: %d", sum)
	}
}

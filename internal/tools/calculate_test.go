package tools

import (
	"context"
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3", 5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-3 + 5", 2},
		{"2 * -(1 + 1)", -4},
		{"7 - 2 - 1", 4},
		{"12 × 3 ÷ 4", 9},
		{" 42 ", 42},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.expr)
		if err != nil {
			t.Errorf("Evaluate(%q) error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	for _, expr := range []string{"", "   ", "2 +", "(1 + 2", "1 + 2)", "two plus two", "1..2", "3 $ 4"} {
		if _, err := Evaluate(expr); err == nil {
			t.Errorf("Evaluate(%q) should fail", expr)
		}
	}
	if _, err := Evaluate("1 / (2 - 2)"); !errors.Is(err, ErrDivideByZero) {
		t.Errorf("err = %v, want ErrDivideByZero", err)
	}
}

func TestCalculateTool(t *testing.T) {
	r := NewRegistry(quietLogger())
	r.Register(CalculateTool())
	ctx := context.Background()

	tests := map[string]string{
		"2 + 2":     "The result is 4",
		"0.1 + 0.2": "The result is 0.3",
		"1 / 3":     "The result is 0.3333333333",
		"-0 * 5":    "The result is 0",
		"5 / 0":     "I could not calculate that expression.",
		"banana":    "I could not calculate that expression.",
	}
	for in, want := range tests {
		if got := r.Call(ctx, "calculate", in); got != want {
			t.Errorf("calculate %q = %q, want %q", in, got, want)
		}
	}
}

package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegistry_OrderAndDescribe(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "b", Description: "second"})
	r.Register(&Tool{Name: "a", Description: "first"})

	names := r.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("names %v", names)
	}

	desc := r.Describe()
	want := "b: second\na: first"
	if desc != want {
		t.Fatalf("describe %q, want %q", desc, want)
	}
}

func TestRegistry_ReRegisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "a", Description: "old"})
	r.Register(&Tool{Name: "b", Description: "other"})
	r.Register(&Tool{Name: "a", Description: "new"})

	names := r.Names()
	if len(names) != 2 || names[0] != "a" {
		t.Fatalf("names %v", names)
	}
	if !strings.HasPrefix(r.Describe(), "a: new") {
		t.Fatalf("describe %q", r.Describe())
	}
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	if got := r.Invoke(context.Background(), "ghost", "x"); got != "no such tool: ghost" {
		t.Fatalf("observation %q", got)
	}
}

func TestRegistry_InvokeFailureIsObservation(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{
		Name: "flaky",
		Handler: func(ctx context.Context, input string) (string, error) {
			return "", errors.New("timeout")
		},
	})
	if got := r.Invoke(context.Background(), "flaky", "x"); got != "tool flaky failed: timeout" {
		t.Fatalf("observation %q", got)
	}
}

func TestCalculator(t *testing.T) {
	calc := NewCalculator()

	cases := []struct {
		in   string
		want string
	}{
		{"2+2", "4"},
		{"3*(2+4)", "18"},
		{" 10 / 4 ", "2.5"},
		{"-3 + 5", "2"},
		{"2 + 3 * 4", "14"},
		{"(1+2)*(3+4)", "21"},
		{"0.1+0.2", "0.30000000000000004"},
	}
	for _, tc := range cases {
		got, err := calc.Handler(context.Background(), tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCalculator_Errors(t *testing.T) {
	calc := NewCalculator()
	for _, in := range []string{"1/0", "2+", "(1+2", "abc", ""} {
		if _, err := calc.Handler(context.Background(), in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

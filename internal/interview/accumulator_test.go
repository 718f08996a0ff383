package interview

import "testing"

func TestAccumulatorJoinsFragmentsInArrivalOrder(t *testing.T) {
	var a accumulator
	a.Add("I have")
	a.Add("5 years experience")

	if got := a.Flush(); got != "I have 5 years experience" {
		t.Fatalf("unexpected answer: %q", got)
	}
}

func TestAccumulatorFlushResets(t *testing.T) {
	var a accumulator
	a.Add("hello")

	if a.Empty() {
		t.Fatal("expected accumulator to be non-empty")
	}
	if got := a.Flush(); got != "hello" {
		t.Fatalf("unexpected answer: %q", got)
	}
	if !a.Empty() {
		t.Fatal("expected accumulator to be empty after flush")
	}
	if got := a.Flush(); got != "" {
		t.Fatalf("expected empty flush, got %q", got)
	}
}

func TestAccumulatorIgnoresBlankFragments(t *testing.T) {
	var a accumulator
	a.Add("   ")
	a.Add("")

	if !a.Empty() {
		t.Fatal("expected blank fragments to be ignored")
	}

	a.Add("  spaced  ")
	if got := a.Flush(); got != "spaced" {
		t.Fatalf("expected trimmed fragment, got %q", got)
	}
}

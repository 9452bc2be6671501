// Package schedulertest holds small testing.TB-based assertion helpers
// shared across the scheduler's package tests.
package schedulertest

import "testing"

// EqualStrings fails t if got and want differ, in order.
func EqualStrings(t testing.TB, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

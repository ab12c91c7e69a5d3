package child

import "testing"

func TestIsWedgedUnknownPidIsFalse(t *testing.T) {
	// A pid that (almost certainly) doesn't exist must not be reported as
	// wedged — isWedged only answers for a process it can actually sample,
	// and a lookup failure must never be mistaken for "confirmed hung".
	if isWedged(1 << 30) {
		t.Fatalf("isWedged(bogus pid) = true, want false")
	}
}

package child

import "testing"

func TestParseCrashStackTrace(t *testing.T) {
	stderr := "TypeError: foo is not a function\n  at /p/s.ts:3:5\n  at main (/p/s.ts:10:1)"
	ci := ParseCrash(stderr)
	if ci == nil {
		t.Fatal("expected non-nil CrashInfo")
	}
	if ci.Kind != "TypeError" {
		t.Errorf("Kind = %q, want TypeError", ci.Kind)
	}
	if ci.File != "/p/s.ts" || ci.Line != 3 || ci.Col != 5 {
		t.Errorf("got file=%s line=%d col=%d, want /p/s.ts:3:5", ci.File, ci.Line, ci.Col)
	}
	if ci.Suggestion != "foo is not a function" {
		t.Errorf("Suggestion = %q", ci.Suggestion)
	}
}

func TestParseCrashNoStackFrame(t *testing.T) {
	ci := ParseCrash("something printed to stderr with no trace")
	if ci == nil {
		t.Fatal("expected non-nil CrashInfo even without a stack frame")
	}
	if ci.File != "" {
		t.Errorf("expected empty file, got %q", ci.File)
	}
}

func TestParseCrashEmpty(t *testing.T) {
	if ci := ParseCrash("   "); ci != nil {
		t.Fatalf("expected nil for empty stderr, got %+v", ci)
	}
}

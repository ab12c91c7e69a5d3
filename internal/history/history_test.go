package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendPersistsAndCaps(t *testing.T) {
	dir := t.TempDir()
	h := Load(dir, "my-script")
	for i := 0; i < maxEntries+10; i++ {
		if err := h.Append(string(rune('a' + i%26))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if len(h.Entries()) != maxEntries {
		t.Fatalf("len(Entries) = %d, want %d", len(h.Entries()), maxEntries)
	}

	data, err := os.ReadFile(filepath.Join(dir, "input-history", "my-script.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var persisted []string
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(persisted) != maxEntries {
		t.Fatalf("persisted len = %d, want %d", len(persisted), maxEntries)
	}

	info, err := os.Stat(filepath.Join(dir, "input-history", "my-script.json"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestUpDownSavedDraftRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := Load(dir, "s")
	h.Append("first")
	h.Append("second")

	draft := []byte("typing...")
	got := h.Up(draft)
	if string(got) != "second" {
		t.Fatalf("Up = %q, want second", got)
	}
	got = h.Up(draft)
	if string(got) != "first" {
		t.Fatalf("Up (2nd) = %q, want first", got)
	}
	// At the oldest entry, Up is a no-op.
	got = h.Up(draft)
	if string(got) != "first" {
		t.Fatalf("Up at boundary = %q, want first (no-op)", got)
	}

	got = h.Down()
	if string(got) != "second" {
		t.Fatalf("Down = %q, want second", got)
	}
	got = h.Down()
	if string(got) != "typing..." {
		t.Fatalf("Down past newest = %q, want restored draft", got)
	}
	if h.Browsing() {
		t.Fatal("expected browsing to end after restoring draft")
	}
}

func TestUpNoOpWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	h := Load(dir, "s")
	draft := []byte("hi")
	if got := h.Up(draft); string(got) != "hi" {
		t.Fatalf("Up on empty history = %q, want unchanged draft", got)
	}
}

func TestLoadToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	h := Load(dir, "never-seen")
	if len(h.Entries()) != 0 {
		t.Fatalf("expected empty history, got %+v", h.Entries())
	}
}

func TestLoadToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "input-history"), 0o700)
	os.WriteFile(filepath.Join(dir, "input-history", "bad.json"), []byte("not json"), 0o600)
	h := Load(dir, "bad")
	if len(h.Entries()) != 0 {
		t.Fatalf("expected empty history on corrupt file, got %+v", h.Entries())
	}
}

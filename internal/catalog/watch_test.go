package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScanSkipsDotfilesAndUnrelatedExtensions(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "open-notes.ts"), "export default () => {}")
	write(t, filepath.Join(dir, "greet.md"), "## Greeting\n```paste\nhi\n```\n")
	write(t, filepath.Join(dir, "README.txt"), "not a script")
	write(t, filepath.Join(dir, ".hidden.ts"), "export default () => {}")

	entries, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].Name != "greet" || entries[0].Kind != KindScriptlet {
		t.Fatalf("entries[0] = %+v, want greet scriptlet", entries[0])
	}
	if entries[1].Name != "open-notes" || entries[1].Kind != KindScript {
		t.Fatalf("entries[1] = %+v, want open-notes script", entries[1])
	}
}

func TestWatcherReScansOnFileCreate(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	changes := make(chan uint64, 4)
	go w.Run(func(entries []Entry, revision uint64) { changes <- revision }, nil)

	write(t, filepath.Join(dir, "new-script.ts"), "export default () => {}")

	select {
	case rev := <-changes:
		if rev != 1 {
			t.Fatalf("revision = %d, want 1", rev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher to observe the new file")
	}
}

func TestWatcherIgnoresDotfiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	changes := make(chan uint64, 4)
	go w.Run(func(entries []Entry, revision uint64) { changes <- revision }, nil)

	write(t, filepath.Join(dir, ".swap"), "junk")
	// Follow up with a real change so the test doesn't hang forever if the
	// dotfile event was (incorrectly) relevant; this event must be the only
	// one observed.
	write(t, filepath.Join(dir, "real.ts"), "export default () => {}")

	select {
	case rev := <-changes:
		if rev != 1 {
			t.Fatalf("revision = %d, want 1 (dotfile write must not bump it)", rev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher to observe real.ts")
	}
}

func write(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

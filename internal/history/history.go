// Package history implements per-script rolling input history (spec: "Input
// history" — per-script ordered sequence of prior text inputs, max 100,
// oldest evicted, stored as one JSON file per script id at
// `<kit>/db/input-history/<script-id>.json`, 0o600, atomic replace).
//
// Grounded on the teacher's internal/overlay/history.go (HistoryUp/
// HistoryDown saved-draft-on-browse pattern), persisted with a
// temp-file, fsync and rename atomic write.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const maxEntries = 100

// History holds one script's input history plus in-progress browse state.
type History struct {
	scriptID string
	dir      string

	entries []string
	idx     int    // -1 when not browsing; else index into entries
	saved   []byte // draft stashed when browsing started
}

// Load reads the history file for scriptID under dir, tolerating a missing
// or corrupt file by starting empty.
func Load(dir, scriptID string) *History {
	h := &History{scriptID: scriptID, dir: dir, idx: -1}
	data, err := os.ReadFile(h.path())
	if err != nil {
		return h
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err == nil {
		h.entries = entries
	}
	return h
}

func (h *History) path() string {
	return filepath.Join(h.dir, "input-history", h.scriptID+".json")
}

// Append records a new entry, evicting the oldest once the history exceeds
// 100 entries, and persists the result.
func (h *History) Append(entry string) error {
	h.entries = append(h.entries, entry)
	if len(h.entries) > maxEntries {
		h.entries = h.entries[len(h.entries)-maxEntries:]
	}
	h.idx = -1
	h.saved = nil
	return h.persist()
}

// Up moves one entry back in history, stashing current as the draft to
// restore once Down returns past the most recent entry (spec: saved-draft
// browse pattern). At the oldest entry it stays put and returns that entry.
func (h *History) Up(current []byte) []byte {
	if len(h.entries) == 0 {
		return current
	}
	if h.idx == -1 {
		h.saved = append([]byte(nil), current...)
		h.idx = len(h.entries) - 1
	} else if h.idx > 0 {
		h.idx--
	}
	return []byte(h.entries[h.idx])
}

// Down moves one entry forward, restoring the stashed draft once past the
// newest entry.
func (h *History) Down() []byte {
	if h.idx == -1 {
		return nil
	}
	if h.idx < len(h.entries)-1 {
		h.idx++
		return []byte(h.entries[h.idx])
	}
	restored := h.saved
	h.idx = -1
	h.saved = nil
	return restored
}

// Browsing reports whether Up has been called without a matching reset.
func (h *History) Browsing() bool { return h.idx != -1 }

// Entries returns a copy of the persisted entries, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// persist atomically replaces the history file: write to a temp file in
// the same directory, fsync, then rename (spec invariant: persisted file
// permissions = 0o600).
func (h *History) persist() error {
	if err := os.MkdirAll(filepath.Dir(h.path()), 0o700); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}
	data, err := json.Marshal(h.entries)
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}
	tmp := h.path() + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("history: open temp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("history: write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("history: sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("history: close temp: %w", err)
	}
	if err := os.Rename(tmp, h.path()); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}

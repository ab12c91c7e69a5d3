package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-scans a kenv's scripts directory whenever a script or scriptlet
// file is created, written, removed, or renamed, and publishes the new
// entries through onChange along with a monotonically increasing catalog
// revision (spec §3: "Catalog is owned behind an immutable shared
// reference; updates are copy-on-replace and publish a new revision",
// spec §8: "cache key includes the current frecency revision" — the
// catalog revision is this package's half of that cache key).
//
// Grounded on fsnotify's own recommended single-watched-directory usage
// pattern (the corpus's only fsnotify consumers watch one directory at a
// time rather than a recursive tree); scriptsDir is a flat, non-recursive
// layout per Scan, so one fsnotify.Watcher covers it completely.
type Watcher struct {
	fsw        *fsnotify.Watcher
	scriptsDir string
	revision   uint64
	done       chan struct{}
}

// NewWatcher opens an fsnotify watch on scriptsDir. Callers must call Close
// when done to release the underlying OS watch descriptor.
func NewWatcher(scriptsDir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: new watcher: %w", err)
	}
	if err := fsw.Add(scriptsDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("catalog: watch %s: %w", scriptsDir, err)
	}
	return &Watcher{fsw: fsw, scriptsDir: scriptsDir, done: make(chan struct{})}, nil
}

// Run blocks, re-scanning scriptsDir and invoking onChange after every
// create/write/remove/rename event that touches a script or scriptlet file
// (dotfiles and directories are ignored, matching Scan's own filter).
// Watcher errors are reported through onError rather than aborting the
// loop — a single dropped inotify event should not stop future scans from
// picking up subsequent changes. Run returns when Close is called.
func (w *Watcher) Run(onChange func(entries []Entry, revision uint64), onError func(error)) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			entries, err := Scan(w.scriptsDir)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			w.revision++
			if onChange != nil {
				onChange(entries, w.revision)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(fmt.Errorf("catalog: watch error: %w", err))
			}
		}
	}
}

// relevant reports whether ev names a change to a file Scan would consider
// (a runnable script extension or a Markdown scriptlet), skipping dotfiles
// and chmod-only events that never change catalog contents.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	return scriptExts[ext] || ext == ".md"
}

// Close stops Run and releases the underlying fsnotify watch.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

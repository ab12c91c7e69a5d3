package cli

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/johnlindquist/scriptkit-gpui/internal/promptmodel"
)

// refreshPathEntries lists p.CurrentPath and stores the visible entry names
// into p.Entries (spec §4: "Virtualized file list rooted at a current
// path"), directories first, then files, both alphabetical. A listing
// error (e.g. permission denied) clears Entries rather than aborting the
// prompt — the empty-state view (spec §4) covers that case.
//
// Grounded on internal/catalog.Scan's directory-listing shape, reused here
// for path-prompt navigation instead of catalog indexing.
func refreshPathEntries(p *promptmodel.PathState) {
	items, err := os.ReadDir(p.CurrentPath)
	if err != nil {
		p.Entries = nil
		return
	}
	var dirs, files []string
	for _, item := range items {
		name := item.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if item.IsDir() {
			dirs = append(dirs, name+"/")
		} else {
			files = append(files, name)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	p.Entries = append(dirs, files...)
}

// visibleEntries returns p.Entries filtered by p.Filter as a path-prefix
// match, matching the path prompt's "path-prefix header input" behavior.
func visibleEntries(p *promptmodel.PathState) []string {
	if p.Filter == "" {
		return p.Entries
	}
	var out []string
	for _, e := range p.Entries {
		if strings.HasPrefix(e, p.Filter) {
			out = append(out, e)
		}
	}
	return out
}

// completeLongestCommonPrefix implements the path prompt's Tab behavior
// (spec §4: "Tab completes the longest common prefix of visible entries"):
// it extends p.Filter to the longest prefix shared by every entry that
// already matches p.Filter, doing nothing when zero or one entry matches.
func completeLongestCommonPrefix(p *promptmodel.PathState) {
	matches := visibleEntries(p)
	if len(matches) < 2 {
		return
	}
	lcp := matches[0]
	for _, m := range matches[1:] {
		lcp = commonPrefix(lcp, m)
		if lcp == "" {
			return
		}
	}
	p.Filter = lcp
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// descendPath moves CurrentPath into the single directory named by Filter
// (or, with no filter, does nothing) and resets Filter, implementing the
// path prompt's "Right navigates into directories" behavior.
func descendPath(p *promptmodel.PathState) {
	if p.Filter == "" {
		return
	}
	name := strings.TrimSuffix(p.Filter, "/")
	target := filepath.Join(p.CurrentPath, name)
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return
	}
	p.CurrentPath = target
	p.Filter = ""
	refreshPathEntries(p)
}

// ascendPath moves CurrentPath to its parent, implementing the path
// prompt's "Left navigates out of directories" behavior. It never rises
// above StartPath's filesystem root.
func ascendPath(p *promptmodel.PathState) {
	parent := filepath.Dir(p.CurrentPath)
	if parent == p.CurrentPath {
		return
	}
	p.CurrentPath = parent
	p.Filter = ""
	refreshPathEntries(p)
}

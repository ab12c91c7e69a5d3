// Package filter implements the filter/selection engine (spec §4.4):
// fuzzy-plus-frecency scoring over the script catalog, a
// (filter_text, frecency_revision, catalog_revision)-keyed result cache,
// section-aware navigation (Today/Yesterday/Previous/Alphabetical, with
// section headers skipped by Up/Down), and coalesced arrow-key navigation
// so key repeat never lags behind the render loop.
//
// Grounded on `github.com/sahilm/fuzzy` for match scoring (the same
// library the corpus's list-filtering code already depends on); the
// cache/navigation logic is new, since no teacher file owns a generic
// fuzzy-filtered, frecency-weighted, sectioned list.
package filter

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
)

// Entry is the minimal catalog projection the filter engine scores and
// sections over.
type Entry struct {
	ID   string
	Name string // pre-lowercased, per spec §3's catalog entry shape
	Kind string // script | scriptlet | builtin | app | window
}

// SearchResult is one scored, ranked catalog entry.
type SearchResult struct {
	Entry        Entry
	MatchIndices []int
	Score        float64
}

// Section is a named, ordered group of results (spec §4.4: "Today",
// "Yesterday", "Previous", "Alphabetical").
type Section struct {
	Title   string
	Results []SearchResult
}

// FrecencyScorer is the subset of *frecency.Store the engine needs. Kept
// as an interface so filter has no import-time dependency on frecency's
// persistence concerns.
type FrecencyScorer interface {
	Score(entryID string) float64
	LastUsed(entryID string) (time.Time, bool)
	Revision() uint64
}

// defaultKindWeight is the frecency-score weight applied when a kind has
// no entry in WeightByKind.
const defaultKindWeight = 1.0

// coalesceWindow bounds navigation-delta accumulation to one frame, per
// spec §4.4 ("≤16 ms or one frame").
const coalesceWindow = 16 * time.Millisecond

type cacheKey struct {
	filter          string
	frecencyRev     uint64
	catalogRev      uint64
}

// Engine owns the current filter string, the cached sectioned result set,
// and selection/navigation state for one prompt's list.
type Engine struct {
	mu sync.Mutex

	entries         []Entry
	catalogRevision uint64
	frecency        FrecencyScorer
	weightByKind    map[string]float64
	now             func() time.Time

	filterText string
	cacheKey   cacheKey
	cached     []Section

	selected     flatIndex
	pendingDelta int
	coalesceT    *time.Timer
	onFlush      func()
}

// flatIndex addresses one selectable row across all sections (section
// headers are not selectable).
type flatIndex struct {
	section int
	row     int
}

// NewEngine creates a filter engine. onFlush, if non-nil, is called after
// a coalesced navigation delta is applied (the caller's scroll_to_selected
// hook).
func NewEngine(frecency FrecencyScorer, onFlush func()) *Engine {
	return &Engine{
		frecency:     frecency,
		weightByKind: map[string]float64{},
		now:          time.Now,
		onFlush:      onFlush,
	}
}

// SetWeight configures the frecency weight applied to kind.
func (e *Engine) SetWeight(kind string, weight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weightByKind[kind] = weight
}

// SetEntries replaces the catalog snapshot (copy-on-replace, spec §5) and
// bumps the catalog revision, invalidating the result cache.
func (e *Engine) SetEntries(entries []Entry, revision uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = entries
	e.catalogRevision = revision
	e.cached = nil
}

// SetFilter updates the filter string, resets selection to the first
// selectable row (spec §4.4: "typing resets selection to first visible"),
// and returns the (possibly cached) sectioned results.
func (e *Engine) SetFilter(text string) []Section {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filterText = text
	sections := e.computeLocked()
	e.selected = firstSelectable(sections)
	return sections
}

// Results returns the current (possibly cached) sectioned results without
// changing the filter or selection.
func (e *Engine) Results() []Section {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computeLocked()
}

// computeLocked must be called with e.mu held.
func (e *Engine) computeLocked() []Section {
	key := cacheKey{filter: e.filterText, frecencyRev: e.frecency.Revision(), catalogRev: e.catalogRevision}
	if e.cached != nil && key == e.cacheKey {
		return e.cached // cache hit: shared references, never cloned
	}
	sections := e.scoreAndSection()
	e.cached = sections
	e.cacheKey = key
	return sections
}

func (e *Engine) scoreAndSection() []Section {
	results := e.score()

	if strings.TrimSpace(e.filterText) == "" {
		return e.groupByRecency(results)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return []Section{{Title: "Results", Results: results}}
}

func (e *Engine) score() []SearchResult {
	if strings.TrimSpace(e.filterText) == "" {
		out := make([]SearchResult, len(e.entries))
		for i, ent := range e.entries {
			out[i] = SearchResult{Entry: ent, Score: e.weightedFrecency(ent)}
		}
		return out
	}

	names := make([]string, len(e.entries))
	for i, ent := range e.entries {
		names[i] = ent.Name
	}
	matches := fuzzy.Find(e.filterText, names)

	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		ent := e.entries[m.Index]
		out = append(out, SearchResult{
			Entry:        ent,
			MatchIndices: m.MatchedIndexes,
			Score:        float64(m.Score) + e.weightedFrecency(ent),
		})
	}
	return out
}

func (e *Engine) weightedFrecency(ent Entry) float64 {
	w, ok := e.weightByKind[ent.Kind]
	if !ok {
		w = defaultKindWeight
	}
	return w * e.frecency.Score(ent.ID)
}

// groupByRecency buckets unfiltered results into Today/Yesterday/Previous
// by last-used instant, falling back to an Alphabetical section for
// entries with no frecency record (spec §4.4).
func (e *Engine) groupByRecency(results []SearchResult) []Section {
	now := e.now()
	today := now.Truncate(24 * time.Hour)
	yesterday := today.Add(-24 * time.Hour)

	var todaySec, yesterdaySec, previousSec, alphaSec []SearchResult
	for _, r := range results {
		last, ok := e.frecency.LastUsed(r.Entry.ID)
		switch {
		case !ok:
			alphaSec = append(alphaSec, r)
		case !last.Before(today):
			todaySec = append(todaySec, r)
		case !last.Before(yesterday):
			yesterdaySec = append(yesterdaySec, r)
		default:
			previousSec = append(previousSec, r)
		}
	}
	byScoreDesc := func(rs []SearchResult) {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Score > rs[j].Score })
	}
	byNameAsc := func(rs []SearchResult) {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Entry.Name < rs[j].Entry.Name })
	}
	byScoreDesc(todaySec)
	byScoreDesc(yesterdaySec)
	byScoreDesc(previousSec)
	byNameAsc(alphaSec)

	var sections []Section
	if len(todaySec) > 0 {
		sections = append(sections, Section{Title: "Today", Results: todaySec})
	}
	if len(yesterdaySec) > 0 {
		sections = append(sections, Section{Title: "Yesterday", Results: yesterdaySec})
	}
	if len(previousSec) > 0 {
		sections = append(sections, Section{Title: "Previous", Results: previousSec})
	}
	if len(alphaSec) > 0 {
		sections = append(sections, Section{Title: "Alphabetical", Results: alphaSec})
	}
	return sections
}

func firstSelectable(sections []Section) flatIndex {
	for si, s := range sections {
		if len(s.Results) > 0 {
			return flatIndex{section: si, row: 0}
		}
	}
	return flatIndex{}
}

// Selected returns the currently selected entry, if any.
func (e *Engine) Selected() (SearchResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.at(e.selected)
}

func (e *Engine) at(idx flatIndex) (SearchResult, bool) {
	if e.cached == nil || idx.section < 0 || idx.section >= len(e.cached) {
		return SearchResult{}, false
	}
	rows := e.cached[idx.section].Results
	if idx.row < 0 || idx.row >= len(rows) {
		return SearchResult{}, false
	}
	return rows[idx.row], true
}

// QueueNavigationDelta accumulates `delta` rows of Up/Down movement
// (positive = down) into a pending navigation step, coalesced within
// coalesceWindow so key-repeat bursts apply as one move followed by one
// scroll-into-view call (spec §4.4).
func (e *Engine) QueueNavigationDelta(delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingDelta += delta
	if e.coalesceT != nil {
		return // a flush is already scheduled; it will see the updated delta
	}
	e.coalesceT = time.AfterFunc(coalesceWindow, e.flush)
}

func (e *Engine) flush() {
	e.mu.Lock()
	delta := e.pendingDelta
	e.pendingDelta = 0
	e.coalesceT = nil
	e.selected = e.step(e.selected, delta)
	onFlush := e.onFlush
	e.mu.Unlock()
	if onFlush != nil {
		onFlush()
	}
}

// step advances idx by delta selectable rows, skipping section headers
// and clamping at the first/last selectable row (spec §4.4).
func (e *Engine) step(idx flatIndex, delta int) flatIndex {
	if e.cached == nil || delta == 0 {
		return idx
	}
	flat := e.flatten()
	if len(flat) == 0 {
		return flatIndex{}
	}
	pos := 0
	for i, f := range flat {
		if f == idx {
			pos = i
			break
		}
	}
	pos += delta
	if pos < 0 {
		pos = 0
	}
	if pos >= len(flat) {
		pos = len(flat) - 1
	}
	return flat[pos]
}

// flatten returns every selectable (section, row) pair in display order.
func (e *Engine) flatten() []flatIndex {
	var flat []flatIndex
	for si, s := range e.cached {
		for ri := range s.Results {
			flat = append(flat, flatIndex{section: si, row: ri})
		}
	}
	return flat
}

// Home selects the first selectable row.
func (e *Engine) Home() {
	e.mu.Lock()
	defer e.mu.Unlock()
	flat := e.flatten()
	if len(flat) > 0 {
		e.selected = flat[0]
	}
}

// End selects the last selectable row.
func (e *Engine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()
	flat := e.flatten()
	if len(flat) > 0 {
		e.selected = flat[len(flat)-1]
	}
}

// PageUp/PageDown jump by viewportRows selectable rows.
func (e *Engine) PageUp(viewportRows int) { e.QueueNavigationDelta(-viewportRows) }
func (e *Engine) PageDown(viewportRows int) { e.QueueNavigationDelta(viewportRows) }

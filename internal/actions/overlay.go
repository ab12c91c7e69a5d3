// Package actions implements the Cmd+K actions overlay (spec §4.5): a
// modal subordinate prompt with its own filter, list, and focus, that can
// be layered over any host prompt variant.
//
// Grounded on the teacher's overlay.go/menu.go (ModeMenu + MenuPrev/
// MenuNext/MenuSelect single-owner-routing idea), generalized from a fixed
// 4-item status menu into a dynamic action list with its own fuzzy filter.
package actions

import "github.com/sahilm/fuzzy"

// Action is one entry an overlay can execute (spec §3).
type Action struct {
	ID             string
	Label          string
	Shortcut       string
	Icon           string
	Group          string
	Enabled        bool
	DisabledReason string
}

// Capability declares how a host supports the overlay (spec §4.5).
type Capability int

const (
	NoActions Capability = iota
	ActionsInline
	ActionsWindow
)

// Overlay is per-host state: `{is_open, dialog_entity, query,
// selected_index, filtered_view}` (spec §3). Exactly one overlay is open
// process-wide by construction — callers hold one Overlay per Model.
type Overlay struct {
	open          bool
	all           []Action
	query         string
	selectedIndex int
	filtered      []Action

	// priorFocus is restored by Close; set by Open.
	priorFocus string
	onClose    func(restoredFocus, reason string)

	capability Capability
}

// New creates a closed overlay with no actions.
func New() *Overlay {
	return &Overlay{}
}

// IsOpen reports whether the overlay is currently shown.
func (o *Overlay) IsOpen() bool { return o.open }

// SetActions atomically replaces the action set (spec §4.3 SetActions).
// If the overlay is open and the current selection's id disappeared, it
// snaps to the first row; if the new set is empty, the overlay closes.
func (o *Overlay) SetActions(list []Action) {
	prevID := o.selectedID()
	o.all = list
	o.applyFilter()

	if len(o.all) == 0 {
		if o.open {
			o.Close("actions_emptied")
		}
		return
	}
	for i, a := range o.filtered {
		if a.ID == prevID {
			o.selectedIndex = i
			return
		}
	}
	o.selectedIndex = 0
}

// Open shows the overlay, remembering priorFocus so Close can restore it.
func (o *Overlay) Open(priorFocus string) {
	o.open = true
	o.priorFocus = priorFocus
	o.query = ""
	o.applyFilter()
	o.selectedIndex = 0
}

// Close is the single-owner close routine (spec §4.5
// close_actions_popup): clears state and restores focus to the prior
// owner. onClose, if set via OnClose, receives (restoredFocus, reason).
func (o *Overlay) Close(reason string) {
	if !o.open {
		return
	}
	o.open = false
	focus := o.priorFocus
	if focus == "" {
		focus = "root"
	}
	o.query = ""
	o.selectedIndex = 0
	if o.onClose != nil {
		o.onClose(focus, reason)
	}
}

// OnClose registers a callback invoked whenever Close runs, receiving the
// focus subject restored and the reason the overlay closed.
func (o *Overlay) OnClose(f func(restoredFocus, reason string)) { o.onClose = f }

// SetCapability records how the host supports the overlay (spec §4.5):
// NoActions/ActionsInline/ActionsWindow. Open only makes sense to call
// when the host has declared a capability other than NoActions.
func (o *Overlay) SetCapability(c Capability) { o.capability = c }

// Capability returns the host capability set via SetCapability.
func (o *Overlay) Capability() Capability { return o.capability }

// PriorFocus returns the focus subject Close will restore.
func (o *Overlay) PriorFocus() string {
	if o.priorFocus == "" {
		return "root"
	}
	return o.priorFocus
}

// SetQuery updates the filter text and re-filters, resetting selection to
// the first visible row (spec §4.4 "typing resets selection to first
// visible").
func (o *Overlay) SetQuery(q string) {
	o.query = q
	o.applyFilter()
	o.selectedIndex = 0
}

// Query returns the current filter text.
func (o *Overlay) Query() string { return o.query }

// Filtered returns the currently visible, filtered action list.
func (o *Overlay) Filtered() []Action { return o.filtered }

// Selected returns the currently selected action, or (Action{}, false) if
// the list is empty.
func (o *Overlay) Selected() (Action, bool) {
	if o.selectedIndex < 0 || o.selectedIndex >= len(o.filtered) {
		return Action{}, false
	}
	return o.filtered[o.selectedIndex], true
}

func (o *Overlay) selectedID() string {
	a, ok := o.Selected()
	if !ok {
		return ""
	}
	return a.ID
}

// Next/Prev move the selection, wrapping, skipping nothing (the overlay
// has no section headers).
func (o *Overlay) Next() {
	if len(o.filtered) == 0 {
		return
	}
	o.selectedIndex = (o.selectedIndex + 1) % len(o.filtered)
}

func (o *Overlay) Prev() {
	if len(o.filtered) == 0 {
		return
	}
	o.selectedIndex--
	if o.selectedIndex < 0 {
		o.selectedIndex = len(o.filtered) - 1
	}
}

// Execute runs the currently selected action via run, then closes the
// overlay. It is the only path permitted to execute an action (spec §4.5
// route_key_to_actions_dialog). Disabled actions are not executed.
func (o *Overlay) Execute(run func(Action)) {
	a, ok := o.Selected()
	if !ok || !a.Enabled {
		return
	}
	run(a)
	o.Close("executed")
}

func (o *Overlay) applyFilter() {
	if o.query == "" {
		o.filtered = append([]Action(nil), o.all...)
		return
	}
	names := make([]string, len(o.all))
	for i, a := range o.all {
		names[i] = a.Label
	}
	matches := fuzzy.Find(o.query, names)
	filtered := make([]Action, len(matches))
	for i, m := range matches {
		filtered[i] = o.all[m.Index]
	}
	o.filtered = filtered
}

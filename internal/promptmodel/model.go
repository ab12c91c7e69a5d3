package promptmodel

import "github.com/johnlindquist/scriptkit-gpui/internal/actions"

// Model is the single state holder for one session's UI: the current
// variant plus ambient state (actions overlay, running-script status).
// Grounded on the teacher's per-connection Client state
// (session/client/overlay.go's InitClient), generalized from a fixed
// terminal-client shape into the variant-independent holder spec §4.3
// describes.
type Model struct {
	Current *Variant
	Overlay *actions.Overlay
	Running bool

	nextPromptID uint64
}

// New creates an empty model with its own actions overlay.
func New() *Model {
	return &Model{Overlay: actions.New()}
}

// Show replaces the current variant following the transition invariants in
// spec §4.3: same script id on an Arg->Arg transition preserves filter and
// selection; anything else resets. The actions overlay, if open, always
// dismisses before a prompt transition (spec §3 invariant).
func (m *Model) Show(v *Variant) {
	m.nextPromptID++
	v.PromptID = m.nextPromptID

	if m.Current != nil && m.Current.Kind == VariantArg && v.Kind == VariantArg && m.Current.ScriptID == v.ScriptID {
		v.Filter = m.Current.Filter
		v.SelectedIndex = m.Current.SelectedIndex
		v.Selection = m.Current.Selection
	}

	if m.Overlay.IsOpen() {
		m.Overlay.Close("prompt_transition")
	}
	m.Current = v
}

// SetChoices replaces the Arg/Select prompt's choice list in place,
// preserving selection by choice identity when possible (spec §4.3).
func (m *Model) SetChoices(choices []Choice) {
	if m.Current == nil {
		return
	}
	var list *[]Choice
	switch {
	case m.Current.Arg != nil:
		list = &m.Current.Arg.Choices
	case m.Current.Select != nil:
		list = &m.Current.Select.Choices
	default:
		return
	}
	prevSelectedID := ""
	if m.Current.SelectedIndex >= 0 && m.Current.SelectedIndex < len(*list) {
		prevSelectedID = (*list)[m.Current.SelectedIndex].ID
	}

	*list = choices

	for i, c := range choices {
		if c.ID == prevSelectedID {
			m.Current.SelectedIndex = i
			return
		}
	}
	m.Current.SelectedIndex = 0
	m.Current.ScrollAnchor = 0
}

// SetInput updates the filter text as if the user had typed it.
func (m *Model) SetInput(text string) {
	if m.Current == nil {
		return
	}
	m.Current.Filter = text
}

// SetActions atomically replaces the overlay's action set (spec §4.3):
// if the overlay was open and the current selection disappeared, it snaps
// to first; if the new set is empty, the overlay closes.
func (m *Model) SetActions(list []actions.Action) {
	m.Overlay.SetActions(list)
}

// Package promptmodel implements the prompt tagged union (spec §3, §4.3):
// exactly one variant is mounted at a time, each carrying the minimum
// state required to render and validate its own submission.
package promptmodel

// VariantKind is the closed tag for the prompt sum type.
type VariantKind string

const (
	VariantArg      VariantKind = "arg"
	VariantSelect   VariantKind = "select"
	VariantDrop     VariantKind = "drop"
	VariantDiv      VariantKind = "div"
	VariantEditor   VariantKind = "editor"
	VariantForm     VariantKind = "form"
	VariantTemplate VariantKind = "template"
	VariantEnv      VariantKind = "env"
	VariantPath     VariantKind = "path"
	VariantTerm     VariantKind = "term"
	VariantChat     VariantKind = "chat"
	VariantWebcam   VariantKind = "webcam"
)

// Selection is a cursor+range pair shared by every text-bearing variant.
type Selection struct {
	Anchor int
	Cursor int
}

// Base is the shared "base" struct every variant embeds (spec §9): id,
// focus, and the transient state common across all prompt kinds.
type Base struct {
	PromptID      uint64
	ScriptID      string
	Filter        string
	Selection     Selection
	ScrollAnchor  int
	SelectedIndex int
	Focus         string
	ValidationErr map[string]string
}

// Choice is one selectable row shared by Arg/Select prompts.
type Choice struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Shortcut    string
	Group       string
}

// Field is one Form/Template field.
type Field struct {
	ID          string
	Label       string
	Kind        string // text|textarea|select|checkbox|number
	Default     string
	Placeholder string
	Group       string
	Value       string
	Validator   func(value string) (ok bool, message string)
}

// Variant is the sum type: exactly one concrete *State is non-nil,
// identified by Kind.
type Variant struct {
	Base
	Kind VariantKind

	Arg      *ArgState
	Select   *SelectState
	Drop     *DropState
	Div      *DivState
	Editor   *EditorState
	Form     *FormState
	Template *FormState // grouped fields, same shape as Form
	Env      *EnvState
	Path     *PathState
	Term     *TermState
	Chat     *ChatState
	Webcam   *WebcamState
}

type ArgState struct {
	Placeholder string
	Choices     []Choice
}

type SelectState struct {
	ArgState
	Min, Max int
	Selected map[string]bool
}

type DropState struct {
	AcceptedKinds []string
}

type DivState struct {
	HTML             string
	Background       string
	ContainerClasses string
}

type EditorState struct {
	Text     string
	Language string
	ReadOnly bool
}

type FormState struct {
	Fields []Field
}

type EnvState struct {
	Name        string
	Description string
	Icon        string
}

type PathState struct {
	StartPath   string
	CurrentPath string
	Filter      string
	Entries     []string
}

type TermState struct {
	Shell             string
	Argv              []string
	Cwd               string
	Env               map[string]string
	ApplicationCursor bool
	SuppressKeys      bool
}

type ChatState struct {
	Messages []ChatMessage
	Streaming bool
}

type ChatMessage struct {
	Role string
	Text string
}

type WebcamState struct {
	DeviceID string
}

// NewArg constructs an Arg variant, resetting focus/filter/selection.
func NewArg(promptID uint64, scriptID string, placeholder string, choices []Choice) *Variant {
	return &Variant{
		Base: Base{PromptID: promptID, ScriptID: scriptID, Focus: "input"},
		Kind: VariantArg,
		Arg:  &ArgState{Placeholder: placeholder, Choices: choices},
	}
}

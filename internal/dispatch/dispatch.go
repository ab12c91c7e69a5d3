// Package dispatch maps incoming wire frames to prompt-model transitions,
// and routes outgoing submits/cancels back to the child session (spec
// §4.3).
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/johnlindquist/scriptkit-gpui/internal/actions"
	"github.com/johnlindquist/scriptkit-gpui/internal/promptmodel"
	"github.com/johnlindquist/scriptkit-gpui/internal/wire"
)

// Writer sends a frame to the child (implemented by *child.Session).
type Writer interface {
	WriteFrame(wire.Frame) error
}

// Dispatcher owns one session's Model and drives it from an inbound frame
// stream, while exposing the callbacks that turn user actions back into
// outbound frames.
type Dispatcher struct {
	Model  *promptmodel.Model
	Writer Writer

	// OnHud/OnLog/OnExit, if set, are invoked for the wire kinds that carry
	// host-level notifications rather than prompt-model transitions (spec
	// §6): ShowHud, Log, and Exit. Left nil they are simply not observed.
	OnHud    func(message string)
	OnLog    func(message string)
	OnExit   func(code int)
	OnStream func(channel, text string, final bool)

	nextID uint64
}

// New creates a Dispatcher over an existing model and outbound writer.
func New(model *promptmodel.Model, w Writer) *Dispatcher {
	return &Dispatcher{Model: model, Writer: w}
}

// Handle applies one inbound wire frame to the model. Unknown kinds are
// ignored (spec §6: "Unknown kinds log and are ignored").
func (d *Dispatcher) Handle(f wire.Frame) error {
	switch f.Kind {
	case wire.KindHello:
		var p struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: Hello payload: %w", err)
		}
		if p.Version != wire.ProtocolVersion {
			return &wire.ErrProtocolVersion{Got: p.Version, Want: wire.ProtocolVersion}
		}

	case wire.KindShowArg:
		var p struct {
			Placeholder string               `json:"placeholder"`
			Choices     []promptmodel.Choice `json:"choices"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowArg payload: %w", err)
		}
		d.Model.Show(promptmodel.NewArg(f.ID, "", p.Placeholder, p.Choices))

	case wire.KindSetChoices:
		var p struct {
			Choices []promptmodel.Choice `json:"choices"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: SetChoices payload: %w", err)
		}
		d.Model.SetChoices(p.Choices)

	case wire.KindSetInput:
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: SetInput payload: %w", err)
		}
		d.Model.SetInput(p.Text)

	case wire.KindSetActions:
		var p struct {
			Actions []actions.Action `json:"actions"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: SetActions payload: %w", err)
		}
		d.Model.SetActions(p.Actions)

	case wire.KindShowSelect:
		var p struct {
			Placeholder string               `json:"placeholder"`
			Choices     []promptmodel.Choice `json:"choices"`
			Min         int                  `json:"min"`
			Max         int                  `json:"max"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowSelect payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantSelect, Select: &promptmodel.SelectState{
			ArgState: promptmodel.ArgState{Placeholder: p.Placeholder, Choices: p.Choices},
			Min:      p.Min, Max: p.Max,
			Selected: map[string]bool{},
		}}
		v.Focus = "input"
		d.Model.Show(v)

	case wire.KindShowDrop:
		var p struct {
			AcceptedKinds []string `json:"accepted_kinds"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowDrop payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantDrop, Drop: &promptmodel.DropState{AcceptedKinds: p.AcceptedKinds}}
		d.Model.Show(v)

	case wire.KindShowDiv:
		var p struct {
			HTML             string `json:"html"`
			Background       string `json:"background"`
			ContainerClasses string `json:"containerClasses"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowDiv payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantDiv, Div: &promptmodel.DivState{
			HTML: p.HTML, Background: p.Background, ContainerClasses: p.ContainerClasses,
		}}
		d.Model.Show(v)

	case wire.KindShowEditor:
		var p struct {
			Text     string `json:"text"`
			Language string `json:"language"`
			ReadOnly bool   `json:"read_only"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowEditor payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantEditor, Editor: &promptmodel.EditorState{
			Text: p.Text, Language: p.Language, ReadOnly: p.ReadOnly,
		}}
		v.Focus = "editor"
		d.Model.Show(v)

	case wire.KindShowForm, wire.KindShowTemplate:
		var p struct {
			Fields []promptmodel.Field `json:"fields"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: %s payload: %w", f.Kind, err)
		}
		state := &promptmodel.FormState{Fields: p.Fields}
		v := &promptmodel.Variant{Kind: promptmodel.VariantForm, Form: state}
		if f.Kind == wire.KindShowTemplate {
			v.Kind = promptmodel.VariantTemplate
			v.Form = nil
			v.Template = state
		}
		if len(p.Fields) > 0 {
			v.Focus = p.Fields[0].ID
		}
		d.Model.Show(v)

	case wire.KindShowEnv:
		var p struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowEnv payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantEnv, Env: &promptmodel.EnvState{
			Name: p.Name, Description: p.Description, Icon: p.Icon,
		}}
		d.Model.Show(v)

	case wire.KindShowPath:
		var p struct {
			StartPath string `json:"start_path"`
			Filter    string `json:"filter"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowPath payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantPath, Path: &promptmodel.PathState{
			StartPath: p.StartPath, CurrentPath: p.StartPath, Filter: p.Filter,
		}}
		v.Focus = "path"
		d.Model.Show(v)

	case wire.KindShowTerm:
		var p struct {
			Shell string            `json:"shell"`
			Argv  []string          `json:"argv"`
			Cwd   string            `json:"cwd"`
			Env   map[string]string `json:"env"`
		}
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return fmt.Errorf("dispatch: ShowTerm payload: %w", err)
		}
		v := &promptmodel.Variant{Kind: promptmodel.VariantTerm, Term: &promptmodel.TermState{
			Shell: p.Shell, Argv: p.Argv, Cwd: p.Cwd, Env: p.Env,
		}}
		v.Focus = "term"
		d.Model.Show(v)

	case wire.KindShowChat:
		v := &promptmodel.Variant{Kind: promptmodel.VariantChat, Chat: &promptmodel.ChatState{}}
		v.Focus = "input"
		d.Model.Show(v)

	case wire.KindShowWebcam:
		var p struct {
			DeviceID string `json:"device_id"`
		}
		_ = json.Unmarshal(f.Payload, &p)
		v := &promptmodel.Variant{Kind: promptmodel.VariantWebcam, Webcam: &promptmodel.WebcamState{DeviceID: p.DeviceID}}
		d.Model.Show(v)

	case wire.KindSetFocused:
		var p struct {
			Focus string `json:"focus"`
		}
		if err := json.Unmarshal(f.Payload, &p); err == nil && d.Model.Current != nil {
			d.Model.Current.Focus = p.Focus
		}

	case wire.KindSetHint:
		var p struct {
			Hint string `json:"hint"`
		}
		if err := json.Unmarshal(f.Payload, &p); err == nil && d.OnHud != nil {
			d.OnHud(p.Hint)
		}

	case wire.KindStream:
		var p struct {
			Channel string `json:"channel"`
			Text    string `json:"text"`
			Final   bool   `json:"final"`
		}
		if err := json.Unmarshal(f.Payload, &p); err == nil && d.OnStream != nil {
			d.OnStream(p.Channel, p.Text, p.Final)
		}

	case wire.KindShowHud:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(f.Payload, &p); err == nil && d.OnHud != nil {
			d.OnHud(p.Message)
		}

	case wire.KindLog:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(f.Payload, &p); err == nil && d.OnLog != nil {
			d.OnLog(p.Message)
		}

	case wire.KindExit:
		var p struct {
			Code int `json:"code"`
		}
		if err := json.Unmarshal(f.Payload, &p); err == nil && d.OnExit != nil {
			d.OnExit(p.Code)
		}

	default:
		// Unknown or not-yet-wired kind: ignored per spec §6.
	}
	return nil
}

// SubmitValue sends a Submit frame carrying payload for the current prompt.
// On a full send queue it returns the queue error so the caller can emit
// failed_retryable; on success it returns nil.
func (d *Dispatcher) SubmitValue(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	d.nextID++
	return d.Writer.WriteFrame(wire.Frame{V: wire.ProtocolVersion, ID: d.nextID, Kind: wire.KindSubmit, Payload: body})
}

// Cancel sends a Cancel frame for the current prompt.
func (d *Dispatcher) Cancel() error {
	d.nextID++
	return d.Writer.WriteFrame(wire.Frame{V: wire.ProtocolVersion, ID: d.nextID, Kind: wire.KindCancel})
}

// Tab sends a Tab(direction) frame (spec §3: a prompt submit produces
// exactly one of SubmitValue/Cancel/Tab/ActionTriggered) — direction is -1
// for Shift+Tab (previous), +1 for Tab (next).
func (d *Dispatcher) Tab(direction int) error {
	body, err := json.Marshal(struct {
		Direction int `json:"direction"`
	}{direction})
	if err != nil {
		return err
	}
	d.nextID++
	return d.Writer.WriteFrame(wire.Frame{V: wire.ProtocolVersion, ID: d.nextID, Kind: wire.KindTab, Payload: body})
}

// TriggerAction sends an ActionTriggered frame.
func (d *Dispatcher) TriggerAction(actionID string) error {
	body, err := json.Marshal(struct {
		ActionID string `json:"action_id"`
	}{actionID})
	if err != nil {
		return err
	}
	d.nextID++
	return d.Writer.WriteFrame(wire.Frame{V: wire.ProtocolVersion, ID: d.nextID, Kind: wire.KindActionTriggered, Payload: body})
}

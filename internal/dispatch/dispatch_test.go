package dispatch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/johnlindquist/scriptkit-gpui/internal/promptmodel"
	"github.com/johnlindquist/scriptkit-gpui/internal/wire"
)

type fakeWriter struct {
	frames []wire.Frame
}

func (w *fakeWriter) WriteFrame(f wire.Frame) error {
	w.frames = append(w.frames, f)
	return nil
}

func TestHandleShowArg(t *testing.T) {
	m := promptmodel.New()
	fw := &fakeWriter{}
	d := New(m, fw)

	payload, _ := json.Marshal(map[string]any{
		"placeholder": "Run a script",
		"choices":     []map[string]string{{"id": "a", "name": "Alpha"}},
	})
	if err := d.Handle(wire.Frame{Kind: wire.KindShowArg, Payload: payload}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if m.Current == nil || m.Current.Kind != promptmodel.VariantArg {
		t.Fatalf("expected Arg variant mounted, got %+v", m.Current)
	}
	if len(m.Current.Arg.Choices) != 1 || m.Current.Arg.Choices[0].Name != "Alpha" {
		t.Fatalf("unexpected choices: %+v", m.Current.Arg.Choices)
	}
}

func TestHandleHelloAcceptsMatchingVersion(t *testing.T) {
	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	payload, _ := json.Marshal(map[string]int{"version": wire.ProtocolVersion})
	if err := d.Handle(wire.Frame{Kind: wire.KindHello, Payload: payload}); err != nil {
		t.Fatalf("Handle(Hello): %v", err)
	}
}

func TestHandleHelloRejectsMismatchedVersion(t *testing.T) {
	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	payload, _ := json.Marshal(map[string]int{"version": wire.ProtocolVersion + 1})
	err := d.Handle(wire.Frame{Kind: wire.KindHello, Payload: payload})
	if err == nil {
		t.Fatal("expected a protocol version error")
	}
	var verErr *wire.ErrProtocolVersion
	if !errors.As(err, &verErr) {
		t.Fatalf("expected *wire.ErrProtocolVersion, got %T: %v", err, err)
	}
}

func TestHandleShowSelectMountsSelectVariantWithBounds(t *testing.T) {
	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	payload, _ := json.Marshal(map[string]any{
		"placeholder": "Pick some",
		"choices":     []map[string]string{{"id": "a", "name": "Alpha"}},
		"min":         1,
		"max":         3,
	})
	if err := d.Handle(wire.Frame{Kind: wire.KindShowSelect, Payload: payload}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if m.Current == nil || m.Current.Kind != promptmodel.VariantSelect {
		t.Fatalf("expected Select variant mounted, got %+v", m.Current)
	}
	if m.Current.Select.Min != 1 || m.Current.Select.Max != 3 {
		t.Fatalf("unexpected min/max: %+v", m.Current.Select)
	}
}

func TestHandleShowFormAndShowTemplateMountDistinctKinds(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"fields": []map[string]string{{"id": "name", "label": "Name", "kind": "text"}},
	})

	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	if err := d.Handle(wire.Frame{Kind: wire.KindShowForm, Payload: payload}); err != nil {
		t.Fatalf("Handle(ShowForm): %v", err)
	}
	if m.Current.Kind != promptmodel.VariantForm || m.Current.Form == nil || m.Current.Template != nil {
		t.Fatalf("expected Form variant only, got %+v", m.Current)
	}

	m2 := promptmodel.New()
	d2 := New(m2, &fakeWriter{})
	if err := d2.Handle(wire.Frame{Kind: wire.KindShowTemplate, Payload: payload}); err != nil {
		t.Fatalf("Handle(ShowTemplate): %v", err)
	}
	if m2.Current.Kind != promptmodel.VariantTemplate || m2.Current.Template == nil || m2.Current.Form != nil {
		t.Fatalf("expected Template variant only, got %+v", m2.Current)
	}
}

func TestHandleShowPathSeedsCurrentPathFromStartPath(t *testing.T) {
	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	payload, _ := json.Marshal(map[string]string{"start_path": "/tmp"})
	if err := d.Handle(wire.Frame{Kind: wire.KindShowPath, Payload: payload}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if m.Current.Path == nil || m.Current.Path.CurrentPath != "/tmp" {
		t.Fatalf("unexpected path state: %+v", m.Current.Path)
	}
}

func TestHandleStreamInvokesOnStream(t *testing.T) {
	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	var gotChannel, gotText string
	var gotFinal bool
	d.OnStream = func(channel, text string, final bool) {
		gotChannel, gotText, gotFinal = channel, text, final
	}
	payload, _ := json.Marshal(map[string]any{"channel": "stdout", "text": "hi", "final": true})
	if err := d.Handle(wire.Frame{Kind: wire.KindStream, Payload: payload}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gotChannel != "stdout" || gotText != "hi" || !gotFinal {
		t.Fatalf("OnStream got (%q, %q, %v)", gotChannel, gotText, gotFinal)
	}
}

func TestTabWritesFrame(t *testing.T) {
	m := promptmodel.New()
	fw := &fakeWriter{}
	d := New(m, fw)
	if err := d.Tab(-1); err != nil {
		t.Fatalf("Tab: %v", err)
	}
	if len(fw.frames) != 1 || fw.frames[0].Kind != wire.KindTab {
		t.Fatalf("expected one Tab frame, got %+v", fw.frames)
	}
	var p struct {
		Direction int `json:"direction"`
	}
	if err := json.Unmarshal(fw.frames[0].Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Direction != -1 {
		t.Fatalf("direction = %d, want -1", p.Direction)
	}
}

func TestHandleUnknownKindIgnored(t *testing.T) {
	m := promptmodel.New()
	d := New(m, &fakeWriter{})
	if err := d.Handle(wire.Frame{Kind: "SomeFutureKind"}); err != nil {
		t.Fatalf("expected unknown kind to be ignored, got %v", err)
	}
}

func TestSubmitValueWritesFrame(t *testing.T) {
	m := promptmodel.New()
	fw := &fakeWriter{}
	d := New(m, fw)

	if err := d.SubmitValue(map[string]string{"value": "Beta"}); err != nil {
		t.Fatalf("SubmitValue: %v", err)
	}
	if len(fw.frames) != 1 || fw.frames[0].Kind != wire.KindSubmit {
		t.Fatalf("expected one Submit frame, got %+v", fw.frames)
	}
}

func TestCancelWritesFrame(t *testing.T) {
	m := promptmodel.New()
	fw := &fakeWriter{}
	d := New(m, fw)
	if err := d.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(fw.frames) != 1 || fw.frames[0].Kind != wire.KindCancel {
		t.Fatalf("expected one Cancel frame, got %+v", fw.frames)
	}
}

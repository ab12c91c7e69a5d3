package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/johnlindquist/scriptkit-gpui/internal/actions"
	"github.com/johnlindquist/scriptkit-gpui/internal/aichat"
	"github.com/johnlindquist/scriptkit-gpui/internal/catalog"
	"github.com/johnlindquist/scriptkit-gpui/internal/child"
	"github.com/johnlindquist/scriptkit-gpui/internal/clipboard"
	"github.com/johnlindquist/scriptkit-gpui/internal/config"
	"github.com/johnlindquist/scriptkit-gpui/internal/dispatch"
	"github.com/johnlindquist/scriptkit-gpui/internal/editinput"
	"github.com/johnlindquist/scriptkit-gpui/internal/filter"
	"github.com/johnlindquist/scriptkit-gpui/internal/frecency"
	"github.com/johnlindquist/scriptkit-gpui/internal/history"
	"github.com/johnlindquist/scriptkit-gpui/internal/htmlprompt"
	"github.com/johnlindquist/scriptkit-gpui/internal/keys"
	"github.com/johnlindquist/scriptkit-gpui/internal/outcome"
	"github.com/johnlindquist/scriptkit-gpui/internal/promptmodel"
	"github.com/johnlindquist/scriptkit-gpui/internal/resize"
	"github.com/johnlindquist/scriptkit-gpui/internal/shell"
	"github.com/johnlindquist/scriptkit-gpui/internal/telemetry"
	"github.com/johnlindquist/scriptkit-gpui/internal/terminal"
	"github.com/johnlindquist/scriptkit-gpui/internal/wire"
)

// Exit codes (spec §6 "CLI surface"): 0 success, 2 user cancel, 3 terminal
// error, 4 spawn failure, 5 protocol violation.
const (
	exitSuccess         = 0
	exitUserCancel      = 2
	exitTerminalError   = 3
	exitSpawnFailure    = 4
	exitProtocolViolate = 5
)

// ExitCodeError lets a subcommand signal a specific process exit code
// without cobra's default "print error, exit 1" handling swallowing it.
// main.go inspects returned errors for this type.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string { return e.Err.Error() }
func (e *ExitCodeError) Unwrap() error { return e.Err }

func exitErr(code int, err error) error { return &ExitCodeError{Code: code, Err: err} }

// newRunCmd implements the `run` subcommand (spec §6): spawns scriptPath as
// a child process via the runtime fallback chain, and drives it through
// the prompt runtime's dispatcher/model for the lifetime of the
// invocation, rendering the current prompt to the controlling terminal
// as the idiomatic-Go stand-in for the GPU-rendered window (spec §9:
// "GPU rendering substrate ... substituted with a raw ANSI/PTY terminal
// chrome").
//
// Grounded on the teacher's main.go wrapper loop (raw-mode terminal,
// read-decode-render cycle) generalized from wrapping one fixed TUI
// command to driving the prompt runtime's variant-dispatch loop.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a script and drive its prompts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.Context(), args[0], args[1:])
		},
	}
	return cmd
}

func runScript(ctx context.Context, scriptPath string, scriptArgs []string) error {
	cfg, err := config.Load()
	if err != nil {
		return exitErr(exitTerminalError, fmt.Errorf("run: %w", err))
	}
	kitDir := config.KitDir()
	scriptID := catalog.IDFromPath(scriptPath)
	correlationID := uuid.NewString()

	logger := telemetry.New(filepath.Join(kitDir, "logs", time.Now().Format("2006-01-02")+".log"))
	defer logger.Close()
	emitter := outcome.NewEmitter(logger)

	frecencyStore := frecency.Load(filepath.Join(kitDir, "db", "frecency.json"), time.Duration(cfg.FrecencyHalfLifeHours)*time.Hour)
	defer frecencyStore.Close()
	historyStore := history.Load(filepath.Join(kitDir, "db"), scriptID)

	env := map[string]string{
		"SCRIPT_KIT_DIR":  kitDir,
		"SCRIPT_KIT_KENV": cfg.KenvDir,
	}
	if cfg.AnthropicAPIKey != "" {
		env["SCRIPT_KIT_ANTHROPIC_API_KEY"] = cfg.AnthropicAPIKey
	}
	if cfg.OpenAIAPIKey != "" {
		env["SCRIPT_KIT_OPENAI_API_KEY"] = cfg.OpenAIAPIKey
	}

	preload := filepath.Join(cfg.KenvDir, "preload.ts")
	attempts := child.DefaultFallbackChain(scriptPath, preload, scriptArgs)

	session, err := child.Spawn(ctx, scriptID, attempts, env, func(a child.RuntimeAttempt) {
		logger.SessionSpawned(correlationID, scriptID, scriptID, a.Label)
	})
	if err != nil {
		emitter.Fail(correlationID, outcome.KindExternalSpawnFailed, outcome.SurfaceModal, err.Error())
		return exitErr(exitSpawnFailure, err)
	}
	session.MarkRunning()

	clipboardStore, err := clipboard.Open(filepath.Join(kitDir, "db", "clipboard.sqlite"), 200)
	if err != nil {
		return exitErr(exitTerminalError, fmt.Errorf("run: %w", err))
	}
	defer clipboardStore.Close()

	h := &host{
		session:        session,
		model:          promptmodel.New(),
		frecency:       frecencyStore,
		history:        historyStore,
		logger:         logger,
		emitter:        emitter,
		correlationID:  correlationID,
		clipboardStore: clipboardStore,
		aiClient:       aichat.NewClient(cfg.AnthropicAPIKey, aichat.DefaultModel),
		input:          &editinput.Editor{},
	}
	h.resize = resize.NewController(120, 640, func(height float64) {
		h.mu.Lock()
		h.resizeHeight = height
		h.mu.Unlock()
	})
	// The terminal chrome clears and redraws the full screen on every
	// frame (render's "\x1b[2J\x1b[H" reset), so there is no inline
	// region beside the host prompt to host the overlay in — it always
	// takes over the whole window (spec §4.5).
	h.model.Overlay.SetCapability(actions.ActionsWindow)
	h.model.Overlay.OnClose(func(restoredFocus, reason string) {
		if h.term != nil {
			h.term.SuppressKeys = false
		}
	})
	h.engine = filter.NewEngine(frecencyStore, func() { h.renderSafe() })
	h.dispatcher = dispatch.New(h.model, session)
	h.dispatcher.OnHud = func(msg string) { h.hud = msg; h.renderSafe() }
	h.dispatcher.OnLog = func(msg string) { logger.PromptShown(correlationID, "log:"+msg) }
	h.dispatcher.OnExit = func(code int) { h.childExit = &code }

	return h.run(ctx)
}

// host drives one script invocation's terminal UI: it owns raw-mode
// terminal state, the frame-reader pump, and the render/key loop.
type host struct {
	session        *child.Session
	model          *promptmodel.Model
	dispatcher     *dispatch.Dispatcher
	engine         *filter.Engine
	frecency       *frecency.Store
	history        *history.History
	logger         *telemetry.Logger
	emitter        *outcome.Emitter
	resize         *resize.Controller
	clipboardStore *clipboard.Store
	aiClient       *aichat.Client
	input          *editinput.Editor
	correlationID  string

	mu           sync.Mutex
	hud          string
	childExit    *int
	proto        keys.Protocol
	cols         int
	resizeHeight float64
	lastPromptID uint64
	term         *terminal.Term
	ctx          context.Context
}

func (h *host) renderSafe() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.render()
}

// syncInputForCurrent resyncs the shared editinput.Editor from the
// current variant's Filter whenever the mounted prompt changes (spec
// §4.7: one editing primitive backs every free-text variant), so a
// leftover cursor/selection from the previous prompt never leaks
// forward. Must be called with h.mu held.
func (h *host) syncInputForCurrent() {
	v := h.model.Current
	if v == nil || v.PromptID == h.lastPromptID {
		return
	}
	h.lastPromptID = v.PromptID
	h.input = &editinput.Editor{}
	h.input.InsertString(v.Filter)
}

// queueVariantResize computes the current variant's target height (spec
// §4.6's per-variant formulas) and queues it; the caller flushes once the
// whole effect cycle (model mutation + resize) is done. Must be called
// outside BeginRender/EndRender — QueueResize refuses calls made during
// render.
func (h *host) queueVariantResize() {
	const (
		headerHeight = 48.0
		footerHeight = 40.0
		rowHeight    = 32.0
		formBase     = 96.0
	)
	switch {
	case h.model.Overlay.IsOpen():
		h.resize.QueueResize(resize.ListHeight(headerHeight, footerHeight, rowHeight, len(h.model.Overlay.Filtered())))
	case h.model.Current != nil && (h.model.Current.Arg != nil || h.model.Current.Select != nil):
		h.resize.QueueResize(resize.ListHeight(headerHeight, footerHeight, rowHeight, len(h.engine.Results())))
	case h.model.Current != nil && (h.model.Current.Form != nil || h.model.Current.Template != nil):
		fields := h.model.Current.Form
		if fields == nil {
			fields = h.model.Current.Template
		}
		h.resize.QueueResize(resize.FormHeight(formBase, rowHeight, len(fields.Fields), 120, 640))
	default:
		h.resize.QueueResize(120)
	}
	h.resize.Flush()
}

// render redraws the current prompt state to the terminal: the actions
// overlay when open, otherwise the current variant's filter/choice list,
// plus the status-bar chrome (spec §4.8 — the terminal stand-in for the
// GPU-rendered window). Must be called with h.mu held.
func (h *host) render() {
	h.syncInputForCurrent()
	h.queueVariantResize()

	h.resize.BeginRender()
	defer h.resize.EndRender()

	var b strings.Builder
	b.WriteString("\x1b[2J\x1b[H")

	mode := shell.ModeNormal
	switch {
	case h.model.Overlay.IsOpen():
		mode = shell.ModeActions
		fmt.Fprintf(&b, "Actions: %s\n", h.model.Overlay.Query())
		sel, _ := h.model.Overlay.Selected()
		for _, a := range h.model.Overlay.Filtered() {
			cursor := "  "
			if a.ID == sel.ID {
				cursor = "> "
			}
			fmt.Fprintf(&b, "%s%s\t%s\n", cursor, a.Label, a.Shortcut)
		}

	case h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantPath:
		p := h.model.Current.Path
		fmt.Fprintf(&b, "%s: %s\n", p.CurrentPath, p.Filter)
		for _, e := range visibleEntries(p) {
			fmt.Fprintf(&b, "  %s\n", e)
		}

	case h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantTerm:
		if h.term != nil {
			var tb bytes.Buffer
			h.term.RenderScreen(&tb)
			b.Write(tb.Bytes())
		}

	case h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantChat:
		c := h.model.Current.Chat
		for _, m := range c.Messages {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
		fmt.Fprintf(&b, "> %s\n", string(h.input.Text))
		if c.Streaming {
			b.WriteString("(thinking...)\n")
		}

	case h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantWebcam:
		fmt.Fprintf(&b, "Webcam: %s\n", h.model.Current.Webcam.DeviceID)

	case h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantEnv:
		e := h.model.Current.Env
		fmt.Fprintf(&b, "%s\n%s\n> %s\n", e.Name, e.Description, string(h.input.Text))

	case h.model.Current != nil && (h.model.Current.Kind == promptmodel.VariantForm || h.model.Current.Kind == promptmodel.VariantTemplate):
		fields := h.model.Current.Form
		if fields == nil {
			fields = h.model.Current.Template
		}
		for _, f := range fields.Fields {
			value := f.Value
			if value == "" {
				value = string(h.input.Text)
			}
			fmt.Fprintf(&b, "%s: %s\n", f.Label, value)
		}

	case h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantSelect:
		sel := h.model.Current.Select
		fmt.Fprintf(&b, "%s: %s\n", sel.Placeholder, string(h.input.Text))
		for _, sec := range h.engine.Results() {
			fmt.Fprintf(&b, "-- %s --\n", sec.Title)
			for _, r := range sec.Results {
				mark := "[ ]"
				if sel.Selected[r.Entry.ID] {
					mark = "[x]"
				}
				fmt.Fprintf(&b, "%s %s\n", mark, r.Entry.Name)
			}
		}

	case h.model.Current != nil && h.model.Current.Arg != nil:
		fmt.Fprintf(&b, "%s: %s\n", h.model.Current.Arg.Placeholder, string(h.input.Text))
		sel, _ := h.engine.Selected()
		for _, sec := range h.engine.Results() {
			fmt.Fprintf(&b, "-- %s --\n", sec.Title)
			for _, r := range sec.Results {
				cursor := "  "
				if r.Entry.ID == sel.Entry.ID {
					cursor = "> "
				}
				fmt.Fprintf(&b, "%s%s\n", cursor, r.Entry.Name)
			}
		}

	case h.model.Current != nil && h.model.Current.Div != nil:
		root, err := htmlprompt.Parse(h.model.Current.Div.HTML)
		if err != nil {
			fmt.Fprintf(&b, "%s\n", h.model.Current.Div.HTML)
		} else {
			fmt.Fprintf(&b, "%s\n", htmlprompt.RenderANSI(root))
		}

	default:
		b.WriteString("\n")
	}

	if h.hud != "" {
		fmt.Fprintf(&b, "\n%s\n", h.hud)
	}

	b.WriteString(shell.RenderBar(shell.BarConfig{
		Mode:     mode,
		Protocol: h.proto,
		Status:   shell.StatusLabel(time.Time{}, time.Now()),
		Right:    h.session.ScriptID,
		Cols:     h.cols,
	}))

	// The animated resize height (spec §4.6) pads the frame with trailing
	// blank lines so a growing/shrinking window is visible in the
	// terminal stand-in for the GPU window, instead of only existing as
	// an untethered internal float.
	if rows := int(h.resizeHeight / 32); rows > strings.Count(b.String(), "\n") {
		b.WriteString(strings.Repeat("\n", rows-strings.Count(b.String(), "\n")))
	}

	os.Stdout.WriteString(b.String())
}

func (h *host) run(ctx context.Context) error {
	h.ctx = ctx
	restore, rawErr := enterRawMode()
	if rawErr == nil {
		defer restore()
	}
	h.cols, _ = terminalWidth()
	h.proto = keys.DetectKittyKeyboard(os.Stdin, os.Stdout)
	defer func() {
		if h.term != nil {
			h.term.Close()
		}
	}()

	frames := make(chan wire.Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := h.session.Reader.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			frames <- f
		}
	}()

	decoder := &keys.Decoder{}
	input := make(chan []byte)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(input)
				return
			}
			cp := append([]byte(nil), buf[:n]...)
			input <- cp
		}
	}()

	h.renderSafe()

	for {
		select {
		case f := <-frames:
			h.mu.Lock()
			if err := h.dispatcher.Handle(f); err != nil {
				h.mu.Unlock()
				h.emitter.Fail(h.correlationID, outcome.KindProtocolViolation, outcome.SurfaceModal, err.Error())
				return exitErr(exitProtocolViolate, err)
			}
			h.syncEngine()
			if v := h.model.Current; v != nil && v.Kind == promptmodel.VariantPath && v.Path.Entries == nil {
				refreshPathEntries(v.Path)
			}
			h.syncTermLifecycle()
			h.render()
			h.mu.Unlock()

		case err := <-readErr:
			return h.finish(err)

		case raw, ok := <-input:
			if !ok {
				continue
			}
			// A lone ESC byte with nothing following in the same read is a
			// real Escape keypress; anything longer goes through the
			// decoder so multi-byte CSI/SS3/kitty sequences parse whole.
			var evs []keys.Event
			if len(raw) == 1 && raw[0] == 0x1B {
				evs = []keys.Event{{Kind: keys.KindEscape}}
			} else {
				evs = decoder.Feed(raw)
			}
			for _, ev := range evs {
				if code, done := h.handleKey(ev); done {
					return h.exitWithCode(code)
				}
			}
			h.renderSafe()
		}
	}
}

// finish handles the child's stdio closing (EOF) or a frame-reader error
// by waiting for the process exit code and mapping it to the spec's exit
// codes.
func (h *host) finish(readErr error) error {
	if _, ok := readErr.(*wire.ErrProtocolViolation); ok {
		h.emitter.Fail(h.correlationID, outcome.KindProtocolViolation, outcome.SurfaceModal, readErr.Error())
		return exitErr(exitProtocolViolate, readErr)
	}
	if readErr != nil && readErr != io.EOF {
		h.emitter.Fail(h.correlationID, outcome.KindTransportDisconnected, outcome.SurfaceToast, readErr.Error())
	}

	out := h.session.Wait(func() bool { return h.model.Current != nil })
	switch out.Kind {
	case child.OutcomeSucceeded:
		h.emitter.Success(h.correlationID)
		return nil
	case child.OutcomeCancelled:
		h.emitter.Fail(h.correlationID, outcome.KindUserCancelled, outcome.SurfaceToast, "cancelled")
		return exitErr(exitUserCancel, fmt.Errorf("run: cancelled"))
	default:
		detail := ""
		if out.Failure != nil {
			detail = out.Failure.Detail
		}
		h.emitter.Fail(h.correlationID, outcome.KindFilesystem, outcome.SurfaceModal, detail)
		return exitErr(exitTerminalError, fmt.Errorf("run: %s", detail))
	}
}

func (h *host) exitWithCode(code int) error {
	switch code {
	case exitUserCancel:
		h.session.Cancel()
		h.session.Wait(nil)
		h.emitter.Fail(h.correlationID, outcome.KindUserCancelled, outcome.SurfaceToast, "cancelled")
		return exitErr(exitUserCancel, fmt.Errorf("run: cancelled"))
	}
	return h.finish(io.EOF)
}

// syncEngine refreshes the filter engine's entry snapshot from the current
// Arg/Select variant's choices whenever the model changes underneath it.
func (h *host) syncEngine() {
	v := h.model.Current
	if v == nil {
		return
	}
	var choices []promptmodel.Choice
	switch {
	case v.Arg != nil:
		choices = v.Arg.Choices
	case v.Select != nil:
		choices = v.Select.Choices
	default:
		return
	}
	entries := make([]filter.Entry, len(choices))
	for i, c := range choices {
		entries[i] = filter.Entry{ID: c.ID, Name: c.Name, Kind: "choice"}
	}
	h.engine.SetEntries(entries, h.frecency.Revision())
	h.engine.SetFilter(v.Filter)
}

// syncTermLifecycle starts the Term prompt's PTY the first time a Term
// variant mounts and tears it down once the variant changes away from
// Term (spec §4.8), so a script that never shows a Term prompt never
// pays for one.
func (h *host) syncTermLifecycle() {
	v := h.model.Current
	if v == nil || v.Kind != promptmodel.VariantTerm {
		if h.term != nil {
			h.term.Close()
			h.term = nil
		}
		return
	}
	if h.term != nil {
		return
	}
	t := &terminal.Term{}
	cols := h.cols
	if cols <= 0 {
		cols = 80
	}
	if err := t.Start(v.Term.Shell, v.Term.Argv, v.Term.Cwd, v.Term.Env, 24, cols); err != nil {
		h.emitter.Fail(h.correlationID, outcome.KindFilesystem, outcome.SurfaceToast, err.Error())
		return
	}
	h.term = t
	go h.term.Pipe(func() { h.renderSafe() })
}

// handlePathKey applies a key event specific to the Path prompt (spec §4:
// Tab completes the longest common prefix of visible entries, Left/Right
// navigate out of/into directories). It reports whether it consumed the
// event; unconsumed events (Enter, Escape, Up/Down) fall through to
// handleKey's generic handling.
func (h *host) handlePathKey(ev keys.Event) bool {
	p := h.model.Current.Path
	switch ev.Kind {
	case keys.KindTab, keys.KindShiftTab:
		completeLongestCommonPrefix(p)
	case keys.KindArrowLeft:
		ascendPath(p)
	case keys.KindArrowRight:
		descendPath(p)
	case keys.KindBackspace:
		if len(p.Filter) > 0 {
			p.Filter = p.Filter[:len(p.Filter)-1]
		}
	case keys.KindChar:
		p.Filter += string(ev.Rune)
	default:
		return false
	}
	return true
}

// handleTermKey forwards a key event to the Term prompt's PTY (spec
// §4.8, §8 scenario 3), translating arrows through ArrowBytes so
// application-cursor-mode is honored. It reports whether it consumed the
// event; events it doesn't recognize (notably Ctrl+Enter, which must
// still open the actions overlay over a Term prompt) fall through to
// handleKey's generic handling.
func (h *host) handleTermKey(ev keys.Event) bool {
	if h.term == nil || h.term.SuppressKeys {
		return false
	}
	const writeTimeout = time.Second
	switch ev.Kind {
	case keys.KindArrowUp:
		h.term.Write(h.term.ArrowBytes('A'), writeTimeout)
	case keys.KindArrowDown:
		h.term.Write(h.term.ArrowBytes('B'), writeTimeout)
	case keys.KindArrowRight:
		h.term.Write(h.term.ArrowBytes('C'), writeTimeout)
	case keys.KindArrowLeft:
		h.term.Write(h.term.ArrowBytes('D'), writeTimeout)
	case keys.KindEnter:
		h.term.Write([]byte("\r"), writeTimeout)
	case keys.KindBackspace:
		h.term.Write([]byte{0x7F}, writeTimeout)
	case keys.KindTab:
		h.term.Write([]byte("\t"), writeTimeout)
	case keys.KindEscape:
		h.term.Write([]byte{0x1B}, writeTimeout)
	case keys.KindControl:
		h.term.Write([]byte{byte(ev.Rune)}, writeTimeout)
	case keys.KindChar:
		h.term.Write([]byte(string(ev.Rune)), writeTimeout)
	default:
		return false
	}
	return true
}

// editTextForCurrent applies the shared editinput primitive's operations
// to the free-text variants (Arg, Select, Env, Form/Template, Chat),
// syncing the edited text back onto the model's Filter field for the
// filter engine to consume. Cut operations (Ctrl+K/Ctrl+U) and paste
// (Ctrl+Y) round-trip through the clipboard history store (spec §2).
func (h *host) editTextForCurrent(ev keys.Event) {
	switch ev.Kind {
	case keys.KindBackspace:
		h.input.DeleteBackward()
	case keys.KindChar:
		h.input.InsertByte(byte(ev.Rune))
	case keys.KindArrowLeft:
		h.input.CursorLeft()
	case keys.KindArrowRight:
		h.input.CursorRight()
	case keys.KindMetaForward:
		h.input.CursorForwardWord()
	case keys.KindMetaBackward:
		h.input.CursorBackwardWord()
	case keys.KindControl:
		switch ev.Rune {
		case 0x01: // Ctrl+A: start of line
			h.input.CursorToStart()
		case 0x05: // Ctrl+E: end of line
			h.input.CursorToEnd()
		case 0x0B: // Ctrl+K: kill to end, captured for paste-back
			killed := string(h.input.Text[h.input.CursorPos:])
			h.input.KillToEnd()
			if killed != "" {
				h.clipboardStore.AddText(killed)
			}
		case 0x15: // Ctrl+U: kill to start
			killed := string(h.input.Text[:h.input.CursorPos])
			h.input.KillToStart()
			if killed != "" {
				h.clipboardStore.AddText(killed)
			}
		case 0x19: // Ctrl+Y: yank the most recent text clipboard entry
			if entries, err := h.clipboardStore.List(1); err == nil && len(entries) > 0 && entries[0].Kind == clipboard.KindText {
				h.input.InsertString(entries[0].Text)
			}
		}
	default:
		return
	}
	if h.model.Current != nil {
		h.model.Current.Filter = string(h.input.Text)
		h.engine.SetFilter(h.model.Current.Filter)
	}
}

// handleKey applies one decoded key event to the overlay or the current
// prompt variant, returning (exitCode, true) when the loop should end.
func (h *host) handleKey(ev keys.Event) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.model.Overlay.IsOpen() {
		h.routeOverlayKey(ev)
		return 0, false
	}

	if h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantPath && h.handlePathKey(ev) {
		return 0, false
	}

	if h.model.Current != nil && h.model.Current.Kind == promptmodel.VariantTerm && h.handleTermKey(ev) {
		return 0, false
	}

	switch ev.Kind {
	case keys.KindEscape:
		if err := h.dispatcher.Cancel(); err != nil {
			h.emitter.Fail(h.correlationID, outcome.KindTransportDisconnected, outcome.SurfaceToast, err.Error())
		}
		return exitUserCancel, true

	case keys.KindEnter:
		h.submitSelected()

	case keys.KindArrowUp:
		h.engine.QueueNavigationDelta(-1)

	case keys.KindArrowDown:
		h.engine.QueueNavigationDelta(1)

	case keys.KindTab:
		if err := h.dispatcher.Tab(1); err != nil {
			h.emitter.Fail(h.correlationID, outcome.KindTransportDisconnected, outcome.SurfaceToast, err.Error())
		}

	case keys.KindShiftTab:
		if err := h.dispatcher.Tab(-1); err != nil {
			h.emitter.Fail(h.correlationID, outcome.KindTransportDisconnected, outcome.SurfaceToast, err.Error())
		}

	case keys.KindCtrlEnter:
		if h.model.Overlay != nil && h.model.Overlay.Capability() != actions.NoActions {
			if h.term != nil {
				h.term.SuppressKeys = true
			}
			h.model.Overlay.Open(h.focusSubject())
		}

	case keys.KindBackspace, keys.KindChar, keys.KindArrowLeft, keys.KindArrowRight,
		keys.KindMetaForward, keys.KindMetaBackward, keys.KindControl:
		h.editTextForCurrent(ev)
	}
	return 0, false
}

func (h *host) focusSubject() string {
	if h.model.Current == nil {
		return "root"
	}
	return h.model.Current.Focus
}

func (h *host) routeOverlayKey(ev keys.Event) {
	ov := h.model.Overlay
	switch ev.Kind {
	case keys.KindEscape:
		ov.Close("escape")
	case keys.KindEnter:
		ov.Execute(func(a actions.Action) {
			if err := h.dispatcher.TriggerAction(a.ID); err != nil {
				h.emitter.Fail(h.correlationID, outcome.KindTransportDisconnected, outcome.SurfaceToast, err.Error())
			}
		})
	case keys.KindArrowDown:
		ov.Next()
	case keys.KindArrowUp:
		ov.Prev()
	case keys.KindBackspace:
		q := ov.Query()
		if len(q) > 0 {
			ov.SetQuery(q[:len(q)-1])
		}
	case keys.KindChar:
		ov.SetQuery(ov.Query() + string(ev.Rune))
	}
}

func (h *host) submitSelected() {
	if v := h.model.Current; v != nil && v.Kind == promptmodel.VariantPath {
		h.submitPath(v.Path)
		return
	}
	if v := h.model.Current; v != nil && v.Kind == promptmodel.VariantChat {
		h.submitChat(v.Chat)
		return
	}
	result, ok := h.engine.Selected()
	if !ok {
		return
	}
	h.frecency.Hit(result.Entry.ID)
	if h.model.Current != nil {
		_ = h.history.Append(h.model.Current.Filter)
	}
	if err := h.dispatcher.SubmitValue(map[string]string{"value": result.Entry.ID}); err != nil {
		h.emitter.Fail(h.correlationID, outcome.KindTransportBackpressure, outcome.SurfaceToast, err.Error())
	}
}

// submitPath submits the path prompt's current selection: the typed filter
// resolved against CurrentPath when one entry matches it, otherwise
// CurrentPath itself (selecting the directory being browsed).
func (h *host) submitPath(p *promptmodel.PathState) {
	value := p.CurrentPath
	if matches := visibleEntries(p); len(matches) == 1 {
		value = filepath.Join(p.CurrentPath, strings.TrimSuffix(matches[0], "/"))
	}
	if err := h.dispatcher.SubmitValue(map[string]string{"value": value}); err != nil {
		h.emitter.Fail(h.correlationID, outcome.KindTransportBackpressure, outcome.SurfaceToast, err.Error())
	}
}

// submitChat sends the composed message to the Chat prompt's streaming
// backend (spec §2 "AI chat backend"): the user's turn is appended
// immediately, a placeholder assistant turn starts accumulating text off
// the aichat.Client's delta channel, and each delta triggers a re-render
// so the reply appears incrementally rather than all at once.
func (h *host) submitChat(c *promptmodel.ChatState) {
	text := string(h.input.Text)
	if text == "" {
		return
	}
	h.input = &editinput.Editor{}
	c.Messages = append(c.Messages, promptmodel.ChatMessage{Role: string(aichat.RoleUser), Text: text})

	history := make([]aichat.Message, len(c.Messages))
	for i, m := range c.Messages {
		history[i] = aichat.Message{Role: aichat.Role(m.Role), Text: m.Text}
	}
	assistantIdx := len(c.Messages)
	c.Messages = append(c.Messages, promptmodel.ChatMessage{Role: string(aichat.RoleAssistant)})
	c.Streaming = true

	deltas := h.aiClient.Stream(h.ctx, "", history)
	go func() {
		for d := range deltas {
			h.mu.Lock()
			if d.Err == nil && d.Text != "" {
				c.Messages[assistantIdx].Text += d.Text
			}
			if d.Done {
				c.Streaming = false
			}
			h.mu.Unlock()
			h.renderSafe()
		}
	}()
}

// enterRawMode puts stdin into raw mode for single-keystroke reads. It is a
// no-op (not an error) when stdin or stdout isn't an interactive terminal —
// e.g. `run` invoked under `serve`'s non-interactive catalogSource path, a
// test harness, or a redirected-output CI shell — since term.MakeRaw on a
// non-tty fd either errors or silently does nothing useful, and the host
// loop's render output degrades gracefully to plain line-buffered text in
// that case.
func enterRawMode() (func(), error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return func() {}, nil
	}
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}, err
	}
	return func() { term.Restore(fd, state) }, nil
}

func terminalWidth() (int, error) {
	cols, _, err := term.GetSize(int(os.Stdout.Fd()))
	return cols, err
}

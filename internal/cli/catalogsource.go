package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/johnlindquist/scriptkit-gpui/internal/catalog"
	"github.com/johnlindquist/scriptkit-gpui/internal/child"
	"github.com/johnlindquist/scriptkit-gpui/internal/mcpserve"
)

// runTimeout bounds a non-interactive `serve`-invoked run so a
// stuck script can't hang the MCP tool call forever.
const runTimeout = 30 * time.Second

// catalogSource is the concrete CatalogSource the `serve` subcommand hands
// to mcpserve: a snapshot of catalog entries plus a runner that executes
// a script or scriptlet non-interactively and returns its text output.
// It satisfies mcpserve.CatalogSource structurally — mcpserve never
// imports this package or internal/catalog (spec §1: MCP server is a leaf
// collaborator behind a narrow interface).
type catalogSource struct {
	preloadPath string

	mu      sync.RWMutex
	entries []catalog.Entry
}

func newCatalogSource(entries []catalog.Entry, preloadPath string) *catalogSource {
	return &catalogSource{entries: entries, preloadPath: preloadPath}
}

// SetEntries atomically replaces the catalog snapshot `serve` exposes over
// MCP, called by the `internal/catalog.Watcher` loop whenever a script or
// scriptlet file in the kenv changes (spec §3: "Catalog is owned behind an
// immutable shared reference; updates are copy-on-replace").
func (s *catalogSource) SetEntries(entries []catalog.Entry) {
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

func (s *catalogSource) ListEntries() []mcpserve.CatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mcpserve.CatalogEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = mcpserve.CatalogEntry{ID: e.ID, Name: e.Name, Description: e.Description}
	}
	return out
}

func (s *catalogSource) find(id string) (catalog.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return catalog.Entry{}, false
}

func (s *catalogSource) RunEntry(ctx context.Context, id string, vars map[string]string) (string, error) {
	entry, ok := s.find(id)
	if !ok {
		return "", fmt.Errorf("catalogsource: unknown entry %q", id)
	}

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	switch entry.Kind {
	case catalog.KindScript:
		return s.runScript(ctx, entry)
	case catalog.KindScriptlet:
		return s.runScriptlet(ctx, entry, vars)
	default:
		return "", fmt.Errorf("catalogsource: entry %q has no runnable tool", id)
	}
}

// runScript runs a .ts/.js entry through the same runtime fallback chain
// the interactive `run` command uses, but blocking and stdout-captured
// rather than wired over the framed JSON-RPC channel — `serve`'s MCP
// tools expect a plain text result, not a prompt sequence.
func (s *catalogSource) runScript(ctx context.Context, entry catalog.Entry) (string, error) {
	attempts := child.DefaultFallbackChain(entry.Path, s.preloadPath, nil)
	var lastErr error
	for _, a := range attempts {
		cmd := exec.CommandContext(ctx, a.Command, a.Args...)
		var out, stderr bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			lastErr = fmt.Errorf("%s: %w: %s", a.Label, err, stderr.String())
			continue
		}
		return out.String(), nil
	}
	return "", fmt.Errorf("catalogsource: run %s: %w", entry.Path, lastErr)
}

// runScriptlet renders the scriptlet's first section and executes it
// under its declared tool.
func (s *catalogSource) runScriptlet(ctx context.Context, entry catalog.Entry, vars map[string]string) (string, error) {
	raw, err := os.ReadFile(entry.Path)
	if err != nil {
		return "", err
	}
	scriptlet, err := catalog.ParseScriptletFile(entry, raw)
	if err != nil {
		return "", err
	}
	section := scriptlet.Sections[0]

	builtin := catalog.BuiltinVars(time.Now(), nil)
	rendered, err := catalog.RenderSection(section, vars, builtin)
	if err != nil {
		return "", fmt.Errorf("catalogsource: render %s: %w", entry.Path, err)
	}

	switch section.Tool {
	case catalog.ToolPaste, catalog.ToolTemplate:
		return rendered, nil
	case catalog.ToolOpen:
		return "", exec.CommandContext(ctx, "open", rendered).Run()
	case catalog.ToolBash:
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", rendered)
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		return out.String(), err
	case catalog.ToolApplescript:
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, "osascript", "-e", escapeAppleScript(rendered))
		cmd.Stdout = &out
		cmd.Stderr = &out
		err := cmd.Run()
		return out.String(), err
	default:
		return "", fmt.Errorf("catalogsource: unsupported tool %q", section.Tool)
	}
}

// escapeAppleScript applies AppleScript string escaping to double quotes
// only; no shell escaping is applied, since exec passes the "-e" argument
// to osascript directly and no shell interpolation happens.
func escapeAppleScript(body string) string {
	return strings.ReplaceAll(body, `"`, `\"`)
}

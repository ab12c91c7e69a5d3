// Package mcpserve is the concrete adapter behind the `serve` CLI
// subcommand (spec.md §1 names an MCP server as an external leaf
// collaborator; spec.md §6 names `serve` as a CLI subcommand).
// It exposes the script catalog as MCP tools over stdio and mirrors
// every run_script invocation to a websocket status feed for a monitoring
// dashboard (list_scripts calls are not broadcast). The core prompt runtime never imports this package —
// CatalogSource is the only interface it needs to know about.
//
// Grounded on `_examples/standardbeagle-devtool-mcp`'s
// `cmd/agnt/serve.go` (mcp.NewServer/mcp.Implementation/StdioTransport
// assembly) and `internal/tools/process.go` (mcp.AddTool with a
// per-tool input/output struct pair and a handler-factory function).
// The websocket status feed has no teacher precedent; it is a thin,
// standard `gorilla/websocket` upgrade-and-broadcast loop, the same
// library the rest of the pack's servers use for push transports.
package mcpserve

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CatalogEntry is the minimal projection of internal/catalog.Entry this
// package needs, kept decoupled so mcpserve never imports internal/catalog
// directly.
type CatalogEntry struct {
	ID          string
	Name        string
	Description string
}

// CatalogSource is the only interface the prompt runtime's catalog
// needs to satisfy for mcpserve to expose it over MCP.
type CatalogSource interface {
	ListEntries() []CatalogEntry
	RunEntry(ctx context.Context, id string, vars map[string]string) (string, error)
}

// ToolEvent is broadcast to websocket status clients once after each
// run_script invocation.
type ToolEvent struct {
	Tool      string            `json:"tool"`
	ID        string            `json:"id,omitempty"`
	Vars      map[string]string `json:"vars,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	DurationMs int64            `json:"duration_ms"`
	Err       string            `json:"error,omitempty"`
}

// Broadcaster fans out ToolEvents to connected websocket clients. A client
// whose write fails is dropped; writes carry no deadline, so a slow client
// delays the broadcast.
type Broadcaster struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades an HTTP request to a websocket and registers the
// connection for broadcast. It blocks (reading, and discarding, frames)
// until the client disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends event as JSON to every connected client.
func (b *Broadcaster) Broadcast(event ToolEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(b.clients, conn)
		}
	}
}

// ClientCount reports the number of connected status clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

type listScriptsInput struct{}

type listScriptsOutput struct {
	Scripts []CatalogEntry `json:"scripts"`
}

type runScriptInput struct {
	ID   string            `json:"id"`
	Vars map[string]string `json:"vars,omitempty"`
}

type runScriptOutput struct {
	Output string `json:"output"`
}

func makeListScriptsHandler(source CatalogSource) func(context.Context, *mcp.CallToolRequest, listScriptsInput) (*mcp.CallToolResult, listScriptsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input listScriptsInput) (*mcp.CallToolResult, listScriptsOutput, error) {
		return nil, listScriptsOutput{Scripts: source.ListEntries()}, nil
	}
}

func makeRunScriptHandler(source CatalogSource, events *Broadcaster) func(context.Context, *mcp.CallToolRequest, runScriptInput) (*mcp.CallToolResult, runScriptOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input runScriptInput) (*mcp.CallToolResult, runScriptOutput, error) {
		started := time.Now()
		out, err := source.RunEntry(ctx, input.ID, input.Vars)

		event := ToolEvent{Tool: "run_script", ID: input.ID, Vars: input.Vars, StartedAt: started, DurationMs: time.Since(started).Milliseconds()}
		if err != nil {
			event.Err = err.Error()
		}
		if events != nil {
			events.Broadcast(event)
		}
		if err != nil {
			return nil, runScriptOutput{}, fmt.Errorf("mcpserve: run_script %s: %w", input.ID, err)
		}
		return nil, runScriptOutput{Output: out}, nil
	}
}

// NewServer builds an MCP server exposing the catalog as two tools:
// list_scripts and run_script. events may be nil to skip status
// broadcasting.
func NewServer(name, version string, source CatalogSource, events *Broadcaster) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: name, Version: version},
		&mcp.ServerOptions{
			HasTools:     true,
			Instructions: "Exposes the Script Kit catalog as MCP tools: list_scripts enumerates runnable entries, run_script executes one by id with optional template variables.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_scripts",
		Description: "List all scripts and scriptlets in the catalog.",
	}, makeListScriptsHandler(source))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_script",
		Description: "Run a catalog entry by id, optionally supplying template variables.",
	}, makeRunScriptHandler(source, events))

	return server
}

// ServeStdio runs server over stdio until ctx is cancelled or the
// transport closes. This is the MCP client-facing half of `serve`.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// ServeStatus runs the websocket status feed on addr until ctx is done.
// This is the dashboard-facing half of `serve`, independent of the MCP
// stdio transport above.
func ServeStatus(ctx context.Context, addr string, events *Broadcaster) error {
	mux := http.NewServeMux()
	mux.Handle("/status", events)
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

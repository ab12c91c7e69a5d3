package mcpserve

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeSource struct {
	entries []CatalogEntry
	runErr  error
	lastID  string
	lastVars map[string]string
}

func (f *fakeSource) ListEntries() []CatalogEntry { return f.entries }

func (f *fakeSource) RunEntry(ctx context.Context, id string, vars map[string]string) (string, error) {
	f.lastID = id
	f.lastVars = vars
	if f.runErr != nil {
		return "", f.runErr
	}
	return "ran " + id, nil
}

func TestListScriptsHandlerReturnsCatalogEntries(t *testing.T) {
	source := &fakeSource{entries: []CatalogEntry{{ID: "a", Name: "Alpha"}}}
	handler := makeListScriptsHandler(source)
	_, out, err := handler(context.Background(), nil, listScriptsInput{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(out.Scripts) != 1 || out.Scripts[0].ID != "a" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestRunScriptHandlerReturnsOutputAndRecordsCall(t *testing.T) {
	source := &fakeSource{}
	events := NewBroadcaster()
	handler := makeRunScriptHandler(source, events)

	_, out, err := handler(context.Background(), nil, runScriptInput{ID: "foo", Vars: map[string]string{"x": "1"}})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out.Output != "ran foo" {
		t.Fatalf("Output = %q", out.Output)
	}
	if source.lastID != "foo" || source.lastVars["x"] != "1" {
		t.Fatalf("unexpected call recorded: id=%q vars=%v", source.lastID, source.lastVars)
	}
}

func TestRunScriptHandlerWrapsError(t *testing.T) {
	source := &fakeSource{runErr: errors.New("boom")}
	handler := makeRunScriptHandler(source, nil)

	_, _, err := handler(context.Background(), nil, runScriptInput{ID: "bad"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped error containing 'boom', got %v", err)
	}
}

func TestBroadcasterDeliversEventToConnectedClient(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 connected client, got %d", b.ClientCount())
	}

	b.Broadcast(ToolEvent{Tool: "run_script", ID: "foo"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(data), `"run_script"`) || !strings.Contains(string(data), `"foo"`) {
		t.Fatalf("unexpected message: %s", data)
	}
}

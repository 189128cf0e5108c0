package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/reliefhq/relief/internal/answer"
	"github.com/reliefhq/relief/internal/vectorstore"
)

// fakeAnswerer records calls and returns canned results.
type fakeAnswerer struct {
	answerQuestion string
	answerTopK     int
	answerErr      error

	searchQuery string
	searchTopK  int
	searchErr   error
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, topK int) (*answer.Result, error) {
	f.answerQuestion = question
	f.answerTopK = topK
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	return &answer.Result{
		Answer: "Set pressure is 10 barg.",
		Sources: []answer.Source{
			{ID: "prv.md#chunk-0", URI: "prv.md", Snippet: "Set pressure is 10 barg.", Score: 0.93},
		},
	}, nil
}

func (f *fakeAnswerer) Search(_ context.Context, query string, topK int) (*vectorstore.QueryResult, error) {
	f.searchQuery = query
	f.searchTopK = topK
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &vectorstore.QueryResult{
		IDs:       []string{"prv.md#chunk-0"},
		Texts:     []string{"Set pressure is 10 barg."},
		Metadatas: []map[string]string{{"source": "prv.md"}},
		Distances: []float32{0.07},
	}, nil
}

// connectServer creates a relief MCP server backed by the given answerer
// and an SDK client connected via in-memory transports. Returns the client
// session for making protocol calls.
func connectServer(t *testing.T, answerer Answerer) *mcp.ClientSession {
	t.Helper()

	server, err := NewServer(Config{Name: "relief", Version: "test"}, answerer, nil)
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(Config{Version: "1"}, &fakeAnswerer{}, nil); err == nil {
		t.Error("NewServer() without name expected error, got nil")
	}
	if _, err := NewServer(Config{Name: "relief"}, &fakeAnswerer{}, nil); err == nil {
		t.Error("NewServer() without version expected error, got nil")
	}
}

func TestListTools(t *testing.T) {
	session := connectServer(t, &fakeAnswerer{})

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}

	var names []string
	for _, tool := range result.Tools {
		if tool.Description == "" {
			t.Errorf("ListTools() tool %q has empty description", tool.Name)
		}
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	wantNames := []string{"ask", "search"}
	if len(names) != len(wantNames) {
		t.Fatalf("ListTools() returned %d tools, want %d\ngot:  %v\nwant: %v", len(names), len(wantNames), names, wantNames)
	}
	for i, got := range names {
		if got != wantNames[i] {
			t.Errorf("ListTools() tool[%d] = %q, want %q", i, got, wantNames[i])
		}
	}
}

func TestCallToolAsk(t *testing.T) {
	answerer := &fakeAnswerer{}
	session := connectServer(t, answerer)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "ask",
		Arguments: map[string]any{
			"question": "What is the set pressure?",
			"top_k":    3,
		},
	})
	if err != nil {
		t.Fatalf("CallTool(ask) unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("CallTool(ask) returned error result")
	}
	if answerer.answerQuestion != "What is the set pressure?" {
		t.Errorf("question = %q, want %q", answerer.answerQuestion, "What is the set pressure?")
	}
	if answerer.answerTopK != 3 {
		t.Errorf("topK = %d, want 3", answerer.answerTopK)
	}

	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(ask) content[0] type = %T, want *mcp.TextContent", result.Content[0])
	}

	var res answer.Result
	if err := json.Unmarshal([]byte(textContent.Text), &res); err != nil {
		t.Fatalf("CallTool(ask) parsing JSON: %v\ntext: %s", err, textContent.Text)
	}
	if res.Answer != "Set pressure is 10 barg." {
		t.Errorf("answer = %q, want %q", res.Answer, "Set pressure is 10 barg.")
	}
	if len(res.Sources) != 1 || res.Sources[0].URI != "prv.md" {
		t.Errorf("sources = %+v, want one source with uri prv.md", res.Sources)
	}
}

func TestCallToolAskError(t *testing.T) {
	session := connectServer(t, &fakeAnswerer{answerErr: errors.New("provider unavailable")})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ask",
		Arguments: map[string]any{"question": "anything"},
	})
	if err != nil {
		t.Fatalf("CallTool(ask) unexpected protocol error: %v", err)
	}
	if !result.IsError {
		t.Fatal("CallTool(ask) expected IsError result")
	}
	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(ask) content[0] type = %T, want *mcp.TextContent", result.Content[0])
	}
	if !strings.Contains(textContent.Text, "provider unavailable") {
		t.Errorf("error text = %q, want to contain %q", textContent.Text, "provider unavailable")
	}
}

func TestCallToolSearch(t *testing.T) {
	answerer := &fakeAnswerer{}
	session := connectServer(t, answerer)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "search",
		Arguments: map[string]any{
			"query": "set pressure",
			"top_k": 5,
		},
	})
	if err != nil {
		t.Fatalf("CallTool(search) unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("CallTool(search) returned error result")
	}
	if answerer.searchQuery != "set pressure" {
		t.Errorf("query = %q, want %q", answerer.searchQuery, "set pressure")
	}
	if answerer.searchTopK != 5 {
		t.Errorf("topK = %d, want 5", answerer.searchTopK)
	}

	textContent, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(search) content[0] type = %T, want *mcp.TextContent", result.Content[0])
	}

	var matches []SearchMatch
	if err := json.Unmarshal([]byte(textContent.Text), &matches); err != nil {
		t.Fatalf("CallTool(search) parsing JSON: %v\ntext: %s", err, textContent.Text)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	if matches[0].ID != "prv.md#chunk-0" {
		t.Errorf("match id = %q, want %q", matches[0].ID, "prv.md#chunk-0")
	}
	if matches[0].Metadata["source"] != "prv.md" {
		t.Errorf("match metadata = %v, want source prv.md", matches[0].Metadata)
	}
}

func TestCallToolUnknown(t *testing.T) {
	session := connectServer(t, &fakeAnswerer{})

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "nonexistent_tool",
	})
	if err == nil {
		t.Fatal("CallTool(nonexistent_tool) expected error, got nil")
	}
	if !strings.Contains(err.Error(), "nonexistent_tool") {
		t.Errorf("error = %q, want to contain tool name", err.Error())
	}
}

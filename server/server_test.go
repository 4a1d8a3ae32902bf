package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// echoAgent replies with its session id and the message content.
type echoAgent struct {
	sessionID string
}

func (a *echoAgent) Name() string           { return "echo" }
func (a *echoAgent) Capabilities() []string { return []string{"chat"} }

func (a *echoAgent) Process(ctx context.Context, message *scholarkit.Message) (*scholarkit.Message, error) {
	return scholarkit.NewMessage(scholarkit.RoleAssistant, a.sessionID+": "+message.Content), nil
}

// streamingEchoAgent additionally streams the reply in two chunks.
type streamingEchoAgent struct {
	echoAgent
}

func (a *streamingEchoAgent) Stream(ctx context.Context, message *scholarkit.Message) (<-chan *scholarkit.Message, error) {
	out := make(chan *scholarkit.Message, 2)
	half := len(message.Content) / 2
	out <- scholarkit.NewMessage(scholarkit.RoleAssistant, message.Content[:half])
	out <- scholarkit.NewMessage(scholarkit.RoleAssistant, message.Content[half:])
	close(out)
	return out, nil
}

func newTestServer(streaming bool) *Server {
	return New(func(sessionID string) scholarkit.Agent {
		if streaming {
			return &streamingEchoAgent{echoAgent{sessionID: sessionID}}
		}
		return &echoAgent{sessionID: sessionID}
	})
}

func postChat(t *testing.T, ts *httptest.Server, req ChatRequest) (ChatResponse, int) {
	t.Helper()

	body, _ := json.Marshal(req)
	resp, err := http.Post(ts.URL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat error = %v", err)
	}
	defer resp.Body.Close()

	var chatResp ChatResponse
	_ = json.NewDecoder(resp.Body).Decode(&chatResp)
	return chatResp, resp.StatusCode
}

func TestChatEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestServer(false).Handler())
	defer ts.Close()

	resp, status := postChat(t, ts, ChatRequest{Message: "hello"})
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if resp.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if !strings.HasSuffix(resp.Reply, ": hello") {
		t.Errorf("reply = %q", resp.Reply)
	}
}

func TestChatSessionContinuity(t *testing.T) {
	ts := httptest.NewServer(newTestServer(false).Handler())
	defer ts.Close()

	first, _ := postChat(t, ts, ChatRequest{Message: "one"})
	second, _ := postChat(t, ts, ChatRequest{SessionID: first.SessionID, Message: "two"})

	if second.SessionID != first.SessionID {
		t.Errorf("session id changed: %q vs %q", first.SessionID, second.SessionID)
	}
	// The same agent instance serves the session: the reply is prefixed
	// with the original session id.
	if !strings.HasPrefix(second.Reply, first.SessionID) {
		t.Errorf("reply = %q, want prefix %q", second.Reply, first.SessionID)
	}
}

func TestChatValidation(t *testing.T) {
	ts := httptest.NewServer(newTestServer(false).Handler())
	defer ts.Close()

	_, status := postChat(t, ts, ChatRequest{Message: ""})
	if status != http.StatusBadRequest {
		t.Errorf("empty message status = %d, want 400", status)
	}

	resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestServer(false).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	return conn
}

func TestWebSocketStreaming(t *testing.T) {
	ts := httptest.NewServer(newTestServer(true).Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()

	var session wsFrame
	if err := conn.ReadJSON(&session); err != nil {
		t.Fatalf("read session frame: %v", err)
	}
	if session.Type != "session" || session.SessionID == "" {
		t.Fatalf("session frame = %+v", session)
	}

	if err := conn.WriteJSON(wsFrame{Type: "message", Content: "stream this"}); err != nil {
		t.Fatal(err)
	}

	var full string
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if frame.Type == "done" {
			break
		}
		if frame.Type != "chunk" {
			t.Fatalf("unexpected frame: %+v", frame)
		}
		full += frame.Content
	}

	if full != "stream this" {
		t.Errorf("assembled content = %q", full)
	}
}

func TestWebSocketNonStreamingAgent(t *testing.T) {
	ts := httptest.NewServer(newTestServer(false).Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()

	var session wsFrame
	if err := conn.ReadJSON(&session); err != nil {
		t.Fatal(err)
	}

	if err := conn.WriteJSON(wsFrame{Type: "message", Content: "ping"}); err != nil {
		t.Fatal(err)
	}

	var chunk wsFrame
	if err := conn.ReadJSON(&chunk); err != nil {
		t.Fatal(err)
	}
	if chunk.Type != "chunk" || !strings.HasSuffix(chunk.Content, ": ping") {
		t.Errorf("chunk = %+v", chunk)
	}

	var done wsFrame
	if err := conn.ReadJSON(&done); err != nil {
		t.Fatal(err)
	}
	if done.Type != "done" {
		t.Errorf("final frame = %+v", done)
	}
}

func TestWebSocketRejectsBadFrame(t *testing.T) {
	ts := httptest.NewServer(newTestServer(false).Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()

	var session wsFrame
	if err := conn.ReadJSON(&session); err != nil {
		t.Fatal(err)
	}

	if err := conn.WriteJSON(wsFrame{Type: "message"}); err != nil {
		t.Fatal(err)
	}

	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "error" {
		t.Errorf("frame = %+v, want error", frame)
	}
}

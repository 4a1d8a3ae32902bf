package agents

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/scholarkit/scholarkit-go/adapter/llm"
	"github.com/scholarkit/scholarkit-go/memory"
	"github.com/scholarkit/scholarkit-go/scholarkit"
	"github.com/scholarkit/scholarkit-go/tools"
)

// scriptedLLM replays a fixed sequence of responses and records the
// conversations it was called with.
type scriptedLLM struct {
	responses []*scholarkit.Message
	calls     [][]*scholarkit.Message
	lastOpts  *llm.CallOptions
}

func (s *scriptedLLM) Complete(ctx context.Context, messages []*scholarkit.Message, opts ...llm.CallOption) (*scholarkit.Message, error) {
	s.calls = append(s.calls, messages)
	s.lastOpts = llm.BuildCallOptions(opts...)
	if len(s.responses) == 0 {
		return nil, errors.New("scripted llm exhausted")
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func (s *scriptedLLM) Stream(ctx context.Context, messages []*scholarkit.Message, opts ...llm.CallOption) (<-chan *scholarkit.Message, error) {
	resp, err := s.Complete(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	out := make(chan *scholarkit.Message, 1)
	out <- resp
	close(out)
	return out, nil
}

func (s *scriptedLLM) Model() string       { return "scripted" }
func (s *scriptedLLM) Unwrap() interface{} { return nil }

func toolCallResponse(calls ...scholarkit.ToolCall) *scholarkit.Message {
	msg := scholarkit.NewMessage(scholarkit.RoleAssistant, "")
	msg.ToolCalls = calls
	return msg
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewMultiplyTool()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return registry
}

func TestToolCallingAgentRunsToolLoop(t *testing.T) {
	model := &scriptedLLM{
		responses: []*scholarkit.Message{
			toolCallResponse(scholarkit.ToolCall{
				ID:        "call-1",
				Name:      "multiply",
				Arguments: map[string]interface{}{"a": 6.0, "b": 7.0},
			}),
			scholarkit.NewMessage(scholarkit.RoleAssistant, "6 times 7 is 42."),
		},
	}

	agent := NewToolCallingAgent("calculator", model, newTestRegistry(t))

	response, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "What is 6*7?"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if response.Content != "6 times 7 is 42." {
		t.Errorf("response = %q", response.Content)
	}
	if len(model.calls) != 2 {
		t.Fatalf("model called %d times, want 2", len(model.calls))
	}

	// Second call must carry the assistant tool call and the tool result.
	second := model.calls[1]
	last := second[len(second)-1]
	if last.Role != scholarkit.RoleTool || last.ToolCallID != "call-1" {
		t.Errorf("last message = %+v, want tool result for call-1", last)
	}
	if !strings.Contains(last.Content, "42") {
		t.Errorf("tool result content = %q", last.Content)
	}
	if len(model.lastOpts.Tools) != 1 || model.lastOpts.Tools[0].Name != "multiply" {
		t.Errorf("tools not declared on call: %+v", model.lastOpts.Tools)
	}
}

func TestToolCallingAgentRecoversFromUnknownTool(t *testing.T) {
	model := &scriptedLLM{
		responses: []*scholarkit.Message{
			toolCallResponse(scholarkit.ToolCall{ID: "call-1", Name: "divide", Arguments: map[string]interface{}{}}),
			scholarkit.NewMessage(scholarkit.RoleAssistant, "I can only multiply."),
		},
	}

	agent := NewToolCallingAgent("calculator", model, newTestRegistry(t))

	response, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "divide 10 by 2"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if response.Content != "I can only multiply." {
		t.Errorf("response = %q", response.Content)
	}

	// The unknown-tool failure goes back to the model as a tool result.
	second := model.calls[1]
	last := second[len(second)-1]
	if last.Role != scholarkit.RoleTool {
		t.Fatalf("last message role = %s, want tool", last.Role)
	}
	if !strings.Contains(last.Content, "error") || !strings.Contains(last.Content, "divide") {
		t.Errorf("tool result = %q, want an error naming the tool", last.Content)
	}
}

func TestToolCallingAgentRoundLimit(t *testing.T) {
	// The model never stops asking for the tool.
	endless := make([]*scholarkit.Message, 10)
	for i := range endless {
		endless[i] = toolCallResponse(scholarkit.ToolCall{
			ID:        "call-x",
			Name:      "multiply",
			Arguments: map[string]interface{}{"a": 1.0, "b": 1.0},
		})
	}

	model := &scriptedLLM{responses: endless}
	agent := NewToolCallingAgent("calculator", model, newTestRegistry(t), WithMaxToolRounds(3))

	_, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "loop forever"))
	if err == nil {
		t.Fatal("expected round limit error")
	}
	if !strings.Contains(err.Error(), "3 tool rounds") {
		t.Errorf("error = %v", err)
	}
	if len(model.calls) != 3 {
		t.Errorf("model called %d times, want 3", len(model.calls))
	}
}

func TestToolCallingAgentSystemPromptAndMemory(t *testing.T) {
	mem := memory.NewInMemoryMemory(0)
	model := &scriptedLLM{
		responses: []*scholarkit.Message{
			scholarkit.NewMessage(scholarkit.RoleAssistant, "Hello!"),
			scholarkit.NewMessage(scholarkit.RoleAssistant, "You said hi."),
		},
	}

	agent := NewToolCallingAgent("helper", model, tools.NewRegistry(),
		WithSystemPrompt("You are terse."),
		WithMemory(mem, "s1"),
	)

	if _, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hi")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "what did I say?")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// Second call sees: system, stored user+assistant turn, new user message.
	second := model.calls[1]
	if len(second) != 4 {
		t.Fatalf("second call carried %d messages, want 4", len(second))
	}
	if second[0].Role != scholarkit.RoleSystem || second[0].Content != "You are terse." {
		t.Errorf("system prompt missing: %+v", second[0])
	}
	if second[1].Content != "hi" || second[2].Content != "Hello!" {
		t.Errorf("history not replayed: %q, %q", second[1].Content, second[2].Content)
	}
}

func TestToolCallingAgentCapabilities(t *testing.T) {
	agent := NewToolCallingAgent("calculator", &scriptedLLM{}, newTestRegistry(t))

	caps := agent.Capabilities()
	found := false
	for _, c := range caps {
		if c == "multiply" {
			found = true
		}
	}
	if !found {
		t.Errorf("capabilities should list registered tools: %v", caps)
	}
}

func TestConversationalAgentMultiTurn(t *testing.T) {
	mem := memory.NewInMemoryMemory(0)
	model := &scriptedLLM{
		responses: []*scholarkit.Message{
			scholarkit.NewMessage(scholarkit.RoleAssistant, "Nice to meet you, Ada."),
			scholarkit.NewMessage(scholarkit.RoleAssistant, "Your name is Ada."),
		},
	}

	agent := NewConversationalAgent("chat", model, mem, "s1")

	if _, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "My name is Ada.")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	resp, err := agent.Process(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "What is my name?"))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if resp.Content != "Your name is Ada." {
		t.Errorf("response = %q", resp.Content)
	}

	second := model.calls[1]
	if len(second) != 3 {
		t.Fatalf("second call carried %d messages, want 3", len(second))
	}
	if second[0].Content != "My name is Ada." {
		t.Errorf("history not replayed: %q", second[0].Content)
	}
}

func TestConversationalAgentStream(t *testing.T) {
	mem := memory.NewInMemoryMemory(0)
	model := &scriptedLLM{
		responses: []*scholarkit.Message{
			scholarkit.NewMessage(scholarkit.RoleAssistant, "streamed answer"),
		},
	}

	agent := NewConversationalAgent("chat", model, mem, "s1")

	chunks, err := agent.Stream(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hello"))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var full string
	for chunk := range chunks {
		full += chunk.Content
	}
	if full != "streamed answer" {
		t.Errorf("streamed content = %q", full)
	}

	history, _ := mem.Retrieve(context.Background(), "s1", 0)
	if len(history) != 2 {
		t.Fatalf("stored %d messages, want 2", len(history))
	}
	if history[1].Content != "streamed answer" {
		t.Errorf("final answer not stored: %q", history[1].Content)
	}
}

// brokenMemory fails every write.
type brokenMemory struct {
	memory.Memory
}

func (brokenMemory) Store(ctx context.Context, sessionID string, message *scholarkit.Message) error {
	return errors.New("storage offline")
}

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) errorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == slog.LevelError {
			n++
		}
	}
	return n
}

func TestConversationalAgentStreamLogsStoreFailure(t *testing.T) {
	handler := &recordingHandler{}
	model := &scriptedLLM{
		responses: []*scholarkit.Message{
			scholarkit.NewMessage(scholarkit.RoleAssistant, "answer"),
		},
	}

	mem := brokenMemory{Memory: memory.NewInMemoryMemory(0)}
	agent := NewConversationalAgent("chat", model, mem, "s1",
		WithConversationalLogger(slog.New(handler)),
	)

	chunks, err := agent.Stream(context.Background(), scholarkit.NewMessage(scholarkit.RoleUser, "hello"))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var full string
	for chunk := range chunks {
		full += chunk.Content
	}
	if full != "answer" {
		t.Errorf("streamed content = %q", full)
	}

	// The failed store must be logged, not silently dropped.
	if handler.errorCount() == 0 {
		t.Error("expected an error log for the failed store")
	}
}

func TestAgentsRejectInvalidMessage(t *testing.T) {
	agent := NewToolCallingAgent("calculator", &scriptedLLM{}, newTestRegistry(t))
	if _, err := agent.Process(context.Background(), scholarkit.NewMessage("moderator", "hi")); err == nil {
		t.Error("expected validation error")
	}

	conv := NewConversationalAgent("chat", &scriptedLLM{}, memory.NewInMemoryMemory(0), "s1")
	if _, err := conv.Process(context.Background(), scholarkit.NewMessage("", "hi")); err == nil {
		t.Error("expected validation error")
	}
}

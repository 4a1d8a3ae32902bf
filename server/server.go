// Package server exposes a scholarkit agent over HTTP: a JSON chat
// endpoint, a health check, and a WebSocket endpoint for streaming
// replies.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/scholarkit/scholarkit-go/scholarkit"
)

// AgentFactory builds the agent serving a session. Called once per new
// session id; the server caches the result.
type AgentFactory func(sessionID string) scholarkit.Agent

// Server routes chat traffic to per-session agents.
type Server struct {
	factory  AgentFactory
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	agents map[string]scholarkit.Agent
}

// Option configures a Server.
type Option func(*Server)

// WithServerLogger sets the structured logger.
func WithServerLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a chat server backed by the given factory.
func New(factory AgentFactory, opts ...Option) *Server {
	s := &Server{
		factory: factory,
		logger:  slog.Default(),
		agents:  make(map[string]scholarkit.Agent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// ListenAndServe runs the server on addr until it fails.
func (s *Server) ListenAndServe(addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("chat server listening", "addr", addr)
	return httpServer.ListenAndServe()
}

// agentFor returns the session's agent, creating session and agent as
// needed. An empty id gets a fresh session.
func (s *Server) agentFor(sessionID string) (string, scholarkit.Agent) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[sessionID]
	if !ok {
		agent = s.factory(sessionID)
		s.agents[sessionID] = agent
	}
	return sessionID, agent
}

// ChatRequest is the POST /chat payload.
type ChatRequest struct {
	// SessionID continues an existing conversation; empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID, agent := s.agentFor(req.SessionID)

	response, err := agent.Process(r.Context(), scholarkit.NewMessage(scholarkit.RoleUser, req.Message))
	if err != nil {
		s.logger.Error("chat request failed", "session_id", sessionID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "agent error: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: sessionID,
		Reply:     response.Content,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// wsFrame is one message in either direction on the WebSocket.
type wsFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket speaks a frame protocol: the client sends
// {"type":"message","content":...}; the server replies with zero or more
// {"type":"chunk"} frames followed by {"type":"done"}. Agents that
// implement StreamingAgent stream; others reply with a single chunk.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID, agent := s.agentFor(r.URL.Query().Get("session_id"))

	if err := conn.WriteJSON(wsFrame{Type: "session", SessionID: sessionID}); err != nil {
		return
	}

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "session_id", sessionID, "error", err)
			}
			return
		}
		if frame.Type != "message" || frame.Content == "" {
			if err := conn.WriteJSON(wsFrame{Type: "error", Error: "expected a message frame with content"}); err != nil {
				return
			}
			continue
		}

		if err := s.respondOnSocket(r, conn, agent, frame.Content); err != nil {
			return
		}
	}
}

func (s *Server) respondOnSocket(r *http.Request, conn *websocket.Conn, agent scholarkit.Agent, content string) error {
	message := scholarkit.NewMessage(scholarkit.RoleUser, content)

	if streamer, ok := agent.(scholarkit.StreamingAgent); ok {
		chunks, err := streamer.Stream(r.Context(), message)
		if err != nil {
			return conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
		}
		for chunk := range chunks {
			if errMsg, ok := chunk.Metadata["error"].(string); ok {
				return conn.WriteJSON(wsFrame{Type: "error", Error: errMsg})
			}
			if err := conn.WriteJSON(wsFrame{Type: "chunk", Content: chunk.Content}); err != nil {
				return err
			}
		}
		return conn.WriteJSON(wsFrame{Type: "done"})
	}

	response, err := agent.Process(r.Context(), message)
	if err != nil {
		return conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()})
	}
	if err := conn.WriteJSON(wsFrame{Type: "chunk", Content: response.Content}); err != nil {
		return err
	}
	return conn.WriteJSON(wsFrame{Type: "done"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

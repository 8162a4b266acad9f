// ABOUTME: Fake agent HTTP server for local development and E2E testing.
// ABOUTME: Implements the /v1 agent API with SSE streaming echo responses.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "HTTP listen address")
	delay := flag.Duration("delay", 50*time.Millisecond, "Delay between streamed deltas")
	flag.Parse()

	srv := newServer(*delay)
	log.Printf("fake-agent listening on %s", *addr)
	if err := http.ListenAndServe(*addr, srv.routes()); err != nil {
		log.Fatal(err)
	}
}

type agentRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type server struct {
	delay time.Duration

	mu     sync.Mutex
	agents map[string]agentRecord
}

func newServer(delay time.Duration) *server {
	return &server{
		delay: delay,
		agents: map[string]agentRecord{
			"echo-agent": {ID: "echo-agent", Name: "Echo Agent"},
		},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/agents", s.handleListAgents)
	mux.HandleFunc("POST /v1/agents", s.handleCreateAgent)
	mux.HandleFunc("GET /v1/agents/{id}", s.handleGetAgent)
	mux.HandleFunc("POST /v1/agents/{id}/messages", s.handleSendMessage)
	mux.HandleFunc("POST /v1/agents/{id}/messages/stream", s.handleStreamMessage)
	return mux
}

func (s *server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, ids)
}

func (s *server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		AgentType string `json:"agentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec := agentRecord{ID: "agent-" + uuid.NewString()[:8], Name: req.Name}
	s.mu.Lock()
	s.agents[rec.ID] = rec
	s.mu.Unlock()

	log.Printf("created agent %s (%s)", rec.ID, rec.Name)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.agents[r.PathValue("id")]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type messageRequest struct {
	Text           string `json:"text"`
	ThreadID       string `json:"threadId"`
	FileBase64Data string `json:"fileBase64Data"`
}

func (s *server) lookupAndParse(w http.ResponseWriter, r *http.Request) (agentRecord, *messageRequest, bool) {
	s.mu.Lock()
	rec, ok := s.agents[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return agentRecord{}, nil, false
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return agentRecord{}, nil, false
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return agentRecord{}, nil, false
	}
	return rec, &req, true
}

func (s *server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	rec, req, ok := s.lookupAndParse(w, r)
	if !ok {
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = "thread-" + uuid.NewString()[:8]
	}

	log.Printf("message for %s [thread %s]: %s", rec.ID, threadID, req.Text)
	writeJSON(w, http.StatusOK, map[string]string{
		"agentId":  rec.ID,
		"threadId": threadID,
		"text":     echoReply(req.Text, req.FileBase64Data != ""),
	})
}

func (s *server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	rec, req, ok := s.lookupAndParse(w, r)
	if !ok {
		return
	}

	flusher, fok := w.(http.Flusher)
	if !fok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = "thread-" + uuid.NewString()[:8]
	}
	responseID := "resp-" + uuid.NewString()[:8]

	log.Printf("streaming message for %s [thread %s]: %s", rec.ID, threadID, req.Text)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeSSEEvent(w, "connected", map[string]string{})
	flusher.Flush()

	writeSSEEvent(w, "created", map[string]string{"responseId": responseID})
	flusher.Flush()

	// Stream the reply word by word, then close the exchange.
	reply := echoReply(req.Text, req.FileBase64Data != "")
	for _, word := range strings.SplitAfter(reply, " ") {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.delay):
		}
		writeSSEEvent(w, "delta", map[string]string{"text": word})
		flusher.Flush()
	}

	writeSSEEvent(w, "complete", map[string]string{"threadId": threadID})
	flusher.Flush()
}

func echoReply(input string, hasFile bool) string {
	if hasFile {
		return fmt.Sprintf("Echo: **%s**\n\nI received your message along with a file attachment.", input)
	}
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}

func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal SSE data: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

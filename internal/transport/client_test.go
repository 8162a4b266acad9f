// ABOUTME: Tests for the agent API HTTP client
// ABOUTME: Verifies request shapes, auth headers, and error mapping

package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_ListAgents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/agents", r.URL.Path)
		json.NewEncoder(w).Encode([]string{"a1", "a2"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	ids, err := c.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestClient_GetAgent_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Agent{ID: "a1", Name: "Assistant"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", testLogger())
	agent, err := c.GetAgent(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Assistant", agent.Name)
}

func TestClient_CreateAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/agents", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Helper", body["name"])
		assert.Equal(t, "Default", body["agentType"])

		json.NewEncoder(w).Encode(Agent{ID: "new-1", Name: "Helper"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	agent, err := c.CreateAgent(context.Background(), "Helper", "Default")
	require.NoError(t, err)
	assert.Equal(t, "new-1", agent.ID)
}

func TestClient_SendMessage_RequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/agents/a1/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["text"])
		assert.Equal(t, "t1", body["threadId"])
		assert.Equal(t, "data:text/plain;base64,aGk=", body["fileBase64Data"])

		json.NewEncoder(w).Encode(MessageResponse{AgentID: "a1", ThreadID: "t2", Text: "hi"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	resp, err := c.SendMessage(context.Background(), &MessageRequest{
		AgentID:  "a1",
		Text:     "hello",
		ThreadID: "t1",
		FileData: "data:text/plain;base64,aGk=",
	})
	require.NoError(t, err)
	assert.Equal(t, "t2", resp.ThreadID)
	assert.Equal(t, "hi", resp.Text)
}

func TestClient_SendMessage_OmitsEmptyOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasThread := body["threadId"]
		_, hasFile := body["fileBase64Data"]
		assert.False(t, hasThread)
		assert.False(t, hasFile)

		json.NewEncoder(w).Encode(MessageResponse{AgentID: "a1", Text: "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, err := c.SendMessage(context.Background(), &MessageRequest{AgentID: "a1", Text: "hello"})
	require.NoError(t, err)
}

func TestClient_SendMessage_RequiresAgentID(t *testing.T) {
	c := NewClient("http://unused", "", testLogger())
	_, err := c.SendMessage(context.Background(), &MessageRequest{Text: "hello"})
	assert.Error(t, err)
}

func TestClient_ErrorBodyPreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, err := c.SendMessage(context.Background(), &MessageRequest{AgentID: "a1", Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClient_ErrorStatusWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, err := c.ListAgents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// ABOUTME: HTTP client for the remote agent API
// ABOUTME: Agent listing/creation and single-shot message exchange

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Agent describes a remote agent endpoint.
type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MessageRequest is one outgoing exchange. FileData, when set, is the
// opaque data-URI payload produced by the attachment encoder; the client
// forwards it unmodified.
type MessageRequest struct {
	AgentID  string
	Text     string
	ThreadID string
	FileData string
}

// MessageResponse is the result of a single-shot exchange.
type MessageResponse struct {
	AgentID  string `json:"agentId"`
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

// Client talks to the agent API over HTTP. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given base URL. The token, when
// non-empty, is sent as a Bearer credential on every request.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// No overall timeout: streaming responses stay open for the
		// lifetime of an exchange. Exchanges are bounded by their context.
		httpClient: &http.Client{},
		logger:     logger.With("component", "transport"),
	}
}

// ListAgents returns the IDs of all agents known to the endpoint.
func (c *Client) ListAgents(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, "/v1/agents", &ids); err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return ids, nil
}

// GetAgent returns details for one agent.
func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var agent Agent
	if err := c.getJSON(ctx, "/v1/agents/"+id, &agent); err != nil {
		return nil, fmt.Errorf("fetching agent %s: %w", id, err)
	}
	return &agent, nil
}

// CreateAgent registers a new agent with the endpoint.
func (c *Client) CreateAgent(ctx context.Context, name, agentType string) (*Agent, error) {
	body := map[string]string{"name": name, "agentType": agentType}
	var agent Agent
	if err := c.postJSON(ctx, "/v1/agents", body, &agent); err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	return &agent, nil
}

// SendMessage performs a single-shot exchange: the full response text
// arrives as one unit.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("agent_id is required")
	}

	body := map[string]string{"text": req.Text}
	if req.ThreadID != "" {
		body["threadId"] = req.ThreadID
	}
	if req.FileData != "" {
		body["fileBase64Data"] = req.FileData
	}

	var resp MessageResponse
	path := "/v1/agents/" + req.AgentID + "/messages"
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	c.logger.Debug("message sent",
		"agent_id", req.AgentID,
		"thread_id", resp.ThreadID,
		"response_chars", len(resp.Text))
	return &resp, nil
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.doJSON(req, out)
}

// postJSON performs a POST with a JSON body and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

// doJSON executes the request and decodes a JSON response body.
func (c *Client) doJSON(req *http.Request, out any) error {
	c.authorize(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request complete",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// authorize attaches the Bearer token if one is configured.
func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// errorFromResponse builds an error from a non-2xx response, preferring
// the server's {"error": ...} body when present.
func (c *Client) errorFromResponse(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]string
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok && msg != "" {
				return fmt.Errorf("server error (%d): %s", resp.StatusCode, msg)
			}
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

// ABOUTME: SSE streaming exchange for the agent API
// ABOUTME: Parses event:/data: frames into StreamEvents on a channel

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// streamBuffer is the event channel depth. Deltas are small and the
// consumer applies them quickly, so a modest buffer absorbs bursts.
const streamBuffer = 16

// StreamMessage starts a streaming exchange and returns a channel of
// StreamEvents. A reader goroutine parses the SSE response and closes the
// channel when the stream ends, errors, or the context is cancelled.
// Events are delivered in wire order.
func (c *Client) StreamMessage(ctx context.Context, req *MessageRequest) (<-chan StreamEvent, error) {
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
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.baseURL + "/v1/agents/" + req.AgentID + "/messages/stream"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}

	events := make(chan StreamEvent, streamBuffer)
	go c.readStream(ctx, resp, events)
	return events, nil
}

// readStream pumps SSE frames from the response body into the event
// channel. Runs on its own goroutine; the aggregator is the sole consumer.
func (c *Client) readStream(ctx context.Context, resp *http.Response, events chan<- StreamEvent) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line signals end of one SSE frame
		if line == "" {
			if eventType != "" {
				event := parseStreamEvent(eventType, strings.Join(dataLines, "\n"))
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			continue
		}
		// Comment or unknown field, ignore
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("stream read failed", "error", err)
		select {
		case events <- StreamEvent{Kind: EventError, Message: err.Error()}:
		case <-ctx.Done():
		}
	}
}

// ssePayload covers every data shape the agent API emits.
type ssePayload struct {
	Text       string `json:"text"`
	ResponseID string `json:"responseId"`
	ThreadID   string `json:"threadId"`
	Error      string `json:"error"`
}

// parseStreamEvent maps one SSE frame onto a StreamEvent. Unknown event
// names are preserved as EventOther so the consumer can log them.
func parseStreamEvent(eventType, data string) StreamEvent {
	var payload ssePayload
	// Some events carry no data or non-JSON data; treat that as empty.
	_ = json.Unmarshal([]byte(data), &payload)

	switch eventType {
	case "connected":
		return StreamEvent{Kind: EventConnected}
	case "created":
		return StreamEvent{Kind: EventCreated, ResponseID: payload.ResponseID}
	case "delta":
		text := payload.Text
		if text == "" && data != "" && !strings.HasPrefix(data, "{") {
			// Plain-text delta frames
			text = data
		}
		return StreamEvent{Kind: EventDelta, Text: text}
	case "reasoning":
		return StreamEvent{Kind: EventReasoning}
	case "complete":
		return StreamEvent{Kind: EventComplete, ThreadID: payload.ThreadID}
	case "error", "stream_error":
		msg := payload.Error
		if msg == "" {
			msg = data
		}
		return StreamEvent{Kind: EventError, Message: msg}
	default:
		return StreamEvent{Kind: EventOther, Name: eventType}
	}
}

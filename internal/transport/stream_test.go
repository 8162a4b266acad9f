// ABOUTME: Tests for SSE stream parsing
// ABOUTME: Verifies frame-to-event mapping, ordering, and cancellation

package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer returns a test server that writes the given raw SSE body for
// any stream request.
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestStreamMessage_FullExchange(t *testing.T) {
	srv := sseServer(t, ""+
		"event: connected\ndata: {}\n\n"+
		"event: created\ndata: {\"responseId\":\"r1\"}\n\n"+
		"event: delta\ndata: {\"text\":\"Hi\"}\n\n"+
		"event: delta\ndata: {\"text\":\" there\"}\n\n"+
		"event: complete\ndata: {\"threadId\":\"t1\"}\n\n")

	c := NewClient(srv.URL, "", testLogger())
	events, err := c.StreamMessage(context.Background(), &MessageRequest{AgentID: "a1", Text: "Hello"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 5)
	assert.Equal(t, EventConnected, got[0].Kind)
	assert.Equal(t, EventCreated, got[1].Kind)
	assert.Equal(t, "r1", got[1].ResponseID)
	assert.Equal(t, EventDelta, got[2].Kind)
	assert.Equal(t, "Hi", got[2].Text)
	assert.Equal(t, " there", got[3].Text)
	assert.Equal(t, EventComplete, got[4].Kind)
	assert.Equal(t, "t1", got[4].ThreadID)
}

func TestStreamMessage_ErrorFrame(t *testing.T) {
	srv := sseServer(t, ""+
		"event: delta\ndata: {\"text\":\"Par\"}\n\n"+
		"event: stream_error\ndata: {\"error\":\"rate limited\"}\n\n")

	c := NewClient(srv.URL, "", testLogger())
	events, err := c.StreamMessage(context.Background(), &MessageRequest{AgentID: "a1", Text: "Hello"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventError, got[1].Kind)
	assert.Equal(t, "rate limited", got[1].Message)
}

func TestStreamMessage_UnknownEventPreserved(t *testing.T) {
	srv := sseServer(t, "event: heartbeat\ndata: {}\n\n")

	c := NewClient(srv.URL, "", testLogger())
	events, err := c.StreamMessage(context.Background(), &MessageRequest{AgentID: "a1", Text: "Hello"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, EventOther, got[0].Kind)
	assert.Equal(t, "heartbeat", got[0].Name)
}

func TestStreamMessage_MultiLineData(t *testing.T) {
	srv := sseServer(t, "event: delta\ndata: {\"text\":\"line one\\nline two\"}\n\n")

	c := NewClient(srv.URL, "", testLogger())
	events, err := c.StreamMessage(context.Background(), &MessageRequest{AgentID: "a1", Text: "Hello"})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, "line one\nline two", got[0].Text)
}

func TestStreamMessage_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"agent not found"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, err := c.StreamMessage(context.Background(), &MessageRequest{AgentID: "missing", Text: "Hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent not found")
}

func TestStreamMessage_CancelClosesChannel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, "", testLogger())
	events, err := c.StreamMessage(ctx, &MessageRequest{AgentID: "a1", Text: "Hello"})
	require.NoError(t, err)

	// Drain the first event, then cancel mid-stream
	<-events
	cancel()

	select {
	case _, ok := <-events:
		// Either a trailing event or a closed channel is fine; the
		// channel must close shortly after cancellation.
		if ok {
			_, ok = <-events
			assert.False(t, ok)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancellation")
	}
}

func TestParseStreamEvent_PlainTextDelta(t *testing.T) {
	ev := parseStreamEvent("delta", "raw text chunk")
	assert.Equal(t, EventDelta, ev.Kind)
	assert.Equal(t, "raw text chunk", ev.Text)
}

func TestParseStreamEvent_ErrorWithoutJSON(t *testing.T) {
	ev := parseStreamEvent("error", "upstream unavailable")
	assert.Equal(t, EventError, ev.Kind)
	assert.Equal(t, "upstream unavailable", ev.Message)
}

// ABOUTME: StreamEvent model for incremental agent responses
// ABOUTME: Tagged variant over the SSE event types the agent API emits

package transport

// EventKind indicates the type of stream event.
type EventKind int

const (
	// EventConnected signals the streaming endpoint accepted the exchange.
	EventConnected EventKind = iota
	// EventCreated carries the response ID minted for this exchange.
	EventCreated
	// EventDelta carries an incremental fragment of response text.
	EventDelta
	// EventReasoning signals a reasoning step; no text payload.
	EventReasoning
	// EventComplete carries the thread ID and ends the exchange normally.
	EventComplete
	// EventError carries a terminal error message.
	EventError
	// EventOther is any event kind this client doesn't recognize.
	EventOther
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventCreated:
		return "created"
	case EventDelta:
		return "delta"
	case EventReasoning:
		return "reasoning"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "other"
	}
}

// StreamEvent is one event from a streaming exchange. Exactly one payload
// field is meaningful per kind: Text for deltas, ResponseID for created,
// ThreadID for complete, Message for errors, Name for unrecognized events.
type StreamEvent struct {
	Kind       EventKind
	Text       string
	ResponseID string
	ThreadID   string
	Message    string
	Name       string
}

// Package transport implements the HTTP client for the remote agent API.
//
// # Surface
//
//   - ListAgents / GetAgent / CreateAgent: agent directory operations
//   - SendMessage: single-shot exchange, full response in one unit
//   - StreamMessage: streaming exchange over Server-Sent Events
//
// # Streaming
//
// StreamMessage returns a channel of StreamEvents. A reader goroutine owns
// the SSE response body and parses frames in wire order:
//
//	connected               stream accepted
//	created {responseId}    response ID minted
//	delta {text}            incremental response text
//	reasoning               reasoning step marker
//	complete {threadId}     normal termination, thread ID for continuity
//	error / stream_error    terminal failure
//
// The channel closes when the stream ends, fails, or the request context
// is cancelled. The consumer (the stream aggregator) is the single point
// that interprets these events; this package only transports them.
package transport

// ABOUTME: Aggregates incremental StreamEvents into one response message
// ABOUTME: Tracks continuity IDs, the first-delta latch, and terminal state

package stream

import (
	"context"
	"log/slog"
	"strings"

	"github.com/2389/coven-chat/internal/transport"
)

// Observer-visible placeholder texts for the phases before any response
// text has arrived.
const (
	ConnectedText  = "Connected, waiting for response..."
	ProcessingText = "Processing your request..."
)

// errorPrefix marks an exchange failure in the visible message text.
const errorPrefix = "Error: "

// Result is the outcome of one streaming exchange.
type Result struct {
	// Text is the final aggregated message: the concatenated deltas, or
	// the error notice when the exchange failed.
	Text string
	// ThreadID is the continuity ID from the complete event, if any.
	ThreadID string
	// ResponseID is the continuity ID from the created event, if any.
	ResponseID string
	// Failed is true when the stream reported a terminal error.
	Failed bool
	// NoContent is true when the stream ended normally without ever
	// delivering a delta. The caller substitutes a no-response notice
	// rather than persisting an empty turn.
	NoContent bool
}

// Aggregator consumes the event channel for one exchange and merges text
// deltas into a single buffer. The consuming loop is the only writer of
// the buffer, so delta order is preserved exactly and no locking is needed
// even though the transport produces events on its own goroutine.
//
// An Aggregator is single-use: one exchange per instance.
type Aggregator struct {
	observer func(text string)
	logger   *slog.Logger

	buf        strings.Builder
	firstDelta bool
	threadID   string
	responseID string
	errText    string
}

// New creates an Aggregator. The observer, when non-nil, receives a full
// buffer snapshot after every visible change; the last call for an
// exchange always carries the complete final text.
func New(observer func(text string), logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		observer: observer,
		logger:   logger.With("component", "stream"),
	}
}

// Run consumes events until the channel closes or the context is
// cancelled, then returns the aggregated result. Mid-stream errors are
// reported in the result, never as a returned error.
func (a *Aggregator) Run(ctx context.Context, events <-chan transport.StreamEvent) Result {
	for {
		select {
		case <-ctx.Done():
			// Cancellation or timeout: return the best-known state. The
			// transport tears the stream down and closes the channel on
			// its own; the caller decides what to do with partial text.
			return a.result()

		case ev, ok := <-events:
			if !ok {
				return a.result()
			}
			a.apply(ev)
		}
	}
}

// apply folds one event into the aggregation state.
func (a *Aggregator) apply(ev transport.StreamEvent) {
	switch ev.Kind {
	case transport.EventConnected:
		// Lifecycle events may arrive out of order relative to deltas;
		// the latch keeps them from clobbering real content.
		if !a.firstDelta {
			a.emit(ConnectedText)
		}

	case transport.EventCreated:
		if ev.ResponseID != "" {
			a.responseID = ev.ResponseID
			a.logger.Debug("response created", "response_id", ev.ResponseID)
		}
		if !a.firstDelta {
			a.emit(ProcessingText)
		}

	case transport.EventDelta:
		a.firstDelta = true
		a.buf.WriteString(ev.Text)
		a.emit(a.visibleText())

	case transport.EventReasoning:
		a.logger.Debug("reasoning step received")

	case transport.EventComplete:
		if ev.ThreadID != "" {
			a.threadID = ev.ThreadID
		}
		a.logger.Debug("stream complete", "thread_id", ev.ThreadID)

	case transport.EventError:
		a.errText = ev.Message
		a.logger.Warn("stream error", "error", ev.Message)
		a.emit(a.visibleText())

	case transport.EventOther:
		a.logger.Debug("ignoring unknown stream event", "event", ev.Name)
	}
}

// visibleText is the message text as the user should currently see it.
// An error notice supersedes any partial content.
func (a *Aggregator) visibleText() string {
	if a.errText != "" {
		return errorPrefix + a.errText
	}
	return a.buf.String()
}

// emit pushes a snapshot to the observer.
func (a *Aggregator) emit(text string) {
	if a.observer != nil {
		a.observer(text)
	}
}

// result finalizes the aggregation.
func (a *Aggregator) result() Result {
	return Result{
		Text:       a.visibleText(),
		ThreadID:   a.threadID,
		ResponseID: a.responseID,
		Failed:     a.errText != "",
		NoContent:  !a.firstDelta && a.errText == "",
	}
}

// Package stream aggregates incremental agent response events.
//
// The transport delivers StreamEvents on a channel from its reader
// goroutine; the Aggregator's Run loop is the single consumer and the only
// writer of the message buffer. That confinement is what guarantees delta
// order is preserved with no loss or duplication.
//
// A one-way "first delta" latch separates the connecting/processing
// placeholder phase from real content: once any delta has arrived,
// lifecycle events can no longer overwrite the buffer, which guards
// against late-arriving phase events.
//
// A terminal error event replaces the visible text with an error notice;
// the exchange is reported as failed through the Result rather than as a
// Go error, because a failed exchange still produces a turn to display
// and persist.
package stream

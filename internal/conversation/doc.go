// Package conversation orchestrates exchanges with a remote agent.
//
// # Exchange lifecycle
//
// One exchange is one user-message-in, agent-response-out round trip:
//
//  1. Append the user turn and commit immediately, before any network
//     activity. A user message is never lost to a failed exchange.
//  2. Streaming mode appends a placeholder agent turn and reflects the
//     aggregator's snapshots into it; single-shot mode appends the agent
//     turn only when the full response returns.
//  3. On the terminal state (success, failure, or cancellation) the
//     conversation is committed exactly once more.
//
// Continuity IDs (thread ID, last response ID) are only replaced with
// non-empty values from a finished exchange.
//
// # Supersession
//
// At most one exchange is in flight per agent. Starting a new exchange
// cancels the prior one for that agent and waits for it to quiesce before
// mutating the conversation, so a committed conversation never contains an
// interleaved mix of two exchanges. A cancelled exchange's placeholder
// turn is discarded.
//
// # Failure policy
//
// Exchange-level failures never escape as errors: transport failures,
// timeouts, mid-stream errors, and empty responses all become user-facing
// notices inside the agent turn, and the conversation is still committed.
// The transcript is the system of record, failures included.
package conversation

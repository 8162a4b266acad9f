// ABOUTME: Exchange Coordinator orchestrating one user-turn round trip
// ABOUTME: Appends turns, drives the aggregator, and commits at quiescence

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-chat/internal/store"
	"github.com/2389/coven-chat/internal/stream"
	"github.com/2389/coven-chat/internal/transport"
)

// DefaultExchangeTimeout bounds one exchange. Expiry is treated as a
// failure, not a crash.
const DefaultExchangeTimeout = 5 * time.Minute

// User-facing notice texts.
const (
	// InitializingText is the placeholder turn's text before any stream
	// event has arrived.
	InitializingText = "Initializing..."
	// FailureNotice replaces the agent turn when the transport fails.
	FailureNotice = "Error: failed to get a response. Please try again."
	// NoResponseNotice replaces the agent turn when the exchange
	// succeeded but returned no content.
	NoResponseNotice = "No response received. Please try again."
)

// Transport defines what the coordinator needs from the agent API client.
type Transport interface {
	SendMessage(ctx context.Context, req *transport.MessageRequest) (*transport.MessageResponse, error)
	StreamMessage(ctx context.Context, req *transport.MessageRequest) (<-chan transport.StreamEvent, error)
}

// Committer defines what the coordinator needs from storage.
type Committer interface {
	SaveConversation(ctx context.Context, conv *store.Conversation) error
}

// ExchangeRequest describes one user-turn. The four call shapes
// (streaming/single-shot, with/without attachment) collapse into this one
// descriptor.
type ExchangeRequest struct {
	// Conversation is the active conversation the exchange mutates. The
	// coordinator is its only writer while the exchange runs.
	Conversation *store.Conversation
	// Text is the user's message.
	Text string
	// Files are attachments for this message. Only the first is
	// forwarded; the rest are dropped by documented policy.
	Files []store.FileRef
	// Streaming selects the streaming transport shape.
	Streaming bool
	// OnUpdate, when non-nil, receives snapshots of the in-progress
	// agent turn text. The final call carries the complete final text.
	OnUpdate func(text string)
}

// ExchangeResult is the terminal state of one exchange.
type ExchangeResult struct {
	// Text is the agent turn's final text (response or notice). Empty
	// when the exchange was cancelled and its placeholder discarded.
	Text string
	// Failed is true for transport failures, timeouts, mid-stream
	// errors, and empty responses.
	Failed bool
	// Canceled is true when the exchange was superseded or shut down.
	Canceled bool
}

// Coordinator runs exchanges. At most one exchange is in flight per agent:
// starting a new one cancels and supersedes any prior exchange for the
// same agent, waiting for it to quiesce before touching the conversation.
type Coordinator struct {
	transport Transport
	committer Committer
	timeout   time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[string]*exchange
}

// exchange is the cancellation handle for one in-flight exchange.
type exchange struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates a Coordinator. A zero timeout selects
// DefaultExchangeTimeout.
func NewCoordinator(tp Transport, committer Committer, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	return &Coordinator{
		transport: tp,
		committer: committer,
		timeout:   timeout,
		logger:    logger.With("component", "coordinator"),
		inflight:  make(map[string]*exchange),
	}
}

// Run executes one exchange to its terminal state. Exchange-level failures
// are folded into the result, never returned as errors: a broken turn must
// still be visible and persisted. The returned error covers invalid
// requests only.
func (c *Coordinator) Run(ctx context.Context, req *ExchangeRequest) (*ExchangeResult, error) {
	if req.Conversation == nil {
		return nil, fmt.Errorf("conversation is required")
	}
	if req.Text == "" {
		return nil, fmt.Errorf("text is required")
	}

	conv := req.Conversation
	exchangeID := uuid.New().String()
	logger := c.logger.With("exchange_id", exchangeID, "agent_id", conv.AgentID)

	// Supersede any in-flight exchange for this agent, then claim the
	// slot. The wait guarantees the old exchange has stopped mutating the
	// conversation before we start.
	exctx, release := c.claim(ctx, conv.AgentID)
	defer release()

	// Record the user turn before any network activity so it survives a
	// failed exchange.
	files := req.Files
	if len(files) > 1 {
		logger.Debug("multiple attachments supplied, using first only", "dropped", len(files)-1)
		files = files[:1]
	}
	conv.Turns = append(conv.Turns, store.NewUserTurn(req.Text, files))
	conv.LastActivity = time.Now()
	c.commit(conv, logger)

	mreq := &transport.MessageRequest{
		AgentID:  conv.AgentID,
		Text:     req.Text,
		ThreadID: conv.ThreadID,
	}
	if len(files) > 0 {
		mreq.FileData = files[0].DataURI
	}

	var result *ExchangeResult
	if req.Streaming {
		result = c.runStreaming(exctx, conv, mreq, req.OnUpdate, logger)
	} else {
		result = c.runSingleShot(exctx, conv, mreq, logger)
	}

	conv.LastActivity = time.Now()
	c.commit(conv, logger)

	logger.Info("exchange finished",
		"failed", result.Failed,
		"canceled", result.Canceled,
		"thread_id", conv.ThreadID)
	return result, nil
}

// runStreaming drives a streaming exchange against a placeholder turn.
func (c *Coordinator) runStreaming(ctx context.Context, conv *store.Conversation, mreq *transport.MessageRequest, onUpdate func(string), logger *slog.Logger) *ExchangeResult {
	// The placeholder is the mutation target for incremental updates.
	conv.Turns = append(conv.Turns, store.NewAgentTurn(InitializingText))
	placeholder := len(conv.Turns) - 1
	notify(onUpdate, InitializingText)

	events, err := c.transport.StreamMessage(ctx, mreq)
	if err != nil {
		logger.Warn("stream start failed", "error", err)
		return c.finishFailed(conv, placeholder, FailureNotice, onUpdate)
	}

	// The aggregator loop runs here, on the exchange's goroutine: it is
	// the single writer of the placeholder turn's text.
	agg := stream.New(func(text string) {
		conv.Turns[placeholder].Text = text
		notify(onUpdate, text)
	}, logger)
	res := agg.Run(ctx, events)

	if errors.Is(ctx.Err(), context.Canceled) {
		// Superseded or shut down: discard the placeholder. The turns
		// committed before it remain intact.
		conv.Turns = conv.Turns[:placeholder]
		logger.Debug("exchange cancelled, placeholder discarded")
		return &ExchangeResult{Canceled: true}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn("exchange timed out")
		return c.finishFailed(conv, placeholder, FailureNotice, onUpdate)
	}
	if res.Failed {
		return c.finishFailed(conv, placeholder, res.Text, onUpdate)
	}
	if res.NoContent {
		logger.Warn("stream ended without content")
		return c.finishFailed(conv, placeholder, NoResponseNotice, onUpdate)
	}

	conv.Turns[placeholder].Text = res.Text
	applyContinuity(conv, res.ThreadID, res.ResponseID)
	notify(onUpdate, res.Text)
	return &ExchangeResult{Text: res.Text}
}

// runSingleShot performs a non-streaming exchange; the agent turn is
// appended only once the full response is in hand.
func (c *Coordinator) runSingleShot(ctx context.Context, conv *store.Conversation, mreq *transport.MessageRequest, logger *slog.Logger) *ExchangeResult {
	resp, err := c.transport.SendMessage(ctx, mreq)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Debug("exchange cancelled before response")
			return &ExchangeResult{Canceled: true}
		}
		logger.Warn("send failed", "error", err)
		conv.Turns = append(conv.Turns, store.NewAgentTurn(FailureNotice))
		return &ExchangeResult{Text: FailureNotice, Failed: true}
	}

	if resp.Text == "" {
		logger.Warn("empty response received")
		conv.Turns = append(conv.Turns, store.NewAgentTurn(NoResponseNotice))
		return &ExchangeResult{Text: NoResponseNotice, Failed: true}
	}

	conv.Turns = append(conv.Turns, store.NewAgentTurn(resp.Text))
	applyContinuity(conv, resp.ThreadID, "")
	return &ExchangeResult{Text: resp.Text}
}

// finishFailed sets the placeholder to a failure notice.
func (c *Coordinator) finishFailed(conv *store.Conversation, placeholder int, notice string, onUpdate func(string)) *ExchangeResult {
	conv.Turns[placeholder].Text = notice
	notify(onUpdate, notice)
	return &ExchangeResult{Text: notice, Failed: true}
}

// applyContinuity replaces continuity IDs, but only with non-empty values:
// an exchange never tears down an ID it didn't refresh.
func applyContinuity(conv *store.Conversation, threadID, responseID string) {
	if threadID != "" {
		conv.ThreadID = threadID
	}
	if responseID != "" {
		conv.LastResponseID = responseID
	}
}

// commit persists the whole conversation. Store failures are logged and
// absorbed: the in-memory conversation stays authoritative and a later
// commit retries the write.
func (c *Coordinator) commit(conv *store.Conversation, logger *slog.Logger) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.committer.SaveConversation(saveCtx, conv); err != nil {
		logger.Error("failed to commit conversation", "error", err)
	}
}

// claim supersedes any in-flight exchange for the agent, waits for it to
// quiesce, and registers this exchange. The returned context carries the
// exchange timeout; release must be called when the exchange finishes.
func (c *Coordinator) claim(ctx context.Context, agentID string) (context.Context, func()) {
	var ex *exchange
	for {
		c.mu.Lock()
		prev := c.inflight[agentID]
		if prev == nil {
			exctx, cancel := context.WithTimeout(ctx, c.timeout)
			ex = &exchange{cancel: cancel, done: make(chan struct{})}
			c.inflight[agentID] = ex
			c.mu.Unlock()

			return exctx, func() {
				cancel()
				c.mu.Lock()
				if c.inflight[agentID] == ex {
					delete(c.inflight, agentID)
				}
				c.mu.Unlock()
				close(ex.done)
			}
		}
		c.mu.Unlock()

		prev.cancel()
		<-prev.done
	}
}

// CancelAll cancels every in-flight exchange. Used at process shutdown.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	handles := make([]*exchange, 0, len(c.inflight))
	for _, ex := range c.inflight {
		handles = append(handles, ex)
	}
	c.mu.Unlock()

	for _, ex := range handles {
		ex.cancel()
		<-ex.done
	}
}

// notify invokes the update callback when one is set.
func notify(onUpdate func(string), text string) {
	if onUpdate != nil {
		onUpdate(text)
	}
}

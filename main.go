// ABOUTME: Entry point for the coven-chat terminal client
// ABOUTME: Readline loop with slash commands, streaming output, and session persistence

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/attachment"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/conversation"
	"github.com/2389/coven-chat/internal/session"
	"github.com/2389/coven-chat/internal/store"
	"github.com/2389/coven-chat/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __         ___| |__   __ _| |_
 / __/ _ \ \ / / _ \ '_ \ _____ / __| '_ \ / _' | __|
| (_| (_) \ V /  __/ | | |_____| (__| | | | (_| | |_
 \___\___/ \_/ \___|_| |_|      \___|_| |_|\__,_|\__|
`

func main() {
	configPath := flag.String("config", "", "Config file path (default: $COVEN_CHAT_CONFIG or ~/.config/coven-chat/config.yaml)")
	agentID := flag.String("agent", "", "Agent to select on startup")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("coven-chat %s\n", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *agentID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath, startAgent string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Server:   %s\n", cfg.Server.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Mode:     %s\n", modeLabel(cfg.Chat.Streaming))
	fmt.Println()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	client := transport.NewClient(cfg.Server.BaseURL, cfg.Server.Token, logger)
	coordinator := conversation.NewCoordinator(client, st, cfg.Chat.ExchangeTimeout, logger)
	manager := session.NewManager(st, coordinator, client, logger)

	app := &chatApp{
		cfg:         cfg,
		client:      client,
		coordinator: coordinator,
		manager:     manager,
		logger:      logger,
		streaming:   cfg.Chat.Streaming,
	}

	app.selectStartupAgent(ctx, startAgent)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	err = app.loop(ctx)

	// On the way out cancel anything in flight and flush what remains.
	coordinator.CancelAll()
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if ferr := manager.FlushOnSuspend(flushCtx); ferr != nil {
		logger.Error("failed to flush conversation on exit", "error", ferr)
	}

	return err
}

func modeLabel(streaming bool) string {
	if streaming {
		return "streaming"
	}
	return "single-shot"
}

// chatApp holds the interactive session state.
type chatApp struct {
	cfg         *config.Config
	client      *transport.Client
	coordinator *conversation.Coordinator
	manager     *session.Manager
	logger      *slog.Logger
	streaming   bool

	// pending attachments for the next message
	pending []store.FileRef
}

// selectStartupAgent picks the initial agent: explicit flag, then the
// configured default, then the last active agent from a previous run.
func (a *chatApp) selectStartupAgent(ctx context.Context, flagAgent string) {
	if flagAgent == "" {
		flagAgent = a.cfg.Chat.DefaultAgent
	}
	if flagAgent != "" {
		if conv, err := a.manager.SelectAgent(ctx, flagAgent); err != nil {
			fmt.Printf("[error] selecting agent %s: %v\n", flagAgent, err)
		} else {
			a.printSelected(conv)
		}
		return
	}

	agents, err := a.client.ListAgents(ctx)
	if err != nil {
		a.logger.Debug("could not list agents for restore", "error", err)
		return
	}
	restored, err := a.manager.RestoreLastActive(ctx, agents)
	if err != nil {
		a.logger.Warn("could not restore last agent", "error", err)
		return
	}
	if restored != "" {
		a.printSelected(a.manager.Active())
	}
}

func (a *chatApp) printSelected(conv *store.Conversation) {
	name := conv.AgentName
	if name == "" {
		name = conv.AgentID
	}
	fmt.Printf("Now chatting with %s", name)
	if n := len(conv.Turns); n > 0 {
		color.New(color.FgHiBlack).Printf(" (%d turns restored)", n)
	}
	fmt.Println()
}

func (a *chatApp) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		a.printPrompt()

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else if err := scanner.Err(); err != nil {
				errCh <- err
			} else {
				errCh <- io.EOF
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := a.handleCommand(ctx, input)
			if err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			if quit {
				return nil
			}
			fmt.Println()
			continue
		}

		a.send(ctx, input)
		fmt.Println()
	}
}

func (a *chatApp) printPrompt() {
	if conv := a.manager.Active(); conv != nil {
		name := conv.AgentName
		if name == "" {
			name = conv.AgentID
		}
		if len(a.pending) > 0 {
			fmt.Printf("[%s +%d file]> ", name, len(a.pending))
		} else {
			fmt.Printf("[%s]> ", name)
		}
	} else {
		fmt.Print("> ")
	}
}

func (a *chatApp) handleCommand(ctx context.Context, input string) (quit bool, err error) {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		printHelp()
	case "/agents":
		err = a.listAgents(ctx)
	case "/create":
		err = a.createAgent(ctx, args)
	case "/use":
		err = a.useAgent(ctx, args)
	case "/attach":
		err = a.attach(args)
	case "/detach":
		a.pending = nil
		fmt.Println("Attachments cleared")
	case "/history":
		err = a.showHistory()
	case "/new":
		if err = a.manager.ClearActive(ctx); err == nil {
			fmt.Println("Started a new conversation")
		}
	case "/delete":
		if err = a.manager.DeleteActive(ctx); err == nil {
			fmt.Println("Conversation deleted")
		}
	case "/stream":
		err = a.setStreaming(args)
	default:
		fmt.Printf("Unknown command %s. /help for commands.\n", cmd)
	}
	return false, err
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /agents            List available agents")
	fmt.Println("  /create <name>     Create a new agent")
	fmt.Println("  /use <id>          Switch to an agent (saves the current conversation)")
	fmt.Println("  /attach <path>     Attach a file to the next message")
	fmt.Println("  /detach            Clear pending attachments")
	fmt.Println("  /history           Show the current conversation")
	fmt.Println("  /new               Clear the conversation, keep the agent")
	fmt.Println("  /delete            Delete the stored conversation entirely")
	fmt.Println("  /stream on|off     Toggle streaming responses")
	fmt.Println("  /help              Show this help")
	fmt.Println("  /quit              Exit")
}

func (a *chatApp) listAgents(ctx context.Context) error {
	ids, err := a.client.ListAgents(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No agents available")
		return nil
	}

	active := ""
	if conv := a.manager.Active(); conv != nil {
		active = conv.AgentID
	}

	fmt.Println("Available agents:")
	for _, id := range ids {
		marker := "  "
		if id == active {
			marker = color.GreenString("* ")
		}
		fmt.Printf("%s%s\n", marker, id)
	}
	return nil
}

func (a *chatApp) createAgent(ctx context.Context, args string) error {
	if args == "" {
		return fmt.Errorf("usage: /create <name> [type]")
	}
	name, agentType, _ := strings.Cut(args, " ")
	agent, err := a.client.CreateAgent(ctx, name, strings.TrimSpace(agentType))
	if err != nil {
		return err
	}
	fmt.Printf("Created agent %s (%s)\n", agent.Name, agent.ID)

	conv, err := a.manager.SelectAgent(ctx, agent.ID)
	if err != nil {
		return err
	}
	a.printSelected(conv)
	return nil
}

func (a *chatApp) useAgent(ctx context.Context, args string) error {
	if args == "" {
		return fmt.Errorf("usage: /use <agent_id>")
	}
	conv, err := a.manager.SelectAgent(ctx, args)
	if err != nil {
		return err
	}
	a.printSelected(conv)
	return nil
}

func (a *chatApp) attach(args string) error {
	if args == "" {
		return fmt.Errorf("usage: /attach <path>")
	}
	ref, err := attachment.FromFile(args)
	if err != nil {
		return err
	}
	// One attachment per message; a second /attach replaces the first.
	a.pending = []store.FileRef{ref}
	fmt.Printf("Attached %s (%s)\n", ref.FileName, ref.MediaType)
	return nil
}

func (a *chatApp) showHistory() error {
	conv := a.manager.Active()
	if conv == nil {
		return session.ErrNoActiveAgent
	}
	if len(conv.Turns) == 0 {
		fmt.Println("No conversation history")
		return nil
	}

	fmt.Println(strings.Repeat("-", 60))
	for _, turn := range conv.Turns {
		if turn.IsUser {
			color.New(color.FgBlue).Print("you> ")
		} else {
			color.New(color.FgGreen).Print("agent> ")
		}
		fmt.Println(turn.Text)
		for _, f := range turn.Files {
			color.New(color.FgHiBlack).Printf("       [file: %s]\n", f.FileName)
		}
	}
	fmt.Println(strings.Repeat("-", 60))
	return nil
}

func (a *chatApp) setStreaming(args string) error {
	switch args {
	case "on":
		a.streaming = true
	case "off":
		a.streaming = false
	case "":
		fmt.Printf("Streaming is %s\n", onOff(a.streaming))
		return nil
	default:
		return fmt.Errorf("usage: /stream on|off")
	}
	fmt.Printf("Streaming %s\n", onOff(a.streaming))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// send runs one exchange, printing streaming updates as they arrive.
func (a *chatApp) send(ctx context.Context, text string) {
	files := a.pending
	a.pending = nil

	printer := newStreamPrinter()
	res, err := a.manager.Send(ctx, text, files, a.streaming, printer.update)
	printer.finish()

	switch {
	case err != nil:
		fmt.Printf("[error] %v\n", err)
	case res.Canceled:
		color.New(color.FgYellow).Println("[cancelled]")
	case !a.streaming:
		// Single-shot responses arrive whole; streaming ones were
		// already printed incrementally.
		if res.Failed {
			color.New(color.FgRed).Println(res.Text)
		} else {
			fmt.Println(res.Text)
		}
	}
}

// streamPrinter renders successive snapshots of the agent turn as
// incremental terminal output. Snapshots that extend the previous one
// print only the new suffix; replacements start a fresh line.
type streamPrinter struct {
	mu      sync.Mutex
	printed string
}

func newStreamPrinter() *streamPrinter {
	return &streamPrinter{}
}

func (p *streamPrinter) update(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if text == p.printed {
		return
	}
	if strings.HasPrefix(text, p.printed) {
		fmt.Print(text[len(p.printed):])
	} else {
		if p.printed != "" {
			fmt.Println()
		}
		fmt.Print(text)
	}
	p.printed = text
}

func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed != "" {
		fmt.Println()
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so they interleave cleanly with chat output.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

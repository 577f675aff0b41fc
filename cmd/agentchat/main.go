package main

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/lumenlabs/agentchat/internal/bus"
	"github.com/lumenlabs/agentchat/internal/services"
	"github.com/lumenlabs/agentchat/internal/session"
	"github.com/lumenlabs/agentchat/internal/stream"
	"github.com/lumenlabs/agentchat/internal/transcript"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.slogLevel(),
	}))

	store, err := services.NewBoltDB(cfg.CachePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	notices := bus.New()
	backend := services.NewBackend(cfg.BackendURL, cfg.tokenProvider(), notices, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	noticeCh, unsubscribe := notices.Subscribe()
	defer unsubscribe()
	go func() {
		for notice := range noticeCh {
			fmt.Fprintf(os.Stderr, "\n! %s\n", notice.Reason)
		}
	}()

	a := &app{
		store:      store,
		backend:    backend,
		controller: session.NewController(logger),
		logger:     logger.With(slog.String("module", "app")),
	}
	a.run(ctx)
}

// app wires the streaming core to a minimal line-oriented shell. It keeps exactly one stream
// in flight: opening a conversation, sending a new message, or /stop cancels the previous one
// before anything else happens.
type app struct {
	store      services.BoltDB
	backend    *services.Backend
	controller *session.Controller
	logger     *slog.Logger

	conversationID string

	streamMu     sync.Mutex
	streamCancel context.CancelFunc
	streamDone   chan struct{}
}

func (a *app) run(ctx context.Context) {
	fmt.Println("agentchat - /conversations, /open <id>, /stop, /quit")

	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			a.stopStream()
			return
		case line, ok := <-lines:
			if !ok {
				a.stopStream()
				return
			}
			if !a.handleLine(ctx, line) {
				return
			}
		}
	}
}

func (a *app) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return true
	case line == "/quit":
		a.stopStream()
		return false
	case line == "/stop":
		a.stopStream()
		return true
	case line == "/conversations":
		a.listConversations(ctx)
		return true
	case strings.HasPrefix(line, "/open "):
		a.openConversation(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
		return true
	default:
		a.send(ctx, line)
		return true
	}
}

func (a *app) listConversations(ctx context.Context) {
	conversations, err := a.backend.Conversations(ctx)
	if err != nil {
		// The cache keeps the client usable while the backend is unreachable.
		a.logger.Warn("Falling back to cached conversations", slog.String("err", err.Error()))
		conversations, err = a.store.Conversations(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
	}

	for _, conversation := range conversations {
		fmt.Printf("%s  %s\n", conversation.ID, conversation.Title)
		_ = a.store.SaveConversation(ctx, conversation)
	}
}

func (a *app) openConversation(ctx context.Context, id string) {
	a.stopStream()
	a.conversationID = id

	history, err := a.backend.History(ctx, id)
	if err != nil {
		a.logger.Warn("Falling back to cached history", slog.String("err", err.Error()))
		history, err = a.store.History(ctx, id)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
	} else if err := a.store.ReplaceHistory(ctx, id, history); err != nil {
		a.logger.Warn("Failed to cache history", slog.String("err", err.Error()))
	}

	a.controller.Replace(transcript.Reconstruct(history))

	for _, interaction := range a.controller.Interactions() {
		fmt.Printf("you: %s\n", interaction.UserMessage)
		for _, call := range interaction.ToolCalls {
			fmt.Printf("  [tool %s: %s]\n", call.Name, call.Status)
		}
		if interaction.AssistantResponse != "" {
			fmt.Printf("assistant: %s\n", interaction.AssistantResponse)
		}
	}
}

func (a *app) send(ctx context.Context, text string) {
	if a.conversationID == "" {
		fmt.Println("open a conversation first: /open <id>")
		return
	}

	a.stopStream()
	a.controller.Begin(text)

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.streamMu.Lock()
	a.streamCancel = cancel
	a.streamDone = done
	a.streamMu.Unlock()

	events := a.backend.Stream(streamCtx, a.conversationID, text)
	go func() {
		defer close(done)
		defer cancel()
		a.controller.Run(streamCtx, a.echo(events))
		fmt.Println()
	}()
}

// stopStream cancels the in-flight stream, if any, and waits for its consumer to finish so no
// event can land after cancellation.
func (a *app) stopStream() {
	a.streamMu.Lock()
	cancel, done := a.streamCancel, a.streamDone
	a.streamCancel, a.streamDone = nil, nil
	a.streamMu.Unlock()

	if cancel == nil {
		return
	}
	a.controller.Cancel()
	cancel()
	<-done
}

// echo prints user-visible stream progress while passing every event through untouched.
func (a *app) echo(events iter.Seq2[stream.Event, error]) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		for ev, err := range events {
			if err == nil {
				switch ev := ev.(type) {
				case stream.Delta:
					fmt.Print(ev.Content)
				case stream.ToolCallEvent:
					for _, tc := range ev.ToolCalls {
						fmt.Printf("\n[calling %s]\n", tc.FunctionName)
					}
				case stream.ErrorEvent:
					fmt.Printf("\n[error: %s]\n", ev.Message)
				}
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

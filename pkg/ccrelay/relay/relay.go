// Package relay glues a chat channel to the actor bus: inbound messages go
// through the user actor, control commands are executed here and agent
// turns are handed to the queue.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/actors"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/channels"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/queue"
)

// Commander runs a shell passthrough line and returns the rendered result.
// *shell.Executor implements it.
type Commander interface {
	Run(ctx context.Context, line string) string
}

// Config configures a Relay.
type Config struct {
	// Source is the From name of inbound envelopes. Default: "discord".
	Source string

	// ExitDelay is the pause between the exit notice and shutdown.
	// Default: 1s. Negative means immediate.
	ExitDelay time.Duration
}

// Relay dispatches inbound chat messages.
type Relay struct {
	bus      queue.Sender
	queue    *queue.Queue
	out      channels.Messenger
	shell    Commander
	msgs     i18n.Catalog
	cfg      Config
	shutdown func()
	logger   *slog.Logger

	wg       sync.WaitGroup
	exitOnce sync.Once
}

// New creates a relay. shutdown is invoked once after an exit command;
// shell may be nil to disable passthrough.
func New(bus queue.Sender, q *queue.Queue, out channels.Messenger, shell Commander, msgs i18n.Catalog, cfg Config, shutdown func(), logger *slog.Logger) *Relay {
	if cfg.Source == "" {
		cfg.Source = "discord"
	}
	if cfg.ExitDelay == 0 {
		cfg.ExitDelay = time.Second
	}
	if shutdown == nil {
		shutdown = func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		bus:      bus,
		queue:    q,
		out:      out,
		shell:    shell,
		msgs:     msgs,
		cfg:      cfg,
		shutdown: shutdown,
		logger:   logger.With("component", "relay"),
	}
}

// Run dispatches messages from in until ctx is cancelled or in is closed.
func (r *Relay) Run(ctx context.Context, in <-chan *channels.IncomingMessage) error {
	r.logger.Info("relay started")
	defer r.logger.Info("relay stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			r.Handle(ctx, msg)
		}
	}
}

// Wait blocks until background work started by Handle has finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Handle dispatches one inbound message. It never blocks on an agent turn.
func (r *Relay) Handle(ctx context.Context, in *channels.IncomingMessage) {
	chatID := in.ChatID
	env := message.Envelope{
		ID:   in.ID,
		From: r.cfg.Source,
		To:   actors.NameUser,
		Kind: message.KindDiscordMessage,
		Payload: message.ChatMessage{
			Text:      in.Content,
			AuthorID:  in.From,
			ChannelID: chatID,
		},
		Timestamp: in.Timestamp,
	}
	if env.ID == "" {
		env = message.New(r.cfg.Source, actors.NameUser, env.Kind, env.Payload)
	}

	resp := r.bus.Send(ctx, env)
	if resp == nil {
		r.logger.Warn("user actor produced no routing", "msg_id", in.ID)
		return
	}

	if resp.To == actors.NameSystem {
		r.system(ctx, chatID, *resp)
		return
	}

	switch resp.Kind {
	case message.KindHelpResponse:
		p, _ := resp.Payload.(message.HelpListing)
		r.post(ctx, chatID, strings.Join(p.Commands, "\n"))
		return
	case message.KindError, message.KindUnknownCommand:
		r.post(ctx, chatID, resp.Text())
		return
	}

	busy := r.queue.Busy()
	waiting := r.queue.Enqueue(queue.Task{Envelope: *resp, ChatID: chatID})
	if busy {
		r.post(ctx, chatID, r.msgs.Queued(waiting))
	}
	r.background(func() { r.queue.ProcessNext(ctx) })
}

// system executes a control request addressed to the system pseudo-actor.
func (r *Relay) system(ctx context.Context, chatID string, req message.Envelope) {
	r.logger.Info("system command", "kind", req.Kind)

	switch req.Kind {
	case message.KindResetSession:
		r.forward(ctx, req.Kind, req.Payload)
		r.post(ctx, chatID, r.msgs.ResetComplete)

	case message.KindStopTasks:
		// Clear first so the drain loop cannot pick up a waiting turn
		// between the abort and the clear.
		r.queue.Clear()
		r.queue.AbortCurrent()
		r.forward(ctx, req.Kind, req.Payload)
		r.post(ctx, chatID, r.msgs.StopComplete)

	case message.KindShutdown:
		r.post(ctx, chatID, r.msgs.ExitMessage)
		r.exitOnce.Do(func() {
			if r.cfg.ExitDelay < 0 {
				r.shutdown()
				return
			}
			time.AfterFunc(r.cfg.ExitDelay, r.shutdown)
		})

	case message.KindExecuteCommand:
		p, _ := req.Payload.(message.ExecuteCommand)
		if p.Command == "" || r.shell == nil {
			return
		}
		r.post(ctx, chatID, fmt.Sprintf(r.msgs.Executingf, p.Command))
		r.background(func() {
			r.queue.Deliver(context.WithoutCancel(ctx), chatID, r.shell.Run(ctx, p.Command))
		})

	default:
		r.logger.Warn("unknown system command", "kind", req.Kind)
	}
}

// forward sends a control request on to the assistant.
func (r *Relay) forward(ctx context.Context, kind message.Kind, payload message.Payload) {
	resp := r.bus.Send(ctx, message.New(actors.NameSystem, actors.NameAssistant, kind, payload))
	if resp != nil && resp.Kind == message.KindError {
		r.logger.Warn("assistant rejected control request", "kind", kind, "error", resp.Text())
	}
}

func (r *Relay) post(ctx context.Context, chatID, text string) {
	if _, err := r.out.Send(ctx, chatID, text); err != nil {
		r.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (r *Relay) background(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

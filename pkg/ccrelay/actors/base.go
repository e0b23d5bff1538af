// Package actors holds the built-in bus actors: the user-intent router, the
// debug responder, the auto-responder (watchdog) and the assistant, which
// wraps the agent adapter.
package actors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// Well-known actor names.
const (
	NameUser          = "user"
	NameDebug         = "debug"
	NameAutoResponder = "auto-responder"
	NameAssistant     = "assistant"

	// NameSystem addresses control requests handled by the gateway glue
	// rather than by a registered actor.
	NameSystem = "system"
)

// base provides naming, logging and reply helpers shared by all actors.
type base struct {
	name   string
	logger *slog.Logger
}

func newBase(name string, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{name: name, logger: logger.With("component", "actor", "actor", name)}
}

// Name returns the routing name.
func (b base) Name() string { return b.name }

// Start logs readiness.
func (b base) Start(context.Context) error {
	b.logger.Info("actor started")
	return nil
}

// Stop logs teardown.
func (b base) Stop(context.Context) error {
	b.logger.Info("actor stopped")
	return nil
}

func (b base) reply(req message.Envelope, to string, kind message.Kind, payload message.Payload) *message.Envelope {
	env := message.Reply(req, b.name, to, kind, payload)
	return &env
}

func (b base) fail(req message.Envelope, msg string) *message.Envelope {
	return b.reply(req, req.From, message.KindError, message.Error{Message: msg})
}

func (b base) unknown(req message.Envelope) *message.Envelope {
	b.logger.Warn("unknown message type", "kind", req.Kind, "from", req.From)
	return b.fail(req, fmt.Sprintf("Unknown message type: %s", req.Kind))
}

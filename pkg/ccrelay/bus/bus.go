// Package bus implements the in-process message bus: a name-keyed registry
// of actors with point-to-point Send, fan-out Broadcast, and sequential
// lifecycle management.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// Actor is a named unit of behavior that handles envelopes.
type Actor interface {
	// Name returns the routing name of the actor.
	Name() string

	// Start prepares the actor. It must be idempotent.
	Start(ctx context.Context) error

	// Stop tears the actor down and releases any cancellation handles it
	// owns. It must be idempotent.
	Stop(ctx context.Context) error

	// HandleMessage processes env and returns the response, or nil when
	// no reply is expected. Semantic failures are error-typed responses,
	// never Go errors.
	HandleMessage(ctx context.Context, env message.Envelope) *message.Envelope
}

// Bus routes envelopes to registered actors by name.
type Bus struct {
	// actors maps routing name to actor.
	actors map[string]Actor

	// order preserves registration order for lifecycle calls and fan-out.
	order []string

	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		actors: make(map[string]Actor),
		logger: logger.With("component", "bus"),
	}
}

// Register inserts the actor under its name. A duplicate name replaces the
// previous actor and keeps its original position in the lifecycle order.
func (b *Bus) Register(a Actor) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := a.Name()
	if _, exists := b.actors[name]; exists {
		b.logger.Warn("actor replaced", "actor", name)
	} else {
		b.order = append(b.order, name)
		b.logger.Info("actor registered", "actor", name)
	}
	b.actors[name] = a
}

// Unregister removes the actor with the given name. Unknown names are a no-op.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.actors[name]; !exists {
		return
	}
	delete(b.actors, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.logger.Info("actor unregistered", "actor", name)
}

// Has reports whether an actor is registered under name.
func (b *Bus) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.actors[name]
	return ok
}

// Names returns the registered actor names in registration order.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.order...)
}

// Send delivers env to the actor named by env.To and returns its response
// unmodified. An unregistered recipient yields nil and is not an error.
func (b *Bus) Send(ctx context.Context, env message.Envelope) *message.Envelope {
	b.mu.RLock()
	a, ok := b.actors[env.To]
	b.mu.RUnlock()

	if !ok {
		b.logger.Debug("no actor for recipient, dropping", "to", env.To, "kind", env.Kind, "from", env.From)
		return nil
	}

	b.logger.Debug("delivering", "to", env.To, "kind", env.Kind, "from", env.From, "id", env.ID)
	return a.HandleMessage(ctx, env)
}

// Broadcast delivers a copy of env to every registered actor except the
// sender, with To rewritten per recipient. Nil responses are skipped.
func (b *Bus) Broadcast(ctx context.Context, env message.Envelope) []message.Envelope {
	b.mu.RLock()
	targets := make([]Actor, 0, len(b.order))
	for _, name := range b.order {
		if name == env.From {
			continue
		}
		targets = append(targets, b.actors[name])
	}
	b.mu.RUnlock()

	var responses []message.Envelope
	for _, a := range targets {
		copied := env
		copied.To = a.Name()
		if resp := a.HandleMessage(ctx, copied); resp != nil {
			responses = append(responses, *resp)
		}
	}
	return responses
}

// StartAll starts every actor sequentially in registration order. The
// first failure is returned and later actors are not started.
func (b *Bus) StartAll(ctx context.Context) error {
	actors := b.snapshot()
	for _, a := range actors {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("bus: starting actor %q: %w", a.Name(), err)
		}
	}
	b.logger.Info("actors started", "count", len(actors))
	return nil
}

// StopAll stops every actor sequentially in registration order. The first
// failure is returned and later actors are not stopped.
func (b *Bus) StopAll(ctx context.Context) error {
	for _, a := range b.snapshot() {
		if err := a.Stop(ctx); err != nil {
			return fmt.Errorf("bus: stopping actor %q: %w", a.Name(), err)
		}
	}
	b.logger.Info("actors stopped")
	return nil
}

func (b *Bus) snapshot() []Actor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Actor, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.actors[name])
	}
	return out
}

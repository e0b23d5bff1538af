// Package queue serializes agent turns: a FIFO of inbound turns with at
// most one turn in flight, cooperative cancellation of that turn, and
// chunked delivery of replies back to the conversation.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// Messenger is the chat gateway surface the queue renders onto.
type Messenger interface {
	// Send posts text to chatID and returns the new message id.
	Send(ctx context.Context, chatID, text string) (string, error)

	// Edit replaces the text of a previously sent message.
	Edit(ctx context.Context, chatID, messageID, text string) error

	// Delete removes a previously sent message.
	Delete(ctx context.Context, chatID, messageID string) error
}

// Sender delivers an envelope to its recipient. *bus.Bus implements it.
type Sender interface {
	Send(ctx context.Context, env message.Envelope) *message.Envelope
}

// Task is one queued turn.
type Task struct {
	Envelope   message.Envelope
	ChatID     string
	EnqueuedAt time.Time
}

// Config configures reply delivery.
type Config struct {
	// ChunkSize is the soft ceiling of a delivered chunk. Default: 1900.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkDelay is the pause after each chunk send. Default: 1s.
	ChunkDelay time.Duration `yaml:"chunk_delay"`
}

// DefaultConfig returns the delivery defaults.
func DefaultConfig() Config {
	return Config{ChunkSize: 1900, ChunkDelay: time.Second}
}

// Queue is a single-flight FIFO of agent turns.
type Queue struct {
	bus    Sender
	out    Messenger
	msgs   i18n.Catalog
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	items      []Task
	processing bool

	// cancel aborts the turn in flight; nil when idle.
	cancel context.CancelFunc

	lastActivity time.Time
	lastReply    string
}

// New creates a queue delivering turns through bus and rendering results
// with out.
func New(bus Sender, out Messenger, msgs i18n.Catalog, cfg Config, logger *slog.Logger) *Queue {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		bus:          bus,
		out:          out,
		msgs:         msgs,
		cfg:          cfg,
		logger:       logger.With("component", "queue"),
		lastActivity: time.Now(),
	}
}

// Enqueue appends t to the tail and returns the number of waiting turns.
func (q *Queue) Enqueue(t Task) int {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	q.lastActivity = t.EnqueuedAt
	q.logger.Debug("turn enqueued", "id", t.Envelope.ID, "waiting", len(q.items))
	return len(q.items)
}

// ProcessNext drains the queue on the calling goroutine. If a drain is
// already running it returns immediately, so it is safe to call after
// every Enqueue.
func (q *Queue) ProcessNext(ctx context.Context) {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return
	}
	q.processing = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.items) == 0 || ctx.Err() != nil {
			q.processing = false
			q.mu.Unlock()
			return
		}
		task := q.items[0]
		q.items = q.items[1:]
		itemCtx, cancel := context.WithCancel(ctx)
		q.cancel = cancel
		q.mu.Unlock()

		q.run(itemCtx, task)
		cancel()

		q.mu.Lock()
		q.cancel = nil
		q.lastActivity = time.Now()
		q.mu.Unlock()
	}
}

// AbortCurrent cancels the turn in flight. Queued turns are untouched.
func (q *Queue) AbortCurrent() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel == nil {
		return false
	}
	q.cancel()
	q.cancel = nil
	q.logger.Info("current turn aborted")
	return true
}

// Clear discards all turns that have not started and returns how many.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	if n > 0 {
		q.logger.Info("queue cleared", "discarded", n)
	}
	return n
}

// Len returns the number of waiting turns.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Processing reports whether a drain is running.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Busy reports whether a turn is running or waiting.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing || len(q.items) > 0
}

// LastActivity returns the time of the last enqueue or completed turn.
func (q *Queue) LastActivity() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastActivity
}

// LastReply returns the text of the last successfully delivered reply.
func (q *Queue) LastReply() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastReply
}

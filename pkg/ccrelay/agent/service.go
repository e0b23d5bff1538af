// Package agent wraps the external conversational agent. The Adapter owns
// session continuity (first turn, captured session id, resume target) and
// the cancellation handle of the call in flight; a Service performs the
// actual call and yields a stream of typed turn events.
package agent

import (
	"context"
	"errors"
)

// EventKind identifies a turn event.
type EventKind string

const (
	// EventAssistantText is a fragment of the assistant reply.
	EventAssistantText EventKind = "assistant-text"

	// EventSessionInit announces the session id of the call.
	EventSessionInit EventKind = "session-init"

	// EventToolResult carries the output of a tool the agent ran.
	EventToolResult EventKind = "tool-result"

	// EventResult is the terminal event of a call.
	EventResult EventKind = "result"

	// EventOther is anything else the service emits. It is logged and ignored.
	EventOther EventKind = "other"
)

// Event is one element of a turn stream.
type Event struct {
	Kind      EventKind
	Text      string
	SessionID string

	// Raw is the undecoded event, kept for logging.
	Raw string
}

// Request is the call configuration for one turn.
type Request struct {
	Prompt         string
	Continue       bool
	Resume         string
	Model          string
	MaxTurns       int
	PermissionMode string
}

// Stream is a lazy, finite, non-restartable sequence of turn events.
// Recv returns io.EOF after the last event.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Service issues one query per turn. Cancelling ctx aborts the call.
type Service interface {
	Query(ctx context.Context, req Request) (Stream, error)
}

// Recorder persists session ids as they are captured.
type Recorder interface {
	RecordTurn(ctx context.Context, sessionID, prompt string) error
}

// ErrAborted is returned when a query is cancelled while its stream is
// being consumed.
var ErrAborted = errors.New("query was aborted")

// NoResponseText is the reply of a turn that produced no text at all.
const NoResponseText = "No response received."

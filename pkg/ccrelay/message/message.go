// Package message defines the envelope routed between ccrelay actors and the
// closed set of payload variants it may carry.
//
// Routing is by name: From and To hold actor names, and To may be the
// Broadcast marker. Kind is an open string tag; constants below cover every
// kind the built-in actors understand, and new kinds are added by convention.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast is the literal recipient used for fan-out envelopes.
const Broadcast = "*"

// Kind identifies the semantic message type of an envelope.
type Kind string

// Request kinds.
const (
	KindDiscordMessage     Kind = "discord-message"
	KindUserInput          Kind = "user-input"
	KindCommand            Kind = "command"
	KindUserMessage        Kind = "user-message"
	KindChat               Kind = "chat"
	KindEcho               Kind = "echo"
	KindRandom             Kind = "random"
	KindThink              Kind = "think"
	KindIdleCheck          Kind = "idle-check"
	KindCheckExecutionTime Kind = "check-execution-time"
	KindSuggestTask        Kind = "suggest-task"
	KindCheckTasks         Kind = "check-tasks"
	KindTaskStatusUpdate   Kind = "task-status-update"
	KindResetSession       Kind = "reset-session"
	KindStopTasks          Kind = "stop-tasks"
	KindShutdown           Kind = "shutdown"
	KindExecuteCommand     Kind = "execute-command"
)

// Response kinds.
const (
	KindEchoResponse          Kind = "echo-response"
	KindRandomResponse        Kind = "random-response"
	KindThinkResponse         Kind = "think-response"
	KindChatResponse          Kind = "chat-response"
	KindAssistantResponse     Kind = "assistant-response"
	KindAgentResponse         Kind = "agent-response"
	KindHelpResponse          Kind = "help-response"
	KindUnknownCommand        Kind = "unknown-command"
	KindTriggerNextTask       Kind = "trigger-next-task"
	KindExecutionTimeExceeded Kind = "execution-time-exceeded"
	KindExecutionTimeOK       Kind = "execution-time-ok"
	KindTaskSuggestion        Kind = "task-suggestion"
	KindTaskScheduled         Kind = "task-scheduled"
	KindTaskAcknowledged      Kind = "task-acknowledged"
	KindSessionReset          Kind = "session-reset"
	KindTasksStopped          Kind = "tasks-stopped"
	KindError                 Kind = "error"
)

// Envelope is the request/response record shared by all components.
// Envelopes are values; handlers never mutate the one they receive.
type Envelope struct {
	ID        string
	From      string
	To        string
	Kind      Kind
	Payload   Payload
	Timestamp time.Time
}

// New creates an envelope with a fresh random id.
func New(from, to string, kind Kind, payload Payload) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Reply creates a response to req. The id is derived from the request id
// (req.ID + "-response"), or freshly minted when the request has none.
func Reply(req Envelope, from, to string, kind Kind, payload Payload) Envelope {
	return Envelope{
		ID:        ResponseID(req.ID),
		From:      from,
		To:        to,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// ResponseID returns the id a response to requestID carries.
func ResponseID(requestID string) string {
	if requestID == "" {
		return uuid.NewString()
	}
	return requestID + "-response"
}

// Text extracts the free text carried by common payloads, or "".
func (e Envelope) Text() string {
	switch p := e.Payload.(type) {
	case ChatMessage:
		return p.Text
	case UserText:
		return p.Text
	case TextReply:
		return p.Text
	case AgentReply:
		return p.Text
	case ThinkResult:
		return p.Text
	case Error:
		return p.Message
	}
	return ""
}

package message

import (
	"context"
	"time"
)

// Payload is the closed set of envelope payload shapes. Each variant is a
// struct in this package; receivers type-switch on the concrete value.
type Payload interface {
	isPayload()
}

// ProgressFunc receives incremental tool output while an agent turn runs.
type ProgressFunc func(ctx context.Context, text string)

// ChatMessage is inbound text from the chat gateway (discord-message,
// user-input, chat).
type ChatMessage struct {
	Text      string
	AuthorID  string
	ChannelID string
}

// Command is an explicit command without the leading marker, e.g. "reset"
// or "git status".
type Command struct {
	Line string
}

// UserText is free text re-addressed by the user-intent actor
// (user-message). Progress is optional.
type UserText struct {
	Text         string
	OriginalFrom string
	ChannelID    string
	Progress     ProgressFunc
}

// Think asks the debug actor to suspend before replying. Zero means the
// actor's default delay.
type Think struct {
	Duration time.Duration
}

// ThinkResult is the debug actor's reply to Think.
type ThinkResult struct {
	Text     string
	Duration time.Duration
}

// TextReply is a plain text response.
type TextReply struct {
	Text string
}

// AgentReply is the condensed result of one agent turn.
type AgentReply struct {
	Text      string
	SessionID string
}

// IdleCheck asks whether the conversation has been idle longer than
// Timeout. Zero values fall back to now and the actor's default timeout.
type IdleCheck struct {
	LastActivity time.Time
	Timeout      time.Duration
}

// IdleTrigger signals that the next task should be started.
type IdleTrigger struct {
	Reason   string
	IdleTime time.Duration
}

// ExecutionCheck asks whether the execution budget is exhausted. Zero
// values fall back to the actor's start time and default budget.
type ExecutionCheck struct {
	StartTime        time.Time
	MaxExecutionTime time.Duration
}

// ExecutionStatus answers ExecutionCheck. RemainingTime is zero when
// ShouldStop is set.
type ExecutionStatus struct {
	ShouldStop    bool
	RemainingTime time.Duration
}

// SuggestTask asks for canned next-task suggestions for Context.
type SuggestTask struct {
	CurrentTasks []string
	Context      string
}

// TaskSuggestions answers SuggestTask.
type TaskSuggestions struct {
	Suggestions []string
}

// CheckTasks asks for advisory schedule data for Tasks.
type CheckTasks struct {
	Tasks []string
}

// Priority of a scheduled task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// ScheduledTask is one annotated entry of a schedule.
type ScheduledTask struct {
	Task        string
	ScheduledAt time.Time
	Priority    Priority
}

// ScheduledTasks answers CheckTasks.
type ScheduledTasks struct {
	Tasks []ScheduledTask
}

// TaskStatus reports progress on a task.
type TaskStatus struct {
	Task   string
	Status string
}

// TaskAck answers TaskStatus.
type TaskAck struct {
	Message    string
	NextAction string
}

// SystemRequest is a system-directed control request (reset-session,
// stop-tasks, shutdown).
type SystemRequest struct {
	Message string
}

// ExecuteCommand carries a raw shell line for the passthrough executor.
type ExecuteCommand struct {
	Command string
}

// HelpListing lists the available chat commands.
type HelpListing struct {
	Commands []string
}

// Error is an error-typed response. Aborted marks cancellation so it can
// be reported differently from a generic failure.
type Error struct {
	Message string
	Aborted bool
}

func (ChatMessage) isPayload()     {}
func (Command) isPayload()         {}
func (UserText) isPayload()        {}
func (Think) isPayload()           {}
func (ThinkResult) isPayload()     {}
func (TextReply) isPayload()       {}
func (AgentReply) isPayload()      {}
func (IdleCheck) isPayload()       {}
func (IdleTrigger) isPayload()     {}
func (ExecutionCheck) isPayload()  {}
func (ExecutionStatus) isPayload() {}
func (SuggestTask) isPayload()     {}
func (TaskSuggestions) isPayload() {}
func (CheckTasks) isPayload()      {}
func (ScheduledTasks) isPayload()  {}
func (TaskStatus) isPayload()      {}
func (TaskAck) isPayload()         {}
func (SystemRequest) isPayload()   {}
func (ExecuteCommand) isPayload()  {}
func (HelpListing) isPayload()     {}
func (Error) isPayload()           {}

// Package watchdog evaluates idle and execution-budget conditions and
// produces canned task suggestions. The evaluation functions are pure: the
// caller supplies the clock reading and every threshold.
package watchdog

import (
	"strings"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

const (
	// DefaultIdleTimeout is how long a conversation may sit idle before
	// the next task is triggered.
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultMaxExecutionTime is the total execution budget of a session.
	DefaultMaxExecutionTime = 6 * time.Hour

	// ReasonIdleTimeout is the IdleTrigger reason for an idle conversation.
	ReasonIdleTimeout = "idle-timeout"
)

// Suggestion buckets, checked in order.
var (
	SetupSuggestions = []string{
		"Install project dependencies",
		"Verify environment variable settings",
		"Update README file",
	}
	TestSuggestions = []string{
		"Run unit tests",
		"Generate coverage report",
		"Create integration tests",
	}
	DefaultSuggestions = []string{
		"Check TODO.md for next tasks",
		"Conduct code review",
		"Update documentation",
	}
)

var suggestionBuckets = []struct {
	keywords    []string
	suggestions []string
}{
	{keywords: []string{"initial setup", "setup"}, suggestions: SetupSuggestions},
	{keywords: []string{"test", "testing"}, suggestions: TestSuggestions},
}

// CheckIdle reports whether more than timeout has elapsed since
// lastActivity. Elapsed time exactly equal to timeout does not trigger.
func CheckIdle(now, lastActivity time.Time, timeout time.Duration) (message.IdleTrigger, bool) {
	idle := now.Sub(lastActivity)
	if idle > timeout {
		return message.IdleTrigger{Reason: ReasonIdleTimeout, IdleTime: idle}, true
	}
	return message.IdleTrigger{}, false
}

// CheckExecutionTime compares the time elapsed since start with budget.
// Within budget the remaining time is reported and is never negative.
func CheckExecutionTime(now, start time.Time, budget time.Duration) message.ExecutionStatus {
	elapsed := now.Sub(start)
	if elapsed > budget {
		return message.ExecutionStatus{ShouldStop: true}
	}
	return message.ExecutionStatus{RemainingTime: budget - elapsed}
}

// SuggestTasks returns the suggestion list of the first bucket whose
// keywords appear in context, or the default list. The result is a copy.
func SuggestTasks(context string) []string {
	for _, bucket := range suggestionBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(context, kw) {
				return append([]string(nil), bucket.suggestions...)
			}
		}
	}
	return append([]string(nil), DefaultSuggestions...)
}

// ScheduleTasks annotates tasks with advisory schedule times one second
// apart, starting one second after now. Only the first is high priority.
// Nothing is actually scheduled.
func ScheduleTasks(now time.Time, tasks []string) []message.ScheduledTask {
	scheduled := make([]message.ScheduledTask, 0, len(tasks))
	for i, task := range tasks {
		priority := message.PriorityNormal
		if i == 0 {
			priority = message.PriorityHigh
		}
		scheduled = append(scheduled, message.ScheduledTask{
			Task:        task,
			ScheduledAt: now.Add(time.Duration(i+1) * time.Second),
			Priority:    priority,
		})
	}
	return scheduled
}

// ChatReply is the canned reply used when the watchdog is addressed
// conversationally.
func ChatReply(text string) string {
	switch {
	case strings.Contains(text, "task") || strings.Contains(text, "progress"):
		return "Checking current tasks. Please wait a moment..."
	case strings.Contains(text, "break") || strings.Contains(text, "stop"):
		return "Understood. Pausing automatic execution."
	default:
		return "Auto-response: Message received. Continuing task monitoring."
	}
}

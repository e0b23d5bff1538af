package watchdog

import (
	"testing"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

func TestCheckIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		idle        time.Duration
		timeout     time.Duration
		wantTrigger bool
	}{
		{"well under", time.Minute, 5 * time.Minute, false},
		{"exactly at timeout", 5 * time.Minute, 5 * time.Minute, false},
		{"one nanosecond over", 5*time.Minute + time.Nanosecond, 5 * time.Minute, true},
		{"six minutes idle", 6 * time.Minute, 5 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, ok := CheckIdle(now, now.Add(-tt.idle), tt.timeout)
			if ok != tt.wantTrigger {
				t.Fatalf("expected trigger=%v, got %v", tt.wantTrigger, ok)
			}
			if !ok {
				return
			}
			if trigger.Reason != ReasonIdleTimeout {
				t.Errorf("expected reason %q, got %q", ReasonIdleTimeout, trigger.Reason)
			}
			if trigger.IdleTime != tt.idle {
				t.Errorf("expected idle time %v, got %v", tt.idle, trigger.IdleTime)
			}
		})
	}
}

func TestCheckExecutionTime(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	budget := 6 * time.Hour

	tests := []struct {
		name          string
		elapsed       time.Duration
		wantStop      bool
		wantRemaining time.Duration
	}{
		{"just started", 0, false, budget},
		{"halfway", 3 * time.Hour, false, 3 * time.Hour},
		{"exactly at budget", budget, false, 0},
		{"over budget", budget + time.Second, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := CheckExecutionTime(start.Add(tt.elapsed), start, budget)
			if status.ShouldStop != tt.wantStop {
				t.Errorf("expected ShouldStop=%v, got %v", tt.wantStop, status.ShouldStop)
			}
			if status.RemainingTime != tt.wantRemaining {
				t.Errorf("expected remaining %v, got %v", tt.wantRemaining, status.RemainingTime)
			}
			if status.RemainingTime < 0 {
				t.Errorf("remaining time must not be negative, got %v", status.RemainingTime)
			}
		})
	}
}

func TestSuggestTasks(t *testing.T) {
	tests := []struct {
		name    string
		context string
		want    []string
	}{
		{"setup", "initial setup of the repo", SetupSuggestions},
		{"setup wins over test", "setup the test harness", SetupSuggestions},
		{"test", "we need to test the parser", TestSuggestions},
		{"testing", "testing phase", TestSuggestions},
		{"default", "refactor the handler", DefaultSuggestions},
		{"empty", "", DefaultSuggestions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestTasks(tt.context)
			if !equalStrings(got, tt.want) {
				t.Errorf("SuggestTasks(%q) = %v, want %v", tt.context, got, tt.want)
			}
		})
	}
}

func TestSuggestTasks_ReturnsCopy(t *testing.T) {
	got := SuggestTasks("test")
	got[0] = "mutated"
	if TestSuggestions[0] != "Run unit tests" {
		t.Error("expected bucket to be unaffected by caller mutation")
	}
}

func TestScheduleTasks(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	got := ScheduleTasks(now, []string{"a", "b", "c"})

	if len(got) != 3 {
		t.Fatalf("expected 3 scheduled tasks, got %d", len(got))
	}
	for i, st := range got {
		wantAt := now.Add(time.Duration(i+1) * time.Second)
		if !st.ScheduledAt.Equal(wantAt) {
			t.Errorf("task %d: expected %v, got %v", i, wantAt, st.ScheduledAt)
		}
		wantPriority := message.PriorityNormal
		if i == 0 {
			wantPriority = message.PriorityHigh
		}
		if st.Priority != wantPriority {
			t.Errorf("task %d: expected priority %q, got %q", i, wantPriority, st.Priority)
		}
	}

	if len(ScheduleTasks(now, nil)) != 0 {
		t.Error("expected empty schedule for no tasks")
	}
}

func TestChatReply(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"what is the task status", "Checking current tasks. Please wait a moment..."},
		{"show progress", "Checking current tasks. Please wait a moment..."},
		{"take a break", "Understood. Pausing automatic execution."},
		{"please stop", "Understood. Pausing automatic execution."},
		{"hello", "Auto-response: Message received. Continuing task monitoring."},
	}

	for _, tt := range tests {
		if got := ChatReply(tt.text); got != tt.want {
			t.Errorf("ChatReply(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package actors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/watchdog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func inbound(text string) message.Envelope {
	return message.New("discord", NameUser, message.KindDiscordMessage, message.ChatMessage{
		Text:      text,
		AuthorID:  "u1",
		ChannelID: "c1",
	})
}

func TestUser_Routing(t *testing.T) {
	u := NewUser(testLogger())

	tests := []struct {
		name     string
		text     string
		wantTo   string
		wantKind message.Kind
	}{
		{"plain text", "hello there", NameAssistant, message.KindUserMessage},
		{"debug keyword", "please DEBUG this", NameDebug, message.KindUserMessage},
		{"task keyword", "what is the next Task", NameAutoResponder, message.KindUserMessage},
		{"todo keyword", "check the todo list", NameAutoResponder, message.KindUserMessage},
		{"debug wins over task", "debug the task", NameDebug, message.KindUserMessage},
		{"reset", "!reset", NameSystem, message.KindResetSession},
		{"clear", "!clear", NameSystem, message.KindResetSession},
		{"stop", "!stop", NameSystem, message.KindStopTasks},
		{"exit", "!exit", NameSystem, message.KindShutdown},
		{"help", "!help", "discord", message.KindHelpResponse},
		{"shell", "!git status", NameSystem, message.KindExecuteCommand},
		{"bare marker", "!", "discord", message.KindUnknownCommand},
		{"uppercase command is shell", "!RESET", NameSystem, message.KindExecuteCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := inbound(tt.text)
			resp := u.HandleMessage(context.Background(), req)
			if resp == nil {
				t.Fatal("expected response, got nil")
			}
			if resp.To != tt.wantTo {
				t.Errorf("expected to=%q, got %q", tt.wantTo, resp.To)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("expected kind=%q, got %q", tt.wantKind, resp.Kind)
			}
			if resp.ID != req.ID+"-response" {
				t.Errorf("expected derived id, got %q", resp.ID)
			}
			if resp.From != NameUser {
				t.Errorf("expected from=user, got %q", resp.From)
			}
		})
	}
}

func TestUser_Payloads(t *testing.T) {
	u := NewUser(testLogger())

	resp := u.HandleMessage(context.Background(), inbound("hello"))
	p, ok := resp.Payload.(message.UserText)
	if !ok {
		t.Fatalf("expected UserText payload, got %T", resp.Payload)
	}
	if p.Text != "hello" || p.OriginalFrom != "discord" || p.ChannelID != "c1" {
		t.Errorf("unexpected payload %+v", p)
	}

	resp = u.HandleMessage(context.Background(), inbound("!ls -la  src"))
	cmd, ok := resp.Payload.(message.ExecuteCommand)
	if !ok || cmd.Command != "ls -la  src" {
		t.Errorf("expected raw command line, got %+v", resp.Payload)
	}

	resp = u.HandleMessage(context.Background(), inbound("!help"))
	help, ok := resp.Payload.(message.HelpListing)
	if !ok || len(help.Commands) != len(HelpCommands) {
		t.Errorf("expected help listing, got %+v", resp.Payload)
	}
}

func TestUser_ExplicitCommand(t *testing.T) {
	u := NewUser(testLogger())

	req := message.New("cli", NameUser, message.KindCommand, message.Command{Line: "stop"})
	resp := u.HandleMessage(context.Background(), req)
	if resp.Kind != message.KindStopTasks || resp.To != NameSystem {
		t.Errorf("expected stop-tasks to system, got %s to %s", resp.Kind, resp.To)
	}
}

func TestUser_Errors(t *testing.T) {
	u := NewUser(testLogger())

	resp := u.HandleMessage(context.Background(), inbound(""))
	if resp.Kind != message.KindError || resp.Text() != "No text or command provided" {
		t.Errorf("expected empty-text error, got %s %q", resp.Kind, resp.Text())
	}
	if resp.To != "discord" {
		t.Errorf("expected error addressed back to sender, got %q", resp.To)
	}

	resp = u.HandleMessage(context.Background(), message.New("x", NameUser, message.KindEcho, nil))
	if resp.Kind != message.KindError || resp.Text() != "Unknown message type: echo" {
		t.Errorf("expected unknown-type error, got %s %q", resp.Kind, resp.Text())
	}
}

func TestDebug(t *testing.T) {
	d := NewDebug(NameDebug, testLogger())
	d.pick = func(int) int { return 1 }

	tests := []struct {
		name     string
		kind     message.Kind
		payload  message.Payload
		wantKind message.Kind
		wantText string
	}{
		{"echo", message.KindEcho, message.TextReply{Text: "ping"}, message.KindEchoResponse, "ping"},
		{"random", message.KindRandom, nil, message.KindRandomResponse, "Understood!"},
		{"chat task", message.KindChat, message.ChatMessage{Text: "any Task today"}, message.KindChatResponse,
			"Today's tasks are as follows:\n1. Conduct code review\n2. Update documentation\n3. Add test cases"},
		{"chat hello", message.KindChat, message.ChatMessage{Text: "Hello"}, message.KindChatResponse, "Hello! How are you?"},
		{"chat how are you", message.KindChat, message.ChatMessage{Text: "how are you"}, message.KindChatResponse,
			"I'm doing well! What did you do today?"},
		{"chat question", message.KindChat, message.ChatMessage{Text: "なぜ？"}, message.KindChatResponse,
			"That's a good question. Let me think about it more."},
		{"chat fallback", message.KindChat, message.ChatMessage{Text: "zzz"}, message.KindChatResponse, "Understood!"},
		{"user message", message.KindUserMessage, message.UserText{Text: "Hi"}, message.KindAssistantResponse, "Hello! How are you?"},
		{"unknown", message.KindIdleCheck, nil, message.KindError, "Unknown message type: idle-check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.HandleMessage(context.Background(), message.New("tester", NameDebug, tt.kind, tt.payload))
			if resp == nil {
				t.Fatal("expected response")
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, resp.Kind)
			}
			if resp.Text() != tt.wantText {
				t.Errorf("expected text %q, got %q", tt.wantText, resp.Text())
			}
			if resp.To != "tester" {
				t.Errorf("expected reply to sender, got %q", resp.To)
			}
		})
	}
}

func TestDebug_Think(t *testing.T) {
	d := NewDebug(NameDebug, testLogger())

	start := time.Now()
	resp := d.HandleMessage(context.Background(), message.New("t", NameDebug, message.KindThink, message.Think{Duration: 20 * time.Millisecond}))
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected think to suspend for the requested duration")
	}
	res, ok := resp.Payload.(message.ThinkResult)
	if !ok || res.Text != "Finished thinking!" || res.Duration != 20*time.Millisecond {
		t.Errorf("unexpected think result %+v", resp.Payload)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp = d.HandleMessage(ctx, message.New("t", NameDebug, message.KindThink, message.Think{Duration: time.Hour}))
	e, ok := resp.Payload.(message.Error)
	if !ok || !e.Aborted {
		t.Errorf("expected aborted error on cancelled think, got %+v", resp.Payload)
	}
}

func newTestAutoResponder(now time.Time) *AutoResponder {
	a := NewAutoResponder(AutoResponderConfig{}, testLogger())
	a.startTime = now.Add(-time.Hour)
	a.now = func() time.Time { return now }
	return a
}

func TestAutoResponder_IdleCheck(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAutoResponder(now)

	tests := []struct {
		name    string
		payload message.IdleCheck
		want    bool
	}{
		{"six minutes idle", message.IdleCheck{LastActivity: now.Add(-6 * time.Minute), Timeout: 5 * time.Minute}, true},
		{"exactly at timeout", message.IdleCheck{LastActivity: now.Add(-5 * time.Minute), Timeout: 5 * time.Minute}, false},
		{"default timeout", message.IdleCheck{LastActivity: now.Add(-4 * time.Minute)}, false},
		{"missing last activity", message.IdleCheck{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := a.HandleMessage(context.Background(), message.New("driver", NameAutoResponder, message.KindIdleCheck, tt.payload))
			if (resp != nil) != tt.want {
				t.Fatalf("expected trigger=%v, got %+v", tt.want, resp)
			}
			if resp == nil {
				return
			}
			trig, ok := resp.Payload.(message.IdleTrigger)
			if resp.Kind != message.KindTriggerNextTask || !ok || trig.Reason != "idle-timeout" {
				t.Errorf("unexpected trigger %+v", resp)
			}
			if trig.IdleTime != 6*time.Minute {
				t.Errorf("expected idle time 6m, got %v", trig.IdleTime)
			}
		})
	}
}

func TestAutoResponder_ExecutionTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAutoResponder(now)

	resp := a.HandleMessage(context.Background(), message.New("d", NameAutoResponder, message.KindCheckExecutionTime, message.ExecutionCheck{}))
	status, _ := resp.Payload.(message.ExecutionStatus)
	if resp.Kind != message.KindExecutionTimeOK || status.ShouldStop || status.RemainingTime != 5*time.Hour {
		t.Errorf("expected 5h remaining, got %s %+v", resp.Kind, status)
	}

	resp = a.HandleMessage(context.Background(), message.New("d", NameAutoResponder, message.KindCheckExecutionTime,
		message.ExecutionCheck{StartTime: now.Add(-7 * time.Hour)}))
	status, _ = resp.Payload.(message.ExecutionStatus)
	if resp.Kind != message.KindExecutionTimeExceeded || !status.ShouldStop {
		t.Errorf("expected exceeded, got %s %+v", resp.Kind, status)
	}
}

func TestAutoResponder_Structured(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAutoResponder(now)
	ctx := context.Background()

	resp := a.HandleMessage(ctx, message.New("d", NameAutoResponder, message.KindSuggestTask, message.SuggestTask{Context: "add a test for the parser"}))
	sugg, _ := resp.Payload.(message.TaskSuggestions)
	if resp.Kind != message.KindTaskSuggestion || fmt.Sprint(sugg.Suggestions) != fmt.Sprint(watchdog.TestSuggestions) {
		t.Errorf("expected testing bucket, got %+v", sugg.Suggestions)
	}

	resp = a.HandleMessage(ctx, message.New("d", NameAutoResponder, message.KindCheckTasks, message.CheckTasks{Tasks: []string{"a", "b"}}))
	sched, _ := resp.Payload.(message.ScheduledTasks)
	if resp.Kind != message.KindTaskScheduled || len(sched.Tasks) != 2 || sched.Tasks[0].Priority != message.PriorityHigh {
		t.Errorf("unexpected schedule %+v", sched)
	}
	if !sched.Tasks[1].ScheduledAt.Equal(now.Add(2 * time.Second)) {
		t.Errorf("expected second task at +2s, got %v", sched.Tasks[1].ScheduledAt)
	}

	resp = a.HandleMessage(ctx, message.New("d", NameAutoResponder, message.KindTaskStatusUpdate, message.TaskStatus{Task: "a", Status: "done"}))
	ack, _ := resp.Payload.(message.TaskAck)
	if resp.Kind != message.KindTaskAcknowledged || ack.Message != "Task status confirmed." || ack.NextAction != "continue-monitoring" {
		t.Errorf("unexpected ack %+v", ack)
	}

	resp = a.HandleMessage(ctx, message.New("user", NameAutoResponder, message.KindUserMessage, message.UserText{Text: "task progress?"}))
	if resp.Kind != message.KindChatResponse || resp.Text() != "Checking current tasks. Please wait a moment..." {
		t.Errorf("unexpected chat reply %s %q", resp.Kind, resp.Text())
	}

	resp = a.HandleMessage(ctx, message.New("d", NameAutoResponder, message.KindEcho, nil))
	if resp.Kind != message.KindError || resp.To != "d" {
		t.Errorf("expected error back to sender, got %s to %s", resp.Kind, resp.To)
	}
}

// stubAgent is a scripted Agent.
type stubAgent struct {
	reply    string
	err      error
	prompts  []string
	resets   int
	aborted  bool
	progress string
}

func (s *stubAgent) Start(context.Context) error { return nil }
func (s *stubAgent) Stop(context.Context) error  { return nil }
func (s *stubAgent) ResetSession()               { s.resets++ }
func (s *stubAgent) SessionID() string           { return "sess" }
func (s *stubAgent) Abort() bool                 { s.aborted = true; return true }

func (s *stubAgent) Query(ctx context.Context, prompt string, progress message.ProgressFunc) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if progress != nil && s.progress != "" {
		progress(ctx, s.progress)
	}
	return s.reply, s.err
}

func TestAssistant(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		stub := &stubAgent{reply: "answer", progress: "tool"}
		a := NewAssistant(NameAssistant, stub, testLogger())

		var got []string
		resp := a.HandleMessage(ctx, message.New("queue", NameAssistant, message.KindUserMessage, message.UserText{
			Text:     "question",
			Progress: func(_ context.Context, s string) { got = append(got, s) },
		}))
		r, ok := resp.Payload.(message.AgentReply)
		if resp.Kind != message.KindAgentResponse || !ok || r.Text != "answer" || r.SessionID != "sess" {
			t.Errorf("unexpected reply %s %+v", resp.Kind, resp.Payload)
		}
		if len(got) != 1 || got[0] != "tool" {
			t.Errorf("expected progress forwarded, got %v", got)
		}
	})

	t.Run("failure", func(t *testing.T) {
		a := NewAssistant(NameAssistant, &stubAgent{err: errors.New("agent: starting query: boom")}, testLogger())
		resp := a.HandleMessage(ctx, message.New("queue", NameAssistant, message.KindUserMessage, message.UserText{Text: "q"}))
		e, _ := resp.Payload.(message.Error)
		if resp.Kind != message.KindError || e.Aborted || !strings.Contains(e.Message, "boom") {
			t.Errorf("expected generic error carrying message, got %+v", e)
		}
	})

	t.Run("aborted", func(t *testing.T) {
		a := NewAssistant(NameAssistant, &stubAgent{err: fmt.Errorf("%w: %w", agent.ErrAborted, context.Canceled)}, testLogger())
		resp := a.HandleMessage(ctx, message.New("queue", NameAssistant, message.KindUserMessage, message.UserText{Text: "q"}))
		e, _ := resp.Payload.(message.Error)
		if !e.Aborted {
			t.Errorf("expected aborted error, got %+v", e)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		stub := &stubAgent{}
		a := NewAssistant(NameAssistant, stub, testLogger())
		resp := a.HandleMessage(ctx, message.New("queue", NameAssistant, message.KindUserMessage, message.UserText{}))
		if resp.Kind != message.KindError || len(stub.prompts) != 0 {
			t.Errorf("expected error without querying, got %s", resp.Kind)
		}
	})

	t.Run("control", func(t *testing.T) {
		stub := &stubAgent{}
		a := NewAssistant(NameAssistant, stub, testLogger())
		if resp := a.HandleMessage(ctx, message.New("sys", NameAssistant, message.KindResetSession, message.SystemRequest{})); resp.Kind != message.KindSessionReset {
			t.Errorf("expected session-reset, got %s", resp.Kind)
		}
		if resp := a.HandleMessage(ctx, message.New("sys", NameAssistant, message.KindStopTasks, message.SystemRequest{})); resp.Kind != message.KindTasksStopped {
			t.Errorf("expected tasks-stopped, got %s", resp.Kind)
		}
		if stub.resets != 1 || !stub.aborted {
			t.Errorf("expected reset and abort forwarded, got resets=%d aborted=%v", stub.resets, stub.aborted)
		}
	})
}

package actors

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// DefaultThinkDuration is used when a think request carries no duration.
const DefaultThinkDuration = time.Second

// CannedReplies are the debug actor's random responses.
var CannedReplies = []string{
	"I see, that's interesting.",
	"Understood!",
	"Could you tell me more details?",
	"Let me think about that...",
	"That's a great idea!",
}

// Debug stands in for the real agent during local testing.
type Debug struct {
	base

	// pick returns an index in [0, n).
	pick func(n int) int
}

// NewDebug creates a debug actor registered under name.
func NewDebug(name string, logger *slog.Logger) *Debug {
	return &Debug{base: newBase(name, logger), pick: rand.IntN}
}

// HandleMessage implements bus.Actor.
func (d *Debug) HandleMessage(ctx context.Context, env message.Envelope) *message.Envelope {
	switch env.Kind {
	case message.KindEcho:
		return d.reply(env, env.From, message.KindEchoResponse, env.Payload)

	case message.KindRandom:
		return d.reply(env, env.From, message.KindRandomResponse, message.TextReply{Text: d.random()})

	case message.KindThink:
		p, _ := env.Payload.(message.Think)
		dur := p.Duration
		if dur <= 0 {
			dur = DefaultThinkDuration
		}
		timer := time.NewTimer(dur)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return d.reply(env, env.From, message.KindError, message.Error{Message: "Query was aborted", Aborted: true})
		}
		return d.reply(env, env.From, message.KindThinkResponse, message.ThinkResult{Text: "Finished thinking!", Duration: dur})

	case message.KindChat:
		return d.reply(env, env.From, message.KindChatResponse, message.TextReply{Text: d.chat(env.Text())})

	case message.KindUserMessage:
		return d.reply(env, env.From, message.KindAssistantResponse, message.TextReply{Text: d.chat(env.Text())})

	// The debug actor keeps no session; control requests are acknowledged
	// so it can stand in for the assistant.
	case message.KindResetSession:
		return d.reply(env, env.From, message.KindSessionReset, message.TextReply{Text: "Session reset"})
	case message.KindStopTasks:
		return d.reply(env, env.From, message.KindTasksStopped, message.TextReply{Text: "No query in flight"})

	default:
		return d.unknown(env)
	}
}

func (d *Debug) random() string {
	return CannedReplies[d.pick(len(CannedReplies))]
}

func (d *Debug) chat(input string) string {
	switch {
	case strings.Contains(input, "task"), strings.Contains(input, "Task"):
		return "Today's tasks are as follows:\n1. Conduct code review\n2. Update documentation\n3. Add test cases"
	case strings.Contains(input, "hello"), strings.Contains(input, "Hello"),
		strings.Contains(input, "hi"), strings.Contains(input, "Hi"):
		return "Hello! How are you?"
	case strings.Contains(input, "how are you"), strings.Contains(input, "How are you"):
		return "I'm doing well! What did you do today?"
	case strings.Contains(input, "？"):
		return "That's a good question. Let me think about it more."
	default:
		return d.random()
	}
}

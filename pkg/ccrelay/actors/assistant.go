package actors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// Agent is the session-owning conversational backend behind the assistant.
// *agent.Adapter implements it.
type Agent interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Query(ctx context.Context, prompt string, progress message.ProgressFunc) (string, error)
	ResetSession()
	SessionID() string
	Abort() bool
}

// Assistant forwards user text to the agent and surfaces its failures as
// error-typed responses.
type Assistant struct {
	base
	agent Agent
}

// NewAssistant creates the assistant actor under name.
func NewAssistant(name string, a Agent, logger *slog.Logger) *Assistant {
	return &Assistant{base: newBase(name, logger), agent: a}
}

// Start starts the underlying agent.
func (a *Assistant) Start(ctx context.Context) error {
	if err := a.agent.Start(ctx); err != nil {
		return err
	}
	return a.base.Start(ctx)
}

// Stop stops the agent, aborting any call it still holds.
func (a *Assistant) Stop(ctx context.Context) error {
	if err := a.agent.Stop(ctx); err != nil {
		return err
	}
	return a.base.Stop(ctx)
}

// HandleMessage implements bus.Actor.
func (a *Assistant) HandleMessage(ctx context.Context, env message.Envelope) *message.Envelope {
	switch env.Kind {
	case message.KindUserMessage, message.KindChat:
		text := env.Text()
		if text == "" {
			return a.fail(env, "No text provided for Claude")
		}
		var progress message.ProgressFunc
		if p, ok := env.Payload.(message.UserText); ok {
			progress = p.Progress
		}

		reply, err := a.agent.Query(ctx, text, progress)
		if err != nil {
			aborted := errors.Is(err, agent.ErrAborted)
			if aborted {
				a.logger.Info("query aborted")
			} else {
				a.logger.Error("query failed", "error", err)
			}
			return a.reply(env, env.From, message.KindError, message.Error{Message: err.Error(), Aborted: aborted})
		}
		return a.reply(env, env.From, message.KindAgentResponse, message.AgentReply{
			Text:      reply,
			SessionID: a.agent.SessionID(),
		})

	case message.KindResetSession:
		a.agent.ResetSession()
		return a.reply(env, env.From, message.KindSessionReset, message.TextReply{Text: "Session reset"})

	case message.KindStopTasks:
		stopped := a.agent.Abort()
		text := "No query in flight"
		if stopped {
			text = "Query aborted"
		}
		return a.reply(env, env.From, message.KindTasksStopped, message.TextReply{Text: text})

	default:
		return a.unknown(env)
	}
}

var _ Agent = (*agent.Adapter)(nil)

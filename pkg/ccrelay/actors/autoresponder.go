package actors

import (
	"context"
	"log/slog"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/watchdog"
)

// AutoResponderConfig holds the auto-responder thresholds.
type AutoResponderConfig struct {
	// IdleTimeout is used when an idle check carries no timeout.
	// Default: 5 minutes.
	IdleTimeout time.Duration

	// MaxExecutionTime is used when an execution check carries no budget.
	// Default: 6 hours.
	MaxExecutionTime time.Duration
}

// AutoResponder answers the watchdog message kinds. Apart from its
// construction-time start time and thresholds it holds no state.
type AutoResponder struct {
	base

	cfg       AutoResponderConfig
	startTime time.Time
	now       func() time.Time
}

// NewAutoResponder creates the auto-responder. Zero thresholds take defaults.
func NewAutoResponder(cfg AutoResponderConfig, logger *slog.Logger) *AutoResponder {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = watchdog.DefaultIdleTimeout
	}
	if cfg.MaxExecutionTime <= 0 {
		cfg.MaxExecutionTime = watchdog.DefaultMaxExecutionTime
	}
	return &AutoResponder{
		base:      newBase(NameAutoResponder, logger),
		cfg:       cfg,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// HandleMessage implements bus.Actor.
func (a *AutoResponder) HandleMessage(_ context.Context, env message.Envelope) *message.Envelope {
	now := a.now()

	switch env.Kind {
	case message.KindCheckTasks:
		p, _ := env.Payload.(message.CheckTasks)
		return a.reply(env, env.From, message.KindTaskScheduled, message.ScheduledTasks{
			Tasks: watchdog.ScheduleTasks(now, p.Tasks),
		})

	case message.KindIdleCheck:
		p, _ := env.Payload.(message.IdleCheck)
		last := p.LastActivity
		if last.IsZero() {
			last = now
		}
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = a.cfg.IdleTimeout
		}
		trigger, ok := watchdog.CheckIdle(now, last, timeout)
		if !ok {
			return nil
		}
		a.logger.Info("idle timeout exceeded", "idle", trigger.IdleTime.String())
		return a.reply(env, env.From, message.KindTriggerNextTask, trigger)

	case message.KindCheckExecutionTime:
		p, _ := env.Payload.(message.ExecutionCheck)
		start := p.StartTime
		if start.IsZero() {
			start = a.startTime
		}
		budget := p.MaxExecutionTime
		if budget <= 0 {
			budget = a.cfg.MaxExecutionTime
		}
		status := watchdog.CheckExecutionTime(now, start, budget)
		if status.ShouldStop {
			return a.reply(env, env.From, message.KindExecutionTimeExceeded, status)
		}
		return a.reply(env, env.From, message.KindExecutionTimeOK, status)

	case message.KindSuggestTask:
		p, _ := env.Payload.(message.SuggestTask)
		return a.reply(env, env.From, message.KindTaskSuggestion, message.TaskSuggestions{
			Suggestions: watchdog.SuggestTasks(p.Context),
		})

	case message.KindTaskStatusUpdate:
		return a.reply(env, env.From, message.KindTaskAcknowledged, message.TaskAck{
			Message:    "Task status confirmed.",
			NextAction: "continue-monitoring",
		})

	case message.KindChat, message.KindUserMessage:
		return a.reply(env, env.From, message.KindChatResponse, message.TextReply{Text: watchdog.ChatReply(env.Text())})

	default:
		return a.unknown(env)
	}
}

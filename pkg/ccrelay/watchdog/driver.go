package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/queue"
	"github.com/robfig/cron/v3"
)

// DefaultInterval is how often the driver evaluates the watchdog.
const DefaultInterval = time.Minute

// Turns is the queue surface the driver needs. *queue.Queue implements it.
type Turns interface {
	Busy() bool
	LastActivity() time.Time
	LastReply() string
	Enqueue(t queue.Task) int
	ProcessNext(ctx context.Context)
}

// DriverConfig configures the Never-Sleep driver.
type DriverConfig struct {
	// Interval between evaluations. Default: 1 minute.
	Interval time.Duration

	// IdleTimeout is sent with every idle check. Zero lets the responder
	// apply its own default.
	IdleTimeout time.Duration

	// Responder is the actor answering watchdog checks. Default: "auto-responder".
	Responder string

	// Target is the actor synthetic turns are addressed to. Default: "assistant".
	Target string
}

// Driver keeps the agent busy: on every tick it asks the auto-responder
// whether the execution budget is spent and whether the conversation has
// been idle too long, and if so queues the next suggested task.
type Driver struct {
	bus    queue.Sender
	turns  Turns
	out    queue.Messenger
	chatID func() string
	msgs   i18n.Catalog
	cfg    DriverConfig
	logger *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	disabled bool
}

// NewDriver creates a Never-Sleep driver. chatID returns the conversation
// announcements and synthetic turns belong to.
func NewDriver(bus queue.Sender, turns Turns, out queue.Messenger, chatID func() string, msgs i18n.Catalog, cfg DriverConfig, logger *slog.Logger) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Responder == "" {
		cfg.Responder = "auto-responder"
	}
	if cfg.Target == "" {
		cfg.Target = "assistant"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		bus:    bus,
		turns:  turns,
		out:    out,
		chatID: chatID,
		msgs:   msgs,
		cfg:    cfg,
		logger: logger.With("component", "never-sleep"),
	}
}

// Start schedules the evaluation on an @every cron entry.
func (d *Driver) Start(ctx context.Context) error {
	c := cron.New()
	schedule := "@every " + d.cfg.Interval.String()
	if _, err := c.AddFunc(schedule, func() { d.Tick(ctx) }); err != nil {
		return fmt.Errorf("watchdog: scheduling %q: %w", schedule, err)
	}

	d.mu.Lock()
	d.cron = c
	d.mu.Unlock()

	c.Start()
	d.logger.Info("never-sleep driver started", "interval", d.cfg.Interval.String())
	return nil
}

// Stop halts the schedule and waits briefly for a running tick.
func (d *Driver) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-time.After(10 * time.Second):
		d.logger.Warn("never-sleep stop timed out")
	}
	d.logger.Info("never-sleep driver stopped")
}

// Disabled reports whether the execution budget has stopped the driver.
func (d *Driver) Disabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// Tick runs one evaluation. It reports whether a synthetic turn was queued.
func (d *Driver) Tick(ctx context.Context) bool {
	if d.Disabled() || ctx.Err() != nil {
		return false
	}
	if d.turns.Busy() {
		d.logger.Debug("queue busy, skipping tick")
		return false
	}

	chatID := d.chatID()

	resp := d.bus.Send(ctx, message.New("never-sleep", d.cfg.Responder, message.KindCheckExecutionTime, message.ExecutionCheck{}))
	if resp != nil && resp.Kind == message.KindExecutionTimeExceeded {
		d.disable()
		d.logger.Info("execution budget exhausted")
		d.announce(ctx, chatID, d.msgs.BudgetExceeded)
		return false
	}

	resp = d.bus.Send(ctx, message.New("never-sleep", d.cfg.Responder, message.KindIdleCheck, message.IdleCheck{
		LastActivity: d.turns.LastActivity(),
		Timeout:      d.cfg.IdleTimeout,
	}))
	if resp == nil || resp.Kind != message.KindTriggerNextTask {
		return false
	}
	trigger, _ := resp.Payload.(message.IdleTrigger)

	resp = d.bus.Send(ctx, message.New("never-sleep", d.cfg.Responder, message.KindSuggestTask, message.SuggestTask{
		Context: d.turns.LastReply(),
	}))
	if resp == nil {
		return false
	}
	suggestions, _ := resp.Payload.(message.TaskSuggestions)
	if len(suggestions.Suggestions) == 0 {
		return false
	}
	next := suggestions.Suggestions[0]

	d.logger.Info("idle timeout, queueing next task", "idle", trigger.IdleTime.String(), "task", next)
	d.announce(ctx, chatID, fmt.Sprintf(d.msgs.IdleTriggeredf, trigger.IdleTime.Round(time.Second), next))

	d.turns.Enqueue(queue.Task{
		Envelope: message.New(d.cfg.Responder, d.cfg.Target, message.KindUserMessage, message.UserText{
			Text:         next,
			OriginalFrom: d.cfg.Responder,
			ChannelID:    chatID,
		}),
		ChatID: chatID,
	})
	d.turns.ProcessNext(ctx)
	return true
}

func (d *Driver) disable() {
	d.mu.Lock()
	d.disabled = true
	c := d.cron
	d.mu.Unlock()

	// Stop from inside a job must not wait for the job itself.
	if c != nil {
		c.Stop()
	}
}

func (d *Driver) announce(ctx context.Context, chatID, text string) {
	if d.out == nil {
		return
	}
	if _, err := d.out.Send(ctx, chatID, text); err != nil {
		d.logger.Warn("failed to announce", "error", err)
	}
}

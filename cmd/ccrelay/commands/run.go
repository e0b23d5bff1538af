package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/actors"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/bus"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/channels/discord"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/config"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/queue"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/relay"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/shell"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/watchdog"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

func runRelay(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	cont, _ := flags.GetBool("continue")
	resume, _ := flags.GetString("resume")
	sel, _ := flags.GetBool("select")
	list, _ := flags.GetBool("list-sessions")
	neverSleep, _ := flags.GetBool("never-sleep")
	neverSleep = neverSleep || rt.cfg.NeverSleep.Enabled

	if err := config.ValidateOptions(config.Options{Continue: cont, Resume: resume, Select: sel}); err != nil {
		switch {
		case errors.Is(err, config.ErrConflictContinueResume):
			return errors.New(rt.msgs.ContinueResumeConflict)
		case errors.Is(err, config.ErrConflictSelect):
			return errors.New(rt.msgs.SelectConflict)
		}
		return err
	}

	if list {
		return listSessions(cmd, rt)
	}
	if sel {
		if resume, err = selectSession(cmd, rt); err != nil {
			return err
		}
	}

	opts := rt.cfg.Agent
	opts.Resume = resume
	opts.ContinueLast = cont

	if rt.debug && !rt.cfg.HasDiscord() {
		return runDemo(cmd, rt, neverSleep)
	}
	if err := rt.cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := rt.openStore()
	if st != nil {
		defer st.Close()
	}

	b, err := rt.buildBus(opts, st)
	if err != nil {
		return err
	}
	if err := b.StartAll(ctx); err != nil {
		return err
	}

	workDir, _ := os.Getwd()
	if rt.cfg.Claude.WorkDir != "" {
		workDir = rt.cfg.Claude.WorkDir
	}
	dc := discord.New(rt.cfg.Discord, rt.msgs, discord.SessionInfo{
		StartTime:  time.Now(),
		WorkDir:    workDir,
		Mode:       sessionMode(rt, opts),
		NeverSleep: neverSleep,
	}, rt.logger)
	if err := dc.Connect(ctx); err != nil {
		_ = b.StopAll(context.Background())
		return err
	}

	q := queue.New(b, dc, rt.msgs, rt.cfg.Delivery, rt.logger)
	executor := shell.NewExecutor(rt.cfg.Shell, rt.msgs, rt.logger)
	r := relay.New(b, q, dc, executor, rt.msgs, relay.Config{}, cancel, rt.logger)

	var driver *watchdog.Driver
	if neverSleep {
		driver = watchdog.NewDriver(b, q, dc, dc.ChatID, rt.msgs, watchdog.DriverConfig{
			Interval:    rt.cfg.NeverSleep.Interval,
			IdleTimeout: rt.cfg.NeverSleep.IdleTimeout,
		}, rt.logger)
		if err := driver.Start(ctx); err != nil {
			rt.logger.Error("failed to start never-sleep driver", "error", err)
			driver = nil
		}
	}

	rt.logger.Info("ccrelay running. Press Ctrl+C to stop.",
		"mode", sessionMode(rt, opts),
		"never_sleep", neverSleep,
		"thread_id", dc.ChatID(),
	)

	if err := r.Run(ctx, dc.Receive()); err != nil && !errors.Is(err, context.Canceled) {
		rt.logger.Error("relay stopped", "error", err)
	}

	rt.logger.Info("shutdown signal received, stopping...")

	// Graceful shutdown with timeout.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if driver != nil {
			driver.Stop()
		}
		q.Clear()
		q.AbortCurrent()
		r.Wait()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := b.StopAll(stopCtx); err != nil {
			rt.logger.Warn("stopping actors", "error", err)
		}
		h := dc.Health()
		rt.logger.Info("discord channel stats",
			"connected", h.Connected,
			"errors", h.ErrorCount,
			"last_message_at", h.LastMessageAt,
		)
		if err := dc.Disconnect(); err != nil {
			rt.logger.Warn("disconnecting discord", "error", err)
		}
	}()

	select {
	case <-done:
		rt.logger.Info("ccrelay stopped gracefully")
	case <-time.After(shutdownTimeout):
		rt.logger.Warn("shutdown timed out, forcing exit")
	}
	return nil
}

// sessionMode labels the session for the thread header.
func sessionMode(rt *runtime, opts agent.Options) string {
	switch {
	case rt.debug:
		return rt.msgs.ModeDebug
	case opts.Resume != "":
		return rt.msgs.ModeResume
	case opts.ContinueLast:
		return rt.msgs.ModeContinue
	default:
		return rt.msgs.ModeNew
	}
}

// runDemo runs a scripted conversation over the bus without Discord.
func runDemo(cmd *cobra.Command, rt *runtime, neverSleep bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	b, err := rt.buildBus(rt.cfg.Agent, nil)
	if err != nil {
		return err
	}
	if err := b.StartAll(ctx); err != nil {
		return err
	}
	defer b.StopAll(context.Background())

	fmt.Fprintf(out, "%s\n\n", rt.msgs.DebugRunning)

	routed := b.Send(ctx, message.New("discord", actors.NameUser, message.KindDiscordMessage, message.ChatMessage{
		Text: "Hello! Please tell me today's tasks.",
	}))
	if routed != nil {
		fmt.Fprintf(out, "%s %s\n", rt.msgs.DebugUserResponse, describe(*routed))
		if reply := b.Send(ctx, *routed); reply != nil {
			fmt.Fprintf(out, "%s %s\n", rt.msgs.DebugAssistantResponse, describe(*reply))
		}
	}

	if neverSleep {
		fmt.Fprintf(out, "\n%s\n", rt.msgs.DebugNeverSleep)
		idle := b.Send(ctx, message.New("timer", actors.NameAutoResponder, message.KindIdleCheck, message.IdleCheck{
			LastActivity: time.Now().Add(-6 * time.Minute),
			Timeout:      watchdog.DefaultIdleTimeout,
		}))
		if idle != nil {
			fmt.Fprintf(out, "%s %s\n", rt.msgs.DebugAutoResponder, describe(*idle))
		}
	}
	return nil
}

func describe(env message.Envelope) string {
	return fmt.Sprintf("[%s -> %s] %s %+v", env.From, env.To, env.Kind, env.Payload)
}

var _ queue.Sender = (*bus.Bus)(nil)

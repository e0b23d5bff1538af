package commands

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/channels"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/queue"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/relay"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/shell"
	"github.com/spf13/cobra"
)

// newChatCmd creates the `ccrelay chat` command: the same relay pipeline
// as the Discord bot, driven from a local prompt.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent from the terminal",
		Long: `Starts an interactive prompt wired to the same actors, queue and
commands as the Discord relay. Ctrl+C aborts the running turn; !exit or
Ctrl+D quits.

Examples:
  ccrelay chat
  ccrelay chat --debug
  ccrelay chat --continue`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().BoolP("continue", "c", false, "continue the most recent session")
	cmd.Flags().StringP("resume", "r", "", "resume the session with this id")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	cont, _ := cmd.Flags().GetBool("continue")
	resume, _ := cmd.Flags().GetString("resume")
	if cont && resume != "" {
		return errors.New(rt.msgs.ContinueResumeConflict)
	}
	opts := rt.cfg.Agent
	opts.Resume = resume
	opts.ContinueLast = cont

	ctx, cancel := context.WithCancel(cmd.Context())
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
	defer b.StopAll(context.Background())

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	console := channels.NewConsole(rl.Stdout())
	delivery := rt.cfg.Delivery
	delivery.ChunkDelay = -1
	q := queue.New(b, console, rt.msgs, delivery, rt.logger)
	executor := shell.NewExecutor(rt.cfg.Shell, rt.msgs, rt.logger)
	r := relay.New(b, q, console, executor, rt.msgs, relay.Config{Source: "console", ExitDelay: -1}, cancel, rt.logger)

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Ctrl+C while a turn runs aborts only that turn.
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		r.Handle(turnCtx, &channels.IncomingMessage{
			Channel: "console",
			From:    "local",
			ChatID:  "console",
			Content: line,
		})
		r.Wait()
		stop()
	}
	return nil
}

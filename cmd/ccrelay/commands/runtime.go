package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/actors"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent/claudecli"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/bus"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/config"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/store"
	"github.com/spf13/cobra"
)

// runtime is the state shared by every command: configuration, message
// catalog and root logger.
type runtime struct {
	cfg    *config.Config
	msgs   i18n.Catalog
	logger *slog.Logger
	debug  bool
}

// loadRuntime resolves configuration, locale and logger from the flags.
func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	pflags := cmd.Root().PersistentFlags()

	path, _ := pflags.GetString("config")
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	locale := i18n.Detect()
	flagLocale, _ := pflags.GetString("locale")
	for _, l := range []string{flagLocale, cfg.Locale} {
		if l == "" {
			continue
		}
		if locale, err = i18n.Parse(l); err != nil {
			return nil, err
		}
		break
	}

	verbose, _ := pflags.GetBool("verbose")
	debug, _ := pflags.GetBool("debug")

	return &runtime{
		cfg:    cfg,
		msgs:   i18n.For(locale),
		logger: newLogger(os.Stderr, cfg.Logging, verbose),
		debug:  debug,
	}, nil
}

// newLogger builds the root logger.
func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// openStore opens the session index. A failure is logged and disables
// session recording rather than aborting the run.
func (rt *runtime) openStore() *store.Store {
	st, err := store.Open(rt.cfg.Database.Path)
	if err != nil {
		rt.logger.Warn("session index unavailable", "path", rt.cfg.Database.Path, "error", err)
		return nil
	}
	return st
}

// buildBus registers the actors. In debug mode the debug responder stands
// in for the assistant; otherwise the assistant drives the Claude CLI.
func (rt *runtime) buildBus(opts agent.Options, st *store.Store) (*bus.Bus, error) {
	b := bus.New(rt.logger)

	b.Register(actors.NewUser(rt.logger))
	b.Register(actors.NewAutoResponder(actors.AutoResponderConfig{
		IdleTimeout:      rt.cfg.NeverSleep.IdleTimeout,
		MaxExecutionTime: rt.cfg.NeverSleep.MaxExecutionTime,
	}, rt.logger))
	b.Register(actors.NewDebug(actors.NameDebug, rt.logger))

	if rt.debug {
		b.Register(actors.NewDebug(actors.NameAssistant, rt.logger))
		return b, nil
	}

	svc := claudecli.New(claudecli.Config{
		Binary:  rt.cfg.Claude.Binary,
		WorkDir: rt.cfg.Claude.WorkDir,
		APIKey:  rt.cfg.Claude.APIKey,
	}, rt.logger)
	if err := svc.Available(); err != nil {
		return nil, fmt.Errorf("claude CLI unavailable: %w", err)
	}

	adapter := agent.NewAdapter(svc, opts, rt.logger)
	if st != nil {
		adapter.SetRecorder(st)
	}
	b.Register(actors.NewAssistant(actors.NameAssistant, adapter, rt.logger))
	return b, nil
}

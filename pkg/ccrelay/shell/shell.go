// Package shell runs chat-issued shell passthrough commands under a safety
// screen, a timeout and an output ceiling.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
)

// dangerousCommands are rejected as the base command, or when invoked by
// path anywhere in the line.
var dangerousCommands = []string{
	"rm", "rmdir", "del", "delete", "format", "fdisk", "dd", "mkfs",
	"shutdown", "reboot", "poweroff", "halt",
	"kill", "killall", "pkill",
	"sudo", "su", "chmod", "chown", "mount", "umount",
	">", ">>",
}

// forbiddenTokens enable pipes, redirection, chaining or substitution.
// Line breaks chain commands under sh -c just like ";".
var forbiddenTokens = []string{"|", ">", "<", ";", "&", "`", "$(", "\n", "\r"}

// Config configures the executor.
type Config struct {
	// Timeout bounds a single command. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxOutput is the number of output characters shown. Default: 1800.
	MaxOutput int `yaml:"max_output"`

	// WorkDir is where commands run. Empty = current directory.
	WorkDir string `yaml:"work_dir"`
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		MaxOutput: 1800,
	}
}

// Executor runs passthrough commands through `sh -c`.
type Executor struct {
	cfg    Config
	msgs   i18n.Catalog
	logger *slog.Logger
}

// NewExecutor creates an executor. Zero config fields take defaults.
func NewExecutor(cfg Config, msgs i18n.Catalog, logger *slog.Logger) *Executor {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = def.MaxOutput
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg, msgs: msgs, logger: logger.With("component", "shell")}
}

// IsSafe reports whether line passes the safety screen.
func IsSafe(line string) bool {
	lower := strings.ToLower(line)
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	base := fields[0]

	for _, d := range dangerousCommands {
		if base == d || strings.Contains(lower, "/"+d+" ") || strings.Contains(lower, `\`+d+" ") {
			return false
		}
	}
	for _, tok := range forbiddenTokens {
		if strings.Contains(line, tok) {
			return false
		}
	}
	return true
}

// Run executes line and returns the chat-ready reply. Failures are
// rendered into the reply rather than returned.
func (e *Executor) Run(ctx context.Context, line string) string {
	line = strings.TrimSpace(line)
	if !IsSafe(line) {
		e.logger.Warn("command rejected", "command", line)
		return e.msgs.CommandBlocked
	}

	base := strings.Fields(line)[0]
	if _, err := exec.LookPath(base); err != nil {
		return fmt.Sprintf(e.msgs.CommandNotFoundf, base)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", line)
	if e.cfg.WorkDir != "" {
		cmd.Dir = e.cfg.WorkDir
	}
	KillGroupOnCancel(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Info("executing command", "command", line)
	err := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf(e.msgs.CommandTimeoutf, e.cfg.Timeout)
	}

	output := strings.TrimSpace(stdout.String())
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Sprintf(e.msgs.CommandErrorf, err.Error())
		}
		if output == "" {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return fmt.Sprintf(e.msgs.CommandErrorf, msg)
		}
	}

	return e.format(output)
}

func (e *Executor) format(output string) string {
	if output == "" {
		return e.msgs.CommandNoOutput
	}
	r := []rune(output)
	if len(r) > e.cfg.MaxOutput {
		return "```\n" + string(r[:e.cfg.MaxOutput]) + "\n```\n\n" + fmt.Sprintf(e.msgs.OutputTruncatedf, e.cfg.MaxOutput)
	}
	return "```\n" + output + "\n```"
}

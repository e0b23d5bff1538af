// Package config loads the ccrelay configuration from an optional YAML
// file, .env files, environment variables and the OS keyring, and
// validates command-line session options.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/channels/discord"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/queue"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/shell"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/watchdog"
)

// Config is the complete ccrelay configuration.
type Config struct {
	// Locale is "en" or "ja". Empty means detect from the environment.
	Locale string `yaml:"locale"`

	Discord    discord.Config   `yaml:"discord"`
	Claude     ClaudeConfig     `yaml:"claude"`
	Agent      agent.Options    `yaml:"agent"`
	Delivery   queue.Config     `yaml:"delivery"`
	Shell      shell.Config     `yaml:"shell"`
	NeverSleep NeverSleepConfig `yaml:"never_sleep"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ClaudeConfig configures the Claude Code CLI.
type ClaudeConfig struct {
	// Binary is the CLI executable. Default: "claude".
	Binary string `yaml:"binary"`

	// APIKey is exported to the CLI as ANTHROPIC_API_KEY when set.
	APIKey string `yaml:"api_key"`

	// WorkDir is the agent's working directory. Empty = current directory.
	WorkDir string `yaml:"work_dir"`
}

// NeverSleepConfig configures autonomous continuation.
type NeverSleepConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Interval         time.Duration `yaml:"interval"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

// DatabaseConfig configures the session index.
type DatabaseConfig struct {
	// Path is the SQLite file. Default: ./data/ccrelay.db.
	Path string `yaml:"path"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Default: text.
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Claude:   ClaudeConfig{Binary: "claude"},
		Agent:    agent.DefaultOptions(),
		Delivery: queue.DefaultConfig(),
		Shell:    shell.DefaultConfig(),
		NeverSleep: NeverSleepConfig{
			Interval:         watchdog.DefaultInterval,
			IdleTimeout:      watchdog.DefaultIdleTimeout,
			MaxExecutionTime: watchdog.DefaultMaxExecutionTime,
		},
		Database: DatabaseConfig{Path: "./data/ccrelay.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Validation errors.
var (
	ErrMissingToken     = errors.New("discord token is required (set CC_DISCORD_TOKEN)")
	ErrMissingChannelID = errors.New("discord channel id is required (set CC_DISCORD_CHANNEL_ID)")
	ErrMissingUserID    = errors.New("discord user id is required (set CC_DISCORD_USER_ID)")

	ErrConflictContinueResume = errors.New("--continue and --resume cannot be used together")
	ErrConflictSelect         = errors.New("--select cannot be used with --continue or --resume")
)

// Validate checks the settings required to run against Discord.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, ErrMissingToken)
	}
	if c.Discord.ChannelID == "" {
		errs = append(errs, ErrMissingChannelID)
	}
	if c.Discord.UserID == "" {
		errs = append(errs, ErrMissingUserID)
	}
	if c.Agent.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("agent.max_turns must not be negative, got %d", c.Agent.MaxTurns))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HasDiscord reports whether any Discord credential is configured.
func (c *Config) HasDiscord() bool {
	return c.Discord.Token != "" || c.Discord.ChannelID != ""
}

// Options are the session-selection flags of the root command.
type Options struct {
	Continue bool
	Resume   string
	Select   bool
}

// ValidateOptions enforces that at most one session mode is requested.
func ValidateOptions(o Options) error {
	if o.Continue && o.Resume != "" {
		return ErrConflictContinueResume
	}
	if o.Select && (o.Continue || o.Resume != "") {
		return ErrConflictSelect
	}
	return nil
}

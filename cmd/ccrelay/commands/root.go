// Package commands implements the ccrelay CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
// Running the root command starts the Discord relay.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ccrelay",
		Short: "ccrelay - drive Claude Code from a Discord thread",
		Long: `ccrelay relays a Discord thread to a Claude Code session.
Messages posted by the configured user are queued and answered one at a
time; "!" commands reset, stop or exit the session or run shell commands.

Examples:
  ccrelay
  ccrelay --continue
  ccrelay --resume <session-id>
  ccrelay --select
  ccrelay --never-sleep
  ccrelay chat`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRelay,
	}

	rootCmd.AddCommand(
		newSessionsCmd(),
		newChatCmd(),
		newTokenCmd(),
	)

	flags := rootCmd.Flags()
	flags.BoolP("continue", "c", false, "continue the most recent session")
	flags.StringP("resume", "r", "", "resume the session with this id")
	flags.Bool("list-sessions", false, "list resumable sessions and exit")
	flags.BoolP("select", "s", false, "pick a session to resume interactively")
	flags.Bool("never-sleep", false, "keep working on suggested tasks when idle")

	// Global flags.
	pflags := rootCmd.PersistentFlags()
	pflags.String("config", "", "path to the configuration file")
	pflags.BoolP("debug", "d", false, "use the local debug responder instead of Claude")
	pflags.StringP("locale", "l", "", "message language (ja or en)")
	pflags.BoolP("verbose", "v", false, "enable debug logs")

	return rootCmd
}

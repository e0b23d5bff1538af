package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newTokenCmd creates the `ccrelay token` command group, which manages the
// Discord bot token kept in the OS keyring.
func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Discord bot token in the OS keyring",
		Long: `Stores the Discord bot token in the OS keyring so it does not have to
live in a config or .env file. CC_DISCORD_TOKEN and the config file still
take precedence over the keyring.

Examples:
  ccrelay token set
  echo "$TOKEN" | ccrelay token set
  ccrelay token delete`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Store the bot token",
			Args:  cobra.NoArgs,
			RunE:  runTokenSet,
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the stored bot token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := config.DeleteKeyring(config.KeyringDiscordToken); err != nil {
					return fmt.Errorf("removing token from keyring: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Discord token removed from OS keyring.")
				return nil
			},
		},
	)
	return cmd
}

func runTokenSet(cmd *cobra.Command, _ []string) error {
	token, err := readToken(cmd.InOrStdin())
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("empty token")
	}
	if err := config.StoreKeyring(config.KeyringDiscordToken, token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Discord token stored in OS keyring.")
	return nil
}

// readToken prompts with a masked input on a terminal and reads one line
// otherwise.
func readToken(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		var token string
		err := huh.NewInput().
			Title("Discord bot token").
			EchoMode(huh.EchoModePassword).
			Value(&token).
			Run()
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return strings.TrimSpace(token), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

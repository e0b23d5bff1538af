package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// sessionListLimit bounds listings and the picker.
const sessionListLimit = 20

// newSessionsCmd creates the `ccrelay sessions` command.
func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List resumable Claude sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			return listSessions(cmd, rt)
		},
	}
}

func listSessions(cmd *cobra.Command, rt *runtime) error {
	st, err := store.Open(rt.cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.List(cmd.Context(), sessionListLimit)
	if err != nil {
		return err
	}
	printSessions(cmd.OutOrStdout(), rt.msgs, sessions)
	return nil
}

func printSessions(w io.Writer, msgs i18n.Catalog, sessions []store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, msgs.NoSessions)
		return
	}
	for _, s := range sessions {
		fmt.Fprintln(w, s.Summary())
	}
}

// selectSession lets the user pick a session to resume. It needs an
// interactive terminal.
func selectSession(cmd *cobra.Command, rt *runtime) (string, error) {
	st, err := store.Open(rt.cfg.Database.Path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	sessions, err := st.List(cmd.Context(), sessionListLimit)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", errors.New(rt.msgs.NoSessions)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("--select needs an interactive terminal")
	}

	options := make([]huh.Option[string], 0, len(sessions))
	for _, s := range sessions {
		options = append(options, huh.NewOption(s.Summary(), s.ID))
	}

	var id string
	err = huh.NewSelect[string]().
		Title("Select a session to resume").
		Options(options...).
		Value(&id).
		Run()
	if err != nil {
		return "", fmt.Errorf("selecting session: %w", err)
	}
	if id == "" {
		return "", errors.New(rt.msgs.SessionNotSelected)
	}
	return id, nil
}

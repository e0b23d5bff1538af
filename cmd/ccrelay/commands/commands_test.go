package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/config"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/store"
	"github.com/zalando/go-keyring"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func TestRootFlags(t *testing.T) {
	root := NewRootCmd("test")

	for _, name := range []string{"continue", "resume", "list-sessions", "select", "never-sleep"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
	for _, name := range []string{"config", "debug", "locale", "verbose"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}

	shorts := map[string]string{"c": "continue", "r": "resume", "s": "select"}
	for short, long := range shorts {
		if f := root.Flags().ShorthandLookup(short); f == nil || f.Name != long {
			t.Errorf("-%s does not map to --%s", short, long)
		}
	}

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"sessions", "chat", "token"} {
		if !strings.Contains(strings.Join(names, ","), want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}
}

func TestConflictingFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"continue and resume", []string{"-c", "-r", "abc"}, i18n.For(i18n.English).ContinueResumeConflict},
		{"select and continue", []string{"-s", "-c"}, i18n.For(i18n.English).SelectConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvDiscordToken, "")
			root := NewRootCmd("test")
			root.SetArgs(append(tt.args, "--locale", "en", "--config", ""))
			root.SetOut(&bytes.Buffer{})

			err := root.ExecuteContext(context.Background())
			if err == nil || err.Error() != tt.want {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSessionMode(t *testing.T) {
	msgs := i18n.For(i18n.English)

	tests := []struct {
		name  string
		debug bool
		opts  agent.Options
		want  string
	}{
		{"new", false, agent.Options{}, msgs.ModeNew},
		{"resume", false, agent.Options{Resume: "abc"}, msgs.ModeResume},
		{"continue", false, agent.Options{ContinueLast: true}, msgs.ModeContinue},
		{"debug wins", true, agent.Options{Resume: "abc"}, msgs.ModeDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &runtime{msgs: msgs, debug: tt.debug}
			if got := sessionMode(rt, tt.opts); got != tt.want {
				t.Errorf("sessionMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&buf, config.LoggingConfig{Level: "warn", Format: "json"}, false)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("json warn logger output = %q", out)
	}

	buf.Reset()
	logger = newLogger(&buf, config.LoggingConfig{Level: "info"}, true)
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("verbose should enable debug")
	}
	logger.Debug("detail")
	if !strings.Contains(buf.String(), "msg=detail") {
		t.Errorf("text logger output = %q", buf.String())
	}
}

func TestPrintSessions(t *testing.T) {
	msgs := i18n.For(i18n.English)

	var buf bytes.Buffer
	printSessions(&buf, msgs, nil)
	if got := strings.TrimSpace(buf.String()); got != msgs.NoSessions {
		t.Errorf("empty listing = %q", got)
	}

	buf.Reset()
	printSessions(&buf, msgs, []store.Session{
		{ID: "s1", FirstPrompt: "one", Turns: 1, UpdatedAt: time.Now()},
		{ID: "s2", FirstPrompt: "two", Turns: 4, UpdatedAt: time.Now()},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "s1") || !strings.Contains(lines[1], "(4 turns)") {
		t.Errorf("listing = %q", lines)
	}
}

func TestDebugDemo(t *testing.T) {
	t.Setenv(config.EnvDiscordToken, "")
	t.Setenv(config.EnvDiscordChannelID, "")

	var out bytes.Buffer
	root := NewRootCmd("test")
	root.SetArgs([]string{"--debug", "--never-sleep", "--locale", "en"})
	root.SetOut(&out)

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	msgs := i18n.For(i18n.English)
	got := out.String()
	for _, want := range []string{
		msgs.DebugRunning,
		msgs.DebugUserResponse + " [user -> auto-responder] user-message",
		msgs.DebugAssistantResponse,
		msgs.DebugAutoResponder + " [auto-responder -> timer] trigger-next-task",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("demo output missing %q\n%s", want, got)
		}
	}
}

func TestTokenSetAndDelete(t *testing.T) {
	run := func(stdin string, args ...string) (string, error) {
		var out bytes.Buffer
		root := NewRootCmd("test")
		root.SetArgs(args)
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(&out)
		err := root.ExecuteContext(context.Background())
		return out.String(), err
	}

	if _, err := run("  bot-token \n", "token", "set"); err != nil {
		t.Fatalf("token set: %v", err)
	}
	if got := config.GetKeyring(config.KeyringDiscordToken); got != "bot-token" {
		t.Errorf("stored token = %q, want %q", got, "bot-token")
	}

	if _, err := run("", "token", "set"); err == nil {
		t.Error("expected error for empty token")
	}

	if _, err := run("", "token", "delete"); err != nil {
		t.Fatalf("token delete: %v", err)
	}
	if got := config.GetKeyring(config.KeyringDiscordToken); got != "" {
		t.Errorf("token still stored after delete: %q", got)
	}
}

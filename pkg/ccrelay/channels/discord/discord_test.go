package discord

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
)

func TestAccepts(t *testing.T) {
	d := New(Config{Token: "t", ChannelID: "parent", UserID: "owner"}, i18n.For(i18n.English), SessionInfo{}, nil)

	tests := []struct {
		name     string
		thread   string
		channel  string
		author   string
		bot      bool
		content  string
		expected bool
	}{
		{"owner in thread", "th", "th", "owner", false, "hello", true},
		{"bot author", "th", "th", "owner", true, "hello", false},
		{"other user", "th", "th", "stranger", false, "hello", false},
		{"parent channel", "th", "parent", "owner", false, "hello", false},
		{"no thread yet", "", "", "owner", false, "hello", false},
		{"blank content", "th", "th", "owner", false, "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.accepts(tt.thread, tt.channel, tt.author, tt.bot, tt.content)
			if got != tt.expected {
				t.Errorf("accepts() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAcceptsAnyUserWhenUnset(t *testing.T) {
	d := New(Config{Token: "t", ChannelID: "parent"}, i18n.For(i18n.English), SessionInfo{}, nil)
	if !d.accepts("th", "th", "anyone", false, "hi") {
		t.Error("expected message to be accepted without a user filter")
	}
}

func TestSessionHeader(t *testing.T) {
	msgs := i18n.For(i18n.English)
	info := SessionInfo{
		StartTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		WorkDir:   "/work",
		Mode:      msgs.ModeNew,
	}

	got := SessionHeader(msgs, info)
	for _, want := range []string{
		"## Session Information",
		"**Start Time**: 2026-01-02T03:04:05Z",
		"**Working Directory**: `/work`",
		"**Mode**: New Session",
		"- `!stop`: Stop running tasks",
		"- Regular message: Ask Claude",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("header missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, msgs.NeverSleepEnabled) {
		t.Error("never-sleep line present when disabled")
	}

	info.NeverSleep = true
	if got := SessionHeader(msgs, info); !strings.Contains(got, msgs.NeverSleepEnabled) {
		t.Error("never-sleep line missing when enabled")
	}
}

func TestSplitDiscordMessage(t *testing.T) {
	if got := splitDiscordMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split: %q", got)
	}

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitDiscordMessage(text, 10)
	if len(got) != 2 || got[0] != strings.Repeat("a", 8)+"\n" || got[1] != strings.Repeat("b", 8) {
		t.Errorf("newline split: %q", got)
	}

	hard := strings.Repeat("x", 25)
	got = splitDiscordMessage(hard, 10)
	if len(got) != 3 || strings.Join(got, "") != hard {
		t.Errorf("hard split: %q", got)
	}
}

func TestSplitDiscordMessageMultibyte(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []int
	}{
		{"fits in characters", strings.Repeat("あ", 1000), 2000, []int{1000}},
		{"hard split", strings.Repeat("あ", 2500), 2000, []int{2000, 500}},
		{"mixed width", strings.Repeat("aあ", 15), 10, []int{10, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitDiscordMessage(tt.text, tt.maxLen)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tt.want))
			}
			for i, chunk := range got {
				if !utf8.ValidString(chunk) {
					t.Errorf("chunk %d is not valid UTF-8", i)
				}
				if n := utf8.RuneCountInString(chunk); n != tt.want[i] {
					t.Errorf("chunk %d has %d characters, want %d", i, n, tt.want[i])
				}
			}
			if strings.Join(got, "") != tt.text {
				t.Error("content not preserved")
			}
		})
	}
}

func TestRuneOffset(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want int
	}{
		{"abc", 2, 2},
		{"abc", 5, 3},
		{"ああa", 1, 3},
		{"ああa", 2, 6},
		{"", 3, 0},
	}

	for _, tt := range tests {
		if got := runeOffset(tt.s, tt.n); got != tt.want {
			t.Errorf("runeOffset(%q, %d) = %d, want %d", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestSendWhenDisconnected(t *testing.T) {
	d := New(Config{}, i18n.For(i18n.English), SessionInfo{}, nil)
	if _, err := d.Send(t.Context(), "c", "x"); err == nil {
		t.Error("expected error when not connected")
	}
	if d.IsConnected() {
		t.Error("new channel reports connected")
	}
	if d.ChatID() != "" {
		t.Error("chat id set before connect")
	}

	h := d.Health()
	if h.Connected || h.ErrorCount != 0 || !h.LastMessageAt.IsZero() {
		t.Errorf("unexpected health before connect: %+v", h)
	}
}

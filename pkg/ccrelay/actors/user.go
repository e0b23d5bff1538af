package actors

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// CommandMarker prefixes chat commands. Matching is case-sensitive.
const CommandMarker = "!"

// HelpCommands is the listing returned by the help command.
var HelpCommands = []string{
	"!reset / !clear - Reset conversation",
	"!stop - Stop running tasks",
	"!exit - Exit bot",
	"!help - Show this help",
	"!<command> - Execute shell command",
}

// User classifies inbound text: commands become system-directed requests,
// everything else is re-addressed to a target actor by keyword. It does no
// I/O.
type User struct {
	base
}

// NewUser creates the user-intent actor.
func NewUser(logger *slog.Logger) *User {
	return &User{base: newBase(NameUser, logger)}
}

// HandleMessage implements bus.Actor.
func (u *User) HandleMessage(_ context.Context, env message.Envelope) *message.Envelope {
	switch env.Kind {
	case message.KindDiscordMessage, message.KindUserInput, message.KindChat:
		var text, channelID string
		switch p := env.Payload.(type) {
		case message.ChatMessage:
			text, channelID = p.Text, p.ChannelID
		case message.UserText:
			text, channelID = p.Text, p.ChannelID
		}
		if text == "" {
			return u.fail(env, "No text or command provided")
		}
		if line, ok := strings.CutPrefix(text, CommandMarker); ok {
			return u.command(env, line)
		}
		return u.reply(env, Route(text), message.KindUserMessage, message.UserText{
			Text:         text,
			OriginalFrom: env.From,
			ChannelID:    channelID,
		})

	case message.KindCommand:
		p, _ := env.Payload.(message.Command)
		if strings.TrimSpace(p.Line) == "" {
			return u.fail(env, "No text or command provided")
		}
		return u.command(env, p.Line)

	default:
		return u.unknown(env)
	}
}

// command handles a command line with the marker already removed.
func (u *User) command(env message.Envelope, line string) *message.Envelope {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return u.reply(env, env.From, message.KindUnknownCommand, message.Error{Message: "No command specified"})
	}

	switch fields[0] {
	case "reset", "clear":
		return u.reply(env, NameSystem, message.KindResetSession, message.SystemRequest{Message: "Session reset requested"})
	case "stop":
		return u.reply(env, NameSystem, message.KindStopTasks, message.SystemRequest{Message: "Stop all tasks"})
	case "exit":
		return u.reply(env, NameSystem, message.KindShutdown, message.SystemRequest{Message: "Shutdown requested"})
	case "help":
		return u.reply(env, env.From, message.KindHelpResponse, message.HelpListing{
			Commands: append([]string(nil), HelpCommands...),
		})
	default:
		return u.reply(env, NameSystem, message.KindExecuteCommand, message.ExecuteCommand{Command: strings.TrimSpace(line)})
	}
}

// Route picks the target actor for free text.
func Route(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "debug"):
		return NameDebug
	case strings.Contains(lower, "task"), strings.Contains(lower, "todo"):
		return NameAutoResponder
	default:
		return NameAssistant
	}
}

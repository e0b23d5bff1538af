// Package discord implements the Discord channel using discordgo.
//
// On connect the bot opens a public thread under the configured channel,
// posts the session header there and from then on only accepts messages
// from the configured user inside that thread.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/channels"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/i18n"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// threadArchiveMinutes is the auto-archive duration of the session thread.
const threadArchiveMinutes = 1440

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// ChannelID is the parent channel the session thread is created in.
	ChannelID string `yaml:"channel_id"`

	// UserID is the only user whose messages are accepted.
	UserID string `yaml:"user_id"`
}

// SessionInfo is rendered into the thread header.
type SessionInfo struct {
	StartTime  time.Time
	WorkDir    string
	Mode       string
	NeverSleep bool
}

// Discord implements channels.Channel.
type Discord struct {
	cfg     Config
	msgs    i18n.Catalog
	info    SessionInfo
	logger  *slog.Logger
	session *discordgo.Session

	// messages is the channel for accepted incoming messages.
	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	mu       sync.RWMutex
	threadID string
	botID    string
}

// New creates a new Discord channel instance.
func New(cfg Config, msgs i18n.Catalog, info SessionInfo, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}
	return &Discord{
		cfg:      cfg,
		msgs:     msgs,
		info:     info,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the gateway connection, creates the session thread and
// posts the session header.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}
	if d.cfg.ChannelID == "" {
		return fmt.Errorf("discord: channel id is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("%w: discord: opening gateway: %w", channels.ErrConnectionFailed, err)
	}

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)

	thread, err := session.ThreadStartComplex(d.cfg.ChannelID, &discordgo.ThreadStart{
		Name:                fmt.Sprintf(d.msgs.ThreadNamef, d.info.StartTime.Format("2006/01/02 15:04:05")),
		AutoArchiveDuration: threadArchiveMinutes,
		Type:                discordgo.ChannelTypeGuildPublicThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		session.Close()
		return fmt.Errorf("discord: creating session thread: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.threadID = thread.ID
	d.botID = user.ID
	d.mu.Unlock()
	d.connected.Store(true)

	d.logger.Info("discord: session thread created", "thread", thread.Name, "thread_id", thread.ID)

	if _, err := d.Send(ctx, thread.ID, SessionHeader(d.msgs, d.info)); err != nil {
		d.logger.Warn("discord: failed to post session header", "error", err)
	}
	return nil
}

// Disconnect posts the goodbye message and closes the gateway connection.
func (d *Discord) Disconnect() error {
	d.mu.RLock()
	session, threadID := d.session, d.threadID
	d.mu.RUnlock()

	if session == nil {
		return nil
	}
	if threadID != "" {
		if _, err := session.ChannelMessageSend(threadID, d.msgs.Goodbye); err != nil {
			d.logger.Warn("discord: failed to post goodbye", "error", err)
		}
	}

	d.connected.Store(false)
	err := session.Close()
	d.logger.Info("discord: disconnected")
	if err != nil {
		return fmt.Errorf("discord: closing session: %w", err)
	}
	return nil
}

// ChatID returns the session thread id.
func (d *Discord) ChatID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.threadID
}

// Send posts text to chatID. Text longer than Discord's limit is split
// and the id of the last part is returned.
func (d *Discord) Send(ctx context.Context, chatID, text string) (string, error) {
	session := d.current()
	if session == nil {
		return "", channels.ErrChannelDisconnected
	}

	var lastID string
	for _, chunk := range splitDiscordMessage(text, maxMessageLen) {
		msg, err := session.ChannelMessageSend(chatID, chunk, discordgo.WithContext(ctx))
		if err != nil {
			d.errorCount.Add(1)
			return lastID, fmt.Errorf("%w: %w", channels.ErrSendFailed, err)
		}
		lastID = msg.ID
	}
	return lastID, nil
}

// Edit replaces the content of a message.
func (d *Discord) Edit(ctx context.Context, chatID, messageID, text string) error {
	session := d.current()
	if session == nil {
		return channels.ErrChannelDisconnected
	}
	text = text[:runeOffset(text, maxMessageLen)]
	if _, err := session.ChannelMessageEdit(chatID, messageID, text, discordgo.WithContext(ctx)); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: editing message %s: %w", messageID, err)
	}
	return nil
}

// Delete removes a message.
func (d *Discord) Delete(ctx context.Context, chatID, messageID string) error {
	session := d.current()
	if session == nil {
		return channels.ErrChannelDisconnected
	}
	if err := session.ChannelMessageDelete(chatID, messageID, discordgo.WithContext(ctx)); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: deleting message %s: %w", messageID, err)
	}
	return nil
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
		Details:       map[string]any{"thread_id": d.ChatID()},
	}
}

func (d *Discord) current() *discordgo.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

// onMessageCreate forwards accepted messages to the receive channel.
func (d *Discord) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	d.mu.RLock()
	threadID, botID := d.threadID, d.botID
	d.mu.RUnlock()

	if m.Author.ID == botID || !d.accepts(threadID, m.ChannelID, m.Author.ID, m.Author.Bot, m.Content) {
		return
	}

	incoming := &channels.IncomingMessage{
		ID:        m.ID,
		Channel:   "discord",
		From:      m.Author.ID,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	d.lastMsg.Store(time.Now())
	d.errorCount.Store(0)

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// accepts applies the session filter: the message must come from the
// configured non-bot user, inside the session thread, and carry text.
func (d *Discord) accepts(threadID, channelID, authorID string, bot bool, content string) bool {
	switch {
	case bot:
		return false
	case threadID == "" || channelID != threadID:
		return false
	case d.cfg.UserID != "" && authorID != d.cfg.UserID:
		return false
	case strings.TrimSpace(content) == "":
		return false
	}
	return true
}

// SessionHeader renders the session information and command list posted
// at the top of the thread.
func SessionHeader(msgs i18n.Catalog, info SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", msgs.SessionInfoTitle)
	fmt.Fprintf(&b, "**%s**: %s\n", msgs.StartTime, info.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**%s**: `%s`\n", msgs.WorkDir, info.WorkDir)
	fmt.Fprintf(&b, "**%s**: %s\n", msgs.Mode, info.Mode)
	if info.NeverSleep {
		fmt.Fprintf(&b, "**%s**\n", msgs.NeverSleepEnabled)
	}
	b.WriteString("\n---\n\n")
	b.WriteString(msgs.InstructionsHeader + "\n")
	fmt.Fprintf(&b, "- `!reset` or `!clear`: %s\n", msgs.InstrReset)
	fmt.Fprintf(&b, "- `!stop`: %s\n", msgs.InstrStop)
	fmt.Fprintf(&b, "- `!exit`: %s\n", msgs.InstrExit)
	fmt.Fprintf(&b, "- `!<command>`: %s\n", msgs.InstrShell)
	fmt.Fprintf(&b, "- %s", msgs.InstrNormal)
	return b.String()
}

// splitDiscordMessage splits a message into chunks respecting the 2000
// character limit. Cuts always fall on rune boundaries.
func splitDiscordMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		cutAt := runeOffset(text, maxLen)
		if cutAt == len(text) {
			chunks = append(chunks, text)
			break
		}
		// Prefer a newline in the back half of the window.
		if idx := strings.LastIndex(text[:cutAt], "\n"); idx > cutAt/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// runeOffset returns the byte offset just past the first n runes of s, or
// len(s) when s is shorter.
func runeOffset(s string, n int) int {
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

var _ channels.Channel = (*Discord)(nil)

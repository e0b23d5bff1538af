// Package channels defines the chat gateway boundary. A Channel delivers
// inbound conversation messages and renders replies with Send, Edit and
// Delete so turn progress can be shown in place.
package channels

import (
	"context"
	"fmt"
	"time"
)

// Channel defines the interface a chat gateway must implement.
type Channel interface {
	Messenger

	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Receive returns a Go channel that emits accepted incoming messages.
	Receive() <-chan *IncomingMessage

	// ChatID returns the conversation replies are posted to. Empty until
	// connected.
	ChatID() string

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// Messenger posts, edits and removes messages in a conversation.
type Messenger interface {
	// Send posts text to chatID and returns the platform message id.
	Send(ctx context.Context, chatID, text string) (string, error)

	// Edit replaces the text of a message previously returned by Send.
	Edit(ctx context.Context, chatID, messageID, text string) error

	// Delete removes a message previously returned by Send.
	Delete(ctx context.Context, chatID, messageID string) error
}

// IncomingMessage represents a message received from a channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel identifies the source channel (e.g. "discord").
	Channel string

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name (if available).
	FromName string

	// ChatID is the conversation the message arrived in.
	ChatID string

	// Content is the text content of the message.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
	Details       map[string]any
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrSendFailed          = fmt.Errorf("failed to send message")
	ErrConnectionFailed    = fmt.Errorf("failed to connect to channel")
)

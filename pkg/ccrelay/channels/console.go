package channels

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
)

// Console is a Messenger that prints to a terminal. Edits are printed as
// new lines and deletes are ignored; it backs the local chat REPL.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	next int
}

// NewConsole creates a console messenger writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Send prints text and returns a sequential id.
func (c *Console) Send(_ context.Context, _ string, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	if _, err := fmt.Fprintln(c.out, text); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return strconv.Itoa(c.next), nil
}

// Edit prints the replacement text.
func (c *Console) Edit(_ context.Context, _ string, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// Delete is a no-op.
func (c *Console) Delete(context.Context, string, string) error { return nil }

var _ Messenger = (*Console)(nil)

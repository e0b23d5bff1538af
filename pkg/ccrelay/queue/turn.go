package queue

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// run performs one full turn: thinking indicator, agent call with progress
// updates, indicator cleanup, reply delivery and completion marker. Every
// failure is reported to the conversation; nothing propagates out.
func (q *Queue) run(ctx context.Context, task Task) {
	// Gateway calls must survive an aborted turn so cleanup and the abort
	// notice are still delivered.
	out := context.WithoutCancel(ctx)
	chatID := task.ChatID
	log := q.logger.With("id", task.Envelope.ID, "chat_id", chatID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("turn panicked", "panic", r)
			q.post(out, chatID, q.msgs.ErrorGeneric)
		}
	}()

	thinkingID, err := q.out.Send(out, chatID, q.msgs.Thinking)
	if err != nil {
		log.Warn("failed to send thinking indicator", "error", err)
	}

	var progressID string
	progress := func(_ context.Context, text string) {
		if progressID != "" {
			if err := q.out.Edit(out, chatID, progressID, text); err == nil {
				return
			}
		}
		id, err := q.out.Send(out, chatID, text)
		if err != nil {
			log.Warn("failed to send progress", "error", err)
			return
		}
		progressID = id
	}

	env := task.Envelope
	if p, ok := env.Payload.(message.UserText); ok {
		p.Progress = progress
		env.Payload = p
	}

	start := time.Now()
	resp := q.bus.Send(ctx, env)

	if progressID != "" {
		if err := q.out.Delete(out, chatID, progressID); err != nil {
			log.Warn("failed to delete progress message", "error", err)
		}
	}
	if thinkingID != "" {
		if err := q.out.Delete(out, chatID, thinkingID); err != nil {
			log.Warn("failed to delete thinking indicator", "error", err)
		}
	}

	if resp == nil {
		log.Warn("turn produced no response", "to", env.To)
		q.post(out, chatID, q.msgs.Done)
		return
	}

	if resp.Kind == message.KindError {
		e, _ := resp.Payload.(message.Error)
		if e.Aborted {
			log.Info("turn aborted")
			q.post(out, chatID, q.msgs.Aborted)
		} else {
			log.Error("turn failed", "error", e.Message)
			q.post(out, chatID, q.msgs.ErrorGeneric)
		}
		return
	}

	text := resp.Text()
	q.deliver(out, chatID, text)
	q.post(out, chatID, q.msgs.Done)

	q.mu.Lock()
	q.lastReply = text
	q.mu.Unlock()

	log.Info("turn complete", "kind", resp.Kind, "duration", time.Since(start).String(), "reply_len", len(text))
}

// deliver sends text split into chunks, pausing after each send. A failed
// chunk is logged and delivery continues.
func (q *Queue) deliver(ctx context.Context, chatID, text string) {
	for _, chunk := range SplitMessage(text, q.cfg.ChunkSize) {
		if _, err := q.out.Send(ctx, chatID, chunk); err != nil {
			q.logger.Warn("failed to send reply chunk", "chat_id", chatID, "error", err)
			continue
		}
		sleep(ctx, q.cfg.ChunkDelay)
	}
}

// Deliver sends text to chatID with the same chunking and pacing as turn
// replies.
func (q *Queue) Deliver(ctx context.Context, chatID, text string) {
	q.deliver(ctx, chatID, text)
}

func (q *Queue) post(ctx context.Context, chatID, text string) {
	if _, err := q.out.Send(ctx, chatID, text); err != nil {
		q.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

// SplitMessage splits text on line boundaries into chunks of at most
// limit characters. Line order is preserved and lines are never split: a
// single line longer than limit becomes its own oversized chunk. Empty
// chunks are not emitted.
func SplitMessage(text string, limit int) []string {
	var chunks []string
	var current string
	var currentLen int

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen+1 > limit {
			if current != "" {
				chunks = append(chunks, current)
			}
			current, currentLen = line, lineLen
			continue
		}
		if current != "" {
			current += "\n" + line
			currentLen += lineLen + 1
		} else {
			current, currentLen = line, lineLen
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

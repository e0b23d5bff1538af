package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/message"
)

// toolPreviewLimit is the number of characters of a tool result kept in
// replies and progress updates.
const toolPreviewLimit = 300

// Options configures an Adapter.
type Options struct {
	// Model is the model requested on every call. Empty leaves it to the service.
	Model string `yaml:"model"`

	// MaxTurns caps agent turns per call. Default: 300.
	MaxTurns int `yaml:"max_turns"`

	// PermissionMode is forwarded as-is. Default: bypassPermissions.
	PermissionMode string `yaml:"permission_mode"`

	// Resume is a prior session id to attach on the first turn.
	Resume string `yaml:"-"`

	// ContinueLast makes the first turn continue the most recent session.
	ContinueLast bool `yaml:"-"`
}

// DefaultOptions returns the adapter defaults.
func DefaultOptions() Options {
	return Options{
		Model:          "claude-opus-4-20250514",
		MaxTurns:       300,
		PermissionMode: "bypassPermissions",
	}
}

// Adapter turns a prompt into accumulated reply text while keeping
// multi-turn continuity with the service. At most one call is current;
// starting a new call cancels the previous one.
type Adapter struct {
	service  Service
	opts     Options
	recorder Recorder
	logger   *slog.Logger

	mu           sync.Mutex
	isFirstTurn  bool
	sessionID    string
	resumeTarget string
	continueLast bool

	// cancel aborts the current call; callID identifies it so a finished
	// call does not clear the handle of its successor.
	cancel context.CancelFunc
	callID uint64
}

// NewAdapter creates an adapter over service.
func NewAdapter(service Service, opts Options, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		service:      service,
		opts:         opts,
		logger:       logger.With("component", "agent"),
		isFirstTurn:  true,
		resumeTarget: opts.Resume,
		continueLast: opts.ContinueLast,
	}
}

// SetRecorder installs a recorder for captured session ids.
func (a *Adapter) SetRecorder(r Recorder) {
	a.mu.Lock()
	a.recorder = r
	a.mu.Unlock()
}

// Start logs the adapter configuration.
func (a *Adapter) Start(context.Context) error {
	a.mu.Lock()
	resume := a.resumeTarget
	a.mu.Unlock()

	a.logger.Info("agent adapter started", "model", a.opts.Model, "max_turns", a.opts.MaxTurns)
	if resume != "" {
		a.logger.Info("will resume session on first turn", "session_id", resume)
	}
	return nil
}

// Stop aborts any call still in flight.
func (a *Adapter) Stop(context.Context) error {
	if a.Abort() {
		a.logger.Info("aborted in-flight query on stop")
	}
	return nil
}

// Abort cancels the current call, if any, and reports whether one existed.
func (a *Adapter) Abort() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return false
	}
	a.cancel()
	a.cancel = nil
	return true
}

// ResetSession restores first-turn state: no captured session and no
// resume target. It does not cancel a call in flight.
func (a *Adapter) ResetSession() {
	a.mu.Lock()
	a.isFirstTurn = true
	a.sessionID = ""
	a.resumeTarget = ""
	a.continueLast = false
	a.mu.Unlock()

	a.logger.Info("session reset")
}

// SessionID returns the last captured session id.
func (a *Adapter) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// IsFirstTurn reports whether no turn has completed since start or reset.
func (a *Adapter) IsFirstTurn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isFirstTurn
}

// Query runs one turn. Tool results are forwarded to progress as they
// arrive and prefixed to the returned text. Cancelling ctx or calling
// Abort while the stream is consumed returns ErrAborted.
func (a *Adapter) Query(ctx context.Context, prompt string, progress message.ProgressFunc) (string, error) {
	callCtx, id, req := a.begin(ctx, prompt)
	defer a.end(id)

	a.logger.Debug("query", "continue", req.Continue, "resume", req.Resume, "prompt_len", len(prompt))

	stream, err := a.service.Query(callCtx, req)
	if err != nil {
		if callCtx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrAborted, callCtx.Err())
		}
		return "", fmt.Errorf("agent: starting query: %w", err)
	}
	defer stream.Close()

	var reply, tools strings.Builder
	for {
		if err := callCtx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrAborted, err)
		}

		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if callCtx.Err() != nil {
				return "", fmt.Errorf("%w: %w", ErrAborted, callCtx.Err())
			}
			return "", fmt.Errorf("agent: reading stream: %w", err)
		}

		switch ev.Kind {
		case EventAssistantText:
			reply.WriteString(ev.Text)
		case EventSessionInit:
			a.captureSession(ev.SessionID, true)
		case EventResult:
			a.captureSession(ev.SessionID, false)
		case EventToolResult:
			preview := truncatePreview(ev.Text)
			tools.WriteString("\n📋 Tool execution result:\n```\n" + preview + "\n```\n")
			if progress != nil {
				progress(callCtx, "📋 Tool execution result:\n```\n"+preview+"\n```")
			}
		default:
			a.logger.Debug("ignoring agent event", "kind", ev.Kind, "raw", truncatePreview(ev.Raw))
		}
	}

	a.completeTurn(ctx, prompt)

	text := reply.String()
	if tools.Len() > 0 {
		if text != "" {
			text = "\n" + text
		}
		text = tools.String() + text
	}
	if text == "" {
		return NoResponseText, nil
	}
	return text, nil
}

// begin builds the call configuration from session state and installs a
// fresh cancellation handle, cancelling the superseded one.
func (a *Adapter) begin(ctx context.Context, prompt string) (context.Context, uint64, Request) {
	callCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.logger.Warn("superseding in-flight query")
		a.cancel()
	}
	a.callID++
	a.cancel = cancel

	req := Request{
		Prompt:         prompt,
		Model:          a.opts.Model,
		MaxTurns:       a.opts.MaxTurns,
		PermissionMode: a.opts.PermissionMode,
	}
	switch {
	case !a.isFirstTurn:
		req.Continue = true
	case a.resumeTarget != "":
		req.Resume = a.resumeTarget
	case a.continueLast:
		req.Continue = true
	}
	return callCtx, a.callID, req
}

// end releases the handle of call id unless a newer call replaced it.
func (a *Adapter) end(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.callID == id && a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Adapter) captureSession(id string, init bool) {
	if id == "" {
		return
	}
	a.mu.Lock()
	a.sessionID = id
	if init && a.isFirstTurn {
		a.isFirstTurn = false
	}
	a.mu.Unlock()

	if init {
		a.logger.Info("session started", "session_id", id)
	}
}

// completeTurn marks the first turn done and records the session.
func (a *Adapter) completeTurn(ctx context.Context, prompt string) {
	a.mu.Lock()
	a.isFirstTurn = false
	id := a.sessionID
	rec := a.recorder
	a.mu.Unlock()

	if rec == nil || id == "" {
		return
	}
	if err := rec.RecordTurn(ctx, id, prompt); err != nil {
		a.logger.Warn("failed to record session", "session_id", id, "error", err)
	}
}

func truncatePreview(s string) string {
	r := []rune(s)
	if len(r) <= toolPreviewLimit {
		return s
	}
	return string(r[:toolPreviewLimit]) + "..."
}

// Package claudecli implements agent.Service on top of the Claude Code CLI.
// Each query runs `claude -p --output-format stream-json` and decodes one
// JSON event per stdout line.
//
// Requirements:
//   - Claude Code CLI installed: npm install -g @anthropic-ai/claude-code
//   - Authenticated (claude login) or an API key in the configuration.
package claudecli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jholhewres/ccrelay/pkg/ccrelay/agent"
	"github.com/jholhewres/ccrelay/pkg/ccrelay/shell"
)

// maxLineSize bounds a single stream-json line.
const maxLineSize = 16 * 1024 * 1024

// Config configures the CLI service.
type Config struct {
	// Binary is the CLI executable. Default: "claude".
	Binary string

	// WorkDir is the directory the agent works in. Empty = current directory.
	WorkDir string

	// APIKey, when set, is exported to the child as ANTHROPIC_API_KEY.
	APIKey string
}

// Service runs queries through the CLI.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a CLI service.
func New(cfg Config, logger *slog.Logger) *Service {
	if cfg.Binary == "" {
		cfg.Binary = "claude"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, logger: logger.With("component", "claudecli")}
}

// Available checks that the CLI binary can be found.
func (s *Service) Available() error {
	if _, err := exec.LookPath(s.cfg.Binary); err != nil {
		return fmt.Errorf("claudecli: %s not found (install: npm install -g @anthropic-ai/claude-code): %w", s.cfg.Binary, err)
	}
	return nil
}

// Query starts the CLI for req. Cancelling ctx kills the process group.
func (s *Service) Query(ctx context.Context, req agent.Request) (agent.Stream, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, BuildArgs(req)...)
	if s.cfg.WorkDir != "" {
		cmd.Dir = s.cfg.WorkDir
	}
	cmd.Env = os.Environ()
	if s.cfg.APIKey != "" {
		cmd.Env = append(cmd.Env, "ANTHROPIC_API_KEY="+s.cfg.APIKey)
	}
	shell.KillGroupOnCancel(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("claudecli: stdout pipe: %w", err)
	}
	st := &stream{cmd: cmd, logger: s.logger}
	cmd.Stderr = &st.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("claudecli: starting %s: %w", s.cfg.Binary, err)
	}
	s.logger.Debug("query started", "pid", cmd.Process.Pid, "continue", req.Continue, "resume", req.Resume)

	st.scanner = bufio.NewScanner(stdout)
	st.scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
	return st, nil
}

// BuildArgs returns the CLI arguments for req. The prompt goes last.
func BuildArgs(req agent.Request) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}

	switch {
	case req.Resume != "":
		args = append(args, "--resume", req.Resume)
	case req.Continue:
		args = append(args, "--continue")
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(req.MaxTurns))
	}
	if req.PermissionMode != "" {
		args = append(args, "--permission-mode", req.PermissionMode)
	}
	return append(args, req.Prompt)
}

// stream decodes CLI stdout into agent events.
type stream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  bytes.Buffer
	logger  *slog.Logger

	pending []agent.Event
	waited  bool
	waitErr error
}

func (s *stream) Recv() (agent.Event, error) {
	for len(s.pending) == 0 {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return agent.Event{}, fmt.Errorf("claudecli: reading output: %w", err)
			}
			if err := s.wait(); err != nil {
				return agent.Event{}, err
			}
			return agent.Event{}, io.EOF
		}

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		events, err := ParseLine(line)
		if err != nil {
			return agent.Event{}, err
		}
		s.pending = events
	}

	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *stream) Close() error {
	if s.waited {
		return nil
	}
	if s.cmd.Process != nil && s.cmd.Cancel != nil {
		_ = s.cmd.Cancel()
	}
	_ = s.wait()
	return nil
}

func (s *stream) wait() error {
	if s.waited {
		return s.waitErr
	}
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		msg := strings.TrimSpace(s.stderr.String())
		s.waitErr = fmt.Errorf("claudecli: process exited: %w: %s", err, msg)
	}
	return s.waitErr
}

// ErrAgentReported is returned when the CLI reports a failed result.
var ErrAgentReported = errors.New("agent reported an error")

type wireEvent struct {
	Type      string       `json:"type"`
	Subtype   string       `json:"subtype"`
	SessionID string       `json:"session_id"`
	Result    string       `json:"result"`
	IsError   bool         `json:"is_error"`
	Message   *wireMessage `json:"message"`
}

type wireMessage struct {
	Content json.RawMessage `json:"content"`
}

type wireBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Content json.RawMessage `json:"content"`
}

// ParseLine decodes one stream-json line. A line may carry several text or
// tool-result blocks and yields one event per block. Undecodable lines
// become EventOther.
func ParseLine(line []byte) ([]agent.Event, error) {
	raw := string(line)

	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return []agent.Event{{Kind: agent.EventOther, Raw: raw}}, nil
	}

	switch {
	case w.Type == "system" && w.Subtype == "init":
		return []agent.Event{{Kind: agent.EventSessionInit, SessionID: w.SessionID, Raw: raw}}, nil

	case w.Type == "result":
		if w.IsError || strings.HasPrefix(w.Subtype, "error") {
			msg := w.Result
			if msg == "" {
				msg = w.Subtype
			}
			return nil, fmt.Errorf("claudecli: %w: %s", ErrAgentReported, msg)
		}
		return []agent.Event{{Kind: agent.EventResult, SessionID: w.SessionID, Text: w.Result, Raw: raw}}, nil

	case w.Type == "assistant" && w.Message != nil:
		var events []agent.Event
		if s, ok := decodeString(w.Message.Content); ok {
			return []agent.Event{{Kind: agent.EventAssistantText, Text: s, Raw: raw}}, nil
		}
		for _, b := range decodeBlocks(w.Message.Content) {
			if b.Type == "text" {
				events = append(events, agent.Event{Kind: agent.EventAssistantText, Text: b.Text, Raw: raw})
			}
		}
		if len(events) == 0 {
			events = append(events, agent.Event{Kind: agent.EventOther, Raw: raw})
		}
		return events, nil

	case w.Type == "user" && w.Message != nil:
		var events []agent.Event
		for _, b := range decodeBlocks(w.Message.Content) {
			if b.Type != "tool_result" {
				continue
			}
			if text, ok := toolResultText(b.Content); ok {
				events = append(events, agent.Event{Kind: agent.EventToolResult, Text: text, Raw: raw})
			}
		}
		if len(events) == 0 {
			events = append(events, agent.Event{Kind: agent.EventOther, Raw: raw})
		}
		return events, nil
	}

	return []agent.Event{{Kind: agent.EventOther, Raw: raw}}, nil
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeBlocks(raw json.RawMessage) []wireBlock {
	var blocks []wireBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

// toolResultText accepts both the string and the block-list forms.
func toolResultText(raw json.RawMessage) (string, bool) {
	if s, ok := decodeString(raw); ok {
		return s, true
	}
	blocks := decodeBlocks(raw)
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

var _ agent.Service = (*Service)(nil)

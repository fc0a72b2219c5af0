package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
	"github.com/shaneholloman/automaker/internal/provider"
)

var errTerminalUnsupported = errors.New("terminal is not supported")

// bridge is the client half of one ACP session with the gemini CLI. It
// serves the agent's file requests, auto-selects permission options and
// folds session updates into canonical messages.
//
// The agent streams text in chunks. Consecutive chunks of one kind are
// coalesced and flushed as a single message when the kind changes, a tool
// event arrives or the turn ends.
type bridge struct {
	ctx     context.Context
	stream  *domain.MessageStream
	corr    *provider.Correlator
	workDir string
	log     *slog.Logger

	mu       sync.Mutex
	kind     domain.BlockType
	buf      strings.Builder
	lastText string

	sendFailed atomic.Bool
}

var _ acpsdk.Client = (*bridge)(nil)

func newBridge(ctx context.Context, stream *domain.MessageStream, workDir string, log *slog.Logger) *bridge {
	return &bridge{
		ctx:     ctx,
		stream:  stream,
		corr:    provider.NewCorrelator(),
		workDir: workDir,
		log:     log,
	}
}

// run drives one full session over the given stdio pair: initialize,
// create a session, send the prompt, translate updates until the agent
// reports a stop reason.
func (b *bridge) run(in io.Writer, out io.Reader, opts provider.ExecuteOptions) error {
	conn := acpsdk.NewClientSideConnection(b, in, out)

	initReq := acpsdk.InitializeRequest{
		ProtocolVersion: acpsdk.ProtocolVersionNumber,
		ClientCapabilities: acpsdk.ClientCapabilities{
			Fs: acpsdk.FileSystemCapability{
				ReadTextFile:  true,
				WriteTextFile: true,
			},
		},
	}
	if _, err := conn.Initialize(b.ctx, initReq); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	cwd := b.workDir
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			cwd = "."
		}
	}
	sess, err := conn.NewSession(b.ctx, acpsdk.NewSessionRequest{
		Cwd:        cwd,
		McpServers: toolServers(opts.ToolServers, b.log),
	})
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}

	// The prompt channel carries one user turn, so prior history and the
	// system prompt travel flattened inside the prompt text.
	prompt := history.WithSystemPrompt(opts.SystemPrompt,
		history.Transcript(opts.History, history.PromptText(opts.Prompt, opts.PromptBlocks)))

	resp, err := conn.Prompt(b.ctx, acpsdk.PromptRequest{
		SessionId: sess.SessionId,
		Prompt:    []acpsdk.ContentBlock{acpsdk.TextBlock(prompt)},
	})
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	b.finish(resp.StopReason)
	return nil
}

// finish flushes pending text and emits the terminal message for the
// agent's stop reason.
func (b *bridge) finish(reason acpsdk.StopReason) {
	b.flush()
	switch reason {
	case acpsdk.StopReasonEndTurn:
		b.send(domain.NewResultMessage(b.finalText()))
	case acpsdk.StopReasonCancelled:
		b.send(domain.NewErrorMessage(domain.ErrorKindCancellation, "agent cancelled the turn"))
	default:
		b.send(domain.NewErrorMessage(domain.ErrorKindExecution, "agent stopped early: "+string(reason)))
	}
}

// SessionUpdate receives streaming notifications from the agent.
func (b *bridge) SessionUpdate(_ context.Context, notif acpsdk.SessionNotification) error {
	update := notif.Update

	switch {
	case update.AgentMessageChunk != nil:
		b.appendChunk(domain.BlockText, contentText(update.AgentMessageChunk.Content))

	case update.AgentThoughtChunk != nil:
		b.appendChunk(domain.BlockThinking, contentText(update.AgentThoughtChunk.Content))

	case update.UserMessageChunk != nil:
		// Prompt echo; the caller already has it.

	case update.ToolCall != nil:
		view, err := toolCallView(update.ToolCall)
		if err != nil {
			b.log.Debug("dropping unreadable tool call", "error", err)
			return nil
		}
		b.flush()
		b.send(domain.NewAssistantMessage(
			domain.ToolUseBlock(b.corr.Mint(view.ToolCallID), view.name(), view.RawInput)))

	case update.ToolCallUpdate != nil:
		view, err := toolCallView(update.ToolCallUpdate)
		if err != nil {
			b.log.Debug("dropping unreadable tool call update", "error", err)
			return nil
		}
		switch view.Status {
		case "completed", "failed", "errored":
			b.flush()
			b.send(domain.NewUserMessage(
				domain.ToolResultBlock(b.corr.Mint(view.ToolCallID), view.outcome())))
		default:
			// Intermediate statuses; the pairing event is the final one.
		}

	case update.Plan != nil:
		if text := renderPlan(update.Plan); text != "" {
			b.flush()
			b.send(domain.NewAssistantText(text))
		}

	default:
		// Available commands and mode changes have no canonical counterpart.
	}

	return nil
}

func (b *bridge) appendChunk(kind domain.BlockType, text string) {
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kind != kind {
		b.flushLocked()
		b.kind = kind
	}
	b.buf.WriteString(text)
}

func (b *bridge) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *bridge) flushLocked() {
	if b.buf.Len() == 0 {
		return
	}
	text := b.buf.String()
	b.buf.Reset()
	if b.kind == domain.BlockThinking {
		b.send(domain.NewAssistantMessage(domain.ThinkingBlock(text)))
		return
	}
	b.lastText = text
	b.send(domain.NewAssistantText(text))
}

func (b *bridge) finalText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastText
}

func (b *bridge) send(msg domain.ProviderMessage) {
	if b.sendFailed.Load() {
		return
	}
	if !b.stream.Send(b.ctx, msg) {
		b.sendFailed.Store(true)
	}
}

// ReadTextFile serves the agent's file reads, relative paths joined under
// the working directory. The agent probes for files with read requests and
// cannot digest errors for absent paths; those report empty content.
func (b *bridge) ReadTextFile(_ context.Context, req acpsdk.ReadTextFileRequest) (acpsdk.ReadTextFileResponse, error) {
	path, err := b.resolvePath(req.Path)
	if err != nil {
		return acpsdk.ReadTextFileResponse{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return acpsdk.ReadTextFileResponse{}, nil
		}
		return acpsdk.ReadTextFileResponse{}, err
	}
	content := string(data)

	if req.Line != nil || req.Limit != nil {
		lines := strings.Split(content, "\n")
		start := 0
		if req.Line != nil && *req.Line > 0 {
			start = *req.Line - 1
			if start >= len(lines) {
				start = len(lines)
			}
		}
		end := len(lines)
		if req.Limit != nil && *req.Limit > 0 && start+*req.Limit < end {
			end = start + *req.Limit
		}
		content = strings.Join(lines[start:end], "\n")
	}

	return acpsdk.ReadTextFileResponse{Content: content}, nil
}

func (b *bridge) WriteTextFile(_ context.Context, req acpsdk.WriteTextFileRequest) (acpsdk.WriteTextFileResponse, error) {
	path, err := b.resolvePath(req.Path)
	if err != nil {
		return acpsdk.WriteTextFileResponse{}, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return acpsdk.WriteTextFileResponse{}, err
		}
	}
	if err := os.WriteFile(path, []byte(req.Content), 0o644); err != nil {
		return acpsdk.WriteTextFileResponse{}, err
	}

	return acpsdk.WriteTextFileResponse{}, nil
}

func (b *bridge) resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if b.workDir == "" {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}
	return filepath.Join(b.workDir, path), nil
}

// RequestPermission auto-selects the first offered option. Executions are
// unattended; interactive approval belongs to the caller's own policy
// flags, not this layer.
func (b *bridge) RequestPermission(_ context.Context, req acpsdk.RequestPermissionRequest) (acpsdk.RequestPermissionResponse, error) {
	if len(req.Options) == 0 {
		return acpsdk.RequestPermissionResponse{
			Outcome: acpsdk.RequestPermissionOutcome{
				Cancelled: &acpsdk.RequestPermissionOutcomeCancelled{},
			},
		}, nil
	}
	return acpsdk.RequestPermissionResponse{
		Outcome: acpsdk.RequestPermissionOutcome{
			Selected: &acpsdk.RequestPermissionOutcomeSelected{
				OptionId: req.Options[0].OptionId,
			},
		},
	}, nil
}

func (b *bridge) CreateTerminal(_ context.Context, _ acpsdk.CreateTerminalRequest) (acpsdk.CreateTerminalResponse, error) {
	return acpsdk.CreateTerminalResponse{}, errTerminalUnsupported
}

func (b *bridge) TerminalOutput(_ context.Context, _ acpsdk.TerminalOutputRequest) (acpsdk.TerminalOutputResponse, error) {
	return acpsdk.TerminalOutputResponse{}, errTerminalUnsupported
}

func (b *bridge) WaitForTerminalExit(_ context.Context, _ acpsdk.WaitForTerminalExitRequest) (acpsdk.WaitForTerminalExitResponse, error) {
	return acpsdk.WaitForTerminalExitResponse{}, errTerminalUnsupported
}

func (b *bridge) KillTerminalCommand(_ context.Context, _ acpsdk.KillTerminalCommandRequest) (acpsdk.KillTerminalCommandResponse, error) {
	return acpsdk.KillTerminalCommandResponse{}, errTerminalUnsupported
}

func (b *bridge) ReleaseTerminal(_ context.Context, _ acpsdk.ReleaseTerminalRequest) (acpsdk.ReleaseTerminalResponse, error) {
	return acpsdk.ReleaseTerminalResponse{}, errTerminalUnsupported
}

// contentText extracts the text of an ACP content block, empty for
// non-text blocks.
func contentText(block acpsdk.ContentBlock) string {
	if block.Text != nil {
		return block.Text.Text
	}
	return ""
}

// toolCallWire is the wire shape shared by tool_call and tool_call_update
// notifications; only the fields the canonical stream needs are read.
type toolCallWire struct {
	ToolCallID string         `json:"toolCallId"`
	Title      string         `json:"title"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	RawInput   map[string]any `json:"rawInput"`
	RawOutput  any            `json:"rawOutput"`
}

// toolCallView reads a tool call union member through its wire shape.
func toolCallView(v any) (toolCallWire, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return toolCallWire{}, err
	}
	var wire toolCallWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return toolCallWire{}, err
	}
	return wire, nil
}

func (w toolCallWire) name() string {
	if w.Title != "" {
		return w.Title
	}
	if w.Kind != "" {
		return w.Kind
	}
	return "tool"
}

func (w toolCallWire) outcome() string {
	switch out := w.RawOutput.(type) {
	case nil:
		return w.Status
	case string:
		return out
	default:
		raw, err := json.Marshal(out)
		if err != nil {
			return w.Status
		}
		return string(raw)
	}
}

// renderPlan flattens a plan update into a numbered list, completed steps
// marked.
func renderPlan(plan any) string {
	raw, err := json.Marshal(plan)
	if err != nil {
		return ""
	}
	var view struct {
		Entries []struct {
			Content string `json:"content"`
			Status  string `json:"status"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(raw, &view); err != nil {
		return ""
	}

	lines := make([]string, 0, len(view.Entries))
	for i, entry := range view.Entries {
		line := fmt.Sprintf("%d. %s", i+1, entry.Content)
		if entry.Status == "completed" {
			line += " (done)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// toolServers converts configured servers into stdio entries through the
// union's wire codec; a flat {name,command,args,env} object selects the
// stdio variant. A server that fails to convert is dropped, never the run.
func toolServers(cfgs []provider.ToolServerConfig, log *slog.Logger) []acpsdk.McpServer {
	if len(cfgs) == 0 {
		return nil
	}
	out := make([]acpsdk.McpServer, 0, len(cfgs))
	for _, cfg := range cfgs {
		args := cfg.Args
		if args == nil {
			args = []string{}
		}
		env := make([]map[string]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, map[string]string{"name": k, "value": v})
		}
		wire := map[string]any{
			"name":    cfg.Name,
			"command": cfg.Command,
			"args":    args,
			"env":     env,
		}

		raw, err := json.Marshal(wire)
		var srv acpsdk.McpServer
		if err == nil {
			err = json.Unmarshal(raw, &srv)
		}
		if err != nil {
			log.Warn("dropping tool server", "server", cfg.Name, "error", err)
			continue
		}
		out = append(out, srv)
	}
	return out
}

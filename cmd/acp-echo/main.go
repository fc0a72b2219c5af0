// acp-echo is a minimal ACP agent that plays back a full turn for any
// prompt: a thought update, a permission-gated tool call, and the user's
// text echoed as the agent message. It speaks ACP (Agent Client Protocol)
// over stdin/stdout and is designed for end-to-end testing without LLM
// costs; point AUTOMAKER_GEMINI_BIN at it to run a complete session
// through the gemini adapter with no credentials.
//
// Usage:
//
//	acp-echo          # reads from stdin, writes to stdout (typical ACP mode)
//
// Extra arguments such as --experimental-acp are accepted and ignored so
// the binary can stand in for a real backend CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	acp "github.com/coder/acp-go-sdk"
)

// echoAgent implements the ACP Agent interface. Each Prompt call streams
// one scripted turn built from the caller's own text, then signals
// end-of-turn.
type echoAgent struct {
	conn  *acp.AgentSideConnection
	turns int
}

var _ acp.Agent = (*echoAgent)(nil)

func (a *echoAgent) Initialize(_ context.Context, _ acp.InitializeRequest) (acp.InitializeResponse, error) {
	return acp.InitializeResponse{
		ProtocolVersion:   acp.ProtocolVersionNumber,
		AgentCapabilities: acp.AgentCapabilities{LoadSession: false},
	}, nil
}

func (a *echoAgent) Authenticate(_ context.Context, _ acp.AuthenticateRequest) (acp.AuthenticateResponse, error) {
	return acp.AuthenticateResponse{}, nil
}

func (a *echoAgent) NewSession(_ context.Context, _ acp.NewSessionRequest) (acp.NewSessionResponse, error) {
	return acp.NewSessionResponse{SessionId: "echo-session"}, nil
}

func (a *echoAgent) SetSessionMode(_ context.Context, _ acp.SetSessionModeRequest) (acp.SetSessionModeResponse, error) {
	return acp.SetSessionModeResponse{}, nil
}

func (a *echoAgent) Cancel(_ context.Context, _ acp.CancelNotification) error {
	return nil
}

func (a *echoAgent) Prompt(ctx context.Context, req acp.PromptRequest) (acp.PromptResponse, error) {
	userText := extractText(req.Prompt)
	a.turns++
	callID := acp.ToolCallId(fmt.Sprintf("echo-%d", a.turns))

	update := func(u acp.SessionUpdate) error {
		return a.conn.SessionUpdate(ctx, acp.SessionNotification{
			SessionId: req.SessionId,
			Update:    u,
		})
	}

	if err := update(acp.UpdateAgentThoughtText("echoing the prompt back verbatim")); err != nil {
		return acp.PromptResponse{}, err
	}

	allowed, err := a.askPermission(ctx, req.SessionId, callID, userText)
	if err != nil {
		return acp.PromptResponse{}, err
	}
	if !allowed {
		if err := update(acp.UpdateAgentMessageText("echo was rejected")); err != nil {
			return acp.PromptResponse{}, err
		}
		return acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
	}

	if err := update(acp.StartToolCall(callID, "Echo",
		acp.WithStartRawInput(map[string]any{"text": userText}))); err != nil {
		return acp.PromptResponse{}, err
	}

	quoted, err := json.Marshal(userText)
	if err != nil {
		return acp.PromptResponse{}, fmt.Errorf("acp-echo: marshal: %w", err)
	}
	if err := update(acp.UpdateToolCall(callID,
		acp.WithUpdateStatus(acp.ToolCallStatusCompleted),
		acp.WithUpdateRawOutput(json.RawMessage(quoted)))); err != nil {
		return acp.PromptResponse{}, err
	}

	if err := update(acp.UpdateAgentMessageText(userText)); err != nil {
		return acp.PromptResponse{}, err
	}

	return acp.PromptResponse{StopReason: acp.StopReasonEndTurn}, nil
}

// askPermission offers the client an allow/reject choice for the echo tool
// call, exercising the permission round trip that real backends perform
// before edits.
func (a *echoAgent) askPermission(ctx context.Context, sessionID acp.SessionId, callID acp.ToolCallId, userText string) (bool, error) {
	title := "Echo the prompt"
	resp, err := a.conn.RequestPermission(ctx, acp.RequestPermissionRequest{
		SessionId: sessionID,
		Options: []acp.PermissionOption{
			{OptionId: "allow", Name: "Allow", Kind: acp.PermissionOptionKindAllowOnce},
			{OptionId: "reject", Name: "Reject", Kind: acp.PermissionOptionKindRejectOnce},
		},
		ToolCall: acp.RequestPermissionToolCall{
			ToolCallId: callID,
			Title:      &title,
			RawInput:   map[string]any{"text": userText},
		},
	})
	if err != nil {
		return false, err
	}
	if resp.Outcome.Selected == nil {
		return false, nil
	}
	return resp.Outcome.Selected.OptionId == "allow", nil
}

// extractText returns the concatenated text from a slice of ContentBlocks.
func extractText(blocks []acp.ContentBlock) string {
	result := ""
	for _, block := range blocks {
		if block.Text != nil {
			result += block.Text.Text
		}
	}
	if result == "" {
		return "(no input)"
	}
	return result
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ag := &echoAgent{}
	asc := acp.NewAgentSideConnection(ag, os.Stdout, os.Stdin)
	ag.conn = asc

	select {
	case <-ctx.Done():
	case <-asc.Done():
	}
}

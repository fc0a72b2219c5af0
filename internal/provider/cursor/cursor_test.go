package cursor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
)

// fakeCLI writes a shell script standing in for the agent binary.
func fakeCLI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cursor-agent")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, stream *domain.MessageStream) []domain.ProviderMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var out []domain.ProviderMessage
	for {
		msg, ok := stream.Next(ctx)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestExecuteQueryMissingCLI(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AUTOMAKER_CURSOR_BIN", "")

	a := New()
	msgs := collect(t, a.ExecuteQuery(context.Background(), provider.ExecuteOptions{Prompt: "hi"}))

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly 1: %+v", len(msgs), msgs)
	}
	if msgs[0].Type != domain.MessageError || msgs[0].ErrorKind != domain.ErrorKindExecution {
		t.Errorf("message = %+v", msgs[0])
	}
	if !strings.Contains(msgs[0].Error, "AUTOMAKER_CURSOR_BIN") {
		t.Errorf("error %q does not tell the user how to fix it", msgs[0].Error)
	}
}

func TestExecuteQueryUnauthenticated(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	script := fakeCLI(t, `echo should-not-run`)

	env := func(string) string { return "" }
	a := New(WithBinary(script), WithEnviron(env))
	msgs := collect(t, a.ExecuteQuery(context.Background(), provider.ExecuteOptions{Prompt: "go"}))

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(msgs), msgs)
	}
	if msgs[0].ErrorKind != domain.ErrorKindAuthentication {
		t.Errorf("kind = %q, want authentication", msgs[0].ErrorKind)
	}
	if !strings.Contains(msgs[0].Error, "CURSOR_API_KEY") {
		t.Errorf("error %q does not name the credential", msgs[0].Error)
	}
}

func TestExecuteQueryStream(t *testing.T) {
	t.Setenv("CURSOR_API_KEY", "key-test")
	script := fakeCLI(t, `printf '%s\n' "$@" > "$(dirname "$0")/args.txt"
echo '{"type":"system","subtype":"init","session_id":"s-1","model":"composer-1","cwd":"/work"}'
echo '{"type":"tool_call","subtype":"started","call_id":"call-1","tool_call":{"Read":{"args":{"file_path":"main.go"}}}}'
echo '{"type":"tool_call","subtype":"completed","call_id":"call-1","tool_call":{"Read":{"args":{"file_path":"main.go"},"result":"package main"}}}'
echo '{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"4"}]},"session_id":"s-1"}'
echo '{"type":"result","subtype":"success","duration_ms":900,"is_error":false,"result":"4"}'
`)

	a := New(WithBinary(script))
	msgs := collect(t, a.ExecuteQuery(context.Background(), provider.ExecuteOptions{Prompt: "what is 2+2?"}))

	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5: %+v", len(msgs), msgs)
	}
	if msgs[0].Type != domain.MessageSystem {
		t.Errorf("first message = %q", msgs[0].Type)
	}
	use, res := msgs[1].Content[0], msgs[2].Content[0]
	if use.Type != domain.BlockToolUse || res.Type != domain.BlockToolResult || use.CorrelationID != res.CorrelationID {
		t.Errorf("tool pair not correlated: %+v vs %+v", use, res)
	}
	if msgs[3].PlainText() != "4" {
		t.Errorf("assistant text = %q", msgs[3].PlainText())
	}
	if msgs[4].Type != domain.MessageResult || msgs[4].Result != "4" {
		t.Errorf("result = %+v", msgs[4])
	}

	argv, err := os.ReadFile(filepath.Join(filepath.Dir(script), "args.txt"))
	if err != nil {
		t.Fatal(err)
	}
	args := strings.Split(strings.TrimSpace(string(argv)), "\n")
	if args[0] != "chat" || args[1] != "-p" || args[2] != "what is 2+2?" {
		t.Errorf("argv = %v", args)
	}
	if !strings.Contains(string(argv), "composer-1") {
		t.Errorf("argv %v missing the default model", args)
	}
}

func TestExecuteQueryNonZeroExit(t *testing.T) {
	t.Setenv("CURSOR_API_KEY", "key-test")
	script := fakeCLI(t, `echo '{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}'
echo 'agent crashed while editing' >&2
exit 2
`)

	a := New(WithBinary(script))
	msgs := collect(t, a.ExecuteQuery(context.Background(), provider.ExecuteOptions{Prompt: "go"}))

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(msgs), msgs)
	}
	last := msgs[1]
	if last.ErrorKind != domain.ErrorKindExecution || !strings.Contains(last.Error, "agent crashed") {
		t.Errorf("terminal = %+v", last)
	}
}

func TestExecuteQueryCancellation(t *testing.T) {
	t.Setenv("CURSOR_API_KEY", "key-test")
	script := fakeCLI(t, `echo '{"type":"assistant","message":{"content":[{"type":"text","text":"working"}]}}'
sleep 30
`)

	ctx, cancel := context.WithCancel(context.Background())
	a := New(WithBinary(script))
	stream := a.ExecuteQuery(ctx, provider.ExecuteOptions{Prompt: "go"})

	first, ok := stream.Next(context.Background())
	if !ok || first.Type != domain.MessageAssistant {
		t.Fatalf("first message = %+v, ok=%v", first, ok)
	}

	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	start := time.Now()
	for {
		msg, ok := stream.Next(waitCtx)
		if !ok {
			break
		}
		if msg.IsTerminal() {
			t.Errorf("cancellation produced a terminal message: %+v", msg)
		}
	}
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Errorf("stream took %v to end after cancellation", elapsed)
	}
}

func TestDetectInstallation(t *testing.T) {
	script := fakeCLI(t, `echo "2025.08.15-abc123"`)

	env := func(key string) string {
		if key == "CURSOR_API_KEY" {
			return "key-test"
		}
		return ""
	}
	a := New(WithBinary(script), WithEnviron(env))
	status := a.DetectInstallation(context.Background())

	if !status.Installed || status.Method != "config" {
		t.Errorf("status = %+v", status)
	}
	if status.Version != "2025.08.15-abc123" {
		t.Errorf("version = %q", status.Version)
	}
	if !status.HasCredential || !status.Authenticated {
		t.Errorf("credential flags = %+v", status)
	}
}

func TestSupportsFeature(t *testing.T) {
	a := New()
	for _, feature := range []string{provider.FeatureTools, provider.FeatureStreaming, provider.FeatureHistory} {
		if !a.SupportsFeature(feature) {
			t.Errorf("SupportsFeature(%q) = false", feature)
		}
	}
	if a.SupportsFeature(provider.FeatureVision) {
		t.Error("vision reported as supported")
	}
}

package claude

import (
	"testing"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/provider"
)

func TestTranslateAssistant(t *testing.T) {
	rec := Record{Type: "assistant", Data: map[string]any{
		"message": map[string]any{
			"role": "assistant",
			"content": []any{
				map[string]any{"type": "thinking", "thinking": "let me look"},
				map[string]any{"type": "text", "text": "running ls"},
				map[string]any{"type": "tool_use", "id": "toolu_01", "name": "Bash", "input": map[string]any{"command": "ls"}},
			},
		},
	}}

	msg, ok := translate(rec, provider.NewCorrelator())
	if !ok {
		t.Fatal("assistant record was dropped")
	}
	if msg.Type != domain.MessageAssistant {
		t.Fatalf("type = %q", msg.Type)
	}
	if len(msg.Content) != 3 {
		t.Fatalf("got %d blocks, want 3", len(msg.Content))
	}
	if msg.Content[0].Type != domain.BlockThinking || msg.Content[0].Text != "let me look" {
		t.Errorf("thinking block = %+v", msg.Content[0])
	}
	if msg.Content[1].Type != domain.BlockText {
		t.Errorf("text block = %+v", msg.Content[1])
	}
	tool := msg.Content[2]
	if tool.Type != domain.BlockToolUse || tool.Name != "Bash" || tool.CorrelationID == "" {
		t.Errorf("tool_use block = %+v", tool)
	}
	if tool.Input["command"] != "ls" {
		t.Errorf("tool input = %v", tool.Input)
	}
}

func TestToolResultCorrelation(t *testing.T) {
	corr := provider.NewCorrelator()

	use, ok := translate(Record{Type: "assistant", Data: map[string]any{
		"message": map[string]any{
			"content": []any{
				map[string]any{"type": "tool_use", "id": "toolu_07", "name": "Read", "input": map[string]any{}},
			},
		},
	}}, corr)
	if !ok {
		t.Fatal("tool_use record dropped")
	}

	result, ok := translate(Record{Type: "user", Data: map[string]any{
		"message": map[string]any{
			"content": []any{
				map[string]any{"type": "tool_result", "tool_use_id": "toolu_07", "content": "file contents"},
			},
		},
	}}, corr)
	if !ok {
		t.Fatal("tool_result record dropped")
	}

	if result.Type != domain.MessageUser {
		t.Errorf("tool result carried on %q message", result.Type)
	}
	if got, want := result.Content[0].CorrelationID, use.Content[0].CorrelationID; got != want {
		t.Errorf("correlation id %q does not match tool_use %q", got, want)
	}
	if result.Content[0].Content != "file contents" {
		t.Errorf("result content = %q", result.Content[0].Content)
	}
}

func TestTranslateResult(t *testing.T) {
	msg, ok := translate(Record{Type: "result", Data: map[string]any{
		"subtype": "success", "is_error": false, "result": "done: 8",
	}}, provider.NewCorrelator())
	if !ok {
		t.Fatal("result record dropped")
	}
	if msg.Type != domain.MessageResult || msg.Subtype != domain.ResultSuccess || msg.Result != "done: 8" {
		t.Errorf("result = %+v", msg)
	}
	if !msg.IsTerminal() {
		t.Error("result is not terminal")
	}

	msg, ok = translate(Record{Type: "result", Data: map[string]any{
		"subtype": "error_during_execution", "is_error": true,
	}}, provider.NewCorrelator())
	if !ok {
		t.Fatal("failed result dropped")
	}
	if msg.Type != domain.MessageError || msg.ErrorKind != domain.ErrorKindExecution {
		t.Errorf("failed result = %+v", msg)
	}
}

func TestTranslateError(t *testing.T) {
	msg, ok := translate(Record{Type: "error", Data: map[string]any{
		"error": map[string]any{"message": "Invalid API key provided"},
	}}, provider.NewCorrelator())
	if !ok {
		t.Fatal("error record dropped")
	}
	if msg.ErrorKind != domain.ErrorKindAuthentication {
		t.Errorf("error kind = %q, want authentication", msg.ErrorKind)
	}
}

func TestTranslateSystem(t *testing.T) {
	msg, ok := translate(Record{Type: "system", Data: map[string]any{
		"subtype": "init", "model": "claude-sonnet-4-5",
	}}, provider.NewCorrelator())
	if !ok {
		t.Fatal("system record dropped")
	}
	if msg.Type != domain.MessageSystem || msg.Subtype != "init" || msg.Text != "claude-sonnet-4-5" {
		t.Errorf("system = %+v", msg)
	}
}

func TestTranslateDropsAndFallbacks(t *testing.T) {
	if _, ok := translate(Record{Type: "stream_event", Data: map[string]any{"event": map[string]any{}}}, provider.NewCorrelator()); ok {
		t.Error("partial stream_event was emitted")
	}

	msg, ok := translate(Record{Type: "future_thing", Data: map[string]any{"text": "still useful"}}, provider.NewCorrelator())
	if !ok || msg.PlainText() != "still useful" {
		t.Errorf("unknown record with text = %+v, ok=%v", msg, ok)
	}

	if _, ok := translate(Record{Type: "future_thing", Data: map[string]any{"blob": 1}}, provider.NewCorrelator()); ok {
		t.Error("unknown record without text was emitted")
	}

	if _, ok := translate(Record{Type: "assistant", Data: map[string]any{"message": map[string]any{"content": []any{}}}}, provider.NewCorrelator()); ok {
		t.Error("empty assistant message was emitted")
	}
}
